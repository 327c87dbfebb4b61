package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kauppa/kauppa-sub000/internal/domain"
	"github.com/kauppa/kauppa-sub000/internal/messaging"
)

type AccountLookup interface {
	GetAccount(ctx context.Context, id string) (domain.Account, error)
}

type Mailer interface {
	Send(ctx context.Context, msg domain.Email) error
}

// NotificationHandler mails customers about changes to their orders.
type NotificationHandler struct {
	accounts AccountLookup
	mailer   Mailer
	logger   *slog.Logger
}

func NewNotificationHandler(accounts AccountLookup, mailer Mailer, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		accounts: accounts,
		mailer:   mailer,
		logger:   logger,
	}
}

// Register routes every order event type to the handler.
func (h *NotificationHandler) Register(router *messaging.Router) {
	for _, t := range []domain.OrderEventType{
		domain.OrderCreated,
		domain.OrderCancelled,
		domain.OrderReturnScheduled,
		domain.OrderRefunded,
	} {
		router.On(string(t), h.Handle)
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, msg messaging.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed order event", "error", err, "key", msg.Key)
		return nil
	}

	h.logger.InfoContext(ctx, "processing order event", "order_id", event.OrderID, "type", event.Type)

	account, err := h.accounts.GetAccount(ctx, event.CustomerID)
	if err != nil {
		if rejected(err) {
			h.logger.WarnContext(ctx, "skipping mail for unknown customer", "error", err, "customer_id", event.CustomerID)
			return nil
		}
		return fmt.Errorf("get account %s: %w", event.CustomerID, err)
	}
	if account.Email == "" {
		h.logger.WarnContext(ctx, "customer has no email address", "customer_id", event.CustomerID)
		return nil
	}

	mail, ok := compose(event, account)
	if !ok {
		return nil
	}
	if err := h.mailer.Send(ctx, mail); err != nil {
		return fmt.Errorf("send %s mail for order %s: %w", event.Type, event.OrderID, err)
	}

	h.logger.InfoContext(ctx, "customer notified", "order_id", event.OrderID, "type", event.Type)
	return nil
}

func compose(event domain.OrderEvent, account domain.Account) (domain.Email, bool) {
	mail := domain.Email{To: account.Email}
	greeting := "Hi"
	if account.Name != "" {
		greeting += " " + account.Name
	}

	switch event.Type {
	case domain.OrderCreated:
		mail.Subject = "Order Confirmation: " + event.OrderID
		mail.Body = fmt.Sprintf("%s, your order %s has been placed with %s.", greeting, event.OrderID, describe(event.Items))
	case domain.OrderCancelled:
		mail.Subject = "Order Cancelled: " + event.OrderID
		mail.Body = fmt.Sprintf("%s, your order %s has been cancelled.", greeting, event.OrderID)
	case domain.OrderReturnScheduled:
		mail.Subject = "Return Scheduled: " + event.OrderID
		mail.Body = fmt.Sprintf("%s, a pickup has been scheduled for %s from order %s.", greeting, describe(event.Items), event.OrderID)
	case domain.OrderRefunded:
		amount := ""
		if event.Amount != nil {
			amount = " of " + event.Amount.String()
		}
		mail.Subject = "Refund Issued: " + event.OrderID
		mail.Body = fmt.Sprintf("%s, a refund%s for %s from order %s has been issued (refund %s).",
			greeting, amount, describe(event.Items), event.OrderID, event.RefundID)
	default:
		return domain.Email{}, false
	}
	return mail, true
}

func describe(items []domain.ItemQuantity) string {
	units := 0
	for _, item := range items {
		units += item.Quantity
	}
	if units == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", units)
}
