package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

const (
	KindCoupons   = "coupons"
	KindGiftCards = "gift-cards"
)

// BalanceClient reads and updates coupons or gift cards. Both live in the
// same service under different path prefixes.
type BalanceClient struct {
	kind   string
	client jsonClient
}

func NewBalanceClient(kind, baseURL string, client *http.Client) *BalanceClient {
	return &BalanceClient{kind: kind, client: newJSONClient(kind, baseURL, client)}
}

func (c *BalanceClient) Get(ctx context.Context, id string) (domain.Coupon, error) {
	var coupon domain.Coupon
	if err := c.client.do(ctx, http.MethodGet, c.path(id), nil, &coupon); err != nil {
		return domain.Coupon{}, err
	}
	return coupon, nil
}

type balanceRequest struct {
	Balance domain.Price `json:"balance"`
}

func (c *BalanceClient) SetBalance(ctx context.Context, id string, balance domain.Price) error {
	return c.client.do(ctx, http.MethodPut, c.path(id)+"/balance", balanceRequest{Balance: balance}, nil)
}

func (c *BalanceClient) path(id string) string {
	return "/" + c.kind + "/" + url.PathEscape(id)
}
