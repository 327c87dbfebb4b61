package messaging

import (
	"context"
	"log/slog"
)

// EventTypeHeader carries the event type so consumers can dispatch without
// decoding the payload.
const EventTypeHeader = "event-type"

// Typed is implemented by events that name their own type.
type Typed interface {
	EventType() string
}

type Message struct {
	Key     string
	Type    string
	Payload []byte
}

type HandlerFunc func(ctx context.Context, msg Message) error

// Router dispatches messages on their event type. Messages with no
// registered handler are skipped.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{handlers: make(map[string]HandlerFunc), logger: logger}
}

func (r *Router) On(eventType string, h HandlerFunc) *Router {
	r.handlers[eventType] = h
	return r
}

func (r *Router) Handle(ctx context.Context, msg Message) error {
	h, ok := r.handlers[msg.Type]
	if !ok {
		r.logger.DebugContext(ctx, "skipping message without handler", "event_type", msg.Type, "key", msg.Key)
		return nil
	}
	return h(ctx, msg)
}
