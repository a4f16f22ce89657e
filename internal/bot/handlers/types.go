package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const requestContextKey = "request_ctx"

// WithRequestContext stores ctx on the update so that handlers down the chain can use it.
func WithRequestContext(c telebot.Context, ctx context.Context) {
	if c != nil {
		c.Set(requestContextKey, ctx)
	}
}

// RequestContext returns the context stored by WithRequestContext or context.Background.
func RequestContext(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(requestContextKey).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// Adapt turns a conversation step into a telebot handler.
func Adapt(fn func(ctx context.Context, r Reply) error) Handler {
	return func(c telebot.Context) error {
		return fn(RequestContext(c), NewReply(c))
	}
}

// AdaptPayload turns a conversation step that needs the callback payload or
// message text into a telebot handler.
func AdaptPayload(fn func(ctx context.Context, r Reply, payload string) error) Handler {
	return func(c telebot.Context) error {
		return fn(RequestContext(c), NewReply(c), Payload(c))
	}
}
