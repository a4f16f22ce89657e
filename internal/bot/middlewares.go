package bot

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/vitrine-bot/internal/bot/handlers"
	errors "github.com/Proton-105/vitrine-bot/internal/errors"
	"github.com/Proton-105/vitrine-bot/internal/middleware"
	"github.com/Proton-105/vitrine-bot/pkg/logger"
)

// SerializeMiddleware hands each update to its sender's queue and returns
// immediately. Updates without a sender run inline.
func SerializeMiddleware(s *Serializer, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key, ok := serialKey(c)
			if !ok || s == nil {
				return next(c)
			}

			err := s.Submit(key, func() {
				if err := next(c); err != nil {
					log.Error("serialized update failed", slog.Int64("user_id", key), slog.Any("error", err))
				}
			})
			if err != nil {
				log.Warn("dropping update", slog.Int64("user_id", key), slog.Any("error", err))
			}

			return nil
		}
	}
}

func serialKey(c telebot.Context) (int64, bool) {
	if c == nil {
		return 0, false
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID, true
	}
	if chat := c.Chat(); chat != nil {
		return chat.ID, true
	}
	return 0, false
}

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := errors.NewInternalError(nil).UserMessage
					if errHandler != nil {
						appErr := errors.NewInternalError(fmt.Errorf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(handlers.RequestContext(c), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := errors.NewInternalError(nil).UserMessage
			if errHandler != nil {
				if msg, _ := errHandler.Handle(handlers.RequestContext(c), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				if c.Callback() != nil {
					_ = c.Respond()
				}
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware attaches a correlation id to the update and logs basic telemetry about it.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			ctx, correlationID := logger.WithCorrelationID(handlers.RequestContext(c))
			handlers.WithRequestContext(c, ctx)

			action := middleware.ActionName(c)
			log.Debug("handling update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.String("correlation_id", correlationID),
			)

			err := next(c)

			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
			}
			log.LogAttrs(ctx, level, "handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.String("correlation_id", correlationID),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}
