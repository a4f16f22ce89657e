// Package middleware holds cross-cutting wrappers for bot updates and HTTP requests.
package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/vitrine-bot/internal/bot/handlers"
	"github.com/Proton-105/vitrine-bot/internal/bot/keyboard"
	"github.com/Proton-105/vitrine-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(ActionName(c), status, time.Since(start))

		return err
	}
}

// ActionName returns a low-cardinality label for the update: the callback
// identifier, the command name, or "text" for free text.
func ActionName(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil && cb.Data != "" {
		unique, _, err := keyboard.DecodeCallback(cb.Data)
		if err != nil || unique == "" {
			return "unknown"
		}
		return "callback:" + unique
	}

	text := strings.TrimSpace(c.Text())
	if text == "" {
		return "unknown"
	}

	if strings.HasPrefix(text, "/") {
		name, _, _ := strings.Cut(text, " ")
		name, _, _ = strings.Cut(name, "@")
		return strings.ToLower(name)
	}

	return "text"
}
