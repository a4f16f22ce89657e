package handlers

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/Proton-105/vitrine-bot/internal/i18n"
	"github.com/Proton-105/vitrine-bot/pkg/metrics"
)

// Broadcast sends the text after the command to every user the bot has
// talked to, with the products button attached. Admins only.
func (s *Sales) Broadcast(ctx context.Context, r Reply, text string) error {
	t := s.translator(r)
	adminID := r.UserID()

	if !s.Settings.IsAdmin(adminID) {
		s.Log.Warn("broadcast attempt by non-admin", "user_id", adminID)
		return r.Send(t.T("error.forbidden"), nil)
	}

	body := commandBody(text)
	if body == "" {
		return r.Send(t.T("admin.broadcast_usage"), nil)
	}

	sessions, err := s.Machine.All(ctx)
	if err != nil {
		return err
	}

	bt := s.Locales.Translator("")
	markup := s.Keyboard.Welcome(bt, s.Settings.SupportURL())

	total, sent := 0, 0
	for _, sess := range sessions {
		if sess.UserID == adminID || s.Settings.IsAdmin(sess.UserID) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		total++
		if err := s.Messenger.SendTo(sess.UserID, body, markup); err != nil {
			s.Log.Warn("broadcast delivery failed", "user_id", sess.UserID, "error", err)
			continue
		}
		sent++
	}

	metrics.RecordBroadcast(sent, total-sent)
	s.Log.Info("broadcast sent", "admin_id", adminID, "sent", sent, "total", total)

	return r.Send(t.Tf("admin.broadcast_done", i18n.Args{
		"Sent":  strconv.Itoa(sent),
		"Total": strconv.Itoa(total),
	}), nil)
}

// commandBody strips the leading command word, keeping line breaks in the rest.
func commandBody(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}

	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx == -1 {
		return ""
	}
	return strings.TrimSpace(text[idx:])
}
