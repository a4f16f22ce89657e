package handlers

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Proton-105/vitrine-bot/internal/bot/keyboard"
	apperrors "github.com/Proton-105/vitrine-bot/internal/errors"
	"github.com/Proton-105/vitrine-bot/internal/i18n"
	"github.com/Proton-105/vitrine-bot/internal/idempotency"
	"github.com/Proton-105/vitrine-bot/internal/state"
	"github.com/Proton-105/vitrine-bot/pkg/metrics"
)

const (
	decisionAccepted = "accepted"
	decisionRejected = "rejected"
)

// PayerName records the PIX account holder and asks every administrator to confirm the transfer.
func (s *Sales) PayerName(ctx context.Context, r Reply, text string) error {
	t := s.translator(r)
	buyerID := r.UserID()

	sess, err := s.Machine.Session(ctx, buyerID)
	if err != nil {
		return err
	}

	product, ok := s.selected(sess)
	if !ok {
		if _, err := s.toChoosing(ctx, buyerID, true); err != nil {
			return err
		}
		return r.Send(t.T("checkout.selection_lost"), nil)
	}

	payer := strings.TrimSpace(text)
	if payer == "" {
		return r.Send(t.T("manual.payer_empty"), nil)
	}

	ticket := idempotency.Ticket(buyerID, product.Code, uuid.NewString())
	adminT := s.Locales.Translator("")
	args := productArgs(product)
	args["Customer"] = html.EscapeString(r.DisplayName())
	args["BuyerID"] = strconv.FormatInt(buyerID, 10)
	args["Payer"] = html.EscapeString(payer)
	args["PixKey"] = html.EscapeString(s.PixKey)
	notice := adminT.Tf("admin.notice", args)

	delivered := 0
	for _, adminID := range s.Settings.AdminIDs() {
		markup := s.Keyboard.AdminDecision(adminT, buyerID, ticket)
		if err := s.Messenger.SendTo(adminID, notice, markup); err != nil {
			s.Log.Warn("failed to notify admin", "admin_id", adminID, "buyer_id", buyerID, "error", err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		s.Log.Error("no admin received the payment notice", "buyer_id", buyerID, "ticket", ticket)
		if _, err := s.toChoosing(ctx, buyerID, true); err != nil {
			return err
		}
		return r.Send(t.T("manual.admins_unreachable"), nil)
	}

	s.Log.Info("payment notice sent", "buyer_id", buyerID, "ticket", ticket, "admins", delivered)

	if _, err := s.transition(ctx, buyerID, state.StateChoosing, func(sess *state.Session) {
		sess.PayerName = payer
		sess.Ticket = ticket
	}); err != nil {
		return err
	}

	if s.PixKey != "" {
		if err := r.Send(t.Tf("manual.instructions", args), nil); err != nil {
			return err
		}
	}
	return r.Send(t.T("manual.pending"), nil)
}

// AdminDecision handles the accept / reject buttons of a payment notice.
func (s *Sales) AdminDecision(ctx context.Context, r Reply, accept bool, payload string) error {
	t := s.translator(r)
	adminID := r.UserID()

	if !s.Settings.IsAdmin(adminID) {
		metrics.RecordAdminDecision("forbidden")
		s.Log.Warn("decision attempt by non-admin", "user_id", adminID)
		return r.Ack(t.T("error.forbidden"), true)
	}

	buyerID, ticket, ok := keyboard.ParseAdminPayload(payload)
	if !ok {
		return apperrors.NewValidationError("malformed admin decision payload")
	}

	decision := decisionRejected
	if accept {
		decision = decisionAccepted
	}

	res, err := s.Tickets.Execute(ctx, "admin_decision:"+ticket, s.DecisionTTL, func(ctx context.Context) (interface{}, error) {
		if err := s.notifyBuyer(ctx, buyerID, ticket, accept); err != nil {
			return nil, err
		}
		return decision, nil
	})

	switch {
	case errors.Is(err, idempotency.ErrRequestInProgress) || (err == nil && res.FromCache):
		metrics.RecordAdminDecision("duplicate")
		return r.Ack(t.T("admin.already_handled"), true)
	case err != nil:
		s.Log.Error("admin decision failed", "admin_id", adminID, "buyer_id", buyerID, "ticket", ticket, "error", err)
		return r.Ack(t.T("admin.delivery_failed"), true)
	}

	metrics.RecordAdminDecision(decision)
	s.Log.Info("admin decision recorded", "admin_id", adminID, "buyer_id", buyerID, "ticket", ticket, "decision", decision)

	_ = r.Ack("", false)
	if accept {
		return r.Send(t.T("admin.ack_accepted"), nil)
	}
	return r.Send(t.T("admin.ack_rejected"), nil)
}

func (s *Sales) notifyBuyer(ctx context.Context, buyerID int64, ticket string, accept bool) error {
	t := s.Locales.Translator("")

	text := t.T("admin.buyer_rejected")
	if accept {
		text = t.Tf("admin.buyer_accepted", i18n.Args{"Link": html.EscapeString(s.InviteLink)})
	}

	if err := s.Messenger.SendTo(buyerID, text, nil); err != nil {
		return apperrors.NewDeliveryError(buyerID, err)
	}

	// A purchase started after this notice keeps its selection.
	if _, err := s.Machine.Amend(ctx, buyerID, func(sess *state.Session) {
		if sess.Ticket == ticket {
			sess.ClearSelection()
		}
	}); err != nil {
		s.Log.Warn("failed to settle buyer session", "buyer_id", buyerID, "error", err)
	}
	return nil
}
