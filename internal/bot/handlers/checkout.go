package handlers

import (
	"context"
	"errors"
	"html"
	"strconv"

	"github.com/Proton-105/vitrine-bot/internal/catalog"
	"github.com/Proton-105/vitrine-bot/internal/gateway"
	"github.com/Proton-105/vitrine-bot/internal/i18n"
	"github.com/Proton-105/vitrine-bot/internal/ratelimit"
	"github.com/Proton-105/vitrine-bot/internal/state"
	"github.com/Proton-105/vitrine-bot/pkg/metrics"
)

// Confirm generates the payment for the selected product. Whatever the
// outcome, the session ends up in CHOOSING with no selection.
func (s *Sales) Confirm(ctx context.Context, r Reply) error {
	_ = r.Ack("", false)
	t := s.translator(r)
	userID := r.UserID()

	sess, err := s.Machine.Session(ctx, userID)
	if err != nil {
		return err
	}

	product, ok := s.selected(sess)
	if sess.State != state.StateConfirming || !ok {
		if _, err := s.toChoosing(ctx, userID, true); err != nil {
			return err
		}
		return r.Edit(t.T("checkout.selection_lost"), nil)
	}

	if !s.allowCharge(ctx, userID) {
		metrics.RecordCharge("rate_limited", 0)
		if _, err := s.toChoosing(ctx, userID, true); err != nil {
			return err
		}
		return r.Edit(t.Tf("checkout.rate_limited", i18n.Args{"Limit": strconv.Itoa(s.ChargeLimit)}), nil)
	}

	if err := r.Edit(t.T("checkout.processing"), nil); err != nil {
		s.Log.Warn("failed to show payment placeholder", "user_id", userID, "error", err)
	}

	var outcome gateway.Outcome
	select {
	case outcome = <-gateway.Async(ctx, s.Gateway, product, userID):
	case <-ctx.Done():
		outcome = gateway.Outcome{Err: ctx.Err()}
	}

	if _, err := s.toChoosing(context.WithoutCancel(ctx), userID, true); err != nil {
		return err
	}

	if outcome.Err != nil {
		s.Log.Warn("charge failed", "user_id", userID, "product", product.Code, "kind", gateway.KindOf(outcome.Err))
		return r.Edit(t.T("checkout.failed"), nil)
	}

	return s.deliverCharge(r, t, product, outcome.Result)
}

func (s *Sales) deliverCharge(r Reply, t i18n.Translator, product catalog.Product, result *gateway.Result) error {
	if result == nil {
		result = &gateway.Result{}
	}

	link := result.PaymentLink
	if link == "" {
		link = t.T("checkout.link_unavailable")
	}

	args := productArgs(product)
	args["Link"] = html.EscapeString(link)
	text := t.Tf("checkout.success", args)
	markup := s.Keyboard.SendReceipt(t, s.Settings.SupportURL())

	if len(result.QRCodeImage) > 0 {
		return r.SendPhoto(result.QRCodeImage, text, markup)
	}

	if result.QRCode != "" {
		text += "\n\n" + t.Tf("checkout.pix_copy_paste", i18n.Args{"Code": html.EscapeString(result.QRCode)})
	}
	return r.Edit(text, markup)
}

func (s *Sales) selected(sess state.Session) (catalog.Product, bool) {
	if !sess.HasSelection() {
		return catalog.Product{}, false
	}
	return s.Catalog.Get(sess.SelectedProduct)
}

// allowCharge consults the per-user charge limit. Limiter failures other
// than an exceeded limit let the charge through.
func (s *Sales) allowCharge(ctx context.Context, userID int64) bool {
	if s.Limiter == nil {
		return true
	}

	_, err := s.Limiter.Check(ctx, "charge:"+strconv.FormatInt(userID, 10), s.ChargeLimit, s.ChargeWindow)
	if errors.Is(err, ratelimit.ErrLimitExceeded) {
		s.Log.Info("charge limit reached", "user_id", userID)
		return false
	}
	if err != nil {
		s.Log.Warn("charge limit check failed", "user_id", userID, "error", err)
	}
	return true
}
