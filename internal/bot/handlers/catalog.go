package handlers

import (
	"context"
	"html"
	"strings"

	"github.com/Proton-105/vitrine-bot/internal/catalog"
	"github.com/Proton-105/vitrine-bot/internal/i18n"
	"github.com/Proton-105/vitrine-bot/internal/state"
)

// ListCatalog shows every product with its buy button.
func (s *Sales) ListCatalog(ctx context.Context, r Reply) error {
	_ = r.Ack("", false)

	if _, err := s.toChoosing(ctx, r.UserID(), false); err != nil {
		return err
	}

	t := s.translator(r)
	products := s.Catalog.List()
	return r.Edit(renderCatalog(t, products), s.Keyboard.Catalog(t, products))
}

// SelectProduct stores the chosen product and moves on to confirmation or payer name collection.
func (s *Sales) SelectProduct(ctx context.Context, r Reply, code string) error {
	_ = r.Ack("", false)
	t := s.translator(r)

	product, ok := s.Catalog.Get(strings.TrimSpace(code))
	if !ok {
		s.Log.Info("unknown product selected", "user_id", r.UserID(), "code", code)
		if _, err := s.toChoosing(ctx, r.UserID(), false); err != nil {
			return err
		}
		return r.Edit(t.T("catalog.not_found"), nil)
	}

	args := productArgs(product)
	selectProduct := func(sess *state.Session) {
		sess.ClearSelection()
		sess.SelectedProduct = product.Code
	}

	if s.Mode == ModeManual {
		if _, err := s.transition(ctx, r.UserID(), state.StateAwaitingPayerName, selectProduct); err != nil {
			return err
		}
		return r.Edit(t.Tf("manual.payer_prompt", args), nil)
	}

	if _, err := s.transition(ctx, r.UserID(), state.StateConfirming, selectProduct); err != nil {
		return err
	}
	return r.Edit(t.Tf("checkout.confirm_prompt", args), s.Keyboard.Confirm(t))
}

func renderCatalog(t i18n.Translator, products []catalog.Product) string {
	items := make([]string, 0, len(products))
	for _, p := range products {
		args := productArgs(p)
		args["Description"] = html.EscapeString(p.Description)
		args["Code"] = html.EscapeString(p.Code)
		items = append(items, t.Tf("catalog.item", args))
	}
	return strings.Join(items, "\n\n")
}

func productArgs(p catalog.Product) i18n.Args {
	return i18n.Args{
		"Name":  html.EscapeString(p.Name),
		"Price": p.FormattedPrice(),
	}
}
