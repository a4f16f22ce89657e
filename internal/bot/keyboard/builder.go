package keyboard

import (
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/vitrine-bot/internal/catalog"
	"github.com/Proton-105/vitrine-bot/internal/i18n"
)

// Callback identifiers carried in inline button payloads.
const (
	CallbackCatalog     = "catalog"
	CallbackBuy         = "buy"
	CallbackConfirm     = "confirm"
	CallbackAdminAccept = "adm_ok"
	CallbackAdminReject = "adm_no"
)

// Builder creates the inline keyboards used by the conversation.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// Welcome builds the entry menu: catalog button and support link.
func (b *Builder) Welcome(t i18n.Translator, supportURL string) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("buttons.view_products"), Unique: CallbackCatalog})
	if supportURL != "" {
		kb.AddRow(InlineButton{Text: t.T("buttons.support"), URL: supportURL})
	}
	return b.build(kb)
}

// Catalog builds one buy button per product.
func (b *Builder) Catalog(t i18n.Translator, products []catalog.Product) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	for _, p := range products {
		kb.AddRow(InlineButton{
			Text:   t.Tf("buttons.buy", i18n.Args{"Name": p.Name}),
			Unique: CallbackBuy,
			Data:   p.Code,
		})
	}
	return b.build(kb)
}

// Confirm builds the confirm / back buttons shown while confirming a purchase.
func (b *Builder) Confirm(t i18n.Translator) *telebot.ReplyMarkup {
	return b.build(NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("buttons.confirm"), Unique: CallbackConfirm}).
		AddRow(InlineButton{Text: t.T("buttons.back"), Unique: CallbackCatalog}))
}

// SendReceipt builds the support link attached to a generated payment.
func (b *Builder) SendReceipt(t i18n.Translator, supportURL string) *telebot.ReplyMarkup {
	if supportURL == "" {
		return nil
	}
	return b.build(NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("buttons.send_receipt"), URL: supportURL}))
}

// AdminDecision builds the accept / reject buttons of a payment-pending notice.
func (b *Builder) AdminDecision(t i18n.Translator, buyerID int64, ticket string) *telebot.ReplyMarkup {
	payload := AdminPayload(buyerID, ticket)
	return b.build(NewInlineKeyboard().AddRow(
		InlineButton{Text: t.T("buttons.admin_accept"), Unique: CallbackAdminAccept, Data: payload},
		InlineButton{Text: t.T("buttons.admin_reject"), Unique: CallbackAdminReject, Data: payload},
	))
}

func (b *Builder) build(kb *InlineKeyboardBuilder) *telebot.ReplyMarkup {
	markup, err := kb.Build()
	if err != nil {
		b.log.Error("failed to build inline keyboard", slog.Any("error", err))
		return nil
	}
	return markup
}

// AdminPayload encodes the buyer identity and ticket of an admin decision.
func AdminPayload(buyerID int64, ticket string) string {
	return strconv.FormatInt(buyerID, 10) + CallbackDataSeparator + ticket
}

// ParseAdminPayload reverses AdminPayload.
func ParseAdminPayload(data string) (buyerID int64, ticket string, ok bool) {
	idPart, ticket, found := strings.Cut(data, CallbackDataSeparator)
	if !found || ticket == "" {
		return 0, "", false
	}

	buyerID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return buyerID, ticket, true
}
