package keyboard_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/vitrine-bot/internal/bot/keyboard"
	"github.com/Proton-105/vitrine-bot/internal/catalog"
	"github.com/Proton-105/vitrine-bot/internal/i18n"
)

func translator(t *testing.T) i18n.Translator {
	t.Helper()
	m, err := i18n.Load("pt")
	require.NoError(t, err)
	return m.Translator("pt")
}

func TestBuilder_Catalog(t *testing.T) {
	b := keyboard.NewBuilder(nil)
	markup := b.Catalog(translator(t), catalog.Default().List())
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 3)

	assert.Equal(t, "Comprar Assinatura VIP", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "buy:vip", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "buy:pacote_plus", markup.InlineKeyboard[1][0].Data)
	assert.Equal(t, "buy:consultoria", markup.InlineKeyboard[2][0].Data)
}

func TestBuilder_CatalogLongestCode(t *testing.T) {
	code := strings.Repeat("c", catalog.MaxCodeLength)
	products, err := catalog.New(catalog.Product{Code: code, Name: "Longo", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	markup := keyboard.NewBuilder(nil).Catalog(translator(t), products.List())
	require.NotNil(t, markup)
	assert.Equal(t, "buy:"+code, markup.InlineKeyboard[0][0].Data)
}

func TestBuilder_WelcomeAndConfirm(t *testing.T) {
	b := keyboard.NewBuilder(nil)
	tr := translator(t)

	welcome := b.Welcome(tr, "https://t.me/+seu_contato")
	require.Len(t, welcome.InlineKeyboard, 2)
	assert.Equal(t, "catalog", welcome.InlineKeyboard[0][0].Data)
	assert.Equal(t, "https://t.me/+seu_contato", welcome.InlineKeyboard[1][0].URL)

	confirm := b.Confirm(tr)
	require.Len(t, confirm.InlineKeyboard, 2)
	assert.Equal(t, "confirm", confirm.InlineKeyboard[0][0].Data)
	assert.Equal(t, "catalog", confirm.InlineKeyboard[1][0].Data)

	assert.Nil(t, b.SendReceipt(tr, ""))
}

func TestBuilder_AdminDecisionRoundTrip(t *testing.T) {
	b := keyboard.NewBuilder(nil)
	markup := b.AdminDecision(translator(t), 123456789, "a1b2c3d4")
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)

	unique, data, err := keyboard.DecodeCallback(markup.InlineKeyboard[0][0].Data)
	require.NoError(t, err)
	assert.Equal(t, keyboard.CallbackAdminAccept, unique)

	buyerID, ticket, ok := keyboard.ParseAdminPayload(data)
	require.True(t, ok)
	assert.Equal(t, int64(123456789), buyerID)
	assert.Equal(t, "a1b2c3d4", ticket)

	_, _, ok = keyboard.ParseAdminPayload("abc:t")
	assert.False(t, ok)
	_, _, ok = keyboard.ParseAdminPayload("12")
	assert.False(t, ok)
}
