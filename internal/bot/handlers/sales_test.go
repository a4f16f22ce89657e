package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/vitrine-bot/internal/gateway"
	"github.com/Proton-105/vitrine-bot/internal/ratelimit"
	"github.com/Proton-105/vitrine-bot/internal/state"
)

const failedText = "⚠️ Não consegui gerar o pagamento agora. Tente novamente em instantes."

func TestNewSales_Validation(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)

	_, err := NewSales(Deps{})
	assert.Error(t, err)

	deps := f.sales.Deps
	deps.Mode = "crypto"
	_, err = NewSales(deps)
	assert.Error(t, err)

	deps = f.sales.Deps
	deps.Gateway = nil
	_, err = NewSales(deps)
	assert.Error(t, err)

	assert.Equal(t, defaultChargeLimit, f.sales.ChargeLimit)
}

func TestStart_ResetsSessionAndGreets(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	ctx := context.Background()

	require.NoError(t, f.sales.SelectProduct(ctx, newButton(1), "vip"))

	r := newMessage(1)
	require.NoError(t, f.sales.Start(ctx, r))

	out := r.last()
	assert.Equal(t, "send", out.kind)
	assert.Contains(t, out.text, "Seja bem-vindo")
	assert.Equal(t, []string{"catalog", ""}, markupData(out.markup))

	sess := f.session(t, 1)
	assert.Equal(t, state.StateChoosing, sess.State)
	assert.False(t, sess.HasSelection())
}

func TestListCatalog_RendersEveryProduct(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	r := newButton(1)

	require.NoError(t, f.sales.ListCatalog(context.Background(), r))

	out := r.last()
	assert.Equal(t, "edit", out.kind)
	for _, p := range f.sales.Catalog.List() {
		assert.Contains(t, out.text, p.Name)
		assert.Contains(t, out.text, p.FormattedPrice())
	}
	assert.Equal(t, []string{"buy:vip", "buy:pacote_plus", "buy:consultoria"}, markupData(out.markup))
}

func TestSelectProduct_UnknownKeepsSelection(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	ctx := context.Background()

	require.NoError(t, f.sales.SelectProduct(ctx, newButton(1), "vip"))

	r := newButton(1)
	require.NoError(t, f.sales.SelectProduct(ctx, r, "does_not_exist"))

	assert.Equal(t, "❌ Produto não encontrado. Tente novamente.", r.last().text)
	sess := f.session(t, 1)
	assert.Equal(t, state.StateChoosing, sess.State)
	assert.Equal(t, "vip", sess.SelectedProduct)
}

func TestConfirm_WithoutSelectionSkipsGateway(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	r := newButton(5)

	require.NoError(t, f.sales.Confirm(context.Background(), r))

	assert.Equal(t, 0, f.gateway.callCount())
	assert.Equal(t, "❌ Não encontrei o produto escolhido. Recomece com /start.", r.last().text)
	assert.Equal(t, state.StateChoosing, f.session(t, 5).State)
}

func TestConfirm_FailuresShareOneMessage(t *testing.T) {
	failures := []error{
		&gateway.FailureError{Kind: gateway.KindTimeout, Err: context.DeadlineExceeded},
		&gateway.FailureError{Kind: gateway.KindStatus, StatusCode: 500, Err: errors.New("boom")},
		&gateway.FailureError{Kind: gateway.KindDecode, Err: errors.New("invalid character")},
	}

	var texts []string
	for i, failure := range failures {
		t.Run(string(gateway.KindOf(failure)), func(t *testing.T) {
			f := newFixture(t, ModeGateway, nil)
			f.gateway.result = nil
			f.gateway.err = failure
			ctx := context.Background()
			userID := int64(100 + i)

			require.NoError(t, f.sales.SelectProduct(ctx, newButton(userID), "vip"))
			r := newButton(userID)
			require.NoError(t, f.sales.Confirm(ctx, r))

			out := r.last()
			assert.Equal(t, "edit", out.kind)
			texts = append(texts, out.text)

			sess := f.session(t, userID)
			assert.Equal(t, state.StateChoosing, sess.State)
			assert.False(t, sess.HasSelection())
		})
	}

	require.Len(t, texts, len(failures))
	for _, text := range texts {
		assert.Equal(t, failedText, text)
	}
}

func TestConfirm_LinkOnlySendsText(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	ctx := context.Background()

	require.NoError(t, f.sales.SelectProduct(ctx, newButton(1), "pacote_plus"))
	r := newButton(1)
	require.NoError(t, f.sales.Confirm(ctx, r))

	out := r.last()
	assert.Equal(t, "edit", out.kind)
	assert.Contains(t, out.text, "Pacote Plus")
	assert.Contains(t, out.text, "R$ 79.90")
	assert.Contains(t, out.text, "https://pay.example/abc")
	require.NotNil(t, out.markup)
	assert.Equal(t, "https://t.me/suporte", out.markup.InlineKeyboard[0][0].URL)
}

func TestConfirm_MissingLinkAndCopyPasteCode(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	f.gateway.result = &gateway.Result{QRCode: "00020126-pix"}
	ctx := context.Background()

	require.NoError(t, f.sales.SelectProduct(ctx, newButton(1), "vip"))
	r := newButton(1)
	require.NoError(t, f.sales.Confirm(ctx, r))

	out := r.last()
	assert.Contains(t, out.text, "Indisponível")
	assert.Contains(t, out.text, "<code>00020126-pix</code>")
}

func TestConfirm_QRImageSendsPhoto(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	f.gateway.result = &gateway.Result{PaymentLink: "https://pay.example/qr", QRCodeImage: []byte("png")}
	ctx := context.Background()

	require.NoError(t, f.sales.SelectProduct(ctx, newButton(1), "vip"))
	r := newButton(1)
	require.NoError(t, f.sales.Confirm(ctx, r))

	out := r.last()
	assert.Equal(t, "photo", out.kind)
	assert.Equal(t, []byte("png"), out.image)
	assert.Contains(t, out.text, "Assinatura VIP")
	assert.Contains(t, out.text, "R$ 49.90")
	assert.False(t, f.session(t, 1).HasSelection())
}

func TestConfirm_RateLimited(t *testing.T) {
	f := newFixture(t, ModeGateway, func(d *Deps) {
		d.Limiter = ratelimit.NewMemoryLimiter(testLogger())
		d.ChargeLimit = 2
		d.ChargeWindow = time.Hour
	})
	ctx := context.Background()

	var last *fakeReply
	for i := 0; i < 3; i++ {
		require.NoError(t, f.sales.SelectProduct(ctx, newButton(1), "vip"))
		last = newButton(1)
		require.NoError(t, f.sales.Confirm(ctx, last))
	}

	assert.Equal(t, 2, f.gateway.callCount())
	assert.Equal(t, "⚠️ Você atingiu o limite de 2 QR codes por hora. Tente novamente mais tarde.", last.last().text)
	assert.Equal(t, state.StateChoosing, f.session(t, 1).State)
}

func TestEndToEnd_StartToPayment(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	ctx := context.Background()
	r := newButton(7)

	require.NoError(t, f.sales.Start(ctx, newMessage(7)))
	require.NoError(t, f.sales.ListCatalog(ctx, r))
	require.NoError(t, f.sales.SelectProduct(ctx, r, "vip"))
	assert.Equal(t, state.StateConfirming, f.session(t, 7).State)
	assert.Equal(t, []string{"confirm", "catalog"}, markupData(r.last().markup))

	require.NoError(t, f.sales.Confirm(ctx, r))

	var texts []string
	for _, o := range r.visible() {
		texts = append(texts, o.text)
	}
	assert.Contains(t, texts, "⏳ Gerando pagamento...")
	assert.Contains(t, r.last().text, "https://pay.example/abc")
	assert.Equal(t, []int64{7}, f.gateway.calls)

	sess := f.session(t, 7)
	assert.Equal(t, state.StateChoosing, sess.State)
	assert.False(t, sess.HasSelection())
}

func TestConcurrentUsers_NoCrossTalk(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	ctx := context.Background()
	codes := []string{"vip", "pacote_plus", "consultoria"}

	var wg sync.WaitGroup
	replies := make([]*fakeReply, 30)
	for i := range replies {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := int64(1000 + i)
			r := newButton(userID)
			replies[i] = r
			code := codes[i%len(codes)]
			assert.NoError(t, f.sales.SelectProduct(ctx, r, code))
			assert.Equal(t, code, f.session(t, userID).SelectedProduct)
		}()
	}
	wg.Wait()

	for i, r := range replies {
		p, ok := f.sales.Catalog.Get(codes[i%len(codes)])
		require.True(t, ok)
		assert.Contains(t, r.last().text, p.Name, fmt.Sprintf("user %d", i))
	}
}

func TestFallback(t *testing.T) {
	f := newFixture(t, ModeGateway, nil)
	r := newButton(1)

	require.NoError(t, f.sales.Fallback(context.Background(), r))
	assert.Equal(t, "Use /start para começar.", r.last().text)
}
