package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/vitrine-bot/internal/bot/handlers"
	"github.com/Proton-105/vitrine-bot/internal/catalog"
	errors "github.com/Proton-105/vitrine-bot/internal/errors"
	"github.com/Proton-105/vitrine-bot/internal/gateway"
	"github.com/Proton-105/vitrine-bot/internal/i18n"
	"github.com/Proton-105/vitrine-bot/internal/state"
)

type apiCall struct {
	method string
	params map[string]string
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	params := make(map[string]string)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		_ = r.ParseMultipartForm(1 << 20)
		for k, v := range r.MultipartForm.Value {
			params[k] = v[0]
		}
	} else {
		var raw map[string]any
		_ = json.NewDecoder(r.Body).Decode(&raw)
		for k, v := range raw {
			params[k] = fmt.Sprint(v)
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, params: params})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "answerCallbackQuery" {
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":10,"date":0,"chat":{"id":1,"type":"private"}}}`))
}

func (f *fakeAPI) texts(methods ...string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, c := range f.calls {
		for _, m := range methods {
			if c.method == m {
				text := c.params["text"]
				if text == "" {
					text = c.params["caption"]
				}
				out = append(out, text)
			}
		}
	}
	return out
}

type staticSettings struct{}

func (staticSettings) SupportURL() string { return "https://t.me/suporte" }
func (staticSettings) AdminIDs() []int64  { return nil }
func (staticSettings) IsAdmin(int64) bool { return false }

type stubGateway struct{}

func (stubGateway) CreateCharge(context.Context, catalog.Product, int64) (*gateway.Result, error) {
	return &gateway.Result{PaymentLink: "https://pay.example/ok"}, nil
}

type panicSettings struct{ staticSettings }

func (panicSettings) SupportURL() string { panic("settings unavailable") }

func newTestBot(t *testing.T, settings handlers.Settings) (*Bot, *fakeAPI, *state.Machine) {
	t.Helper()

	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := New(Options{Token: "test-token", URL: srv.URL, Offline: true}, errors.NewHandler(testLogger(), false), testLogger())
	require.NoError(t, err)

	locales, err := i18n.Load("pt")
	require.NoError(t, err)

	machine := state.NewMachine(state.NewMemoryStore(), testLogger())
	sales, err := handlers.NewSales(handlers.Deps{
		Catalog:  catalog.Default(),
		Machine:  machine,
		Gateway:  stubGateway{},
		Locales:  locales,
		Settings: settings,
		Log:      testLogger(),
	})
	require.NoError(t, err)

	b.Register(sales, machine)
	return b, api, machine
}

func message(userID int64, text string) telebot.Update {
	return telebot.Update{Message: &telebot.Message{
		ID:     1,
		Text:   text,
		Sender: &telebot.User{ID: userID, LanguageCode: "pt-br"},
		Chat:   &telebot.Chat{ID: userID, Type: telebot.ChatPrivate},
	}}
}

func callback(userID int64, data string) telebot.Update {
	return telebot.Update{Callback: &telebot.Callback{
		ID:     "cb",
		Sender: &telebot.User{ID: userID, LanguageCode: "pt-br"},
		Message: &telebot.Message{
			ID:   10,
			Chat: &telebot.Chat{ID: userID, Type: telebot.ChatPrivate},
		},
		Data: data,
	}}
}

func drain(t *testing.T, b *Bot) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.Stop(ctx))
}

func TestBot_PurchaseFlow(t *testing.T) {
	b, api, machine := newTestBot(t, staticSettings{})

	b.Route(message(1, "/start"))
	b.Route(callback(1, "catalog"))
	b.Route(callback(1, "buy:vip"))
	b.Route(callback(1, "confirm"))
	drain(t, b)

	sent := api.texts("sendMessage")
	require.NotEmpty(t, sent)
	assert.Contains(t, sent[0], "Seja bem-vindo")

	edits := api.texts("editMessageText")
	require.Len(t, edits, 4)
	assert.Contains(t, edits[0], "Assinatura VIP")
	assert.Contains(t, edits[1], "Confirme para gerar o pagamento")
	assert.Equal(t, "⏳ Gerando pagamento...", edits[2])
	assert.Contains(t, edits[3], "https://pay.example/ok")

	sess, err := machine.Session(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, state.StateChoosing, sess.State)
	assert.False(t, sess.HasSelection())
}

func TestBot_UnmatchedInputFallsBack(t *testing.T) {
	b, api, _ := newTestBot(t, staticSettings{})

	b.Route(message(1, "oi"))
	b.Route(message(1, "/desconhecido"))
	b.Route(callback(1, "nope:1"))
	drain(t, b)

	sent := api.texts("sendMessage")
	require.Len(t, sent, 3)
	for _, text := range sent {
		assert.Equal(t, "Use /start para começar.", text)
	}
}

func TestBot_ProductsCommandWithBotSuffix(t *testing.T) {
	b, api, _ := newTestBot(t, staticSettings{})
	b.telebot.Me = &telebot.User{Username: "vitrine_bot"}

	b.Route(message(1, "/produtos@vitrine_bot"))
	drain(t, b)

	sent := api.texts("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Pacote Plus")
}

func TestBot_PanicIsRecovered(t *testing.T) {
	b, api, _ := newTestBot(t, panicSettings{})

	b.Route(message(1, "/start"))
	b.Route(message(1, "oi"))
	drain(t, b)

	sent := api.texts("sendMessage")
	require.Len(t, sent, 2)
	assert.Equal(t, "⚠️ Algo deu errado. Tente novamente em instantes.", sent[0])
	assert.Equal(t, "Use /start para começar.", sent[1])
}
