package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/vitrine-bot/internal/catalog"
	"github.com/Proton-105/vitrine-bot/internal/gateway"
	"github.com/Proton-105/vitrine-bot/internal/i18n"
	"github.com/Proton-105/vitrine-bot/internal/idempotency"
	"github.com/Proton-105/vitrine-bot/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type outbound struct {
	kind   string
	text   string
	image  []byte
	markup *telebot.ReplyMarkup
	alert  bool
	chatID int64
}

type fakeReply struct {
	userID int64
	button bool
	name   string

	mu  sync.Mutex
	out []outbound
}

func newButton(userID int64) *fakeReply {
	return &fakeReply{userID: userID, button: true, name: "Buyer"}
}

func newMessage(userID int64) *fakeReply {
	return &fakeReply{userID: userID, name: "Buyer"}
}

func (r *fakeReply) record(o outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, o)
	return nil
}

func (r *fakeReply) UserID() int64       { return r.userID }
func (r *fakeReply) ChatID() int64       { return r.userID }
func (r *fakeReply) Language() string    { return "pt-br" }
func (r *fakeReply) DisplayName() string { return r.name }
func (r *fakeReply) FromButton() bool    { return r.button }

func (r *fakeReply) Send(text string, markup *telebot.ReplyMarkup) error {
	return r.record(outbound{kind: "send", text: text, markup: markup})
}

func (r *fakeReply) Edit(text string, markup *telebot.ReplyMarkup) error {
	return r.record(outbound{kind: "edit", text: text, markup: markup})
}

func (r *fakeReply) SendPhoto(image []byte, caption string, markup *telebot.ReplyMarkup) error {
	return r.record(outbound{kind: "photo", text: caption, image: image, markup: markup})
}

func (r *fakeReply) Ack(text string, alert bool) error {
	return r.record(outbound{kind: "ack", text: text, alert: alert})
}

// visible drops callback answers without text.
func (r *fakeReply) visible() []outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []outbound
	for _, o := range r.out {
		if o.kind == "ack" && o.text == "" {
			continue
		}
		out = append(out, o)
	}
	return out
}

func (r *fakeReply) last() outbound {
	v := r.visible()
	if len(v) == 0 {
		return outbound{}
	}
	return v[len(v)-1]
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []outbound
	failFor map[int64]bool
}

func (m *fakeMessenger) SendTo(chatID int64, text string, markup *telebot.ReplyMarkup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFor[chatID] {
		return errors.New("chat not found")
	}
	m.sent = append(m.sent, outbound{kind: "send", chatID: chatID, text: text, markup: markup})
	return nil
}

func (m *fakeMessenger) to(chatID int64) []outbound {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []outbound
	for _, o := range m.sent {
		if o.chatID == chatID {
			out = append(out, o)
		}
	}
	return out
}

type fakeGateway struct {
	mu     sync.Mutex
	calls  []int64
	result *gateway.Result
	err    error
}

func (g *fakeGateway) CreateCharge(_ context.Context, _ catalog.Product, requesterID int64) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, requesterID)
	return g.result, g.err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type staticSettings struct {
	support string
	admins  []int64
}

func (s staticSettings) SupportURL() string { return s.support }
func (s staticSettings) AdminIDs() []int64  { return s.admins }
func (s staticSettings) IsAdmin(id int64) bool {
	for _, a := range s.admins {
		if a == id {
			return true
		}
	}
	return false
}

type fixture struct {
	sales     *Sales
	machine   *state.Machine
	gateway   *fakeGateway
	messenger *fakeMessenger
}

func newFixture(t *testing.T, mode Mode, mutate func(*Deps)) *fixture {
	t.Helper()

	locales, err := i18n.Load("pt")
	require.NoError(t, err)

	f := &fixture{
		machine:   state.NewMachine(state.NewMemoryStore(), testLogger()),
		gateway:   &fakeGateway{result: &gateway.Result{PaymentLink: "https://pay.example/abc"}},
		messenger: &fakeMessenger{},
	}

	deps := Deps{
		Catalog:    catalog.Default(),
		Machine:    f.machine,
		Gateway:    f.gateway,
		Locales:    locales,
		Settings:   staticSettings{support: "https://t.me/suporte", admins: []int64{900, 901}},
		Messenger:  f.messenger,
		Tickets:    idempotency.NewManager(idempotency.NewMemoryStore(), testLogger()),
		Mode:       mode,
		InviteLink: "https://t.me/+grupo",
		PixKey:     "pix@example.com",
		Log:        testLogger(),
	}
	if mutate != nil {
		mutate(&deps)
	}

	f.sales, err = NewSales(deps)
	require.NoError(t, err)

	return f
}

func (f *fixture) session(t *testing.T, userID int64) state.Session {
	t.Helper()
	sess, err := f.machine.Session(context.Background(), userID)
	require.NoError(t, err)
	return sess
}

func markupData(m *telebot.ReplyMarkup) []string {
	if m == nil {
		return nil
	}
	var data []string
	for _, row := range m.InlineKeyboard {
		for _, b := range row {
			data = append(data, b.Data)
		}
	}
	return data
}
