// Package bot wires the Telegram transport to the sales conversation.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/vitrine-bot/internal/bot/handlers"
	"github.com/Proton-105/vitrine-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/vitrine-bot/internal/errors"
	"github.com/Proton-105/vitrine-bot/internal/middleware"
	"github.com/Proton-105/vitrine-bot/internal/state"
)

const defaultPollTimeout = 10 * time.Second

// Options configures the Telegram transport.
type Options struct {
	Token       string
	PollTimeout time.Duration
	// URL overrides the Telegram Bot API endpoint.
	URL string
	// Offline skips the getMe call performed on construction.
	Offline bool
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	router     *Router
	serializer *Serializer
	errHandler *errors.Handler
	started    atomic.Bool
}

// New builds a telegram bot instance configured according to the application settings.
func New(opts Options, errHandler *errors.Handler, log *slog.Logger) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	timeout := opts.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	settings := telebot.Settings{
		Token:       opts.Token,
		URL:         opts.URL,
		Poller:      &telebot.LongPoller{Timeout: timeout},
		Synchronous: true,
		Offline:     opts.Offline,
		OnError: func(err error, c telebot.Context) {
			log.Error("telegram update failed", slog.Any("error", err))
		},
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return &Bot{
		telebot:    tb,
		log:        log,
		serializer: NewSerializer(log),
		errHandler: errHandler,
	}, nil
}

// Messenger returns a sender for chats other than the one of the current update.
func (b *Bot) Messenger() handlers.Messenger {
	return handlers.NewBotMessenger(b.telebot)
}

// Register routes every conversation step of sales.
func (b *Bot) Register(sales *handlers.Sales, sessions SessionReader) {
	dispatcher := NewDispatcher(sessions, b.log)
	dispatcher.RegisterStateHandler(state.StateAwaitingPayerName, handlers.AdaptPayload(sales.PayerName))

	router := NewRouter(dispatcher, b.log)
	router.Use(SerializeMiddleware(b.serializer, b.log))
	router.Use(RecoveryMiddleware(b.log, b.errHandler))
	router.Use(ErrorHandlingMiddleware(b.errHandler))
	router.Use(LoggingMiddleware(b.log))
	router.Use(middleware.Metrics)

	router.RegisterCommand(CommandStart, handlers.Adapt(sales.Start))
	router.RegisterCommand(CommandProducts, handlers.Adapt(sales.ListCatalog))
	router.RegisterCommand(CommandBroadcast, handlers.AdaptPayload(sales.Broadcast))

	router.RegisterCallback(keyboard.CallbackCatalog, handlers.CallbackHandler(handlers.Adapt(sales.ListCatalog)))
	router.RegisterCallback(keyboard.CallbackBuy, handlers.CallbackHandler(handlers.AdaptPayload(sales.SelectProduct)))
	router.RegisterCallback(keyboard.CallbackConfirm, handlers.CallbackHandler(handlers.Adapt(sales.Confirm)))
	router.RegisterCallback(keyboard.CallbackAdminAccept, handlers.CallbackHandler(adminDecision(sales, true)))
	router.RegisterCallback(keyboard.CallbackAdminReject, handlers.CallbackHandler(adminDecision(sales, false)))

	router.SetDefault(handlers.Adapt(sales.Fallback))

	b.router = router
	b.telebot.Handle(telebot.OnText, router.Route)
	b.telebot.Handle(telebot.OnCallback, router.Route)
}

func adminDecision(sales *handlers.Sales, accept bool) handlers.Handler {
	return handlers.AdaptPayload(func(ctx context.Context, r handlers.Reply, payload string) error {
		return sales.AdminDecision(ctx, r, accept, payload)
	})
}

// Start runs the telegram bot event loop. It blocks until Stop is called.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.started.Store(true)
		b.log.Info("telegram bot polling started", slog.String("username", b.telebot.Me.Username))
		b.telebot.Start()
	}
}

// Stop stops polling and waits for in-flight updates to finish or ctx to end.
func (b *Bot) Stop(ctx context.Context) error {
	if b.telebot == nil {
		return nil
	}

	if b.started.Load() {
		b.log.Info("stopping telegram bot...")
		b.telebot.Stop()
	}

	return b.serializer.Close(ctx)
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Route processes a single update as if it came from the poller.
func (b *Bot) Route(u telebot.Update) {
	b.telebot.ProcessUpdate(u)
}
