package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/vitrine-bot/internal/bot"
	"github.com/Proton-105/vitrine-bot/internal/bot/handlers"
	"github.com/Proton-105/vitrine-bot/internal/bot/keyboard"
	"github.com/Proton-105/vitrine-bot/internal/catalog"
	"github.com/Proton-105/vitrine-bot/internal/companion"
	apperrors "github.com/Proton-105/vitrine-bot/internal/errors"
	"github.com/Proton-105/vitrine-bot/internal/gateway"
	"github.com/Proton-105/vitrine-bot/internal/health"
	"github.com/Proton-105/vitrine-bot/internal/i18n"
	"github.com/Proton-105/vitrine-bot/internal/idempotency"
	"github.com/Proton-105/vitrine-bot/internal/lifecycle"
	"github.com/Proton-105/vitrine-bot/internal/middleware"
	"github.com/Proton-105/vitrine-bot/internal/ratelimit"
	"github.com/Proton-105/vitrine-bot/internal/state"
	"github.com/Proton-105/vitrine-bot/pkg/config"
	"github.com/Proton-105/vitrine-bot/pkg/graceful"
	"github.com/Proton-105/vitrine-bot/pkg/logger"
	"github.com/Proton-105/vitrine-bot/pkg/metrics"
	appredis "github.com/Proton-105/vitrine-bot/pkg/redis"
)

const (
	shutdownTimeout      = 20 * time.Second
	stateCollectInterval = 15 * time.Second
	limiterCleanEvery    = 10 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vitrine-bot: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	sentryEnabled := cfg.Sentry.DSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	log, logCloser := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Sentry: sentryEnabled,
		Env:    cfg.AppEnv,
	})
	log.Info("starting vitrine bot",
		slog.String("env", cfg.AppEnv),
		slog.String("gateway", cfg.Gateway.Kind),
		slog.String("checkout_mode", cfg.Checkout.Mode),
	)

	live := config.NewLive(cfg)
	config.Watch(v, live, log)

	products, err := loadCatalog(cfg.Catalog.File)
	if err != nil {
		return apperrors.NewConfigError("CATALOG_FILE", err)
	}

	locales, err := i18n.Load(cfg.Checkout.Language)
	if err != nil {
		return apperrors.NewConfigError("DEFAULT_LANGUAGE", err)
	}

	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		rdb, err = appredis.New(ctx, appredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
	}

	breaker := apperrors.NewCircuitBreaker(apperrors.DefaultBreakerConfig())
	charges, err := gateway.NewClient(gateway.Config{
		Shape:            gateway.Shape(cfg.Gateway.Kind),
		BaseURL:          cfg.Gateway.BaseURL(),
		APIKey:           cfg.Gateway.APIKey,
		Timeout:          cfg.Gateway.Timeout,
		CustomerDocument: cfg.Gateway.CustomerDocument,
		CustomerEmail:    cfg.Gateway.CustomerEmail,
		Breaker:          breaker,
	}, log)
	if err != nil {
		return apperrors.NewConfigError("PAYMENT_GATEWAY", err)
	}

	memLimiter := ratelimit.NewMemoryLimiter(log)
	var limiter ratelimit.Limiter = memLimiter
	var ticketStore idempotency.Store = idempotency.NewMemoryStore()
	if rdb != nil {
		limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb, log), memLimiter, log)
		ticketStore = idempotency.NewRedisStore(rdb, log)
	}

	sessions := state.NewMemoryStore()
	machine := state.NewMachine(sessions, log)

	errHandler := apperrors.NewHandler(log, sentryEnabled)
	tgBot, err := bot.New(bot.Options{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout,
	}, errHandler, log)
	if err != nil {
		return err
	}

	sales, err := handlers.NewSales(handlers.Deps{
		Catalog:      products,
		Machine:      machine,
		Gateway:      charges,
		Keyboard:     keyboard.NewBuilder(log),
		Locales:      locales,
		Settings:     live,
		Limiter:      limiter,
		ChargeLimit:  cfg.Checkout.ChargeLimit,
		ChargeWindow: cfg.Checkout.ChargeWindow,
		Messenger:    tgBot.Messenger(),
		Tickets:      idempotency.NewManager(ticketStore, log),
		Mode:         handlers.Mode(cfg.Checkout.Mode),
		InviteLink:   cfg.Checkout.InviteLink,
		PixKey:       cfg.Checkout.PixKey,
		Log:          log,
	})
	if err != nil {
		return apperrors.NewConfigError("CHECKOUT_MODE", err)
	}
	tgBot.Register(sales, machine)

	checker := health.NewChecker(log)
	checker.AddCheck("telegram", health.NewTelegramChecker(tgBot.Telebot()))
	checker.AddCheck("payment_gateway", health.NewBreakerChecker(breaker))
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checker.Handler())
	httpServer := graceful.NewServer(log, &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           logger.Middleware(middleware.New(log)(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.HTTP.ShutdownTimeout)

	runner := companion.New(companion.Config{
		Enabled:    cfg.Companion.Enabled(),
		Dir:        cfg.Companion.Dir,
		ServiceURL: cfg.Gateway.ServiceURL,
	}, log)
	if err := runner.Start(ctx); err != nil {
		log.Warn("payment service not started", slog.Any("error", err))
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	httpDone := make(chan error, 1)
	go func() { httpDone <- httpServer.ListenAndServe(bgCtx) }()
	go metrics.NewStateCollector(sessions, stateCollectInterval).Run(bgCtx)
	go ratelimit.NewCleaner(memLimiter, log, limiterCleanEvery, cfg.Checkout.ChargeWindow).Run(bgCtx)
	go tgBot.Start()

	stops := stopFuncs{
		telegram: tgBot.Stop,
		http: func(context.Context) error {
			stopBackground()
			return <-httpDone
		},
		paymentService: runner.Stop,
		sentry: func(context.Context) error {
			if sentryEnabled && !sentry.Flush(2*time.Second) {
				return errors.New("sentry flush timed out")
			}
			return nil
		},
	}
	if rdb != nil {
		stops.redis = func(context.Context) error { return rdb.Close() }
	}
	shutdown := newShutdown(log, stops)

	select {
	case <-ctx.Done():
	case err := <-httpDone:
		// Listener failed; put the result back for the shutdown hook.
		httpDone <- err
		log.Error("http server stopped", slog.Any("error", err))
	}

	log.Info("vitrine bot shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = shutdown.Execute(shutdownCtx)
	_ = logCloser.Close()
	return err
}

type stopFuncs struct {
	telegram       func(context.Context) error
	http           func(context.Context) error
	paymentService func(context.Context) error
	redis          func(context.Context) error
	sentry         func(context.Context) error
}

// newShutdown stops intake first. The payment service stays up until the
// telegram hook has drained in-flight charges.
func newShutdown(log *slog.Logger, stops stopFuncs) *lifecycle.Shutdown {
	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register(lifecycle.PhaseIngress, "telegram", stops.telegram)
	shutdown.Register(lifecycle.PhaseIngress, "http", stops.http)
	shutdown.Register(lifecycle.PhaseResources, "payment_service", stops.paymentService)
	if stops.redis != nil {
		shutdown.Register(lifecycle.PhaseResources, "redis", stops.redis)
	}
	shutdown.Register(lifecycle.PhaseResources, "sentry", stops.sentry)
	return shutdown
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
