package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/vitrine-bot/internal/bot/keyboard"
	"github.com/Proton-105/vitrine-bot/internal/catalog"
	apperrors "github.com/Proton-105/vitrine-bot/internal/errors"
	"github.com/Proton-105/vitrine-bot/internal/gateway"
	"github.com/Proton-105/vitrine-bot/internal/i18n"
	"github.com/Proton-105/vitrine-bot/internal/idempotency"
	"github.com/Proton-105/vitrine-bot/internal/ratelimit"
	"github.com/Proton-105/vitrine-bot/internal/state"
)

// Mode selects how a confirmed purchase is paid.
type Mode string

const (
	// ModeGateway generates the charge on the payment gateway.
	ModeGateway Mode = "gateway"
	// ModeManual collects the payer name and asks an administrator to confirm the PIX transfer.
	ModeManual Mode = "manual"
)

const (
	defaultChargeLimit  = 4
	defaultChargeWindow = time.Hour
	defaultDecisionTTL  = 30 * 24 * time.Hour
)

// Settings exposes the values that may change while the bot is running.
type Settings interface {
	SupportURL() string
	AdminIDs() []int64
	IsAdmin(id int64) bool
}

// Deps groups everything the sales conversation needs.
type Deps struct {
	Catalog  *catalog.Catalog
	Machine  *state.Machine
	Gateway  gateway.ChargeCreator
	Keyboard *keyboard.Builder
	Locales  *i18n.Manager
	Settings Settings

	Limiter      ratelimit.Limiter
	ChargeLimit  int
	ChargeWindow time.Duration

	Messenger   Messenger
	Tickets     idempotency.Manager
	DecisionTTL time.Duration

	Mode       Mode
	InviteLink string
	PixKey     string

	Log *slog.Logger
}

// Sales implements the buyer and administrator conversation steps.
type Sales struct {
	Deps
}

// NewSales validates deps and fills in defaults.
func NewSales(deps Deps) (*Sales, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("handlers: catalog is required")
	case deps.Machine == nil:
		return nil, errors.New("handlers: state machine is required")
	case deps.Locales == nil:
		return nil, errors.New("handlers: locales are required")
	case deps.Settings == nil:
		return nil, errors.New("handlers: settings are required")
	}

	if deps.Mode == "" {
		deps.Mode = ModeGateway
	}
	switch deps.Mode {
	case ModeGateway:
		if deps.Gateway == nil {
			return nil, errors.New("handlers: gateway is required in gateway mode")
		}
	case ModeManual:
		if deps.Messenger == nil || deps.Tickets == nil {
			return nil, errors.New("handlers: messenger and tickets are required in manual mode")
		}
	default:
		return nil, errors.New("handlers: unknown checkout mode " + string(deps.Mode))
	}

	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Keyboard == nil {
		deps.Keyboard = keyboard.NewBuilder(deps.Log)
	}
	if deps.ChargeLimit <= 0 {
		deps.ChargeLimit = defaultChargeLimit
	}
	if deps.ChargeWindow <= 0 {
		deps.ChargeWindow = defaultChargeWindow
	}
	if deps.DecisionTTL <= 0 {
		deps.DecisionTTL = defaultDecisionTTL
	}

	return &Sales{Deps: deps}, nil
}

// Start greets the user and resets the conversation.
func (s *Sales) Start(ctx context.Context, r Reply) error {
	if _, err := s.toChoosing(ctx, r.UserID(), true); err != nil {
		return err
	}

	t := s.translator(r)
	return r.Send(t.T("welcome"), s.Keyboard.Welcome(t, s.Settings.SupportURL()))
}

// Fallback answers any update no other step claims.
func (s *Sales) Fallback(_ context.Context, r Reply) error {
	t := s.translator(r)
	if r.FromButton() {
		_ = r.Ack("", false)
	}
	return r.Send(t.T("fallback"), nil)
}

func (s *Sales) translator(r Reply) i18n.Translator {
	return s.Locales.Translator(r.Language())
}

func (s *Sales) toChoosing(ctx context.Context, userID int64, clear bool) (state.Session, error) {
	return s.transition(ctx, userID, state.StateChoosing, func(sess *state.Session) {
		if clear {
			sess.ClearSelection()
		}
	})
}

func (s *Sales) transition(ctx context.Context, userID int64, to state.State, mutate func(*state.Session)) (state.Session, error) {
	sess, err := s.Machine.Transition(ctx, userID, to, mutate)
	if err != nil {
		if errors.Is(err, state.ErrInvalidTransition) {
			return sess, apperrors.NewStateError("cannot move to " + string(to))
		}
		return sess, apperrors.NewStorageError(err)
	}
	return sess, nil
}
