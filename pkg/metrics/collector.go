package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/vitrine-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot updates handled labeled by action and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	chargesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_charges_total",
			Help: "Charges requested from the payment gateway by outcome",
		},
		[]string{"outcome"},
	)
	chargeDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_charge_duration_seconds",
			Help:    "Latency of payment gateway charge calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
	)
	adminDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_decisions_total",
			Help: "Manual payment decisions taken by administrators",
		},
		[]string{"decision"},
	)
	broadcastMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Admin broadcast deliveries by result",
		},
		[]string{"result"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of conversation sessions held in memory",
		},
	)
	sessionsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_state",
			Help: "Number of sessions per conversation state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks conversation transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordCharge counts a gateway call by outcome ("success" or a failure kind).
func RecordCharge(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}

	chargesTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		chargeDurationSeconds.Observe(duration.Seconds())
	}
}

// RecordAdminDecision counts accepted, rejected and duplicate admin actions.
func RecordAdminDecision(decision string) {
	adminDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordBroadcast counts delivered and failed broadcast messages.
func RecordBroadcast(sent, failed int) {
	broadcastMessagesTotal.WithLabelValues("sent").Add(float64(sent))
	broadcastMessagesTotal.WithLabelValues("failed").Add(float64(failed))
}

// SessionLister is the part of the session store the collector reads.
type SessionLister interface {
	All(ctx context.Context) ([]state.Session, error)
}

// StateCollector periodically gathers session counts per state and emits gauge metrics.
type StateCollector struct {
	sessions SessionLister
	interval time.Duration
}

// NewStateCollector builds a collector bound to the provided session store.
func NewStateCollector(sessions SessionLister, interval time.Duration) *StateCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StateCollector{sessions: sessions, interval: interval}
}

// Run polls the store until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.sessions == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	sessions, err := c.sessions.All(ctx)
	if err != nil {
		return err
	}

	activeSessions.Set(float64(len(sessions)))

	counts := make(map[state.State]int, len(state.States))
	for _, s := range sessions {
		counts[s.State]++
	}

	sessionsByState.Reset()
	for _, st := range state.States {
		sessionsByState.WithLabelValues(string(st)).Set(float64(counts[st]))
	}

	return nil
}
