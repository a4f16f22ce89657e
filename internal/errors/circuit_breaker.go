package errors

import (
	"errors"
	"sync"
	"time"
)

// BreakerConfig tunes when a CircuitBreaker trips and recovers.
type BreakerConfig struct {
	ErrorThreshold      float64
	MinRequests         int
	OpenTimeout         time.Duration
	HalfOpenMaxRequests int
}

// DefaultBreakerConfig trips at a 50% error rate over at least 10 calls and lets a trial call through after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ErrorThreshold:      0.5,
		MinRequests:         10,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without invoking the call while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrHalfOpenTooManyRequests is returned when the half-open trial budget is used up.
	ErrHalfOpenTooManyRequests = errors.New("too many requests in half-open")
)

type CircuitBreaker struct {
	mu              sync.Mutex
	cfg             BreakerConfig
	now             func() time.Time
	state           State
	failures        int
	successes       int
	requests        int
	generation      uint64
	lastFailureTime time.Time
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	defaults := DefaultBreakerConfig()
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = defaults.ErrorThreshold
	}
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = defaults.MinRequests
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = defaults.HalfOpenMaxRequests
	}

	return &CircuitBreaker{
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

// Call runs fn unless the breaker is open and records its outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) >= cb.cfg.OpenTimeout {
			cb.transitionToHalfOpenLocked()
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen && cb.requests >= cb.cfg.HalfOpenMaxRequests {
		cb.mu.Unlock()
		return ErrHalfOpenTooManyRequests
	}
	// The slot is taken before fn runs so concurrent callers see it.
	cb.requests++
	generation := cb.generation
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Outcomes from before a state change do not count toward the new window.
	if generation != cb.generation {
		return callErr
	}

	if callErr != nil {
		cb.failures++

		if cb.state == StateHalfOpen {
			cb.tripToOpenLocked()
		} else {
			cb.evaluateLocked()
		}

		return callErr
	}

	cb.successes++

	if cb.state == StateHalfOpen && cb.successes >= cb.cfg.HalfOpenMaxRequests {
		cb.state = StateClosed
		cb.resetCountersLocked()
	}

	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) evaluateLocked() {
	if cb.requests < cb.cfg.MinRequests {
		return
	}

	errorRate := float64(cb.failures) / float64(cb.requests)
	if errorRate >= cb.cfg.ErrorThreshold {
		cb.tripToOpenLocked()
	}
}

func (cb *CircuitBreaker) resetCountersLocked() {
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0
	cb.generation++
}

func (cb *CircuitBreaker) transitionToHalfOpenLocked() {
	cb.state = StateHalfOpen
	cb.resetCountersLocked()
}

func (cb *CircuitBreaker) tripToOpenLocked() {
	cb.state = StateOpen
	cb.lastFailureTime = cb.now()
	cb.resetCountersLocked()
}
