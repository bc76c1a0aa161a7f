// Package resilience keeps letter classification available when a
// classifier backend misbehaves.
//
// A [Breaker] stops sending frames to a backend after a run of consecutive
// failures and lets a few probe batches through once its cooldown has
// passed. A [Failover] puts several backends of one kind behind their own
// breakers and tries them in order, and [Classifiers] applies that to
// [classifier.Classifier].
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Allow] while the breaker rejects
// calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call until the cooldown has passed.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a [Breaker]. Zero fields take the documented default.
type BreakerConfig struct {
	// Name labels the breaker in logs and status reports.
	Name string

	// Threshold is the number of consecutive failures that opens the
	// breaker. Default: 5.
	Threshold int

	// Cooldown is how long an open breaker rejects calls. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close
	// again. It is also the number of probes allowed in flight. Default: 2.
	Probes int

	// IsFailure reports whether err counts against the backend. Default:
	// everything except context cancellation and deadline expiry.
	IsFailure func(err error) bool

	// OnStateChange, when set, is called after every transition with the
	// breaker's lock released.
	OnStateChange func(name string, from, to State)

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time
}

func (c *BreakerConfig) applyDefaults() {
	if c.Threshold < 1 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Probes < 1 {
		c.Probes = 2
	}
	if c.IsFailure == nil {
		c.IsFailure = countsAsFailure
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Breaker is a three-state circuit breaker. It is safe for concurrent use.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     State
	failures  int // consecutive, closed state only
	openedAt  time.Time
	inFlight  int // half-open probes not yet reported
	successes int // half-open probes that succeeded
}

// NewBreaker returns a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	cfg.applyDefaults()
	return &Breaker{cfg: cfg}
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

// Allow asks to make one call. On success the caller must report the call's
// outcome exactly once through done. While the breaker rejects calls Allow
// returns [ErrCircuitOpen] and a nil done.
func (b *Breaker) Allow() (done func(err error), err error) {
	b.mu.Lock()
	from := b.state
	if b.state == StateOpen && !b.cfg.Clock().Before(b.openedAt.Add(b.cfg.Cooldown)) {
		b.state = StateHalfOpen
		b.inFlight, b.successes = 0, 0
	}
	rejected := b.state == StateOpen ||
		b.state == StateHalfOpen && b.inFlight+b.successes >= b.cfg.Probes
	probe := !rejected && b.state == StateHalfOpen
	if probe {
		b.inFlight++
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
	if rejected {
		return nil, ErrCircuitOpen
	}

	var once sync.Once
	return func(err error) {
		once.Do(func() { b.report(probe, err) })
	}, nil
}

// Do runs fn when the breaker allows it and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}
	err = fn()
	done(err)
	return err
}

func (b *Breaker) report(probe bool, err error) {
	b.mu.Lock()
	from := b.state
	if probe && b.inFlight > 0 {
		b.inFlight--
	}
	switch {
	case err == nil && b.state == StateHalfOpen:
		if probe {
			b.successes++
		}
		if b.successes >= b.cfg.Probes {
			b.state = StateClosed
			b.failures = 0
		}
	case err == nil:
		b.failures = 0
	case !b.cfg.IsFailure(err):
		// Neutral: the probe slot is released, nothing is counted.
	case b.state == StateHalfOpen:
		b.trip()
	case b.state == StateClosed:
		b.failures++
		if b.failures >= b.cfg.Threshold {
			b.trip()
		}
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.cfg.Clock()
	b.failures = 0
}

func (b *Breaker) notify(from, to State) {
	if from == to {
		return
	}
	slog.Info("circuit breaker state changed", "name", b.cfg.Name, "from", from, "to", to)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cooldown has passed
// reports [StateHalfOpen]; the transition itself happens on the next Allow.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && !b.cfg.Clock().Before(b.openedAt.Add(b.cfg.Cooldown)) {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures, b.inFlight, b.successes = 0, 0, 0
	b.mu.Unlock()
	b.notify(from, StateClosed)
}
