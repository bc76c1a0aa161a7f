package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no backend of a [Failover] produced a
// result. It wraps every backend's error.
var ErrAllFailed = errors.New("resilience: every backend failed")

// EntryStatus is one backend's breaker state.
type EntryStatus struct {
	Name  string
	State State
}

type backend[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Failover holds backends of one kind in preference order, each behind its
// own [Breaker]. Add every backend before the first [Call]; after that a
// Failover is safe for concurrent use.
type Failover[T any] struct {
	cfg      BreakerConfig
	backends []backend[T]
}

// NewFailover returns an empty Failover. cfg is the template for every
// backend's breaker; its Name is replaced by the backend name.
func NewFailover[T any](cfg BreakerConfig) *Failover[T] {
	return &Failover[T]{cfg: cfg}
}

// Add appends a backend. The first one added is the primary.
func (f *Failover[T]) Add(name string, v T) {
	cfg := f.cfg
	cfg.Name = name
	f.backends = append(f.backends, backend[T]{name: name, value: v, breaker: NewBreaker(cfg)})
}

// Len returns the number of backends.
func (f *Failover[T]) Len() int { return len(f.backends) }

// Status returns each backend's breaker state in preference order.
func (f *Failover[T]) Status() []EntryStatus {
	out := make([]EntryStatus, 0, len(f.backends))
	for _, b := range f.backends {
		out = append(out, EntryStatus{Name: b.name, State: b.breaker.State()})
	}
	return out
}

// Available reports whether some backend's breaker would let a call
// through.
func (f *Failover[T]) Available() bool {
	for _, b := range f.backends {
		if b.breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Call runs fn against the backends in order and returns the first result
// together with the name of the backend that produced it. Backends with an
// open breaker are skipped.
//
// Cancellation of ctx stops the search at once and is returned as is; it is
// never charged to a backend. When every backend fails the error wraps
// [ErrAllFailed] and each backend's error.
func Call[T, R any](ctx context.Context, f *Failover[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var (
		zero R
		errs []error
	)
	for _, b := range f.backends {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		done, err := b.breaker.Allow()
		if err != nil {
			slog.Debug("backend skipped", "backend", b.name, "reason", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
			continue
		}
		res, err := fn(ctx, b.value)
		done(err)
		if err == nil {
			return res, b.name, nil
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return zero, "", err
		}
		slog.Warn("backend failed", "backend", b.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
	}
	if len(errs) == 0 {
		return zero, "", fmt.Errorf("%w: no backends", ErrAllFailed)
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
