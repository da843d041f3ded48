package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrAllFailed reports that no member of a [FallbackGroup] produced a result.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig is applied to the circuit breaker of every group member.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds interchangeable providers in priority order, each
// behind its own circuit breaker. Members are added during setup; once the
// group is shared it is safe for concurrent use.
type FallbackGroup[T any] struct {
	members []member[T]
	breaker CircuitBreakerConfig
}

// NewFallbackGroup starts a group with primary as its first member.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{breaker: cfg.CircuitBreaker}
	g.AddFallback(primaryName, primary)
	return g
}

// AddFallback appends a lower-priority member.
func (g *FallbackGroup[T]) AddFallback(name string, value T) {
	cb := g.breaker
	cb.Name = name
	g.members = append(g.members, member[T]{name: name, value: value, breaker: NewCircuitBreaker(cb)})
}

// Primary is the first member.
func (g *FallbackGroup[T]) Primary() T { return g.members[0].value }

// Len counts all members including the primary.
func (g *FallbackGroup[T]) Len() int { return len(g.members) }

// States maps each member name to its circuit state.
func (g *FallbackGroup[T]) States() map[string]State {
	out := make(map[string]State, len(g.members))
	for _, m := range g.members {
		out[m.name] = m.breaker.State()
	}
	return out
}

// Healthy fails only when every member's circuit is open.
func (g *FallbackGroup[T]) Healthy() error {
	names := make([]string, 0, len(g.members))
	for _, m := range g.members {
		if m.breaker.State() != StateOpen {
			return nil
		}
		names = append(names, m.name)
	}
	return fmt.Errorf("%w: circuits open for %s", ErrCircuitOpen, strings.Join(names, ", "))
}

// Execute runs fn against members in order until one succeeds.
func (g *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(g, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult runs fn against the members of g in order and returns
// the first successful result. Members with an open circuit are skipped.
// A context error is returned as is without trying further members, since
// they would fail the same way. Otherwise the last failure is wrapped in
// [ErrAllFailed].
func ExecuteWithResult[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for _, m := range g.members {
		var res R
		err := m.breaker.Execute(func() (err error) {
			res, err = fn(m.value)
			return err
		})
		switch {
		case err == nil:
			return res, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return zero, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("resilience: circuit open, skipping", "provider", m.name)
		default:
			slog.Warn("resilience: provider failed, trying next", "provider", m.name, "err", err)
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
