package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/parley/pkg/provider"
)

// ErrAllFailed is returned when both the primary and the alternate of a
// [FallbackGroup] failed. The individual errors stay reachable through
// errors.Is and errors.As.
var ErrAllFailed = errors.New("all providers failed")

// Checker is implemented by every provider that can report its own health.
type Checker interface {
	CheckConnection(ctx context.Context) error
}

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for the per-provider breakers. Name is
	// overwritten with the provider name.
	CircuitBreaker CircuitBreakerConfig

	// OnFallback, if set, is called whenever the alternate is attempted.
	OnFallback func(from, to string, cause error)
}

type fallbackEntry[T Checker] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary provider and at most one alternate. A call
// goes to the primary; when it fails (or its breaker is open) the alternate
// is asked for its health and, if healthy, gets exactly one attempt. There
// are no further retries.
type FallbackGroup[T Checker] struct {
	primary    fallbackEntry[T]
	alternate  *fallbackEntry[T]
	onFallback func(from, to string, cause error)
	cbCfg      CircuitBreakerConfig
}

// NewFallbackGroup creates a [FallbackGroup] around primary.
func NewFallbackGroup[T Checker](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{
		onFallback: cfg.OnFallback,
		cbCfg:      cfg.CircuitBreaker,
	}
	fg.primary = fg.entry(primaryName, primary)
	return fg
}

func (fg *FallbackGroup[T]) entry(name string, v T) fallbackEntry[T] {
	cbCfg := fg.cbCfg
	cbCfg.Name = name
	return fallbackEntry[T]{name: name, value: v, breaker: NewCircuitBreaker(cbCfg)}
}

// SetAlternate registers the alternate provider, replacing any previous one.
// It must be called before the group is shared between goroutines.
func (fg *FallbackGroup[T]) SetAlternate(name string, alt T) {
	e := fg.entry(name, alt)
	fg.alternate = &e
}

// PrimaryName returns the name of the primary provider.
func (fg *FallbackGroup[T]) PrimaryName() string { return fg.primary.name }

// AlternateName returns the alternate's name, or "" when there is none.
func (fg *FallbackGroup[T]) AlternateName() string {
	if fg.alternate == nil {
		return ""
	}
	return fg.alternate.name
}

// CheckConnection reports the health of whichever provider a call would use
// first: the primary, or the alternate when the primary's breaker is open.
func (fg *FallbackGroup[T]) CheckConnection(ctx context.Context) error {
	err := fg.primary.value.CheckConnection(ctx)
	if err == nil || fg.alternate == nil {
		return err
	}
	if altErr := fg.alternate.value.CheckConnection(ctx); altErr == nil {
		return nil
	}
	return err
}

// Execute runs fn against the primary and, on failure, once against the
// healthy alternate. It returns the name of the provider that served the
// call alongside the result.
func Execute[T Checker, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, string, error) {
	var zero R

	result, err := run(&fg.primary, fn)
	if err == nil {
		return result, fg.primary.name, nil
	}
	if !provider.IsRetriable(err) || ctx.Err() != nil {
		return zero, fg.primary.name, err
	}
	if fg.alternate == nil {
		return zero, fg.primary.name, err
	}

	alt := fg.alternate
	if !alt.breaker.Allows() {
		slog.Warn("alternate provider skipped (circuit open)",
			"primary", fg.primary.name, "alternate", alt.name, "err", err)
		return zero, fg.primary.name, err
	}
	if checkErr := alt.value.CheckConnection(ctx); checkErr != nil {
		slog.Warn("alternate provider unhealthy, not falling back",
			"primary", fg.primary.name, "alternate", alt.name, "err", err, "check_err", checkErr)
		return zero, fg.primary.name, err
	}

	slog.Warn("primary provider failed, falling back",
		"primary", fg.primary.name, "alternate", alt.name, "err", err)
	if fg.onFallback != nil {
		fg.onFallback(fg.primary.name, alt.name, err)
	}
	result, altErr := run(alt, fn)
	if altErr == nil {
		return result, alt.name, nil
	}
	return zero, alt.name, fmt.Errorf("%w: %s: %w; %s: %w", ErrAllFailed, fg.primary.name, err, alt.name, altErr)
}

func run[T Checker, R any](e *fallbackEntry[T], fn func(T) (R, error)) (R, error) {
	var result R
	err := e.breaker.Execute(func() error {
		var innerErr error
		result, innerErr = fn(e.value)
		return innerErr
	})
	if errors.Is(err, ErrCircuitOpen) {
		err = fmt.Errorf("%s: %w: %w", e.name, provider.ErrConnection, err)
	}
	return result, err
}
