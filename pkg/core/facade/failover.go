package facade

import (
	"context"
	"errors"
	"time"

	"marketaoc/pkg/core/health"
)

// DefaultTimeout is the per-call timeout. Indicator multi-step calls use a
// longer one, passed explicitly where needed.
const DefaultTimeout = 5 * time.Second

// namedSource pairs a source's registry name with its call, so the failover
// loop can report and gate per-source health without the caller repeating
// that wiring at every call site.
type namedSource[T any] struct {
	name string
	call func(context.Context) (T, error)
}

// FailoverError is returned when every source in an operation's ordered
// list failed or was refused by the Health Registry. It carries each
// attempt's classified error for diagnostics; callers treat it as
// data-unavailable and proceed with an empty-but-typed result.
type FailoverError struct {
	Operation string
	Attempts  []*ProviderError
}

func (e *FailoverError) Error() string {
	msg := "facade: all sources exhausted for " + e.Operation
	for _, a := range e.Attempts {
		msg += "; " + a.Error()
	}
	return msg
}

// failover implements the ordered-source contract: for each source in
// order, skip if unhealthy-and-cooling, invoke with a timeout, reset health
// on success, record+classify on failure and continue. Total failure
// surfaces only as a FailoverError; one layer up every Facade method turns
// that into an empty-but-well-typed result plus the error, so nothing
// raises through to the Scheduler.
func failover[T any](ctx context.Context, reg *health.Registry, timeout time.Duration, operation string, sources ...namedSource[T]) (T, error) {
	var zero T
	var attempts []*ProviderError

	for _, src := range sources {
		if !reg.Allow(src.name) {
			attempts = append(attempts, &ProviderError{Source: src.name, Class: ErrProtocol, Err: health.ErrSourceCoolingDown})
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		var result T
		var callErr error
		healthErr := reg.Execute(src.name, func() error {
			var err error
			result, err = src.call(callCtx)
			return err
		})
		cancel()

		if healthErr == nil {
			return result, nil
		}
		callErr = healthErr

		var pe *ProviderError
		if errors.As(callErr, &pe) {
			// the provider call already classified itself (e.g. ErrEmpty);
			// preserve that classification rather than second-guessing it.
			attempts = append(attempts, pe)
			continue
		}

		class := ErrProtocol
		switch {
		case errors.Is(callErr, context.DeadlineExceeded):
			class = ErrTimeout
		case errors.Is(callErr, health.ErrSourceCoolingDown):
			class = ErrProtocol
		}
		attempts = append(attempts, &ProviderError{Source: src.name, Class: class, Err: callErr})
	}

	return zero, &FailoverError{Operation: operation, Attempts: attempts}
}
