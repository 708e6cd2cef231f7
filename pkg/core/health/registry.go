// Package health implements the Source Health Registry: a per-source
// state machine (healthy / cooling / probing) gating calls to flaky market
// data providers, built on github.com/sony/gobreaker rather than a
// hand-rolled state machine.
package health

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Default thresholds: three consecutive errors trip a source into a
// five-minute cooldown. Callers may override via configuration.
const (
	DefaultMaxErrors = 3
	DefaultCooldown  = 300 * time.Second
)

// State is the externally observable health of a source.
type State struct {
	Healthy           bool       `json:"healthy"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	LastFailureAt     *time.Time `json:"last_failure_at,omitempty"`
}

// ErrSourceCoolingDown is returned by Registry.Execute when a source is
// refused a request during its cooldown window.
var ErrSourceCoolingDown = errors.New("health: source is cooling down")

// Registry is the process-wide, mutex-guarded table of per-source health.
// It is the only component permitted to mark a source unhealthy: analysts
// and the Scheduler never inspect network primitives directly, they only
// ask the Registry.
type Registry struct {
	mu            sync.Mutex
	breakers      map[string]*gobreaker.CircuitBreaker
	lastFailureAt map[string]time.Time
	consecutive   map[string]int
	maxErrors     int
	cooldown      time.Duration
}

// NewRegistry builds a Registry with the given thresholds. Pass zero values
// to take the defaults above.
func NewRegistry(maxErrors int, cooldown time.Duration) *Registry {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Registry{
		breakers:      make(map[string]*gobreaker.CircuitBreaker),
		lastFailureAt: make(map[string]time.Time),
		consecutive:   make(map[string]int),
		maxErrors:     maxErrors,
		cooldown:      cooldown,
	}
}

func (r *Registry) breakerFor(source string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[source]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: 1, // exactly one probing request allowed through per cooldown cycle
		Interval:    0, // counters never reset on a timer; only a success resets them
		Timeout:     r.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(r.maxErrors)
		},
	})
	r.breakers[source] = b
	return b
}

// Allow reports whether a request to source may proceed right now, without
// performing it. The Facade calls this before attempting a source in
// its ordered list.
func (r *Registry) Allow(source string) bool {
	b := r.breakerFor(source)
	switch b.State() {
	case gobreaker.StateOpen:
		return false
	default: // closed (healthy) or half-open (probing)
		return true
	}
}

// Execute runs fn only if the source is currently allowed, recording the
// outcome against the breaker. It returns ErrSourceCoolingDown without
// calling fn if the source is refusing requests.
func (r *Registry) Execute(source string, fn func() error) error {
	b := r.breakerFor(source)
	_, err := b.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		return ErrSourceCoolingDown
	}
	r.mu.Lock()
	if err != nil {
		r.lastFailureAt[source] = time.Now()
		r.consecutive[source]++
	} else {
		r.consecutive[source] = 0
	}
	r.mu.Unlock()
	return err
}

// State returns the current externally-observable health of a source.
func (r *Registry) State(source string) State {
	b := r.breakerFor(source)
	st := State{
		Healthy: b.State() != gobreaker.StateOpen,
	}
	r.mu.Lock()
	st.ConsecutiveErrors = r.consecutive[source]
	if t, ok := r.lastFailureAt[source]; ok {
		st.LastFailureAt = &t
	}
	r.mu.Unlock()
	return st
}

// Reset clears a source's recorded failures, used by tests and by explicit
// operator intervention; never called from the analysis hot path.
func (r *Registry) Reset(source string) {
	r.mu.Lock()
	delete(r.breakers, source)
	delete(r.lastFailureAt, source)
	delete(r.consecutive, source)
	r.mu.Unlock()
}
