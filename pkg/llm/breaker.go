package llm

import (
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// CircuitBreaker tracks upstream health for one provider instance and gates
// whether a call attempt is permitted. One instance is shared process-wide per
// provider; all mutations go through a single mutex.
//
// State machine: Closed (failureCount < threshold) -> Open (threshold reached,
// calls rejected) -> Half-Open (recovery period elapsed, probe allowed) ->
// Closed on RecordSuccess, or back to Open on a failed probe.
//
// Half-open is derived from elapsed time rather than stored, so several
// concurrent callers can all be admitted inside the recovery window. Known
// race, accepted: the upstream tolerates a handful of probes far better than
// the bookkeeping needed to allow exactly one.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureCount     int
	failureThreshold int
	lastFailureTime  time.Time
	recoveryPeriod   time.Duration
	open             bool

	logger *log.Helper
}

// NewCircuitBreaker creates a circuit breaker with the given failure threshold
// and recovery period.
func NewCircuitBreaker(failureThreshold int, recoveryPeriod time.Duration, logger log.Logger) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryPeriod <= 0 {
		recoveryPeriod = 60 * time.Second
	}

	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryPeriod:   recoveryPeriod,
		logger:           log.NewHelper(logger),
	}
}

// CanExecute reports whether a call attempt is currently permitted.
// It returns true when the breaker is closed, or when it is open but the
// recovery period has elapsed since the last failure (half-open probe).
// Pure read plus a timestamp comparison; no state is mutated.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}

	return time.Since(b.lastFailureTime) >= b.recoveryPeriod
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasOpen := b.open
	b.failureCount = 0
	b.open = false

	if wasOpen {
		b.logger.Infow("msg", "circuit breaker closed after successful probe", "type", "breaker")
	}
}

// RecordFailure increments the failure count and opens the breaker once the
// threshold is reached, stamping the failure time used for recovery checks.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++

	if b.failureCount >= b.failureThreshold {
		b.open = true
		b.lastFailureTime = time.Now()
		b.logger.Warnw("msg", "circuit breaker opened",
			"type", "breaker",
			"failure_count", b.failureCount,
			"recovery_period", b.recoveryPeriod.String())
	}
}

// IsOpen reports the stored open flag, ignoring the recovery window.
// Exposed for observability endpoints and tests.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// FailureCount returns the current consecutive failure count.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
