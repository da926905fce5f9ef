// Package circuitbreaker fails provider calls fast while a model keeps
// erroring. An open breaker answers with a model-unavailable error so the
// fallback coordinator skips straight to the next model in the chain.
package circuitbreaker

import (
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"
)

const jitterDivisor = 10

// State is the breaker's position in its closed/open/half-open cycle.
type State int32

const (
	// StateClosed allows requests through.
	StateClosed State = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows a limited number of probes.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker tracks the health of a single provider:model pair.
type breaker struct {
	key string

	state           atomic.Int32
	failures        atomic.Int32
	successes       atomic.Int32
	lastFailureTime atomic.Int64
	halfOpenProbes  atomic.Int32

	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	maxProbes        int

	now    func() time.Time
	logger *slog.Logger
}

func newBreaker(key string, o options) *breaker {
	b := &breaker{
		key:              key,
		failureThreshold: o.failureThreshold,
		successThreshold: o.successThreshold,
		openTimeout:      o.openTimeout,
		maxProbes:        o.halfOpenProbes,
		now:              o.now,
		logger:           o.logger,
	}
	b.state.Store(int32(StateClosed))
	return b
}

func (b *breaker) jitter() time.Duration {
	jit := b.openTimeout / jitterDivisor
	if jit <= 0 {
		return 0
	}
	//nolint:gosec // weak random is fine for jitter
	return time.Duration(rand.Int63n(int64(jit)))
}

// allow reports whether a request may proceed. When it may, the returned
// release func must be called once the request finishes.
func (b *breaker) allow() (release func(), ok bool) {
	state := State(b.state.Load())
	switch state {
	case StateClosed:
		return func() {}, true

	case StateOpen:
		last := time.Unix(0, b.lastFailureTime.Load())
		if b.now().Sub(last) <= b.openTimeout+b.jitter() {
			return nil, false
		}
		b.transition(StateOpen, StateHalfOpen)
		return b.acquireProbe()

	case StateHalfOpen:
		return b.acquireProbe()

	default:
		return nil, false
	}
}

func (b *breaker) acquireProbe() (func(), bool) {
	for {
		cur := b.halfOpenProbes.Load()
		if int(cur) >= b.maxProbes {
			return nil, false
		}
		if b.halfOpenProbes.CompareAndSwap(cur, cur+1) {
			return func() {
				// Saturate at 0 if a transition reset the counter meanwhile.
				for {
					n := b.halfOpenProbes.Load()
					if n == 0 || b.halfOpenProbes.CompareAndSwap(n, n-1) {
						return
					}
				}
			}, true
		}
	}
}

func (b *breaker) recordSuccess() {
	for {
		state := b.state.Load()
		switch State(state) {
		case StateClosed:
			b.failures.Store(0)
			return

		case StateHalfOpen:
			n := b.successes.Add(1)
			if int(n) < b.successThreshold {
				return
			}
			if b.transition(StateHalfOpen, StateClosed) {
				return
			}
			b.successes.Add(-1)

		default:
			return
		}
	}
}

func (b *breaker) recordFailure() {
	b.lastFailureTime.Store(b.now().UnixNano())

	for {
		state := b.state.Load()
		switch State(state) {
		case StateClosed:
			if int(b.failures.Add(1)) < b.failureThreshold {
				return
			}
			if b.transition(StateClosed, StateOpen) {
				return
			}

		case StateHalfOpen:
			if b.transition(StateHalfOpen, StateOpen) {
				return
			}

		default:
			return
		}
	}
}

// transition moves from -> to if the breaker is still in from, resetting
// counters. It reports whether this call performed the move.
func (b *breaker) transition(from, to State) bool {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	b.successes.Store(0)
	b.halfOpenProbes.Store(0)
	if to != StateHalfOpen {
		b.failures.Store(0)
	}
	b.logger.Info("circuit breaker state transition",
		"key", b.key,
		"from", from.String(),
		"to", to.String())
	return true
}

func (b *breaker) currentState() State {
	return State(b.state.Load())
}
