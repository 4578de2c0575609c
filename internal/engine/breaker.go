package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/stwalsh4118/playerctl/internal/clock"
)

// BreakerState is the state of a reload breaker
type BreakerState int

const (
	// BreakerClosed lets reloads through
	BreakerClosed BreakerState = iota
	// BreakerOpen blocks reloads until the reset timeout elapses
	BreakerOpen
	// BreakerHalfOpen lets one reload through to probe recovery
	BreakerHalfOpen
)

// String returns the string representation of BreakerState
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned while the breaker blocks reloads
var ErrBreakerOpen = errors.New("playlist reload breaker is open")

// Breaker stops hammering a playlist origin after repeated reload failures
type Breaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	clock            clock.Clock

	mu              sync.Mutex
	state           BreakerState
	failures        int
	lastFailureTime time.Time
}

// NewBreaker creates a breaker that opens after failureThreshold consecutive failures
func NewBreaker(clk clock.Clock, failureThreshold int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: max(failureThreshold, 1),
		resetTimeout:     resetTimeout,
		clock:            clk,
		state:            BreakerClosed,
	}
}

// Call runs fn unless the breaker is open
func (b *Breaker) Call(fn func() error) error {
	if !b.CanAttempt() {
		return ErrBreakerOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.recordFailureLocked()
		return err
	}
	b.failures = 0
	b.state = BreakerClosed
	return nil
}

// State returns the current state, moving Open to HalfOpen once the reset timeout elapsed
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.clock.Now().Sub(b.lastFailureTime) >= b.resetTimeout {
		b.state = BreakerHalfOpen
		b.failures = 0
	}
	return b.state
}

// Failures returns the consecutive failure count
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// CanAttempt reports whether a reload may be tried now
func (b *Breaker) CanAttempt() bool {
	return b.State() != BreakerOpen
}

// Reset closes the breaker and clears the failure count
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.lastFailureTime = time.Time{}
}

func (b *Breaker) recordFailureLocked() {
	b.failures++
	b.lastFailureTime = b.clock.Now()

	if b.state == BreakerHalfOpen || b.failures >= b.failureThreshold {
		b.state = BreakerOpen
	}
}
