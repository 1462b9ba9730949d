// Package retry models the attempt-count retry contract used by pollers:
// a failed item is left eligible for reclaim until it has used up its
// attempts, optionally with a delay before it becomes eligible again.
package retry

import (
	"math"
	"time"
)

// DefaultMaxAttempts is the number of send attempts before an item is
// considered permanently failed.
const DefaultMaxAttempts = 3

// Policy decides what happens after a failed attempt.
type Policy struct {
	// MaxAttempts is the total number of attempts allowed, including the first.
	MaxAttempts int
	// Delay is the wait before the first retry. Zero means the item is
	// eligible on the very next poll.
	Delay time.Duration
	// Multiplier grows Delay per additional attempt. Values <= 1 keep it fixed.
	Multiplier float64
	// MaxDelay caps the computed delay when non-zero.
	MaxDelay time.Duration
}

// Decision is the outcome of Decide.
type Decision struct {
	// Retry is false once the attempt budget is exhausted.
	Retry bool
	// Attempts is the attempt count after recording the failure.
	Attempts int
	// Wait is how long to hold the item before it may be reclaimed.
	Wait time.Duration
}

// Default returns the fixed-interval policy: three attempts, reclaimed on
// the next poll.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts}
}

// Decide records one more failed attempt on top of priorAttempts failures
// and reports whether the item should be retried.
func (p Policy) Decide(priorAttempts int) Decision {
	limit := p.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	attempts := priorAttempts + 1
	if attempts >= limit {
		return Decision{Retry: false, Attempts: attempts}
	}
	return Decision{Retry: true, Attempts: attempts, Wait: p.delayFor(attempts)}
}

// delayFor returns the wait before retry number n (1-based).
func (p Policy) delayFor(n int) time.Duration {
	if p.Delay <= 0 {
		return 0
	}
	d := float64(p.Delay)
	if p.Multiplier > 1 {
		d *= math.Pow(p.Multiplier, float64(n-1))
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}
