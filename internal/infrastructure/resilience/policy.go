package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config tunes retries and the per-operation circuit breaker. Zero or
// out-of-range fields take the DefaultConfig value.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig keeps retries short: collaborator calls already run under a
// per-request deadline.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:        2,
		RetryInitialBackoff:     50 * time.Millisecond,
		RetryMaxBackoff:         200 * time.Millisecond,
		RetryMultiplier:         2.0,
		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      15 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	c.RetryMaxAttempts = positiveOr(c.RetryMaxAttempts, def.RetryMaxAttempts)
	c.RetryInitialBackoff = positiveOr(c.RetryInitialBackoff, def.RetryInitialBackoff)
	c.RetryMaxBackoff = max(positiveOr(c.RetryMaxBackoff, def.RetryMaxBackoff), c.RetryInitialBackoff)
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = def.RetryMultiplier
	}

	c.BreakerMinRequests = positiveOr(c.BreakerMinRequests, def.BreakerMinRequests)
	if c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = 0
	}
	c.BreakerFailureRatio = positiveOr(c.BreakerFailureRatio, def.BreakerFailureRatio)
	c.BreakerOpenTimeout = positiveOr(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	c.BreakerHalfOpenMaxCalls = positiveOr(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return c
}

// nextBackoff grows the wait geometrically, capped at RetryMaxBackoff.
func (c Config) nextBackoff(current time.Duration) time.Duration {
	return min(time.Duration(float64(current)*c.RetryMultiplier), c.RetryMaxBackoff)
}

// shouldTrip opens the breaker once enough calls ran and the failure
// ratio is reached.
func (c Config) shouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.BreakerMinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.BreakerFailureRatio
}

func positiveOr[T int | uint32 | float64 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
