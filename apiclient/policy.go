package apiclient

import (
	"math"
	"time"
)

// Policy is the retry, timeout and breaker configuration of a Client.
type Policy struct {
	MaxAttempts   int
	Timeout       time.Duration
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration

	// BreakerEnabled lets an open per-host breaker fail requests without any
	// attempt. Off by default.
	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration

	// RequestsPerSecond paces outgoing attempts; zero means unlimited.
	RequestsPerSecond float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		Timeout:       90 * time.Second,
		InitialDelay:  5 * time.Second,
		BackoffFactor: 1.5,
		MaxDelay:      30 * time.Second,

		BreakerEnabled:      false,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.8,
		BreakerOpenTimeout:  2 * time.Minute,
	}
}

func (p Policy) normalize() Policy {
	out := p
	def := DefaultPolicy()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.Timeout <= 0 {
		out.Timeout = def.Timeout
	}
	if out.InitialDelay < 0 {
		out.InitialDelay = 0
	}
	if out.BackoffFactor < 1.0 {
		out.BackoffFactor = def.BackoffFactor
	}
	if out.MaxDelay < out.InitialDelay {
		out.MaxDelay = out.InitialDelay
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.RequestsPerSecond < 0 {
		out.RequestsPerSecond = 0
	}
	return out
}

// Delay is the wait before retrying after the 0-indexed attempt n:
// min(InitialDelay * BackoffFactor^n, MaxDelay).
func (p Policy) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(n))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}
