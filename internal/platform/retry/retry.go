// Package retry represents retry/backoff behavior as an explicit policy value
// shared by the verification and Discord clients
package retry

import "time"

// Policy describes exponential backoff with a cap and an attempt ceiling.
// The zero value is not useful; start from Default and override knobs
type Policy struct {
	// Base is the delay before the first retry
	Base time.Duration

	// Cap bounds the delay between attempts
	Cap time.Duration

	// MaxAttempts is the total number of tries including the first
	MaxAttempts int
}

// Default matches the clients' documented quota behavior: 500ms doubling,
// capped at 30s, five tries total
func Default() Policy {
	return Policy{
		Base:        500 * time.Millisecond,
		Cap:         30 * time.Second,
		MaxAttempts: 5,
	}
}

// normalized fills zero fields with Default values
func (p Policy) normalized() Policy {
	d := Default()
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.Cap <= 0 {
		p.Cap = d.Cap
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	return p
}

// Backoff returns the delay before retrying after the given zero-based attempt
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 0 {
		attempt = 0
	}
	ms := int64(p.Base / time.Millisecond)
	for i := 0; i < attempt; i++ {
		ms <<= 1
		if ms >= int64(p.Cap/time.Millisecond) {
			return p.Cap
		}
	}
	d := time.Duration(ms) * time.Millisecond
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// ShouldRetry reports whether another try is allowed after the given
// zero-based attempt
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt < p.normalized().MaxAttempts-1
}
