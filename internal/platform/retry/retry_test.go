package retry

import (
	"testing"
	"time"
)

func TestBackoffDoublesFromBase(t *testing.T) {
	t.Parallel()

	p := Policy{Base: 100 * time.Millisecond, Cap: 10 * time.Second, MaxAttempts: 5}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, w := range want {
		if got := p.Backoff(i); got != w {
			t.Fatalf("Backoff(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestBackoffCaps(t *testing.T) {
	t.Parallel()

	p := Policy{Base: time.Second, Cap: 3 * time.Second, MaxAttempts: 10}
	if got := p.Backoff(8); got != 3*time.Second {
		t.Fatalf("Backoff beyond cap = %v, want cap", got)
	}
	// negative attempt treated as first
	if got := p.Backoff(-1); got != time.Second {
		t.Fatalf("Backoff(-1) = %v, want base", got)
	}
}

func TestShouldRetryCeiling(t *testing.T) {
	t.Parallel()

	p := Policy{Base: time.Millisecond, Cap: time.Second, MaxAttempts: 3}
	if !p.ShouldRetry(0) || !p.ShouldRetry(1) {
		t.Fatalf("attempts below ceiling should retry")
	}
	if p.ShouldRetry(2) {
		t.Fatalf("attempt at ceiling must not retry")
	}
}

func TestZeroValueFallsBackToDefault(t *testing.T) {
	t.Parallel()

	var p Policy
	d := Default()
	if got := p.Backoff(0); got != d.Base {
		t.Fatalf("zero policy Backoff(0) = %v, want default base %v", got, d.Base)
	}
	if p.ShouldRetry(d.MaxAttempts - 1) {
		t.Fatalf("zero policy should honor default ceiling")
	}
}
