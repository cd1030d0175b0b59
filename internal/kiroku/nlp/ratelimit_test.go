package nlp_test

import (
	"testing"
	"time"

	"github.com/kiroku-app/kiroku/internal/kiroku/nlp"
)

// TestRateLimiter_EnforcesLimit verifies the limit applies per client and
// that other clients are unaffected.
func TestRateLimiter_EnforcesLimit(t *testing.T) {
	limiter := nlp.NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("alice") {
			t.Fatalf("call %d for alice denied, want allowed", i+1)
		}
	}
	if limiter.Allow("alice") {
		t.Error("call 4 for alice allowed, want denied")
	}
	if !limiter.Allow("bob") {
		t.Error("bob denied by alice's quota")
	}
}

// TestRateLimiter_WindowSlides verifies quota is restored once calls fall
// out of the window.
func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter := nlp.NewRateLimiter(1, 30*time.Millisecond)

	if !limiter.Allow("alice") {
		t.Fatal("first call denied")
	}
	if limiter.Allow("alice") {
		t.Fatal("second call inside window allowed")
	}

	time.Sleep(40 * time.Millisecond)
	if !limiter.Allow("alice") {
		t.Error("call after window slide denied, want allowed")
	}
}

// TestRateLimiter_Remaining verifies the remaining-count bookkeeping.
func TestRateLimiter_Remaining(t *testing.T) {
	limiter := nlp.NewRateLimiter(2, time.Minute)

	if got := limiter.Remaining("alice"); got != 2 {
		t.Errorf("Remaining before any call = %d, want 2", got)
	}
	limiter.Allow("alice")
	if got := limiter.Remaining("alice"); got != 1 {
		t.Errorf("Remaining after one call = %d, want 1", got)
	}
	limiter.Allow("alice")
	limiter.Allow("alice") // denied, must not consume quota bookkeeping
	if got := limiter.Remaining("alice"); got != 0 {
		t.Errorf("Remaining after quota exhausted = %d, want 0", got)
	}
}

// TestRateLimiter_Defaults verifies zero/negative constructor arguments fall
// back to the documented defaults.
func TestRateLimiter_Defaults(t *testing.T) {
	limiter := nlp.NewRateLimiter(0, 0)
	if got := limiter.Remaining("anyone"); got != nlp.DefaultRateLimit {
		t.Errorf("default Remaining = %d, want %d", got, nlp.DefaultRateLimit)
	}
}
