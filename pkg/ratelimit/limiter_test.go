package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		burst     float64
		wantRate  float64
		wantBurst float64
	}{
		{name: "explicit values", rate: 10, burst: 20, wantRate: 10, wantBurst: 20},
		{name: "zero rate defaults", rate: 0, burst: 0, wantRate: 10, wantBurst: 20},
		{name: "burst never below rate", rate: 10, burst: 5, wantRate: 10, wantBurst: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rate, tt.burst)
			if rl.Rate() != tt.wantRate {
				t.Errorf("Rate() = %v, want %v", rl.Rate(), tt.wantRate)
			}
			if rl.Burst() != tt.wantBurst {
				t.Errorf("Burst() = %v, want %v", rl.Burst(), tt.wantBurst)
			}
		})
	}
}

func TestAllow(t *testing.T) {
	t.Run("starts with full bucket", func(t *testing.T) {
		rl := NewRateLimiter(1, 3)

		for i := 0; i < 3; i++ {
			if !rl.Allow() {
				t.Fatalf("Allow() = false on request %d, bucket should hold 3", i+1)
			}
		}
		// bucket drained, refill at 1 token/sec is far from ready
		if rl.Allow() {
			t.Error("Allow() = true on drained bucket")
		}
	})

	t.Run("refills over time", func(t *testing.T) {
		rl := NewRateLimiter(100, 1)

		if !rl.Allow() {
			t.Fatal("first token must be available")
		}
		if rl.Allow() {
			t.Fatal("bucket must be empty right after drain")
		}

		// at 100 tokens/sec a token returns within ~10ms
		time.Sleep(30 * time.Millisecond)
		if !rl.Allow() {
			t.Error("token must be refilled after waiting")
		}
	})
}

func TestWait(t *testing.T) {
	t.Run("returns immediately with tokens available", func(t *testing.T) {
		rl := NewRateLimiter(10, 10)

		start := time.Now()
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("Wait took %v, expected immediate return", elapsed)
		}
	})

	t.Run("blocks until refill", func(t *testing.T) {
		rl := NewRateLimiter(100, 1)
		if !rl.Allow() {
			t.Fatal("first token must be available")
		}

		start := time.Now()
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// ~10ms for one token at 100/sec
		if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
			t.Errorf("Wait returned after %v, expected to block for refill", elapsed)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 1) // practically no refill
		if !rl.Allow() {
			t.Fatal("first token must be available")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := rl.Wait(ctx)
		if err != context.DeadlineExceeded {
			t.Errorf("error = %v, want context.DeadlineExceeded", err)
		}
	})
}

func TestTokens(t *testing.T) {
	rl := NewRateLimiter(10, 5)

	if got := rl.Tokens(); got < 4.9 {
		t.Errorf("Tokens() = %v, want about 5 on fresh limiter", got)
	}

	rl.Allow()
	rl.Allow()

	if got := rl.Tokens(); got > 3.5 {
		t.Errorf("Tokens() = %v, want about 3 after two requests", got)
	}
}

func TestMultiLimiter(t *testing.T) {
	t.Run("independent categories", func(t *testing.T) {
		ml := NewMultiLimiter()
		ml.Add("orders", 1, 1)
		ml.Add("market", 1, 5)

		if !ml.Allow("orders") {
			t.Fatal("orders token must be available")
		}
		if ml.Allow("orders") {
			t.Error("orders bucket must be drained")
		}
		// market bucket unaffected by orders drain
		if !ml.Allow("market") {
			t.Error("market token must be available")
		}
	})

	t.Run("unknown category is unlimited", func(t *testing.T) {
		ml := NewMultiLimiter()

		if !ml.Allow("unknown") {
			t.Error("unknown category must not be limited")
		}
		if err := ml.Wait(context.Background(), "unknown"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("get returns configured limiter", func(t *testing.T) {
		ml := NewMultiLimiter()
		ml.Add("orders", 10, 20)

		rl := ml.Get("orders")
		if rl == nil {
			t.Fatal("expected limiter, got nil")
		}
		if rl.Rate() != 10 {
			t.Errorf("Rate() = %v, want 10", rl.Rate())
		}

		if ml.Get("missing") != nil {
			t.Error("expected nil for missing category")
		}
	})
}
