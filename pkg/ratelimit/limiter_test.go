package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		burst     float64
		wantRate  float64
		wantBurst float64
	}{
		{"explicit values", 10, 20, 10, 20},
		{"zero rate uses default", 0, 0, 5, 10},
		{"negative rate uses default", -1, 0, 5, 10},
		{"burst below rate raised to rate", 10, 5, 10, 10},
		{"zero burst doubles rate", 8, 0, 8, 16},
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

func TestAllow_DrainsBucket(t *testing.T) {
	rl := NewRateLimiter(1, 3) // медленное пополнение, burst 3

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() #%d = false, want true (bucket starts full)", i+1)
		}
	}

	if rl.Allow() {
		t.Error("Allow() after draining burst = true, want false")
	}
}

func TestAllowN(t *testing.T) {
	rl := NewRateLimiter(1, 5)

	if !rl.AllowN(3) {
		t.Error("AllowN(3) = false, want true")
	}
	if rl.AllowN(3) {
		t.Error("AllowN(3) with ~2 tokens left = true, want false")
	}
	if !rl.AllowN(0) {
		t.Error("AllowN(0) = false, want true")
	}
}

func TestWait_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(100, 1) // 1 токен, пополнение 100/сек

	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	// Второй токен появится через ~10ms
	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 5*time.Millisecond {
		t.Errorf("second Wait() returned after %v, expected to block for refill", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	rl := NewRateLimiter(0.001, 1) // практически без пополнения
	rl.Allow()                     // опустошаем ведро

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestWaitN(t *testing.T) {
	rl := NewRateLimiter(1000, 5)

	if err := rl.WaitN(context.Background(), 3); err != nil {
		t.Errorf("WaitN(3) error = %v", err)
	}
	if err := rl.WaitN(context.Background(), 0); err != nil {
		t.Errorf("WaitN(0) error = %v", err)
	}
}

func TestTokens_Refill(t *testing.T) {
	rl := NewRateLimiter(100, 10)

	for i := 0; i < 10; i++ {
		rl.Allow()
	}
	if rl.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond) // ~5 токенов восстановится

	tokens := rl.Tokens()
	if tokens < 2 || tokens > 10 {
		t.Errorf("Tokens() after refill = %v, want within (2, 10]", tokens)
	}
}

func TestSetRate(t *testing.T) {
	rl := NewRateLimiter(5, 10)

	rl.SetRate(20)
	if rl.Rate() != 20 {
		t.Errorf("Rate() after SetRate(20) = %v, want 20", rl.Rate())
	}

	rl.SetRate(-1) // игнорируется
	if rl.Rate() != 20 {
		t.Errorf("Rate() after SetRate(-1) = %v, want unchanged 20", rl.Rate())
	}
}

func TestSetBurst_ClampsTokens(t *testing.T) {
	rl := NewRateLimiter(1, 10)

	rl.SetBurst(3)
	if rl.Burst() != 3 {
		t.Errorf("Burst() = %v, want 3", rl.Burst())
	}
	if tokens := rl.Tokens(); tokens > 3 {
		t.Errorf("Tokens() = %v, want clamped to <= 3", tokens)
	}
}

func TestConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(1000, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50 (burst 100 covers all goroutines)", allowed)
	}
}

// ============================================================
// Registry
// ============================================================

func TestRegistry_LazyCreation(t *testing.T) {
	reg := NewRegistry(5, 10)

	first := reg.Get("binance_spot")
	second := reg.Get("binance_spot")

	if first != second {
		t.Error("Get() returned different limiters for the same venue")
	}
	if first.Rate() != 5 {
		t.Errorf("default limiter Rate() = %v, want 5", first.Rate())
	}
}

func TestRegistry_Configure(t *testing.T) {
	reg := NewRegistry(5, 10)
	reg.Configure("binance_spot", 20, 40)

	limiter := reg.Get("binance_spot")
	if limiter.Rate() != 20 {
		t.Errorf("configured Rate() = %v, want 20", limiter.Rate())
	}
	if limiter.Burst() != 40 {
		t.Errorf("configured Burst() = %v, want 40", limiter.Burst())
	}

	// Другая площадка получает дефолт
	other := reg.Get("dexscreener_dex")
	if other.Rate() != 5 {
		t.Errorf("default venue Rate() = %v, want 5", other.Rate())
	}
}

func TestRegistry_WaitAndAllow(t *testing.T) {
	reg := NewRegistry(1000, 10)

	if err := reg.Wait(context.Background(), "bybit_futures"); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	if !reg.Allow("bybit_futures") {
		t.Error("Allow() = false, want true")
	}
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	reg := NewRegistry(10, 20)

	var wg sync.WaitGroup
	limiters := make([]*RateLimiter, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			limiters[idx] = reg.Get("hyperliquid_perp")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 20; i++ {
		if limiters[i] != limiters[0] {
			t.Fatal("concurrent Get() created more than one limiter for the venue")
		}
	}
}

func BenchmarkAllow(b *testing.B) {
	rl := NewRateLimiter(float64(b.N), float64(b.N))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rl.Allow()
	}
}

func BenchmarkRegistryGet(b *testing.B) {
	reg := NewRegistry(10, 20)
	reg.Get("binance_spot")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Get("binance_spot")
	}
}
