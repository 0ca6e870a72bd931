package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - Token Bucket для контроля частоты запросов к публичным API площадок.
//
// Алгоритм Token Bucket:
// - Ведро наполняется токенами с постоянной скоростью (rate токенов/сек)
// - Максимальная ёмкость ведра = burst (позволяет короткие всплески)
// - Каждый запрос потребляет 1 токен
// - Если токенов нет, запрос ждёт или отклоняется
//
// Burst важен для анализа стаканов: по одному сигналу опрашиваются
// сразу обе стороны пары, а постоянный фон (опрос цен раз в секунду)
// сглаживается скоростью пополнения.
//
// Использование:
//
//	limiter := NewRateLimiter(5, 10) // 5 req/sec, burst 10
//	err := limiter.Wait(ctx)         // блокирующее ожидание
//	if limiter.Allow() { ... }       // неблокирующая проверка
type RateLimiter struct {
	rate       float64   // токенов в секунду
	burst      float64   // максимальная ёмкость (burst capacity)
	tokens     float64   // текущее количество токенов
	lastRefill time.Time // время последнего пополнения
	mu         sync.Mutex
}

// NewRateLimiter создаёт новый rate limiter.
//
// Параметры:
//   - rate: количество запросов в секунду
//   - burst: максимальный burst (обычно 2x от rate)
//
// Ориентиры публичных лимитов:
//   - Binance:     20 req/sec на IP (weight-based, bulk тикеры дёшевы)
//   - Bybit:       10 req/sec на IP для market data
//   - Hyperliquid: 10 req/sec на /info
//   - DexScreener: 5 req/sec (300 req/min)
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 5 // дефолт 5 req/sec
	}
	if burst <= 0 {
		burst = rate * 2 // дефолт burst = 2x rate
	}
	if burst < rate {
		burst = rate
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // начинаем с полным ведром
		lastRefill: time.Now(),
	}
}

// refill пополняет токены на основе прошедшего времени
// ВАЖНО: вызывается под lock'ом
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	rl.tokens += elapsed * rl.rate

	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}

	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста.
//
// Возвращает:
//   - nil: токен получен, можно выполнять запрос
//   - ctx.Err(): контекст отменён (timeout или cancel)
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		// Время ожидания до следующего токена
		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
			// Повторяем попытку получить токен
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitN блокирует до получения n токенов или отмены контекста.
// Используется при постраничном опросе DEX агрегатора.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	for i := 0; i < n; i++ {
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Allow проверяет доступность токена без блокировки.
//
// Возвращает:
//   - true: токен получен, можно выполнять запрос
//   - false: нет токенов, запрос нужно отложить
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	return false
}

// AllowN проверяет доступность n токенов без блокировки
func (rl *RateLimiter) AllowN(n int) bool {
	if n <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return true
	}

	return false
}

// Tokens возвращает текущее количество доступных токенов.
// Для мониторинга и отладки.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Rate возвращает скорость пополнения токенов (токенов/сек)
func (rl *RateLimiter) Rate() float64 {
	return rl.rate
}

// Burst возвращает максимальную ёмкость (burst capacity)
func (rl *RateLimiter) Burst() float64 {
	return rl.burst
}

// SetRate изменяет скорость пополнения токенов.
// Потокобезопасно.
func (rl *RateLimiter) SetRate(rate float64) {
	if rate <= 0 {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill() // фиксируем текущие токены перед изменением rate
	rl.rate = rate
}

// SetBurst изменяет максимальную ёмкость.
// Потокобезопасно.
func (rl *RateLimiter) SetBurst(burst float64) {
	if burst <= 0 {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.burst = burst
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
}

// ============================================================
// Registry - лимитеры по площадкам
// ============================================================

// Registry ведёт отдельный rate limiter на каждую площадку.
//
// Лимитер создаётся лениво при первом обращении с дефолтной скоростью,
// для конкретных площадок скорость задаётся через Configure:
//
//	reg := ratelimit.NewRegistry(5, 10)
//	reg.Configure("binance_spot", 20, 40)
//	err := reg.Wait(ctx, "binance_spot")
type Registry struct {
	limiters     map[string]*RateLimiter
	defaultRate  float64
	defaultBurst float64
	mu           sync.RWMutex
}

// NewRegistry создаёт новый Registry с дефолтными rate/burst
// для площадок без явной конфигурации.
func NewRegistry(defaultRate, defaultBurst float64) *Registry {
	if defaultRate <= 0 {
		defaultRate = 5
	}
	if defaultBurst <= 0 {
		defaultBurst = defaultRate * 2
	}
	return &Registry{
		limiters:     make(map[string]*RateLimiter),
		defaultRate:  defaultRate,
		defaultBurst: defaultBurst,
	}
}

// Configure задаёт rate limiter для площадки.
// Существующий лимитер заменяется.
func (r *Registry) Configure(venueID string, rate, burst float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[venueID] = NewRateLimiter(rate, burst)
}

// Get возвращает limiter площадки, создавая его при необходимости
func (r *Registry) Get(venueID string) *RateLimiter {
	r.mu.RLock()
	limiter, ok := r.limiters[venueID]
	r.mu.RUnlock()
	if ok {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Перепроверяем под write lock'ом
	if limiter, ok = r.limiters[venueID]; ok {
		return limiter
	}
	limiter = NewRateLimiter(r.defaultRate, r.defaultBurst)
	r.limiters[venueID] = limiter
	return limiter
}

// Wait ожидает токен для указанной площадки
func (r *Registry) Wait(ctx context.Context, venueID string) error {
	return r.Get(venueID).Wait(ctx)
}

// Allow проверяет доступность токена для площадки
func (r *Registry) Allow(venueID string) bool {
	return r.Get(venueID).Allow()
}
