package orderbook

import (
	"context"
	"errors"
	"sync"
	"time"

	"spreadwatch/internal/config"
	"spreadwatch/internal/kv"
	"spreadwatch/internal/metrics"
	"spreadwatch/pkg/utils"
)

// worker.go - пул потребителей очереди кандидатов
//
// Пул снимает кандидатов с очереди queue:orderbook_analysis блокирующим
// чтением. Просроченные кандидаты (старше MaxSignalAge) отбрасываются
// до анализа: спред минутной давности на секундных тиках уже история.

// Длительность одного блокирующего чтения очереди
const popTimeout = 2 * time.Second

// Pool - пул воркеров анализа стаканов
type Pool struct {
	cfg      config.PipelineConfig
	analyzer *Analyzer
	store    *kv.Client
	log      *utils.Logger
}

// NewPool создает пул потребителей очереди кандидатов
func NewPool(cfg config.PipelineConfig, analyzer *Analyzer, store *kv.Client, log *utils.Logger) *Pool {
	return &Pool{
		cfg:      cfg,
		analyzer: analyzer,
		store:    store,
		log:      log.WithComponent("orderbook_pool"),
	}
}

// Run запускает воркеров и блокируется до отмены контекста
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("orderbook pool started", utils.Count(p.cfg.OrderbookWorkers))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.OrderbookWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()

	p.log.Info("orderbook pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		candidate, err := p.store.PopOrderbookCandidate(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) || ctx.Err() != nil {
				continue
			}
			p.log.Error("orderbook queue read failed", utils.Err(err))
			metrics.OrderbookAnalyses.WithLabelValues("error").Inc()
			continue
		}

		now := time.Now().UTC()
		if candidate.AgeAt(now) > p.cfg.MaxSignalAge {
			metrics.OrderbookAnalyses.WithLabelValues("expired").Inc()
			p.log.Debug("stale candidate dropped",
				utils.Symbol(candidate.Symbol),
				utils.Pair(candidate.PairID),
				utils.Dur("age", candidate.AgeAt(now)))
			continue
		}

		signal := p.analyzer.Analyze(ctx, *candidate, now)

		if dropped, err := p.store.PushPendingSignal(ctx, signal); err != nil {
			p.log.Error("pending signal not queued",
				utils.Symbol(candidate.Symbol), utils.Err(err))
		} else if dropped > 0 {
			p.log.Warn("pending queue overflow",
				utils.Int64("dropped", dropped))
		}
	}
}
