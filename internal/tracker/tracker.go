package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"spreadwatch/internal/config"
	"spreadwatch/internal/kv"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/models"
	"spreadwatch/internal/notify"
	"spreadwatch/internal/repository"
	"spreadwatch/internal/signal"
	"spreadwatch/pkg/utils"
)

// tracker.go - координатор отслеживания схождения спредов
//
// Один цикл на процесс. Каждое пробуждение координатор перечитывает
// активные отслеживания и прогоняет созревшие через пул проверок.
// Гарантия: на одно отслеживание не больше одной проверки в полете -
// медленная площадка не дает расписанию наслаиваться.

// EventPublisher рассылает обновления отслеживаний live подписчикам
type EventPublisher interface {
	PublishTracking(t *models.Tracking)
	PublishConvergence(a *models.ConvergenceAnalysis)
}

// Tracker - координатор проверок отслеживаний
type Tracker struct {
	cfg       config.PipelineConfig
	store     *kv.Client
	trackings *repository.ConvergenceRepository
	snapshots *repository.SnapshotRepository
	analyses  *repository.AnalysisRepository
	pairStats *repository.PairStatsRepository
	notifier  notify.Notifier
	publisher EventPublisher
	log       *utils.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New создает координатор отслеживаний
func New(
	cfg config.PipelineConfig,
	store *kv.Client,
	trackings *repository.ConvergenceRepository,
	snapshots *repository.SnapshotRepository,
	analyses *repository.AnalysisRepository,
	pairStats *repository.PairStatsRepository,
	notifier notify.Notifier,
	log *utils.Logger,
) *Tracker {
	return &Tracker{
		cfg:       cfg,
		store:     store,
		trackings: trackings,
		snapshots: snapshots,
		analyses:  analyses,
		pairStats: pairStats,
		notifier:  notifier,
		log:       log.WithComponent("tracker"),
		inFlight:  make(map[string]struct{}),
	}
}

// SetEventPublisher подключает рассылку live событий
func (tr *Tracker) SetEventPublisher(p EventPublisher) { tr.publisher = p }

// Run крутит координатор до отмены контекста
func (tr *Tracker) Run(ctx context.Context) {
	tr.log.Info("convergence tracker started",
		utils.Dur("interval", tr.cfg.TrackerInterval),
		utils.Count(tr.cfg.TrackerWorkers))

	ticker := time.NewTicker(tr.cfg.TrackerInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, tr.cfg.TrackerWorkers)
	for {
		select {
		case <-ctx.Done():
			tr.log.Info("convergence tracker stopped")
			return
		case <-ticker.C:
			tr.wake(ctx, sem)
		}
	}
}

// wake отбирает созревшие отслеживания и раздает их пулу
func (tr *Tracker) wake(ctx context.Context, sem chan struct{}) {
	active, err := tr.trackings.GetActive()
	if err != nil {
		tr.log.Error("active trackings not loaded", utils.Err(err))
		return
	}
	metrics.ActiveTrackings.Set(float64(len(active)))

	now := time.Now().UTC()
	for _, t := range active {
		if !t.IsDue(now, CheckInterval(t.Age(now))) {
			continue
		}
		if !tr.acquire(t.SignalID) {
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			tr.release(t.SignalID)
			return
		}

		t := t
		go func() {
			defer func() {
				<-sem
				tr.release(t.SignalID)
			}()
			tr.check(ctx, t)
		}()
	}
}

func (tr *Tracker) acquire(signalID string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, busy := tr.inFlight[signalID]; busy {
		return false
	}
	tr.inFlight[signalID] = struct{}{}
	return true
}

func (tr *Tracker) release(signalID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.inFlight, signalID)
}

// check выполняет одну проверку отслеживания
func (tr *Tracker) check(ctx context.Context, t *models.Tracking) {
	metrics.TrackingChecks.Inc()
	now := time.Now().UTC()

	if t.Age(now) > time.Duration(tr.cfg.MaxTrackingHours)*time.Hour {
		tr.close(ctx, t, models.CloseReasonExpired, now)
		return
	}

	current, snap, ok := tr.observe(ctx, t, now)
	t.ChecksCount++
	t.LastCheckedAt = &now
	if ok {
		t.CurrentSpreadPct = current
		if current < t.MinSpreadPct {
			t.MinSpreadPct = current
		}
		if current > t.MaxSpreadPct {
			t.MaxSpreadPct = current
		}
	}

	if err := tr.trackings.UpdateProgress(t); err != nil {
		if errors.Is(err, repository.ErrAlreadyClosed) {
			return
		}
		tr.log.Error("tracking progress not saved", utils.SignalID(t.SignalID), utils.Err(err))
	}

	if !ok {
		return
	}
	tr.persistSnapshot(ctx, snap)

	if tr.publisher != nil {
		tr.publisher.PublishTracking(t)
	}

	switch {
	case converged(current, t.InitialSpreadPct):
		tr.close(ctx, t, models.CloseReasonConverged, now)
	case diverged(current, t.InitialSpreadPct):
		tr.handleDivergence(ctx, t, now)
	}
}

// observe перечитывает котировки обеих ног из KV кэша и строит снимок.
// Направление определяется заново: дешевая сторона - покупка.
func (tr *Tracker) observe(ctx context.Context, t *models.Tracking, now time.Time) (float64, *models.Snapshot, bool) {
	venueA, venueB, ok := splitPairID(t.PairID)
	if !ok {
		tr.log.Error("malformed pair_id", utils.SignalID(t.SignalID), utils.Pair(t.PairID))
		return 0, nil, false
	}

	qa, errA := tr.store.GetQuote(ctx, venueA, t.Symbol)
	qb, errB := tr.store.GetQuote(ctx, venueB, t.Symbol)
	if errA != nil || errB != nil || !qa.HasBothSides() || !qb.HasBothSides() {
		return 0, nil, false
	}

	buy, sell := qa, qb
	if qb.Ask < qa.Ask {
		buy, sell = qb, qa
	}
	// Знак сохраняем: пересекшийся рынок дает отрицательный спред
	current := utils.CalculateSpread(sell.Bid, buy.Ask)

	snap := &models.Snapshot{
		SignalID:   t.SignalID,
		SnapshotAt: now,
		BuyBid:     buy.Bid,
		BuyAsk:     buy.Ask,
		SellBid:    sell.Bid,
		SellAsk:    sell.Ask,
		SpreadPct:  current,
	}
	snap.BuyDepthUSD = tr.lastKnownDepth(ctx, buy.VenueID, t.Symbol)
	snap.SellDepthUSD = tr.lastKnownDepth(ctx, sell.VenueID, t.Symbol)
	return current, snap, true
}

// lastKnownDepth возвращает последнюю точку истории глубины площадки
func (tr *Tracker) lastKnownDepth(ctx context.Context, venueID, symbol string) float64 {
	history, err := tr.store.DepthHistory(ctx, venueID, symbol)
	if err != nil || len(history) == 0 {
		return 0
	}
	last := history[len(history)-1]
	return last.BidDepthUSD + last.AskDepthUSD
}

// persistSnapshot пишет снимок: KV немедленно, durable копия с конвейера
// не снимается - ее отказ только метрика
func (tr *Tracker) persistSnapshot(ctx context.Context, snap *models.Snapshot) {
	seq, err := tr.store.NextSnapshotSeq(ctx, snap.SignalID)
	if err != nil {
		tr.log.Error("snapshot seq not issued", utils.SignalID(snap.SignalID), utils.Err(err))
		return
	}
	snap.Seq = seq

	if err := tr.store.PushSnapshot(ctx, snap); err != nil {
		tr.log.Error("snapshot not cached", utils.SignalID(snap.SignalID), utils.Err(err))
	}

	go func() {
		if err := tr.snapshots.Insert(snap); err != nil {
			metrics.RecordPersistenceFailure("convergence_snapshots")
		}
	}()
}

// close выполняет охраняемое закрытие; побочные эффекты - только победителю
func (tr *Tracker) close(ctx context.Context, t *models.Tracking, reason models.CloseReason, now time.Time) {
	if err := tr.trackings.Close(t.SignalID, reason, now); err != nil {
		if !errors.Is(err, repository.ErrAlreadyClosed) {
			tr.log.Error("tracking not closed", utils.SignalID(t.SignalID), utils.Err(err))
		}
		return
	}

	minutes := t.DurationMinutes(now)
	metrics.RecordTrackingClose(string(reason), minutes)
	tr.log.Info("tracking closed",
		utils.SignalID(t.SignalID),
		utils.Symbol(t.Symbol),
		utils.String("reason", string(reason)),
		utils.Float64("minutes", minutes))

	tr.refreshPairStats(t)

	if reason == models.CloseReasonConverged {
		go tr.analyze(context.WithoutCancel(ctx), t, now)
	}
}

// analyze строит пост-анализ схождения вне критического пути
func (tr *Tracker) analyze(ctx context.Context, t *models.Tracking, now time.Time) {
	snaps, err := tr.store.Snapshots(ctx, t.SignalID)
	if err != nil {
		tr.log.Error("snapshots not loaded for analysis", utils.SignalID(t.SignalID), utils.Err(err))
		return
	}

	analysis := AnalyzeConvergence(t, snaps, now)
	if analysis == nil {
		tr.log.Debug("too few snapshots for analysis", utils.SignalID(t.SignalID))
		return
	}

	if err := tr.analyses.Upsert(analysis); err != nil {
		metrics.RecordPersistenceFailure("convergence_analysis")
		tr.log.Error("analysis not saved", utils.SignalID(t.SignalID), utils.Err(err))
		return
	}

	// Durable копии снимков и анализа есть - KV список больше не нужен
	if err := tr.store.DeleteSnapshots(ctx, t.SignalID); err != nil {
		tr.log.Warn("snapshots not cleaned", utils.SignalID(t.SignalID), utils.Err(err))
	}

	if tr.publisher != nil {
		tr.publisher.PublishConvergence(analysis)
	}
}

// handleDivergence шлет алерт (не чаще раза в час на сигнал) и закрывает
func (tr *Tracker) handleDivergence(ctx context.Context, t *models.Tracking, now time.Time) {
	first, err := tr.store.MarkDivergenceAlerted(ctx, t.SignalID)
	if err != nil {
		tr.log.Error("divergence mark failed", utils.SignalID(t.SignalID), utils.Err(err))
	}
	if first {
		if msgID := tr.notifier.SendAlert(ctx, signal.FormatDivergenceAlert(t), nil); msgID == 0 {
			tr.log.Warn("divergence alert not delivered", utils.SignalID(t.SignalID))
		}
	}

	tr.close(ctx, t, models.CloseReasonDiverged, now)
}

// refreshPairStats пересчитывает агрегаты пары после закрытия
func (tr *Tracker) refreshPairStats(t *models.Tracking) {
	if err := tr.pairStats.Refresh(t.PairID, t.Symbol); err != nil {
		metrics.RecordPersistenceFailure("pair_statistics")
		tr.log.Error("pair stats not refreshed", utils.Pair(t.PairID), utils.Err(err))
	}
}
