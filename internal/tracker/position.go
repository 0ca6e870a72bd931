package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spreadwatch/internal/config"
	"spreadwatch/internal/kv"
	"spreadwatch/internal/models"
	"spreadwatch/internal/notify"
	"spreadwatch/internal/repository"
	"spreadwatch/pkg/utils"
)

// position.go - трекер пользовательских позиций
//
// Пользователь сообщил "вошел" - трекер раз в 30 секунд сверяет
// текущий спред пары с целевым (по умолчанию половина спреда входа)
// и уведомляет о достижении цели ровно один раз: гонку параллельных
// циклов разрешает охраняемый переход статуса в хранилище.

// PositionTracker следит за открытыми позициями
type PositionTracker struct {
	cfg       config.PipelineConfig
	store     *kv.Client
	positions *repository.PositionRepository
	notifier  notify.Notifier
	log       *utils.Logger
}

// NewPositionTracker создает трекер позиций
func NewPositionTracker(cfg config.PipelineConfig, store *kv.Client, positions *repository.PositionRepository, notifier notify.Notifier, log *utils.Logger) *PositionTracker {
	return &PositionTracker{
		cfg:       cfg,
		store:     store,
		positions: positions,
		notifier:  notifier,
		log:       log.WithComponent("positions"),
	}
}

// Run крутит цикл проверок до отмены контекста
func (pt *PositionTracker) Run(ctx context.Context) {
	pt.log.Info("position tracker started", utils.Dur("interval", pt.cfg.PositionInterval))

	ticker := time.NewTicker(pt.cfg.PositionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pt.log.Info("position tracker stopped")
			return
		case <-ticker.C:
			pt.tick(ctx)
		}
	}
}

func (pt *PositionTracker) tick(ctx context.Context) {
	open, err := pt.positions.GetOpen()
	if err != nil {
		pt.log.Error("open positions not loaded", utils.Err(err))
		return
	}

	for _, p := range open {
		pt.checkPosition(ctx, p)
	}
}

// checkPosition сверяет одну позицию с текущим спредом пары
func (pt *PositionTracker) checkPosition(ctx context.Context, p *models.Position) {
	current, ok := pt.currentSpread(ctx, p.PairID, p.Symbol)
	if !ok {
		return
	}

	if err := pt.positions.UpdateCurrent(p.ID, current); err != nil {
		if !errors.Is(err, repository.ErrAlreadyClosed) {
			pt.log.Error("position spread not updated", utils.String("position_id", p.ID), utils.Err(err))
		}
		return
	}

	if p.Status != models.PositionStatusTracking || current > p.TargetSpreadPct {
		return
	}

	now := time.Now().UTC()
	if err := pt.positions.MarkNotified(p.ID, now); err != nil {
		// Проиграли гонку либо позиция уже закрыта - уведомлять не нам
		if !errors.Is(err, repository.ErrAlreadyClosed) {
			pt.log.Error("position not marked notified", utils.String("position_id", p.ID), utils.Err(err))
		}
		return
	}

	text := fmt.Sprintf(
		"🎯 <b>%s</b> цель достигнута\nВход %.2f%%, цель %.2f%%, сейчас %.2f%%\nID: <code>%s</code>",
		p.Symbol, p.EntrySpreadPct, p.TargetSpreadPct, current, p.SignalID)
	if msgID := pt.notifier.SendAlert(ctx, text, nil); msgID == 0 {
		pt.log.Warn("target alert not delivered", utils.String("position_id", p.ID))
	}
}

// currentSpread восстанавливает текущий спред пары из кэша котировок
func (pt *PositionTracker) currentSpread(ctx context.Context, pairID, symbol string) (float64, bool) {
	venueA, venueB, ok := splitPairID(pairID)
	if !ok {
		return 0, false
	}

	qa, errA := pt.store.GetQuote(ctx, venueA, symbol)
	qb, errB := pt.store.GetQuote(ctx, venueB, symbol)
	if errA != nil || errB != nil || !qa.HasBothSides() || !qb.HasBothSides() {
		return 0, false
	}

	buy, sell := qa, qb
	if qb.Ask < qa.Ask {
		buy, sell = qb, qa
	}
	return utils.CalculateSpread(sell.Bid, buy.Ask), true
}
