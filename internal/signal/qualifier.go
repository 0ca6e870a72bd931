package signal

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"spreadwatch/internal/kv"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/models"
	"spreadwatch/internal/notify"
	"spreadwatch/internal/repository"
	"spreadwatch/pkg/utils"
)

// qualifier.go - квалификация сигналов и эмиссия алертов
//
// Единственный потребитель очереди signals:pending. Каждый сырой
// сигнал проходит последовательность фильтров; выжившие группируются
// по символу: один алерт на символ, лучшая пара в заголовке, до
// четырех альтернатив строкой.
//
// Порядок побочных эффектов при эмиссии важен: cooldown встает только
// после успешной доставки, отказ мессенджера оставляет право на
// повтор при следующем совпадении.

const (
	popTimeout   = 2 * time.Second
	drainTimeout = 100 * time.Millisecond

	// Потолок сигналов, обрабатываемых одним заходом
	batchLimit = 20

	// Альтернативные пары в одном алерте
	maxAlternates = 4
)

// ContextProvider обогащает сигнал исторической нормой и z-score.
// Возвращает nil, когда данных недостаточно.
type ContextProvider interface {
	Baseline(ctx context.Context, pairID, symbol string, currentPct float64) *models.BaselineContext
	ZScore(ctx context.Context, pairID string) *models.ZScoreContext
}

// SettingsProvider отдает актуальные настройки конвейера
type SettingsProvider interface {
	Current() models.Settings
}

// EventPublisher рассылает эмитированные сигналы live подписчикам
type EventPublisher interface {
	PublishSignal(sig *models.Signal)
}

// Qualifier - конвейер квалификации сигналов
type Qualifier struct {
	store     *kv.Client
	signals   *repository.SignalRepository
	spreadLog *repository.SpreadLogRepository
	trackings *repository.ConvergenceRepository
	notifier  notify.Notifier
	settings  SettingsProvider
	contexts  ContextProvider
	publisher EventPublisher
	log       *utils.Logger
}

// NewQualifier создает квалификатор сигналов
func NewQualifier(
	store *kv.Client,
	signals *repository.SignalRepository,
	spreadLog *repository.SpreadLogRepository,
	trackings *repository.ConvergenceRepository,
	notifier notify.Notifier,
	settings SettingsProvider,
	log *utils.Logger,
) *Qualifier {
	return &Qualifier{
		store:     store,
		signals:   signals,
		spreadLog: spreadLog,
		trackings: trackings,
		notifier:  notifier,
		settings:  settings,
		log:       log.WithComponent("qualifier"),
	}
}

// SetContextProvider подключает источник baseline/z-score контекста
func (q *Qualifier) SetContextProvider(p ContextProvider) { q.contexts = p }

// SetEventPublisher подключает рассылку live событий
func (q *Qualifier) SetEventPublisher(p EventPublisher) { q.publisher = p }

// Run потребляет очередь до отмены контекста
func (q *Qualifier) Run(ctx context.Context) {
	q.log.Info("signal qualifier started")
	for {
		if ctx.Err() != nil {
			q.log.Info("signal qualifier stopped")
			return
		}

		batch := q.popBatch(ctx)
		if len(batch) == 0 {
			continue
		}

		for symbol, group := range groupBySymbol(batch) {
			q.processGroup(ctx, symbol, group)
		}
	}
}

// popBatch снимает пачку сигналов: одно блокирующее чтение плюс
// быстрый добор хвоста очереди для группировки по символу
func (q *Qualifier) popBatch(ctx context.Context) []*models.Signal {
	first, err := q.store.PopPendingSignal(ctx, popTimeout)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) && ctx.Err() == nil {
			q.log.Error("pending queue read failed", utils.Err(err))
		}
		return nil
	}

	batch := []*models.Signal{first}
	for len(batch) < batchLimit {
		next, err := q.store.PopPendingSignal(ctx, drainTimeout)
		if err != nil {
			break
		}
		batch = append(batch, next)
	}
	return batch
}

// groupBySymbol раскладывает пачку по символам
func groupBySymbol(batch []*models.Signal) map[string][]*models.Signal {
	groups := make(map[string][]*models.Signal)
	for _, sig := range batch {
		groups[sig.Spread.Symbol] = append(groups[sig.Spread.Symbol], sig)
	}
	return groups
}

// processGroup квалифицирует группу одного символа и эмитирует алерт
func (q *Qualifier) processGroup(ctx context.Context, symbol string, group []*models.Signal) {
	now := time.Now().UTC()

	var qualified []*models.Signal
	for _, sig := range group {
		if reason, ok := q.qualify(ctx, sig, now); !ok {
			q.reject(sig, reason, now)
		} else {
			qualified = append(qualified, sig)
		}
	}
	if len(qualified) == 0 {
		return
	}

	// Лучшая пара - по реальному спреду
	sort.Slice(qualified, func(i, j int) bool {
		return qualified[i].Analysis.RealPct > qualified[j].Analysis.RealPct
	})
	best := qualified[0]
	alternates := qualified[1:]
	if len(alternates) > maxAlternates {
		alternates = alternates[:maxAlternates]
	}

	q.emit(ctx, best, alternates, now)
}

// qualify прогоняет один сигнал через фильтры; возвращает причину отказа
func (q *Qualifier) qualify(ctx context.Context, sig *models.Signal, now time.Time) (string, bool) {
	settings := q.settings.Current()
	spread := sig.Spread
	nowMs := now.UnixMilli()

	blocked, kind, err := q.store.IsBlocked(ctx, spread.Symbol, spread.PairID, spread.LowVenueID, spread.HighVenueID)
	if err != nil {
		q.log.Error("blacklist check failed", utils.Symbol(spread.Symbol), utils.Err(err))
	}
	if blocked {
		q.log.Debug("signal blocked by blacklist",
			utils.Symbol(spread.Symbol), utils.String("kind", kind))
		return "blacklist", false
	}

	if cooling, err := q.store.InCooldown(ctx, spread.Symbol, spread.PairID); err != nil {
		q.log.Error("cooldown check failed", utils.Symbol(spread.Symbol), utils.Err(err))
	} else if cooling {
		return "cooldown_blocked", false
	}

	buyQuote, _ := q.store.GetQuote(ctx, spread.LowVenueID, spread.Symbol)
	sellQuote, _ := q.store.GetQuote(ctx, spread.HighVenueID, spread.Symbol)

	if sig.Type == "" {
		sig.Type = classifyType(spread, buyQuote, sellQuote, nowMs, settings.MaxPriceAgeMs)
	}
	sig.StrategyType, _ = strategyFor(spread.Category)

	sig.SafetyChecks = buildSafetyChecks(sig, buyQuote, sellQuote, settings, nowMs)
	sig.SafetyChecks = append(sig.SafetyChecks, q.depthChecks(ctx, sig)...)
	if !sig.SafetyPassed() {
		sig.Type = models.SignalTypeInvalid
		q.log.Debug("signal failed safety checks",
			utils.Symbol(spread.Symbol), utils.Strings("failed", sig.FailedChecks()))
		return "safety", false
	}

	if !settings.SignalTypeEnabled(sig.Type) {
		return "type_disabled", false
	}

	if sig.Analysis.RealPct < settings.MinSpreadPct {
		return "below_floor", false
	}

	if q.contexts != nil {
		sig.Baseline = q.contexts.Baseline(ctx, spread.PairID, spread.Symbol, sig.Analysis.RealPct)
		sig.ZScore = q.contexts.ZScore(ctx, spread.PairID)
	}
	return "", true
}

// depthChecks сравнивает глубину обеих ног с исторической нормой
func (q *Qualifier) depthChecks(ctx context.Context, sig *models.Signal) []models.SafetyCheck {
	if sig.Analysis.Fallback {
		return nil
	}

	buyHistory, _ := q.store.DepthHistory(ctx, sig.Spread.LowVenueID, sig.Spread.Symbol)
	sellHistory, _ := q.store.DepthHistory(ctx, sig.Spread.HighVenueID, sig.Spread.Symbol)

	buyDepth := sig.Analysis.MaxBuyUSD + sig.Analysis.ExitBuySideUSD
	sellDepth := sig.Analysis.MaxSellUSD + sig.Analysis.ExitSellSideUSD

	return []models.SafetyCheck{
		checkDepthVsHistory(sig.Spread.LowVenueID, buyDepth, buyHistory),
		checkDepthVsHistory(sig.Spread.HighVenueID, sellDepth, sellHistory),
	}
}

// reject фиксирует отказ в durable журнале и метриках
func (q *Qualifier) reject(sig *models.Signal, reason string, now time.Time) {
	metrics.RecordRejection(reason)
	if err := q.spreadLog.Insert(spreadLogEntry(sig, now, false, reason)); err != nil {
		metrics.RecordPersistenceFailure("spread_log")
		q.log.Error("rejection not logged", utils.Symbol(sig.Spread.Symbol), utils.Err(err))
	}
}

// emit сохраняет лучший сигнал, доставляет алерт и взводит cooldown
func (q *Qualifier) emit(ctx context.Context, best *models.Signal, alternates []*models.Signal, now time.Time) {
	settings := q.settings.Current()

	_, prefix := strategyFor(best.Spread.Category)
	best.ID = prefix + "-" + uuid.NewString()[:8]
	best.CreatedAt = now

	if err := q.signals.Create(best); err != nil {
		metrics.RecordPersistenceFailure("signals")
		q.log.Error("signal not persisted", utils.Symbol(best.Spread.Symbol), utils.Err(err))
		return
	}

	text := FormatAlert(best, alternates)
	msgID := q.notifier.SendAlert(ctx, text, nil)
	if msgID == 0 {
		// Отказ доставки: cooldown не взводим, следующее совпадение
		// получит вторую попытку
		q.log.Warn("alert not delivered", utils.SignalID(best.ID), utils.Symbol(best.Spread.Symbol))
		return
	}

	best.TelegramMsgID = msgID
	if err := q.signals.SetTelegramMsgID(best.ID, msgID); err != nil {
		q.log.Error("telegram_msg_id not saved", utils.SignalID(best.ID), utils.Err(err))
	}

	if err := q.trackings.Create(&models.Tracking{
		SignalID:         best.ID,
		Symbol:           best.Spread.Symbol,
		PairID:           best.Spread.PairID,
		InitialSpreadPct: best.Spread.SpreadPct,
		StartedAt:        now,
	}); err != nil {
		metrics.RecordPersistenceFailure("spread_convergence")
		q.log.Error("tracking not started", utils.SignalID(best.ID), utils.Err(err))
	}

	cooldown := settings.CooldownFor(best.Type)
	if _, err := q.store.SetCooldown(ctx, best.Spread.Symbol, best.Spread.PairID, cooldown); err != nil {
		q.log.Error("cooldown not set", utils.SignalID(best.ID), utils.Err(err))
	}
	for _, alt := range alternates {
		// Альтернативы вошли в алерт - их пары тоже остывают
		if _, err := q.store.SetCooldown(ctx, alt.Spread.Symbol, alt.Spread.PairID, cooldown); err != nil {
			q.log.Error("cooldown not set", utils.Pair(alt.Spread.PairID), utils.Err(err))
		}
	}

	if err := q.store.MarkSymbolTracked(ctx, best.Spread.Symbol); err != nil {
		q.log.Error("symbol tracking flag not set", utils.Symbol(best.Spread.Symbol), utils.Err(err))
	}
	if err := q.store.RecordProcessedAlert(ctx, best.ID, now); err != nil {
		q.log.Error("processed alert not recorded", utils.SignalID(best.ID), utils.Err(err))
	}
	if err := q.store.AddRealtimeCoin(ctx, best.Spread.Symbol); err != nil {
		q.log.Error("realtime coin not marked", utils.Symbol(best.Spread.Symbol), utils.Err(err))
	}
	if err := q.store.IncrAlertStat(ctx, string(best.Type)); err != nil {
		q.log.Error("alert stat not incremented", utils.Err(err))
	}

	for _, logged := range append([]*models.Signal{best}, alternates...) {
		entry := spreadLogEntry(logged, now, true, "")
		entry.SignalID = best.ID
		if err := q.spreadLog.Insert(entry); err != nil {
			metrics.RecordPersistenceFailure("spread_log")
			q.log.Error("emission not logged", utils.Pair(logged.Spread.PairID), utils.Err(err))
		}
	}

	metrics.RecordEmission(string(best.Type), string(best.Spread.Category))
	if q.publisher != nil {
		q.publisher.PublishSignal(best)
	}

	q.log.Info("signal emitted",
		utils.SignalID(best.ID),
		utils.Symbol(best.Spread.Symbol),
		utils.Pair(best.Spread.PairID),
		utils.String("type", string(best.Type)),
		utils.Float64("real_pct", best.Analysis.RealPct),
		utils.Count(len(alternates)))
}

// spreadLogEntry строит строку журнала по сигналу
func spreadLogEntry(sig *models.Signal, now time.Time, passed bool, reason string) *models.SpreadLogEntry {
	return &models.SpreadLogEntry{
		Ts:               now,
		Symbol:           sig.Spread.Symbol,
		Strategy:         sig.StrategyType,
		LowVenue:         sig.Spread.LowVenueID,
		HighVenue:        sig.Spread.HighVenueID,
		LowPrice:         sig.Spread.BuyPrice,
		HighPrice:        sig.Spread.SellPrice,
		SpreadPct:        sig.Spread.SpreadPct,
		NetSpreadPct:     sig.Analysis.RealPct,
		LiquidityUSD:     sig.Spread.LiquidityUSD,
		PassedValidation: passed,
		RejectionReason:  reason,
		SignalID:         sig.ID,
	}
}
