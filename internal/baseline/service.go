package baseline

import (
	"context"
	"errors"
	"sync"
	"time"

	"spreadwatch/internal/kv"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/models"
	"spreadwatch/internal/repository"
	"spreadwatch/pkg/utils"
)

// service.go - базовые распределения спредов: горячий и холодный ярусы
//
// Каждый тик коллектора сыплет сэмплы в почасовые сортированные
// множества KV (горячий ярус). При смене часа сервис агрегирует
// закрытый час и сливает его в durable таблицу с бегущими итогами
// (холодный ярус), после чего горячий ключ удаляется. Потребители
// читают только холодный ярус.

const (
	// Ретенция холодного яруса
	retentionHours = 168

	// Норма отдается потребителю только после суток накопления
	minBaselineAge = 24 * time.Hour

	// Окно нормы по умолчанию
	baselineWindowDays = 7

	// Минимум наблюдений для z-score
	minZScoreSamples = 30

	// Множитель аномалии: current > P95 * anomalyFactor
	anomalyFactor = 1.5
)

// hotKey - наблюдавшаяся в текущем часе комбинация пары и символа
type hotKey struct {
	pairID string
	symbol string
}

// Service копит сэмплы и отдает историческую норму
type Service struct {
	store   *kv.Client
	buckets *repository.BaselineRepository
	zscores *repository.ZScoreRepository
	log     *utils.Logger

	mu       sync.Mutex
	observed map[hotKey]struct{} // ключи, сыпавшиеся в текущем часе
	hour     time.Time
}

// NewService создает сервис базовых распределений
func NewService(store *kv.Client, buckets *repository.BaselineRepository, zscores *repository.ZScoreRepository, log *utils.Logger) *Service {
	return &Service{
		store:    store,
		buckets:  buckets,
		zscores:  zscores,
		log:      log.WithComponent("baseline"),
		observed: make(map[hotKey]struct{}),
	}
}

// ObserveSpreads принимает батч спредов тика в горячий ярус
func (s *Service) ObserveSpreads(ctx context.Context, spreads []models.Spread) {
	now := time.Now().UTC()
	s.noteHour(now)

	for i := range spreads {
		sp := &spreads[i]
		if err := s.store.AddBaselineSample(ctx, sp.PairID, sp.Symbol, now, sp.SpreadPct); err != nil {
			s.log.Error("baseline sample not stored", utils.Pair(sp.PairID), utils.Err(err))
			continue
		}
		s.remember(sp.PairID, sp.Symbol)

		if sp.BuyPrice > 0 {
			ratio := sp.SellPrice / sp.BuyPrice
			if err := s.store.AddRatioSample(ctx, sp.PairID, now, ratio); err != nil {
				s.log.Error("ratio sample not stored", utils.Pair(sp.PairID), utils.Err(err))
			}
		}
	}
}

// noteHour фиксирует смену часа; сами ключи сбрасывает flushHour
func (s *Service) noteHour(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hour.IsZero() {
		s.hour = now.Truncate(time.Hour)
	}
}

func (s *Service) remember(pairID, symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed[hotKey{pairID: pairID, symbol: symbol}] = struct{}{}
}

// Run следит за сменой часа и сбрасывает закрытые часы
func (s *Service) Run(ctx context.Context) {
	s.log.Info("baseline service started")

	// Час фиксируется сразу: корзины, оставшиеся в KV от прошлого
	// процесса, будут сведены на ближайшей смене часа даже без
	// новых наблюдений
	s.noteHour(time.Now().UTC())

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("baseline service stopped")
			return
		case <-ticker.C:
			s.maybeFlush(ctx, time.Now().UTC())
		}
	}
}

// maybeFlush сбрасывает предыдущий час, если текущий час сменился
func (s *Service) maybeFlush(ctx context.Context, now time.Time) {
	currentHour := now.Truncate(time.Hour)

	s.mu.Lock()
	if s.hour.IsZero() || s.hour.Equal(currentHour) {
		s.mu.Unlock()
		return
	}
	closedHour := s.hour
	keys := s.observed
	s.observed = make(map[hotKey]struct{})
	s.hour = currentHour
	s.mu.Unlock()

	// In-memory учет пуст после рестарта; скан ключей добирает
	// корзины закрытого часа, насыпанные прошлым процессом
	if refs, err := s.store.ScanBaselineHourKeys(ctx, closedHour); err != nil {
		s.log.Warn("baseline key scan failed", utils.Err(err))
	} else {
		for _, ref := range refs {
			keys[hotKey{pairID: ref.PairID, symbol: ref.Symbol}] = struct{}{}
		}
	}

	s.flushHour(ctx, keys, closedHour)

	if purged, err := s.buckets.PurgeOlderThan(now.Add(-retentionHours * time.Hour)); err != nil {
		s.log.Error("baseline purge failed", utils.Err(err))
	} else if purged > 0 {
		s.log.Debug("old baseline buckets purged", utils.Int64("purged", purged))
	}
}

// flushHour агрегирует и сливает закрытый час по всем ключам
func (s *Service) flushHour(ctx context.Context, keys map[hotKey]struct{}, hour time.Time) {
	for key := range keys {
		samples, err := s.store.BaselineSamples(ctx, key.pairID, key.symbol, hour)
		if err != nil {
			metrics.BaselineFlushes.WithLabelValues("failed").Inc()
			s.log.Error("hot samples not read", utils.Pair(key.pairID), utils.Err(err))
			continue
		}
		if len(samples) == 0 {
			continue
		}

		bucket := aggregateHour(key.pairID, key.symbol, hour, samples)
		if err := s.buckets.Upsert(bucket); err != nil {
			metrics.BaselineFlushes.WithLabelValues("failed").Inc()
			s.log.Error("baseline bucket not merged", utils.Pair(key.pairID), utils.Err(err))
			continue
		}
		metrics.BaselineFlushes.WithLabelValues("ok").Inc()

		if err := s.store.DeleteBaselineHour(ctx, key.pairID, key.symbol, hour); err != nil {
			s.log.Warn("hot hour not cleaned", utils.Pair(key.pairID), utils.Err(err))
		}
	}
}

// aggregateHour сводит сырые сэмплы часа в бакет
func aggregateHour(pairID, symbol string, hour time.Time, samples []float64) *models.BaselineBucket {
	min, max := samples[0], samples[0]
	for _, v := range samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return &models.BaselineBucket{
		PairID:       pairID,
		Symbol:       symbol,
		HourBucket:   hour,
		SamplesCount: int64(len(samples)),
		AvgSpreadPct: utils.Mean(samples),
		MinSpreadPct: min,
		MaxSpreadPct: max,
		StdDevPct:    utils.StdDev(samples),
		P50Pct:       utils.Median(samples),
		P95Pct:       utils.Percentile(samples, 95),
	}
}

// Baseline отдает историческую норму пары для обогащения алерта.
// Возвращает nil, пока накоплено меньше суток данных.
func (s *Service) Baseline(ctx context.Context, pairID, symbol string, currentPct float64) *models.BaselineContext {
	now := time.Now().UTC()

	age, err := s.buckets.OldestBucketAge(pairID, symbol, now)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("baseline age not read", utils.Pair(pairID), utils.Err(err))
		}
		return nil
	}
	if age < minBaselineAge {
		return nil
	}

	from := now.Add(-baselineWindowDays * 24 * time.Hour)
	buckets, err := s.buckets.GetRange(pairID, symbol, from, now)
	if err != nil || len(buckets) == 0 {
		return nil
	}

	hourlyAvgs := make([]float64, 0, len(buckets))
	var samples int64
	for _, b := range buckets {
		hourlyAvgs = append(hourlyAvgs, b.AvgSpreadPct)
		samples += b.SamplesCount
	}

	bc := &models.BaselineContext{
		MedianPct:    utils.Median(hourlyAvgs),
		P5Pct:        utils.Percentile(hourlyAvgs, 5),
		P95Pct:       utils.Percentile(hourlyAvgs, 95),
		SampleHours:  len(buckets),
		SamplesCount: samples,
	}
	switch {
	case currentPct > bc.P95Pct*anomalyFactor:
		bc.Classification = "anomaly"
	case currentPct > bc.P95Pct:
		bc.Classification = "elevated"
	default:
		bc.Classification = "normal"
	}
	return bc
}

// ZScore считает отклонение текущего отношения цен от скользящего
// среднего окна и журналирует наблюдение. Возвращает nil, пока окно
// короче минимума. Аннотация информационная: эмиссию не гейтит.
func (s *Service) ZScore(ctx context.Context, pairID string) *models.ZScoreContext {
	ratios, err := s.store.RatioSamples(ctx, pairID)
	if err != nil || len(ratios) < minZScoreSamples {
		return nil
	}

	mean := utils.Mean(ratios)
	std := utils.StdDev(ratios)
	if std <= 0 {
		return nil
	}

	current := ratios[len(ratios)-1]
	zc := &models.ZScoreContext{
		Ratio:  current,
		Mean:   mean,
		Std:    std,
		ZScore: (current - mean) / std,
	}

	if err := s.zscores.Insert(&models.ZScoreEntry{
		Ts:     time.Now().UTC(),
		PairID: pairID,
		Ratio:  zc.Ratio,
		Mean:   zc.Mean,
		Std:    zc.Std,
		ZScore: zc.ZScore,
	}); err != nil {
		metrics.RecordPersistenceFailure("zscore_log")
		s.log.Error("zscore not logged", utils.Pair(pairID), utils.Err(err))
	}
	return zc
}
