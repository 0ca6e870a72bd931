package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"spreadwatch/internal/config"
	"spreadwatch/internal/kv"
	"spreadwatch/internal/models"
	"spreadwatch/internal/notify"
	"spreadwatch/pkg/utils"
)

// digest.go - часовая сводка спредов, не дотянувших до алертов
//
// Коллектор сыплет в аккумулятор окна максимум спреда каждой пары.
// Раз в окно сервис собирает топ-5, исключая символы с realtime
// алертами (по ним и так шумно), и отправляет сводку. Вся ветка
// best-effort: потеря дайджеста конвейер не трогает.

// Строк в сводке
const topSpreads = 5

// BaselineProvider обогащает строки сводки исторической нормой
type BaselineProvider interface {
	Baseline(ctx context.Context, pairID, symbol string, currentPct float64) *models.BaselineContext
}

// SettingsProvider отдает актуальные настройки конвейера
type SettingsProvider interface {
	Current() models.Settings
}

// Service копит окно дайджеста и шлет сводки
type Service struct {
	cfg      config.PipelineConfig
	store    *kv.Client
	notifier notify.Notifier
	settings SettingsProvider
	baseline BaselineProvider
	log      *utils.Logger
}

// NewService создает сервис дайджеста
func NewService(cfg config.PipelineConfig, store *kv.Client, notifier notify.Notifier, settings SettingsProvider, log *utils.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		settings: settings,
		log:      log.WithComponent("digest"),
	}
}

// SetBaselineProvider подключает источник исторической нормы
func (s *Service) SetBaselineProvider(p BaselineProvider) { s.baseline = p }

// windowFor возвращает ключ окна для момента времени
func windowFor(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}

// Accumulate принимает батч спредов тика в аккумулятор окна
func (s *Service) Accumulate(ctx context.Context, spreads []models.Spread) {
	now := time.Now().UTC()
	window := windowFor(now)
	minSpread := s.settings.Current().MinSpreadPct

	for i := range spreads {
		sp := &spreads[i]
		if err := s.store.AccumulateDigest(ctx, window, sp.Symbol, sp.PairID, sp.SpreadPct); err != nil {
			s.log.Warn("digest accumulation failed", utils.Pair(sp.PairID), utils.Err(err))
			continue
		}

		if sp.SpreadPct >= minSpread {
			if err := s.store.AddObservation(ctx, &models.DigestObservation{
				Symbol:     sp.Symbol,
				PairID:     sp.PairID,
				SpreadPct:  sp.SpreadPct,
				ObservedAt: now,
			}); err != nil {
				s.log.Warn("observation not stored", utils.Symbol(sp.Symbol), utils.Err(err))
			}
		}
	}
}

// Run шлет сводку на каждой границе окна
func (s *Service) Run(ctx context.Context) {
	s.log.Info("digest service started", utils.Dur("interval", s.cfg.DigestInterval))

	ticker := time.NewTicker(s.cfg.DigestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("digest service stopped")
			return
		case now := <-ticker.C:
			s.flush(ctx, now.UTC())
		}
	}
}

// entry - одна строка сводки
type entry struct {
	symbol    string
	pairID    string
	spreadPct float64
}

// flush собирает и отправляет сводку закрытого окна
func (s *Service) flush(ctx context.Context, now time.Time) {
	window := windowFor(now.Add(-s.cfg.DigestInterval))

	accumulated, err := s.store.DigestWindow(ctx, window)
	if err != nil {
		s.log.Error("digest window not read", utils.Err(err))
		return
	}
	if len(accumulated) == 0 {
		return
	}

	realtime, err := s.store.RealtimeCoins(ctx)
	if err != nil {
		s.log.Warn("realtime coins not read", utils.Err(err))
		realtime = map[string]struct{}{}
	}

	entries := collectEntries(accumulated, realtime)
	s.cleanupRealtime(ctx, accumulated, realtime)

	if len(entries) > 0 {
		text := s.render(ctx, window, entries)
		if msgID := s.notifier.SendAlert(ctx, text, nil); msgID == 0 {
			s.log.Warn("digest not delivered", utils.String("window", window))
		}
	}

	if err := s.store.ResetDigestWindow(ctx, window); err != nil {
		s.log.Warn("digest window not reset", utils.String("window", window), utils.Err(err))
	}
}

// collectEntries разбирает аккумулятор окна в топ строк сводки
func collectEntries(accumulated map[string]float64, realtime map[string]struct{}) []entry {
	entries := make([]entry, 0, len(accumulated))
	for field, pct := range accumulated {
		symbol, pairID, ok := splitField(field)
		if !ok {
			continue
		}
		if _, hot := realtime[symbol]; hot {
			continue
		}
		entries = append(entries, entry{symbol: symbol, pairID: pairID, spreadPct: pct})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].spreadPct > entries[j].spreadPct })
	if len(entries) > topSpreads {
		entries = entries[:topSpreads]
	}
	return entries
}

// splitField разбирает поле аккумулятора "symbol|pair_id"
func splitField(field string) (symbol, pairID string, ok bool) {
	parts := strings.SplitN(field, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// cleanupRealtime снимает realtime пометку с остывших символов
func (s *Service) cleanupRealtime(ctx context.Context, accumulated map[string]float64, realtime map[string]struct{}) {
	seen := make(map[string]struct{}, len(accumulated))
	for field := range accumulated {
		if symbol, _, ok := splitField(field); ok {
			seen[symbol] = struct{}{}
		}
	}
	for symbol := range realtime {
		if _, active := seen[symbol]; !active {
			if err := s.store.RemoveRealtimeCoin(ctx, symbol); err != nil {
				s.log.Warn("realtime coin not removed", utils.Symbol(symbol), utils.Err(err))
			}
		}
	}
}

// render собирает текст сводки
func (s *Service) render(ctx context.Context, window string, entries []entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Сводка спредов</b> за %s UTC\n\n", window)

	for i, e := range entries {
		fmt.Fprintf(&b, "%d. <b>%s</b> %.2f%% <code>%s</code>", i+1, e.symbol, e.spreadPct, e.pairID)
		if s.baseline != nil {
			if bl := s.baseline.Baseline(ctx, e.pairID, e.symbol, e.spreadPct); bl != nil {
				fmt.Fprintf(&b, " (норма %.2f%%", bl.MedianPct)
				if bl.Classification == "anomaly" {
					b.WriteString(", аномалия")
				}
				b.WriteString(")")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
