package models

import "time"

// signal.go - сигналы: спред, обогащенный анализом стаканов

// SignalType - тип сигнала
type SignalType string

const (
	// SignalTypeAuto - обе ноги открываются без перевода токена
	SignalTypeAuto SignalType = "auto"
	// SignalTypeManual - требуется физический перевод токена
	SignalTypeManual SignalType = "manual"
	// SignalTypeLagging - спред вызван отстающей площадкой, не арбитражем
	SignalTypeLagging SignalType = "lagging"
	// SignalTypeFallback - стаканы недоступны, оценка только по котировкам
	SignalTypeFallback SignalType = "fallback"
	// SignalTypeInvalid - сигнал не прошел проверки безопасности
	SignalTypeInvalid SignalType = "invalid"
)

// SignalStatus - статус сигнала в хранилище
type SignalStatus string

const (
	SignalStatusSent    SignalStatus = "sent"
	SignalStatusTaken   SignalStatus = "taken"
	SignalStatusClosed  SignalStatus = "closed"
	SignalStatusExpired SignalStatus = "expired"
)

// SafetyCheck - результат одной проверки безопасности
type SafetyCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// BookAnalysis - результат анализа стаканов обеих ног.
//
// Инвариант: 0 <= RealPct <= NominalPct, LossPct = NominalPct - RealPct.
type BookAnalysis struct {
	// Исполнимые цены с учетом проскальзывания
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`

	// Спреды
	NominalPct float64 `json:"nominal_pct"` // best-vs-best
	RealPct    float64 `json:"real_pct"`    // с учетом проскальзывания
	LossPct    float64 `json:"loss_pct"`    // nominal - real

	// Объемы
	MaxBuyUSD   float64 `json:"max_buy_usd"`  // лимит проскальзывания на покупке
	MaxSellUSD  float64 `json:"max_sell_usd"` // лимит проскальзывания на продаже
	MaxEntryUSD float64 `json:"max_entry_usd"`

	// Ликвидность выхода: объем для разворота обеих ног
	ExitBuySideUSD  float64 `json:"exit_buy_side_usd"`  // биды на стороне покупки
	ExitSellSideUSD float64 `json:"exit_sell_side_usd"` // аски на стороне продажи

	SuggestedPositionUSD float64 `json:"suggested_position_usd"`
	FullyFillable        bool    `json:"fully_fillable"`
	Fallback             bool    `json:"fallback"`
}

// ExitUSD возвращает суммарную ликвидность выхода
func (a BookAnalysis) ExitUSD() float64 {
	return a.ExitBuySideUSD + a.ExitSellSideUSD
}

// Signal - кандидат в алерт: спред плюс анализ исполнимости.
//
// ID назначается квалификатором при сохранении:
// префикс стратегии + первые 8 символов UUID.
type Signal struct {
	ID           string        `json:"id,omitempty"`
	Spread       Spread        `json:"spread"`
	Analysis     BookAnalysis  `json:"analysis"`
	Type         SignalType    `json:"type"`
	StrategyType string        `json:"strategy_type"`
	SafetyChecks []SafetyCheck `json:"safety_checks,omitempty"`

	// Контекст базового распределения (если накоплено >= 24ч данных)
	Baseline *BaselineContext `json:"baseline,omitempty"`

	// Z-score аннотация (информационная, не влияет на эмиссию)
	ZScore *ZScoreContext `json:"zscore,omitempty"`

	TelegramMsgID int64        `json:"telegram_msg_id,omitempty"`
	Status        SignalStatus `json:"status,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// SafetyPassed сообщает, прошли ли все проверки безопасности
func (s *Signal) SafetyPassed() bool {
	for _, c := range s.SafetyChecks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// FailedChecks возвращает имена проваленных проверок
func (s *Signal) FailedChecks() []string {
	var failed []string
	for _, c := range s.SafetyChecks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// BaselineContext - историческая норма спреда для пары.
//
// Classification = "anomaly" когда текущий спред > P95 * 1.5.
type BaselineContext struct {
	MedianPct      float64 `json:"median_pct"`
	P5Pct          float64 `json:"p5_pct"`
	P95Pct         float64 `json:"p95_pct"`
	SampleHours    int     `json:"sample_hours"`
	SamplesCount   int64   `json:"samples_count"`
	Classification string  `json:"classification"` // normal | elevated | anomaly
}

// ZScoreContext - отклонение отношения цен от скользящего среднего
type ZScoreContext struct {
	Ratio  float64 `json:"ratio"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	ZScore float64 `json:"zscore"`
}
