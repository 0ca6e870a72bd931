package repository

import (
	"database/sql"
	"errors"
	"time"

	"spreadwatch/internal/models"
)

// analysis_repository.go - итоги пост-анализа схождения

// AnalysisRepository - работа с таблицей convergence_analysis
type AnalysisRepository struct {
	db *sql.DB
}

// NewAnalysisRepository создает новый экземпляр репозитория
func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Upsert сохраняет итог анализа; повторный анализ перезаписывает строку
func (r *AnalysisRepository) Upsert(a *models.ConvergenceAnalysis) error {
	query := `
		INSERT INTO convergence_analysis (signal_id, initial_buy_price, final_buy_price, initial_sell_price, final_sell_price, buy_change_pct, sell_change_pct, buy_depth_change_pct, sell_depth_change_pct, convergence_reason, duration_minutes, snapshots_count, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (signal_id) DO UPDATE SET
			initial_buy_price = EXCLUDED.initial_buy_price,
			final_buy_price = EXCLUDED.final_buy_price,
			initial_sell_price = EXCLUDED.initial_sell_price,
			final_sell_price = EXCLUDED.final_sell_price,
			buy_change_pct = EXCLUDED.buy_change_pct,
			sell_change_pct = EXCLUDED.sell_change_pct,
			buy_depth_change_pct = EXCLUDED.buy_depth_change_pct,
			sell_depth_change_pct = EXCLUDED.sell_depth_change_pct,
			convergence_reason = EXCLUDED.convergence_reason,
			duration_minutes = EXCLUDED.duration_minutes,
			snapshots_count = EXCLUDED.snapshots_count,
			analyzed_at = EXCLUDED.analyzed_at`

	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		query,
		a.SignalID,
		a.InitialBuyPrice,
		a.FinalBuyPrice,
		a.InitialSellPrice,
		a.FinalSellPrice,
		a.BuyChangePct,
		a.SellChangePct,
		a.BuyDepthChangePct,
		a.SellDepthChangePct,
		string(a.Reason),
		a.DurationMinutes,
		a.SnapshotsCount,
		a.AnalyzedAt,
	)
	return err
}

// GetBySignalID возвращает итог анализа сигнала
func (r *AnalysisRepository) GetBySignalID(signalID string) (*models.ConvergenceAnalysis, error) {
	query := `
		SELECT signal_id, initial_buy_price, final_buy_price, initial_sell_price, final_sell_price, buy_change_pct, sell_change_pct, buy_depth_change_pct, sell_depth_change_pct, convergence_reason, duration_minutes, snapshots_count, analyzed_at
		FROM convergence_analysis
		WHERE signal_id = $1`

	a := &models.ConvergenceAnalysis{}
	var reason string
	err := r.db.QueryRow(query, signalID).Scan(
		&a.SignalID,
		&a.InitialBuyPrice,
		&a.FinalBuyPrice,
		&a.InitialSellPrice,
		&a.FinalSellPrice,
		&a.BuyChangePct,
		&a.SellChangePct,
		&a.BuyDepthChangePct,
		&a.SellDepthChangePct,
		&reason,
		&a.DurationMinutes,
		&a.SnapshotsCount,
		&a.AnalyzedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Reason = models.ConvergenceReason(reason)
	return a, nil
}
