package repository

import (
	"database/sql"
	"errors"

	"spreadwatch/internal/models"
)

// pair_stats_repository.go - накопленная статистика исходов пар
//
// Статистика пересчитывается целиком из spread_convergence одним
// set-based запросом. Пересчет идемпотентен: при неизменных входах
// дает тот же результат, поэтому его безопасно дергать на каждом
// закрытии сигнала.

// PairStatsRepository - работа с таблицей pair_statistics
type PairStatsRepository struct {
	db *sql.DB
}

// NewPairStatsRepository создает новый экземпляр репозитория
func NewPairStatsRepository(db *sql.DB) *PairStatsRepository {
	return &PairStatsRepository{db: db}
}

// Refresh пересчитывает статистику пары из отслеживаний
func (r *PairStatsRepository) Refresh(pairID, symbol string) error {
	query := `
		INSERT INTO pair_statistics (pair_id, symbol, max_spread_pct, min_spread_pct, total_signals, converged_count, diverged_count, expired_count, avg_convergence_minutes, median_convergence_minutes, fastest_convergence_minutes, slowest_convergence_minutes, success_rate_pct, first_signal_at, last_signal_at, updated_at)
		SELECT
			$1, $2,
			COALESCE(MAX(initial_spread_pct), 0),
			COALESCE(MIN(initial_spread_pct), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE close_reason = 'converged'),
			COUNT(*) FILTER (WHERE close_reason = 'diverged'),
			COUNT(*) FILTER (WHERE close_reason = 'expired'),
			COALESCE(AVG(EXTRACT(EPOCH FROM (converged_at - started_at)) / 60.0) FILTER (WHERE close_reason = 'converged'), 0),
			COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY EXTRACT(EPOCH FROM (converged_at - started_at)) / 60.0) FILTER (WHERE close_reason = 'converged'), 0),
			COALESCE(MIN(EXTRACT(EPOCH FROM (converged_at - started_at)) / 60.0) FILTER (WHERE close_reason = 'converged'), 0),
			COALESCE(MAX(EXTRACT(EPOCH FROM (converged_at - started_at)) / 60.0) FILTER (WHERE close_reason = 'converged'), 0),
			CASE WHEN COUNT(*) FILTER (WHERE closed_at IS NOT NULL) > 0
				THEN 100.0 * COUNT(*) FILTER (WHERE close_reason = 'converged') / COUNT(*) FILTER (WHERE closed_at IS NOT NULL)
				ELSE 0 END,
			MIN(started_at),
			MAX(started_at),
			NOW()
		FROM spread_convergence
		WHERE pair_id = $1 AND symbol = $2
		ON CONFLICT (pair_id, symbol) DO UPDATE SET
			max_spread_pct = EXCLUDED.max_spread_pct,
			min_spread_pct = EXCLUDED.min_spread_pct,
			total_signals = EXCLUDED.total_signals,
			converged_count = EXCLUDED.converged_count,
			diverged_count = EXCLUDED.diverged_count,
			expired_count = EXCLUDED.expired_count,
			avg_convergence_minutes = EXCLUDED.avg_convergence_minutes,
			median_convergence_minutes = EXCLUDED.median_convergence_minutes,
			fastest_convergence_minutes = EXCLUDED.fastest_convergence_minutes,
			slowest_convergence_minutes = EXCLUDED.slowest_convergence_minutes,
			success_rate_pct = EXCLUDED.success_rate_pct,
			first_signal_at = EXCLUDED.first_signal_at,
			last_signal_at = EXCLUDED.last_signal_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(query, pairID, symbol)
	return err
}

const pairStatsColumns = `pair_id, symbol, max_spread_pct, min_spread_pct, total_signals, converged_count, diverged_count, expired_count, avg_convergence_minutes, median_convergence_minutes, fastest_convergence_minutes, slowest_convergence_minutes, success_rate_pct, first_signal_at, last_signal_at, updated_at`

// scanPairStats читает строку статистики
func scanPairStats(row interface{ Scan(...interface{}) error }) (*models.PairStatistics, error) {
	s := &models.PairStatistics{}
	err := row.Scan(
		&s.PairID,
		&s.Symbol,
		&s.MaxSpreadPct,
		&s.MinSpreadPct,
		&s.TotalSignals,
		&s.ConvergedCount,
		&s.DivergedCount,
		&s.ExpiredCount,
		&s.AvgConvergenceMinutes,
		&s.MedianConvergenceMinutes,
		&s.FastestConvergenceMinutes,
		&s.SlowestConvergenceMinutes,
		&s.SuccessRatePct,
		&s.FirstSignalAt,
		&s.LastSignalAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByPair возвращает статистику одной пары
func (r *PairStatsRepository) GetByPair(pairID, symbol string) (*models.PairStatistics, error) {
	query := `SELECT ` + pairStatsColumns + ` FROM pair_statistics WHERE pair_id = $1 AND symbol = $2`

	s, err := scanPairStats(r.db.QueryRow(query, pairID, symbol))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetAll возвращает статистику всех пар, самые активные первыми
func (r *PairStatsRepository) GetAll(limit int) ([]*models.PairStatistics, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	query := `SELECT ` + pairStatsColumns + ` FROM pair_statistics ORDER BY total_signals DESC LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*models.PairStatistics
	for rows.Next() {
		s, err := scanPairStats(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
