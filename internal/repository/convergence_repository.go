package repository

import (
	"database/sql"
	"errors"
	"time"

	"spreadwatch/internal/models"
)

// convergence_repository.go - работа с таблицами отслеживания схождения
//
// Закрытие отслеживания - охраняемый переход: строку закрывает ровно
// один вызов, повторное закрытие дает ErrAlreadyClosed. Гонку двух
// воркеров решает условие closed_at IS NULL в UPDATE.

// ConvergenceRepository - работа с таблицей spread_convergence
type ConvergenceRepository struct {
	db *sql.DB
}

// NewConvergenceRepository создает новый экземпляр репозитория
func NewConvergenceRepository(db *sql.DB) *ConvergenceRepository {
	return &ConvergenceRepository{db: db}
}

// Create открывает отслеживание эмитированного сигнала
func (r *ConvergenceRepository) Create(t *models.Tracking) error {
	query := `
		INSERT INTO spread_convergence (signal_id, symbol, pair_id, initial_spread_pct, current_spread_pct, min_spread_pct, max_spread_pct, checks_count, started_at, converged, diverged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, false)`

	if t.StartedAt.IsZero() {
		t.StartedAt = time.Now().UTC()
	}
	t.CurrentSpreadPct = t.InitialSpreadPct
	t.MinSpreadPct = t.InitialSpreadPct
	t.MaxSpreadPct = t.InitialSpreadPct

	_, err := r.db.Exec(
		query,
		t.SignalID,
		t.Symbol,
		t.PairID,
		t.InitialSpreadPct,
		t.CurrentSpreadPct,
		t.MinSpreadPct,
		t.MaxSpreadPct,
		t.ChecksCount,
		t.StartedAt,
	)
	return err
}

const trackingColumns = `signal_id, symbol, pair_id, initial_spread_pct, current_spread_pct, min_spread_pct, max_spread_pct, checks_count, started_at, last_checked_at, converged, converged_at, diverged, diverged_at, closed_at, COALESCE(close_reason, '')`

// scanTracking читает строку отслеживания
func scanTracking(row interface{ Scan(...interface{}) error }) (*models.Tracking, error) {
	t := &models.Tracking{}
	var closeReason string
	err := row.Scan(
		&t.SignalID,
		&t.Symbol,
		&t.PairID,
		&t.InitialSpreadPct,
		&t.CurrentSpreadPct,
		&t.MinSpreadPct,
		&t.MaxSpreadPct,
		&t.ChecksCount,
		&t.StartedAt,
		&t.LastCheckedAt,
		&t.Converged,
		&t.ConvergedAt,
		&t.Diverged,
		&t.DivergedAt,
		&t.ClosedAt,
		&closeReason,
	)
	if err != nil {
		return nil, err
	}
	t.CloseReason = models.CloseReason(closeReason)
	return t, nil
}

// GetBySignalID возвращает отслеживание сигнала
func (r *ConvergenceRepository) GetBySignalID(signalID string) (*models.Tracking, error) {
	query := `SELECT ` + trackingColumns + ` FROM spread_convergence WHERE signal_id = $1`

	t, err := scanTracking(r.db.QueryRow(query, signalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// GetActive возвращает все незакрытые отслеживания
func (r *ConvergenceRepository) GetActive() ([]*models.Tracking, error) {
	query := `SELECT ` + trackingColumns + ` FROM spread_convergence WHERE closed_at IS NULL ORDER BY started_at`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trackings []*models.Tracking
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		trackings = append(trackings, t)
	}
	return trackings, rows.Err()
}

// ListClosed возвращает недавно закрытые отслеживания
func (r *ConvergenceRepository) ListClosed(limit int) ([]*models.Tracking, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + trackingColumns + ` FROM spread_convergence WHERE closed_at IS NOT NULL ORDER BY closed_at DESC LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trackings []*models.Tracking
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		trackings = append(trackings, t)
	}
	return trackings, rows.Err()
}

// UpdateProgress записывает результат очередной проверки
func (r *ConvergenceRepository) UpdateProgress(t *models.Tracking) error {
	query := `
		UPDATE spread_convergence
		SET current_spread_pct = $2, min_spread_pct = $3, max_spread_pct = $4, checks_count = $5, last_checked_at = $6
		WHERE signal_id = $1 AND closed_at IS NULL`

	res, err := r.db.Exec(
		query,
		t.SignalID,
		t.CurrentSpreadPct,
		t.MinSpreadPct,
		t.MaxSpreadPct,
		t.ChecksCount,
		t.LastCheckedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyClosed
	}
	return nil
}

// Close закрывает отслеживание с причиной. Охраняемый переход:
// строку закрывает ровно один вызов.
func (r *ConvergenceRepository) Close(signalID string, reason models.CloseReason, at time.Time) error {
	query := `
		UPDATE spread_convergence
		SET closed_at = $3,
		    close_reason = $2,
		    converged = (converged OR $2 = 'converged'),
		    converged_at = CASE WHEN $2 = 'converged' THEN $3 ELSE converged_at END,
		    diverged = (diverged OR $2 = 'diverged'),
		    diverged_at = CASE WHEN $2 = 'diverged' THEN $3 ELSE diverged_at END
		WHERE signal_id = $1 AND closed_at IS NULL`

	res, err := r.db.Exec(query, signalID, string(reason), at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyClosed
	}
	return nil
}

// ClosedOutcomes возвращает недавние исходы пары для обогащения алертов
func (r *ConvergenceRepository) ClosedOutcomes(pairID, symbol string, limit int) ([]models.PairOutcome, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}

	query := `
		SELECT c.signal_id, c.initial_spread_pct, c.close_reason,
		       EXTRACT(EPOCH FROM (c.closed_at - c.started_at)) / 60.0,
		       COALESCE(a.convergence_reason, ''), c.closed_at
		FROM spread_convergence c
		LEFT JOIN convergence_analysis a ON a.signal_id = c.signal_id
		WHERE c.pair_id = $1 AND c.symbol = $2 AND c.closed_at IS NOT NULL
		ORDER BY c.closed_at DESC
		LIMIT $3`

	rows, err := r.db.Query(query, pairID, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []models.PairOutcome
	for rows.Next() {
		var o models.PairOutcome
		var closeReason, convReason string
		if err := rows.Scan(&o.SignalID, &o.InitialSpreadPct, &closeReason, &o.DurationMinutes, &convReason, &o.ClosedAt); err != nil {
			return nil, err
		}
		o.CloseReason = models.CloseReason(closeReason)
		o.ConvergenceReason = models.ConvergenceReason(convReason)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
