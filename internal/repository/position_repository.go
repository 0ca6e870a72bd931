package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"spreadwatch/internal/models"
)

// position_repository.go - пользовательские позиции и итоги сделок

// PositionRepository - работа с таблицами position_tracking и trade_results
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create регистрирует вход пользователя в позицию
func (r *PositionRepository) Create(p *models.Position) error {
	query := `
		INSERT INTO position_tracking (id, signal_id, user_id, symbol, pair_id, entry_spread_pct, target_spread_pct, current_spread_pct, status, entered_at, telegram_msg_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PositionStatusTracking
	}
	if p.EnteredAt.IsZero() {
		p.EnteredAt = time.Now().UTC()
	}
	if p.TargetSpreadPct == 0 {
		p.TargetSpreadPct = models.DefaultTarget(p.EntrySpreadPct)
	}
	p.CurrentSpreadPct = p.EntrySpreadPct

	_, err := r.db.Exec(
		query,
		p.ID,
		p.SignalID,
		p.UserID,
		p.Symbol,
		p.PairID,
		p.EntrySpreadPct,
		p.TargetSpreadPct,
		p.CurrentSpreadPct,
		string(p.Status),
		p.EnteredAt,
		p.TelegramMsgID,
	)
	return err
}

const positionColumns = `id, signal_id, user_id, symbol, pair_id, entry_spread_pct, target_spread_pct, current_spread_pct, status, entered_at, notified_at, closed_at, COALESCE(telegram_msg_id, 0)`

// scanPosition читает строку позиции
func scanPosition(row interface{ Scan(...interface{}) error }) (*models.Position, error) {
	p := &models.Position{}
	var status string
	err := row.Scan(
		&p.ID,
		&p.SignalID,
		&p.UserID,
		&p.Symbol,
		&p.PairID,
		&p.EntrySpreadPct,
		&p.TargetSpreadPct,
		&p.CurrentSpreadPct,
		&status,
		&p.EnteredAt,
		&p.NotifiedAt,
		&p.ClosedAt,
		&p.TelegramMsgID,
	)
	if err != nil {
		return nil, err
	}
	p.Status = models.PositionStatus(status)
	return p, nil
}

// GetByID возвращает позицию по идентификатору
func (r *PositionRepository) GetByID(id string) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM position_tracking WHERE id = $1`

	p, err := scanPosition(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetOpen возвращает незакрытые позиции
func (r *PositionRepository) GetOpen() ([]*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM position_tracking WHERE status != 'closed' ORDER BY entered_at`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpdateCurrent записывает текущий спред позиции
func (r *PositionRepository) UpdateCurrent(id string, currentSpreadPct float64) error {
	res, err := r.db.Exec(
		`UPDATE position_tracking SET current_spread_pct = $2 WHERE id = $1 AND status != 'closed'`,
		id, currentSpreadPct,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkNotified помечает позицию уведомленной о достижении цели.
// Охраняемый переход: уведомление уходит один раз.
func (r *PositionRepository) MarkNotified(id string, at time.Time) error {
	res, err := r.db.Exec(
		`UPDATE position_tracking SET status = 'notified', notified_at = $2 WHERE id = $1 AND status = 'tracking'`,
		id, at,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyClosed
	}
	return nil
}

// Close закрывает позицию
func (r *PositionRepository) Close(id string, at time.Time) error {
	res, err := r.db.Exec(
		`UPDATE position_tracking SET status = 'closed', closed_at = $2 WHERE id = $1 AND status != 'closed'`,
		id, at,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyClosed
	}
	return nil
}

// RecordResult сохраняет пользовательский отчет об итоге сделки.
// Один отчет на (signal_id, user_id); повтор перезаписывает.
func (r *PositionRepository) RecordResult(tr *models.TradeResult) error {
	query := `
		INSERT INTO trade_results (signal_id, user_id, pnl_pct, hold_hours, notes, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (signal_id, user_id) DO UPDATE SET
			pnl_pct = EXCLUDED.pnl_pct,
			hold_hours = EXCLUDED.hold_hours,
			notes = EXCLUDED.notes,
			recorded_at = EXCLUDED.recorded_at`

	if tr.RecordedAt.IsZero() {
		tr.RecordedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(query, tr.SignalID, tr.UserID, tr.PnlPct, tr.HoldHours, tr.Notes, tr.RecordedAt)
	return err
}

// ResultsBySignal возвращает отчеты по сигналу
func (r *PositionRepository) ResultsBySignal(signalID string) ([]models.TradeResult, error) {
	query := `
		SELECT signal_id, user_id, pnl_pct, hold_hours, COALESCE(notes, ''), recorded_at
		FROM trade_results
		WHERE signal_id = $1
		ORDER BY recorded_at`

	rows, err := r.db.Query(query, signalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.TradeResult
	for rows.Next() {
		var tr models.TradeResult
		if err := rows.Scan(&tr.SignalID, &tr.UserID, &tr.PnlPct, &tr.HoldHours, &tr.Notes, &tr.RecordedAt); err != nil {
			return nil, err
		}
		results = append(results, tr)
	}
	return results, rows.Err()
}
