package repository

import (
	"database/sql"
	"time"

	"spreadwatch/internal/models"
)

// spread_log_repository.go - журнал решений квалификации
//
// Каждый кандидат, дошедший до квалификации, оставляет строку:
// прошел валидацию или нет и почему. Журнал - основной материал
// для разбора ложных срабатываний.

// SpreadLogRepository - работа с таблицей spread_log
type SpreadLogRepository struct {
	db *sql.DB
}

// NewSpreadLogRepository создает новый экземпляр репозитория
func NewSpreadLogRepository(db *sql.DB) *SpreadLogRepository {
	return &SpreadLogRepository{db: db}
}

// Insert записывает решение по кандидату
func (r *SpreadLogRepository) Insert(entry *models.SpreadLogEntry) error {
	query := `
		INSERT INTO spread_log (ts, symbol, strategy, low_venue, high_venue, low_price, high_price, spread_pct, net_spread_pct, liquidity_usd, passed_validation, rejection_reason, signal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}

	_, err := r.db.Exec(
		query,
		entry.Ts,
		entry.Symbol,
		entry.Strategy,
		entry.LowVenue,
		entry.HighVenue,
		entry.LowPrice,
		entry.HighPrice,
		entry.SpreadPct,
		entry.NetSpreadPct,
		entry.LiquidityUSD,
		entry.PassedValidation,
		nullString(entry.RejectionReason),
		nullString(entry.SignalID),
	)
	return err
}

// RecentBySymbol возвращает последние записи журнала по символу
func (r *SpreadLogRepository) RecentBySymbol(symbol string, limit int) ([]*models.SpreadLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT ts, symbol, strategy, low_venue, high_venue, low_price, high_price, spread_pct, net_spread_pct, liquidity_usd, passed_validation, COALESCE(rejection_reason, ''), COALESCE(signal_id, '')
		FROM spread_log
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.SpreadLogEntry
	for rows.Next() {
		e := &models.SpreadLogEntry{}
		if err := rows.Scan(
			&e.Ts,
			&e.Symbol,
			&e.Strategy,
			&e.LowVenue,
			&e.HighVenue,
			&e.LowPrice,
			&e.HighPrice,
			&e.SpreadPct,
			&e.NetSpreadPct,
			&e.LiquidityUSD,
			&e.PassedValidation,
			&e.RejectionReason,
			&e.SignalID,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeOlderThan удаляет записи старше точки отсечения
func (r *SpreadLogRepository) PurgeOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM spread_log WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// nullString превращает пустую строку в NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
