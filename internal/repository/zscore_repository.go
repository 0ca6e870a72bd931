package repository

import (
	"database/sql"
	"time"

	"spreadwatch/internal/models"
)

// zscore_repository.go - журнал z-score наблюдений пар

// ZScoreRepository - работа с таблицей zscore_log
type ZScoreRepository struct {
	db *sql.DB
}

// NewZScoreRepository создает новый экземпляр репозитория
func NewZScoreRepository(db *sql.DB) *ZScoreRepository {
	return &ZScoreRepository{db: db}
}

// Insert записывает наблюдение
func (r *ZScoreRepository) Insert(e *models.ZScoreEntry) error {
	query := `
		INSERT INTO zscore_log (ts, pair, ratio, mean, std, zscore, signal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}

	_, err := r.db.Exec(query, e.Ts, e.PairID, e.Ratio, e.Mean, e.Std, e.ZScore, nullString(e.SignalID))
	return err
}

// RecentByPair возвращает последние наблюдения пары
func (r *ZScoreRepository) RecentByPair(pairID string, limit int) ([]models.ZScoreEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT ts, pair, ratio, mean, std, zscore, COALESCE(signal_id, '')
		FROM zscore_log
		WHERE pair = $1
		ORDER BY ts DESC
		LIMIT $2`

	rows, err := r.db.Query(query, pairID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ZScoreEntry
	for rows.Next() {
		var e models.ZScoreEntry
		if err := rows.Scan(&e.Ts, &e.PairID, &e.Ratio, &e.Mean, &e.Std, &e.ZScore, &e.SignalID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeOlderThan удаляет наблюдения старше точки отсечения
func (r *ZScoreRepository) PurgeOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM zscore_log WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
