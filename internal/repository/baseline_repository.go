package repository

import (
	"database/sql"
	"errors"
	"time"

	"spreadwatch/internal/models"
)

// baseline_repository.go - холодный ярус базовых распределений
//
// Часовой сброс может прийти дважды (ретрай после сбоя), поэтому
// Upsert сливает входящий бакет с существующим через Merge: итоги
// складываются, а не затираются.

// BaselineRepository - работа с таблицей spread_baseline
type BaselineRepository struct {
	db *sql.DB
}

// NewBaselineRepository создает новый экземпляр репозитория
func NewBaselineRepository(db *sql.DB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

// Upsert записывает бакет часа, сливая с существующим при повторе
func (r *BaselineRepository) Upsert(b *models.BaselineBucket) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := r.getForUpdate(tx, b.PairID, b.Symbol, b.HourBucket)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	merged := *b
	if existing != nil {
		merged = *existing
		merged.Merge(*b)
	}

	query := `
		INSERT INTO spread_baseline (pair_id, symbol, hour_bucket, samples_count, avg_spread_pct, min_spread_pct, max_spread_pct, stddev_spread_pct, p50_spread_pct, p95_spread_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (pair_id, symbol, hour_bucket) DO UPDATE SET
			samples_count = EXCLUDED.samples_count,
			avg_spread_pct = EXCLUDED.avg_spread_pct,
			min_spread_pct = EXCLUDED.min_spread_pct,
			max_spread_pct = EXCLUDED.max_spread_pct,
			stddev_spread_pct = EXCLUDED.stddev_spread_pct,
			p50_spread_pct = EXCLUDED.p50_spread_pct,
			p95_spread_pct = EXCLUDED.p95_spread_pct`

	if _, err := tx.Exec(
		query,
		merged.PairID,
		merged.Symbol,
		merged.HourBucket,
		merged.SamplesCount,
		merged.AvgSpreadPct,
		merged.MinSpreadPct,
		merged.MaxSpreadPct,
		merged.StdDevPct,
		merged.P50Pct,
		merged.P95Pct,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// getForUpdate читает бакет под блокировкой строки
func (r *BaselineRepository) getForUpdate(tx *sql.Tx, pairID, symbol string, hour time.Time) (*models.BaselineBucket, error) {
	query := `
		SELECT pair_id, symbol, hour_bucket, samples_count, avg_spread_pct, min_spread_pct, max_spread_pct, stddev_spread_pct, p50_spread_pct, p95_spread_pct
		FROM spread_baseline
		WHERE pair_id = $1 AND symbol = $2 AND hour_bucket = $3
		FOR UPDATE`

	b := &models.BaselineBucket{}
	err := tx.QueryRow(query, pairID, symbol, hour).Scan(
		&b.PairID,
		&b.Symbol,
		&b.HourBucket,
		&b.SamplesCount,
		&b.AvgSpreadPct,
		&b.MinSpreadPct,
		&b.MaxSpreadPct,
		&b.StdDevPct,
		&b.P50Pct,
		&b.P95Pct,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// GetRange возвращает бакеты пары за интервал часов
func (r *BaselineRepository) GetRange(pairID, symbol string, from, to time.Time) ([]models.BaselineBucket, error) {
	query := `
		SELECT pair_id, symbol, hour_bucket, samples_count, avg_spread_pct, min_spread_pct, max_spread_pct, stddev_spread_pct, p50_spread_pct, p95_spread_pct
		FROM spread_baseline
		WHERE pair_id = $1 AND symbol = $2 AND hour_bucket >= $3 AND hour_bucket < $4
		ORDER BY hour_bucket`

	rows, err := r.db.Query(query, pairID, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []models.BaselineBucket
	for rows.Next() {
		var b models.BaselineBucket
		if err := rows.Scan(
			&b.PairID,
			&b.Symbol,
			&b.HourBucket,
			&b.SamplesCount,
			&b.AvgSpreadPct,
			&b.MinSpreadPct,
			&b.MaxSpreadPct,
			&b.StdDevPct,
			&b.P50Pct,
			&b.P95Pct,
		); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// OldestBucketAge возвращает возраст самого старого бакета пары.
// Нужен для гейта "статистики меньше 24 часов - контекст не включаем".
func (r *BaselineRepository) OldestBucketAge(pairID, symbol string, now time.Time) (time.Duration, error) {
	var oldest sql.NullTime
	err := r.db.QueryRow(
		`SELECT MIN(hour_bucket) FROM spread_baseline WHERE pair_id = $1 AND symbol = $2`,
		pairID, symbol,
	).Scan(&oldest)
	if err != nil {
		return 0, err
	}
	if !oldest.Valid {
		return 0, ErrNotFound
	}
	return now.Sub(oldest.Time), nil
}

// PurgeOlderThan удаляет бакеты за пределами окна хранения
func (r *BaselineRepository) PurgeOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM spread_baseline WHERE hour_bucket < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
