package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"spreadwatch/internal/models"
)

// ============================================================
// BaselineRepository Tests
// ============================================================

func TestBaselineUpsertFreshBucket(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewBaselineRepository(db)
	hour := time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)

	bucket := &models.BaselineBucket{
		PairID:       "binance_spot:bybit_futures",
		Symbol:       "PEPE",
		HourBucket:   hour,
		SamplesCount: 100,
		AvgSpreadPct: 1.5,
		MinSpreadPct: 0.5,
		MaxSpreadPct: 3.0,
		StdDevPct:    0.4,
		P50Pct:       1.4,
		P95Pct:       2.8,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM spread_baseline .+ FOR UPDATE`).
		WithArgs(bucket.PairID, bucket.Symbol, hour).
		WillReturnRows(sqlmock.NewRows([]string{"pair_id"}))
	mock.ExpectExec(`INSERT INTO spread_baseline`).
		WithArgs(bucket.PairID, bucket.Symbol, hour, int64(100), 1.5, 0.5, 3.0, 0.4, 1.4, 2.8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Upsert(bucket); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBaselineUpsertMergesExistingBucket(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewBaselineRepository(db)
	hour := time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)

	incoming := &models.BaselineBucket{
		PairID:       "p1",
		Symbol:       "PEPE",
		HourBucket:   hour,
		SamplesCount: 100,
		AvgSpreadPct: 2.0,
		MinSpreadPct: 1.0,
		MaxSpreadPct: 3.0,
		StdDevPct:    0.5,
		P50Pct:       2.0,
		P95Pct:       2.9,
	}

	existingRows := sqlmock.NewRows([]string{
		"pair_id", "symbol", "hour_bucket", "samples_count", "avg_spread_pct",
		"min_spread_pct", "max_spread_pct", "stddev_spread_pct", "p50_spread_pct", "p95_spread_pct",
	}).AddRow("p1", "PEPE", hour, int64(300), 1.0, 0.5, 2.5, 0.3, 1.0, 2.2)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM spread_baseline .+ FOR UPDATE`).
		WithArgs("p1", "PEPE", hour).
		WillReturnRows(existingRows)
	// Слитый бакет: count 400, avg = (1.0*300 + 2.0*100)/400 = 1.25,
	// min 0.5, max 3.0; stddev и перцентили от более населенного (существующего)
	mock.ExpectExec(`INSERT INTO spread_baseline`).
		WithArgs("p1", "PEPE", hour, int64(400), 1.25, 0.5, 3.0, 0.3, 1.0, 2.2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Upsert(incoming); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBaselineOldestBucketAgeEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewBaselineRepository(db)

	mock.ExpectQuery(`SELECT MIN\(hour_bucket\) FROM spread_baseline`).
		WithArgs("p1", "PEPE").
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(nil))

	if _, err := repo.OldestBucketAge("p1", "PEPE", time.Now()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for empty history, got %v", err)
	}
}
