package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"spreadwatch/internal/models"
)

// ============================================================
// ConvergenceRepository Tests
// ============================================================

func TestConvergenceCreateSeedsExtremesFromInitial(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewConvergenceRepository(db)

	tr := &models.Tracking{
		SignalID:         "arb_1",
		Symbol:           "PEPE",
		PairID:           "binance_spot:bybit_futures",
		InitialSpreadPct: 4.2,
	}

	mock.ExpectExec(`INSERT INTO spread_convergence`).
		WithArgs("arb_1", "PEPE", "binance_spot:bybit_futures", 4.2, 4.2, 4.2, 4.2, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(tr); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tr.CurrentSpreadPct != 4.2 || tr.MinSpreadPct != 4.2 || tr.MaxSpreadPct != 4.2 {
		t.Errorf("extremes must start at the initial spread: %+v", tr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestConvergenceCloseGuardedTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewConvergenceRepository(db)
	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	// Первое закрытие проходит
	mock.ExpectExec(`UPDATE spread_convergence`).
		WithArgs("arb_1", "converged", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Close("arb_1", models.CloseReasonConverged, at); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	// Повторное закрытие не находит открытую строку
	mock.ExpectExec(`UPDATE spread_convergence`).
		WithArgs("arb_1", "diverged", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Close("arb_1", models.CloseReasonDiverged, at); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("second Close must fail with ErrAlreadyClosed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestConvergenceUpdateProgressOnClosedRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewConvergenceRepository(db)

	now := time.Now().UTC()
	tr := &models.Tracking{SignalID: "arb_2", CurrentSpreadPct: 1.5, MinSpreadPct: 1.1, MaxSpreadPct: 4.4, ChecksCount: 9, LastCheckedAt: &now}

	mock.ExpectExec(`UPDATE spread_convergence`).
		WithArgs("arb_2", 1.5, 1.1, 4.4, 9, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateProgress(tr); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("progress on a closed row must fail with ErrAlreadyClosed, got %v", err)
	}
}

func TestConvergenceGetBySignalIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewConvergenceRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM spread_convergence`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"signal_id"}))

	if _, err := repo.GetBySignalID("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConvergenceGetActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewConvergenceRepository(db)
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"signal_id", "symbol", "pair_id", "initial_spread_pct", "current_spread_pct",
		"min_spread_pct", "max_spread_pct", "checks_count", "started_at", "last_checked_at",
		"converged", "converged_at", "diverged", "diverged_at", "closed_at", "close_reason",
	}).AddRow("arb_1", "PEPE", "p1", 4.2, 3.0, 2.8, 4.5, 12, started, nil, false, nil, false, nil, nil, "")

	mock.ExpectQuery(`SELECT .+ FROM spread_convergence WHERE closed_at IS NULL`).
		WillReturnRows(rows)

	active, err := repo.GetActive()
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 tracking, got %d", len(active))
	}
	tr := active[0]
	if tr.SignalID != "arb_1" || !tr.IsActive() || tr.ChecksCount != 12 {
		t.Errorf("tracking mangled: %+v", tr)
	}
}
