package repository

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"spreadwatch/internal/models"
)

// ============================================================
// SignalRepository Tests
// ============================================================

func TestSignalCreateDefaultsStatusToSent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSignalRepository(db)

	sig := &models.Signal{
		ID:           "arb_12345678",
		StrategyType: "arb",
		Type:         models.SignalTypeAuto,
		Spread:       models.Spread{Symbol: "PEPE"},
	}

	mock.ExpectExec(`INSERT INTO signals`).
		WithArgs("arb_12345678", "arb", "auto", "PEPE", sqlmock.AnyArg(), int64(0), "sent", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(sig); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sig.Status != models.SignalStatusSent {
		t.Errorf("status must default to sent, got %q", sig.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSignalGetByIDRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSignalRepository(db)

	orig := &models.Signal{
		ID:   "arb_1",
		Type: models.SignalTypeAuto,
		Spread: models.Spread{
			Symbol:    "PEPE",
			SpreadPct: 4.2,
		},
	}
	details, _ := json.Marshal(orig)

	mock.ExpectQuery(`SELECT details, telegram_msg_id, status FROM signals`).
		WithArgs("arb_1").
		WillReturnRows(sqlmock.NewRows([]string{"details", "telegram_msg_id", "status"}).
			AddRow(details, int64(777), "sent"))

	got, err := repo.GetByID("arb_1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Spread.Symbol != "PEPE" || got.Spread.SpreadPct != 4.2 {
		t.Errorf("details mangled: %+v", got)
	}
	if got.TelegramMsgID != 777 {
		t.Errorf("telegram_msg_id lost: %d", got.TelegramMsgID)
	}
}

func TestSignalGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSignalRepository(db)

	mock.ExpectQuery(`SELECT details, telegram_msg_id, status FROM signals`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"details", "telegram_msg_id", "status"}))

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSignalUpdateStatusSetsTimestampColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewSignalRepository(db)

	mock.ExpectExec(`UPDATE signals SET status = \$2, taken_at = NOW\(\)`).
		WithArgs("arb_1", "taken").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus("arb_1", models.SignalStatusTaken); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	mock.ExpectExec(`UPDATE signals SET status = \$2, closed_at = NOW\(\)`).
		WithArgs("arb_1", "expired").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateStatus("arb_1", models.SignalStatusExpired); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
}
