package service

import (
	"errors"
	"testing"

	"spreadwatch/internal/models"
)

// settings_service_test.go - тесты разбора переопределений

func TestApplyFieldFloat(t *testing.T) {
	s := models.DefaultSettings()
	if err := applyField(&s, "min_spread_pct", "3.5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.MinSpreadPct != 3.5 {
		t.Errorf("min_spread_pct: got %v", s.MinSpreadPct)
	}
}

func TestApplyFieldBool(t *testing.T) {
	s := models.DefaultSettings()
	if err := applyField(&s, "enable_auto_signals", "false"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.EnableAutoSignals {
		t.Error("enable_auto_signals must be false")
	}
}

func TestApplyFieldRejectsOutOfRange(t *testing.T) {
	s := models.DefaultSettings()
	if err := applyField(&s, "alert_cooldown_seconds", "0"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if err := applyField(&s, "min_spread_pct", "not-a-number"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	// Невалидное значение не трогает поле
	if s.AlertCooldownSeconds != models.DefaultSettings().AlertCooldownSeconds {
		t.Error("invalid value must not mutate settings")
	}
}

func TestApplyFieldUnknown(t *testing.T) {
	s := models.DefaultSettings()
	if err := applyField(&s, "no_such_field", "1"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}
