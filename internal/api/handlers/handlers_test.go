package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"spreadwatch/internal/models"
)

// handlers_test.go - тесты handlers через httptest

func testSignal(id string) *models.Signal {
	return &models.Signal{
		ID: id,
		Spread: models.Spread{
			PairID:    "binance_spot:bybit_futures",
			Symbol:    "PEPE",
			SpreadPct: 4.2,
			Timestamp: time.Now().UTC(),
		},
		Type:      models.SignalTypeAuto,
		Status:    models.SignalStatusSent,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSignalHandlerList(t *testing.T) {
	signals := newStubSignalStore()
	signals.signals["CX-1a2b3c4d"] = testSignal("CX-1a2b3c4d")
	h := NewSignalHandler(signals, newStubTrackingStore(), &stubAnalysisStore{}, newStubPositionStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals?limit=10", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}

	var got []*models.Signal
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != "CX-1a2b3c4d" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestSignalHandlerListError(t *testing.T) {
	signals := newStubSignalStore()
	signals.listErr = errStore
	h := NewSignalHandler(signals, newStubTrackingStore(), &stubAnalysisStore{}, newStubPositionStore())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d want 500", w.Code)
	}
}

func TestSignalHandlerGetWithTracking(t *testing.T) {
	signals := newStubSignalStore()
	signals.signals["CX-1a2b3c4d"] = testSignal("CX-1a2b3c4d")

	trackings := newStubTrackingStore()
	trackings.bySigID["CX-1a2b3c4d"] = &models.Tracking{
		SignalID:         "CX-1a2b3c4d",
		InitialSpreadPct: 4.2,
	}

	h := NewSignalHandler(signals, trackings, &stubAnalysisStore{}, newStubPositionStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/CX-1a2b3c4d", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "CX-1a2b3c4d"})
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}

	var detail signalDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Signal == nil || detail.Signal.ID != "CX-1a2b3c4d" {
		t.Error("signal missing from detail")
	}
	if detail.Tracking == nil || detail.Tracking.InitialSpreadPct != 4.2 {
		t.Error("tracking missing from detail")
	}
}

func TestSignalHandlerGetNotFound(t *testing.T) {
	h := NewSignalHandler(newStubSignalStore(), newStubTrackingStore(), &stubAnalysisStore{}, newStubPositionStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d want 404", w.Code)
	}
}

func TestTrackingHandlerStates(t *testing.T) {
	trackings := newStubTrackingStore()
	trackings.active = []*models.Tracking{{SignalID: "CX-11111111"}}
	trackings.closed = []*models.Tracking{{SignalID: "CX-22222222"}, {SignalID: "CX-33333333"}}
	h := NewTrackingHandler(trackings)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/trackings", nil))
	var active []*models.Tracking
	json.NewDecoder(w.Body).Decode(&active)
	if len(active) != 1 || active[0].SignalID != "CX-11111111" {
		t.Errorf("active: %+v", active)
	}

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/trackings?state=closed", nil))
	var closed []*models.Tracking
	json.NewDecoder(w.Body).Decode(&closed)
	if len(closed) != 2 {
		t.Errorf("closed: %+v", closed)
	}

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/trackings?state=bogus", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus state: got %d want 400", w.Code)
	}
}

func TestBlacklistHandlerAddAndList(t *testing.T) {
	store := newStubBlacklistStore()
	h := NewBlacklistHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/blacklist/symbols", strings.NewReader(`{"value":"SCAM"}`))
	req = mux.SetURLVars(req, map[string]string{"kind": "symbols"})
	w := httptest.NewRecorder()
	h.Add(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("add status: got %d", w.Code)
	}
	if _, ok := store.sets["symbols"]["SCAM"]; !ok {
		t.Error("value not stored")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/blacklist/symbols", nil)
	req = mux.SetURLVars(req, map[string]string{"kind": "symbols"})
	w = httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "SCAM") {
		t.Errorf("list: %d %s", w.Code, w.Body.String())
	}
}

func TestBlacklistHandlerRejectsUnknownKind(t *testing.T) {
	h := NewBlacklistHandler(newStubBlacklistStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/blacklist/bogus", nil)
	req = mux.SetURLVars(req, map[string]string{"kind": "bogus"})
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d want 400", w.Code)
	}
}

func TestSettingsHandlerGet(t *testing.T) {
	h := NewSettingsHandler(newStubSettingsManager())

	w := httptest.NewRecorder()
	h.Get(w, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var s models.Settings
	if err := json.NewDecoder(w.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.MinSpreadPct != models.DefaultSettings().MinSpreadPct {
		t.Errorf("settings payload wrong: %+v", s)
	}
}

func TestSettingsHandlerUpdateRequiresBody(t *testing.T) {
	h := NewSettingsHandler(newStubSettingsManager())

	w := httptest.NewRecorder()
	h.Update(w, httptest.NewRequest(http.MethodPatch, "/api/v1/settings", strings.NewReader(`{}`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d want 400", w.Code)
	}
}

func TestSettingsHandlerSetOverride(t *testing.T) {
	manager := newStubSettingsManager()
	h := NewSettingsHandler(manager)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/overrides/min_spread_pct", strings.NewReader(`{"value":"3.5"}`))
	req = mux.SetURLVars(req, map[string]string{"field": "min_spread_pct"})
	w := httptest.NewRecorder()
	h.SetOverride(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if manager.overrides["min_spread_pct"] != "3.5" {
		t.Error("override not stored")
	}
}

func TestPositionHandlerCreateFromSignal(t *testing.T) {
	signals := newStubSignalStore()
	signals.signals["CX-1a2b3c4d"] = testSignal("CX-1a2b3c4d")
	positions := newStubPositionStore()
	h := NewPositionHandler(positions, signals)

	body := `{"signal_id":"CX-1a2b3c4d","user_id":42}`
	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/v1/positions", strings.NewReader(body)))

	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	if len(positions.created) != 1 {
		t.Fatal("position not created")
	}
	p := positions.created[0]
	if p.Symbol != "PEPE" || p.EntrySpreadPct != 4.2 || p.UserID != 42 {
		t.Errorf("position fields wrong: %+v", p)
	}
}

func TestPositionHandlerCreateUnknownSignal(t *testing.T) {
	h := NewPositionHandler(newStubPositionStore(), newStubSignalStore())

	body := `{"signal_id":"CX-missing"}`
	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/v1/positions", strings.NewReader(body)))

	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d want 404", w.Code)
	}
}

func TestPositionHandlerRecordResult(t *testing.T) {
	positions := newStubPositionStore()
	positions.positions["pos-1"] = &models.Position{ID: "pos-1", SignalID: "CX-1a2b3c4d", UserID: 42}
	h := NewPositionHandler(positions, newStubSignalStore())

	body := `{"pnl_pct":1.8,"hold_hours":6.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/positions/pos-1/result", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": "pos-1"})
	w := httptest.NewRecorder()
	h.RecordResult(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d", w.Code)
	}
	if len(positions.results) != 1 {
		t.Fatal("result not stored")
	}
	tr := positions.results[0]
	// user_id не передан - берется из позиции
	if tr.UserID != 42 || tr.SignalID != "CX-1a2b3c4d" || tr.PnlPct != 1.8 {
		t.Errorf("result fields wrong: %+v", tr)
	}
}
