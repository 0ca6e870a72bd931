package handlers

import (
	"context"
	"errors"
	"time"

	"spreadwatch/internal/models"
	"spreadwatch/internal/repository"
)

// mocks_test.go - стабы хранилищ для тестов handlers

var errStore = errors.New("store failure")

// ============ сигналы ============

type stubSignalStore struct {
	signals map[string]*models.Signal
	listErr error
}

func newStubSignalStore() *stubSignalStore {
	return &stubSignalStore{signals: make(map[string]*models.Signal)}
}

func (s *stubSignalStore) List(limit, offset int, status string) ([]*models.Signal, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.Signal
	for _, sig := range s.signals {
		if status == "" || string(sig.Status) == status {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s *stubSignalStore) GetByID(id string) (*models.Signal, error) {
	sig, ok := s.signals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return sig, nil
}

// ============ отслеживания ============

type stubTrackingStore struct {
	active  []*models.Tracking
	closed  []*models.Tracking
	bySigID map[string]*models.Tracking
}

func newStubTrackingStore() *stubTrackingStore {
	return &stubTrackingStore{bySigID: make(map[string]*models.Tracking)}
}

func (s *stubTrackingStore) GetActive() ([]*models.Tracking, error) { return s.active, nil }

func (s *stubTrackingStore) ListClosed(limit int) ([]*models.Tracking, error) {
	if limit < len(s.closed) {
		return s.closed[:limit], nil
	}
	return s.closed, nil
}

func (s *stubTrackingStore) GetBySignalID(signalID string) (*models.Tracking, error) {
	t, ok := s.bySigID[signalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

// ============ пост-анализ ============

type stubAnalysisStore struct {
	bySigID map[string]*models.ConvergenceAnalysis
}

func (s *stubAnalysisStore) GetBySignalID(signalID string) (*models.ConvergenceAnalysis, error) {
	if s == nil || s.bySigID == nil {
		return nil, repository.ErrNotFound
	}
	a, ok := s.bySigID[signalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

// ============ позиции ============

type stubPositionStore struct {
	created   []*models.Position
	results   []*models.TradeResult
	positions map[string]*models.Position
	closed    map[string]bool
}

func newStubPositionStore() *stubPositionStore {
	return &stubPositionStore{
		positions: make(map[string]*models.Position),
		closed:    make(map[string]bool),
	}
}

func (s *stubPositionStore) Create(p *models.Position) error {
	if p.ID == "" {
		p.ID = "pos-1"
	}
	s.created = append(s.created, p)
	s.positions[p.ID] = p
	return nil
}

func (s *stubPositionStore) Close(id string, at time.Time) error {
	if s.closed[id] {
		return repository.ErrAlreadyClosed
	}
	s.closed[id] = true
	return nil
}

func (s *stubPositionStore) GetByID(id string) (*models.Position, error) {
	p, ok := s.positions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (s *stubPositionStore) RecordResult(tr *models.TradeResult) error {
	s.results = append(s.results, tr)
	return nil
}

func (s *stubPositionStore) ResultsBySignal(signalID string) ([]models.TradeResult, error) {
	var out []models.TradeResult
	for _, tr := range s.results {
		if tr.SignalID == signalID {
			out = append(out, *tr)
		}
	}
	return out, nil
}

// ============ черные списки ============

type stubBlacklistStore struct {
	sets   map[string]map[string]struct{}
	addErr error
}

func newStubBlacklistStore() *stubBlacklistStore {
	return &stubBlacklistStore{sets: make(map[string]map[string]struct{})}
}

func (s *stubBlacklistStore) BlacklistAdd(ctx context.Context, kind, value string) error {
	if s.addErr != nil {
		return s.addErr
	}
	if s.sets[kind] == nil {
		s.sets[kind] = make(map[string]struct{})
	}
	s.sets[kind][value] = struct{}{}
	return nil
}

func (s *stubBlacklistStore) BlacklistRemove(ctx context.Context, kind, value string) error {
	delete(s.sets[kind], value)
	return nil
}

func (s *stubBlacklistStore) BlacklistMembers(ctx context.Context, kind string) ([]string, error) {
	var out []string
	for v := range s.sets[kind] {
		out = append(out, v)
	}
	return out, nil
}

// ============ настройки ============

type stubSettingsManager struct {
	current   models.Settings
	overrides map[string]string
	updateErr error
}

func newStubSettingsManager() *stubSettingsManager {
	return &stubSettingsManager{
		current:   models.DefaultSettings(),
		overrides: make(map[string]string),
	}
}

func (s *stubSettingsManager) Current() models.Settings { return s.current }

func (s *stubSettingsManager) Update(ctx context.Context, fields map[string]string) (models.Settings, error) {
	if s.updateErr != nil {
		return s.current, s.updateErr
	}
	return s.current, nil
}

func (s *stubSettingsManager) SetOverride(ctx context.Context, field, value string) error {
	s.overrides[field] = value
	return nil
}

func (s *stubSettingsManager) DeleteOverride(ctx context.Context, field string) error {
	delete(s.overrides, field)
	return nil
}

func (s *stubSettingsManager) Overrides(ctx context.Context) (map[string]string, error) {
	return s.overrides, nil
}
