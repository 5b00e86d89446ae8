package storage

import (
	"context"
	"sync"

	"github.com/radiusdt/vector-metrics/internal/models"
)

// =============================================
// In-memory source
// =============================================

// InMemorySource serves a fixed batch. Callers get copies of the slices.
type InMemorySource struct {
	batch models.Batch
}

// NewInMemorySource creates a source over batch.
func NewInMemorySource(batch models.Batch) *InMemorySource {
	return &InMemorySource{batch: batch}
}

func (s *InMemorySource) LoadSessions(ctx context.Context) ([]models.RawSession, error) {
	return append([]models.RawSession(nil), s.batch.Sessions...), ctx.Err()
}

func (s *InMemorySource) LoadOrders(ctx context.Context) ([]models.RawOrder, error) {
	return append([]models.RawOrder(nil), s.batch.Orders...), ctx.Err()
}

func (s *InMemorySource) LoadCosts(ctx context.Context) ([]models.RawCost, error) {
	return append([]models.RawCost(nil), s.batch.Costs...), ctx.Err()
}

// =============================================
// In-memory report store
// =============================================

// InMemoryReportStore keeps run results in memory.
type InMemoryReportStore struct {
	mu      sync.RWMutex
	results map[string]*models.RunResult
	latest  string
}

// NewInMemoryReportStore creates an empty store.
func NewInMemoryReportStore() *InMemoryReportStore {
	return &InMemoryReportStore{
		results: make(map[string]*models.RunResult),
	}
}

func (s *InMemoryReportStore) SaveResult(ctx context.Context, res *models.RunResult) error {
	if res == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *res
	s.results[res.Fingerprint] = &cp
	s.latest = res.Fingerprint
	return nil
}

func (s *InMemoryReportStore) GetResult(ctx context.Context, fingerprint string) (*models.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[fingerprint]
	if !ok {
		return nil, nil
	}
	return res, nil
}

func (s *InMemoryReportStore) LatestResult(ctx context.Context) (*models.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == "" {
		return nil, nil
	}
	return s.results[s.latest], nil
}
