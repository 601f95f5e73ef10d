package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/storage"
)

// ScenarioRunStore is an in-memory implementation of storage.ScenarioRunStore.
type ScenarioRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ScenarioRun // keyed by run_id
}

// NewScenarioRunStore creates a new in-memory scenario run store.
func NewScenarioRunStore() *ScenarioRunStore {
	return &ScenarioRunStore{
		data: make(map[string]*domain.ScenarioRun),
	}
}

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *ScenarioRunStore) Insert(_ context.Context, r *domain.ScenarioRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = copyRun(r)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *ScenarioRunStore) GetByID(_ context.Context, runID string) (*domain.ScenarioRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

// GetByToken retrieves all runs against a token, ordered by started_at ASC.
// Addresses compare case-insensitively.
func (s *ScenarioRunStore) GetByToken(_ context.Context, token string) ([]*domain.ScenarioRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScenarioRun
	for _, r := range s.data {
		if strings.EqualFold(r.Token, token) {
			result = append(result, copyRun(r))
		}
	}
	sortRuns(result)
	return result, nil
}

// GetAll retrieves all runs, ordered by started_at ASC.
func (s *ScenarioRunStore) GetAll(_ context.Context) ([]*domain.ScenarioRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ScenarioRun, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyRun(r))
	}
	sortRuns(result)
	return result, nil
}

func sortRuns(runs []*domain.ScenarioRun) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt != runs[j].StartedAt {
			return runs[i].StartedAt < runs[j].StartedAt
		}
		return runs[i].RunID < runs[j].RunID
	})
}

func copyRun(r *domain.ScenarioRun) *domain.ScenarioRun {
	cp := *r
	cp.Steps = append([]domain.StepResult(nil), r.Steps...)
	return &cp
}

var _ storage.ScenarioRunStore = (*ScenarioRunStore)(nil)
