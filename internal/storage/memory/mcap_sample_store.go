package memory

import (
	"context"
	"sync"

	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/storage"
)

type sampleKey struct {
	runID string
	step  domain.Step
	phase string
}

// McapSampleStore is an in-memory implementation of storage.McapSampleStore.
type McapSampleStore struct {
	mu   sync.RWMutex
	data map[sampleKey]*domain.MarketCapSample
}

// NewMcapSampleStore creates a new in-memory market cap sample store.
func NewMcapSampleStore() *McapSampleStore {
	return &McapSampleStore{
		data: make(map[sampleKey]*domain.MarketCapSample),
	}
}

// InsertBulk adds multiple samples atomically. Fails entire batch on any duplicate.
func (s *McapSampleStore) InsertBulk(_ context.Context, samples []*domain.MarketCapSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[sampleKey]struct{}, len(samples))
	for _, m := range samples {
		if m == nil || m.RunID == "" || m.Step == "" {
			return storage.ErrInvalidInput
		}
		key := sampleKey{m.RunID, m.Step, m.Phase}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, m := range samples {
		cp := *m
		s.data[sampleKey{m.RunID, m.Step, m.Phase}] = &cp
	}
	return nil
}

// GetByRunID retrieves all samples of a run, ordered by sampled_at ASC.
func (s *McapSampleStore) GetByRunID(_ context.Context, runID string) ([]*domain.MarketCapSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketCapSample
	for k, m := range s.data {
		if k.runID == runID {
			cp := *m
			result = append(result, &cp)
		}
	}

	storage.SortSamples(result)
	return result, nil
}

var _ storage.McapSampleStore = (*McapSampleStore)(nil)
