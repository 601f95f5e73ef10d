package storage

import (
	"context"
	"time"

	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/observability"
)

// InstrumentRuns records query duration and errors of a ScenarioRunStore
// under the database label db. A nil metrics returns store unchanged.
func InstrumentRuns(store ScenarioRunStore, m *observability.Metrics, db string) ScenarioRunStore {
	if m == nil {
		return store
	}
	return &instrumentedRuns{next: store, m: m, db: db}
}

// InstrumentSamples is InstrumentRuns for a McapSampleStore.
func InstrumentSamples(store McapSampleStore, m *observability.Metrics, db string) McapSampleStore {
	if m == nil {
		return store
	}
	return &instrumentedSamples{next: store, m: m, db: db}
}

type instrumentedRuns struct {
	next ScenarioRunStore
	m    *observability.Metrics
	db   string
}

func (s *instrumentedRuns) Insert(ctx context.Context, r *domain.ScenarioRun) error {
	start := time.Now()
	err := s.next.Insert(ctx, r)
	s.m.RecordDBQuery(s.db, "insert_run", time.Since(start), err)
	return err
}

func (s *instrumentedRuns) GetByID(ctx context.Context, runID string) (*domain.ScenarioRun, error) {
	start := time.Now()
	r, err := s.next.GetByID(ctx, runID)
	s.m.RecordDBQuery(s.db, "get_run", time.Since(start), err)
	return r, err
}

func (s *instrumentedRuns) GetByToken(ctx context.Context, token string) ([]*domain.ScenarioRun, error) {
	start := time.Now()
	runs, err := s.next.GetByToken(ctx, token)
	s.m.RecordDBQuery(s.db, "get_runs_by_token", time.Since(start), err)
	return runs, err
}

func (s *instrumentedRuns) GetAll(ctx context.Context) ([]*domain.ScenarioRun, error) {
	start := time.Now()
	runs, err := s.next.GetAll(ctx)
	s.m.RecordDBQuery(s.db, "get_all_runs", time.Since(start), err)
	return runs, err
}

type instrumentedSamples struct {
	next McapSampleStore
	m    *observability.Metrics
	db   string
}

func (s *instrumentedSamples) InsertBulk(ctx context.Context, samples []*domain.MarketCapSample) error {
	start := time.Now()
	err := s.next.InsertBulk(ctx, samples)
	s.m.RecordDBQuery(s.db, "insert_samples", time.Since(start), err)
	return err
}

func (s *instrumentedSamples) GetByRunID(ctx context.Context, runID string) ([]*domain.MarketCapSample, error) {
	start := time.Now()
	samples, err := s.next.GetByRunID(ctx, runID)
	s.m.RecordDBQuery(s.db, "get_samples", time.Since(start), err)
	return samples, err
}
