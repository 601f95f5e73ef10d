package storage

import (
	"context"

	"fee-token-lab/internal/domain"
)

// ScenarioRunStore provides access to scenario_runs storage.
type ScenarioRunStore interface {
	// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.ScenarioRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.ScenarioRun, error)

	// GetByToken retrieves all runs against a token address, ordered by started_at ASC.
	GetByToken(ctx context.Context, token string) ([]*domain.ScenarioRun, error)

	// GetAll retrieves all runs, ordered by started_at ASC.
	GetAll(ctx context.Context) ([]*domain.ScenarioRun, error)
}

// McapSampleStore provides access to mcap_samples storage.
type McapSampleStore interface {
	// InsertBulk adds multiple samples atomically. Fails entire batch on
	// duplicate (run_id, step, phase).
	InsertBulk(ctx context.Context, samples []*domain.MarketCapSample) error

	// GetByRunID retrieves all samples of a run, ordered by sampled_at ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.MarketCapSample, error)
}
