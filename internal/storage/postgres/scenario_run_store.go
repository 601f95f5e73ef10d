package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/storage"
)

// ScenarioRunStore implements storage.ScenarioRunStore using PostgreSQL.
// Step results are kept in a JSONB column.
type ScenarioRunStore struct {
	pool *Pool
}

// NewScenarioRunStore creates a new ScenarioRunStore.
func NewScenarioRunStore(pool *Pool) *ScenarioRunStore {
	return &ScenarioRunStore{pool: pool}
}

var _ storage.ScenarioRunStore = (*ScenarioRunStore)(nil)

const scenarioRunColumns = `
	run_id, token, account, started_at, finished_at, initial_mcap, passed, steps
`

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *ScenarioRunStore) Insert(ctx context.Context, r *domain.ScenarioRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	steps, err := json.Marshal(r.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}

	query := `INSERT INTO scenario_runs (` + scenarioRunColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.Token, r.Account, r.StartedAt, r.FinishedAt,
		bigText(r.InitialMcap), r.Passed, steps,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert scenario run: %w", err)
	}

	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *ScenarioRunStore) GetByID(ctx context.Context, runID string) (*domain.ScenarioRun, error) {
	query := `SELECT ` + scenarioRunColumns + ` FROM scenario_runs WHERE run_id = $1`

	r, err := scanScenarioRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get scenario run: %w", err)
	}

	return r, nil
}

// GetByToken retrieves all runs against a token address, ordered by started_at ASC.
// The address match ignores case.
func (s *ScenarioRunStore) GetByToken(ctx context.Context, token string) ([]*domain.ScenarioRun, error) {
	query := `SELECT ` + scenarioRunColumns + `
		FROM scenario_runs
		WHERE lower(token) = $1
		ORDER BY started_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, strings.ToLower(token))
	if err != nil {
		return nil, fmt.Errorf("get scenario runs by token: %w", err)
	}
	defer rows.Close()

	return scanScenarioRuns(rows)
}

// GetAll retrieves all runs, ordered by started_at ASC.
func (s *ScenarioRunStore) GetAll(ctx context.Context) ([]*domain.ScenarioRun, error) {
	query := `SELECT ` + scenarioRunColumns + ` FROM scenario_runs ORDER BY started_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all scenario runs: %w", err)
	}
	defer rows.Close()

	return scanScenarioRuns(rows)
}

func scanScenarioRun(row pgx.Row) (*domain.ScenarioRun, error) {
	var (
		r     domain.ScenarioRun
		mcap  *string
		steps []byte
	)

	err := row.Scan(
		&r.RunID, &r.Token, &r.Account, &r.StartedAt, &r.FinishedAt,
		&mcap, &r.Passed, &steps,
	)
	if err != nil {
		return nil, err
	}

	if r.InitialMcap, err = parseBigText(mcap); err != nil {
		return nil, fmt.Errorf("decode initial_mcap: %w", err)
	}
	if err := json.Unmarshal(steps, &r.Steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}

	return &r, nil
}

func scanScenarioRuns(rows pgx.Rows) ([]*domain.ScenarioRun, error) {
	var runs []*domain.ScenarioRun

	for rows.Next() {
		r, err := scanScenarioRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scenario run row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario run rows: %w", err)
	}

	return runs, nil
}
