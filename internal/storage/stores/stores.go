// Package stores opens the run and sample stores the commands share.
package stores

import (
	"context"
	"fmt"

	"fee-token-lab/internal/observability"
	"fee-token-lab/internal/storage"
	chstore "fee-token-lab/internal/storage/clickhouse"
	"fee-token-lab/internal/storage/memory"
	"fee-token-lab/internal/storage/migrations"
	pgstore "fee-token-lab/internal/storage/postgres"
)

// Config selects the backends. An empty DSN keeps that store in memory.
type Config struct {
	PostgresDSN   string
	ClickhouseDSN string
	// Migrate applies the embedded schema before use.
	Migrate bool
	Metrics *observability.Metrics
}

// Stores holds the opened stores.
type Stores struct {
	Runs    storage.ScenarioRunStore
	Samples storage.McapSampleStore
	// Backends names the backend of each store, e.g. "postgres+memory".
	Backends string
}

// Open connects the configured backends. The returned cleanup closes them.
func Open(ctx context.Context, cfg Config) (*Stores, func(), error) {
	s := &Stores{
		Runs:    memory.NewScenarioRunStore(),
		Samples: memory.NewMcapSampleStore(),
	}
	runsBackend, samplesBackend := "memory", "memory"
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if cfg.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				cleanup()
				return nil, nil, err
			}
		}
		s.Runs = storage.InstrumentRuns(pgstore.NewScenarioRunStore(pool), cfg.Metrics, "postgres")
		runsBackend = "postgres"
	}

	if cfg.ClickhouseDSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })

		s.Samples = storage.InstrumentSamples(chstore.NewMcapSampleStore(conn), cfg.Metrics, "clickhouse")
		samplesBackend = "clickhouse"
	}

	s.Backends = runsBackend + "+" + samplesBackend
	return s, cleanup, nil
}
