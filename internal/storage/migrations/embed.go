package migrations

import "embed"

// PostgresFS holds the scenario_runs schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the mcap_samples schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
