// Command report renders stored scenario runs as Markdown and CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fee-token-lab/internal/config"
	"fee-token-lab/internal/reporting"
	"fee-token-lab/internal/storage/stores"
)

func main() {
	envFile := flag.String("env-file", ".env", "Environment file, loaded when present")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides POSTGRES_DSN)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides CLICKHOUSE_DSN)")
	runID := flag.String("run", "", "Render this run; empty renders the run index")
	token := flag.String("token", "", "Restrict the index to runs against this token")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *postgresDSN != "" {
		cfg.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.ClickhouseDSN = *clickhouseDSN
	}
	if cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn and --clickhouse-dsn (or POSTGRES_DSN and CLICKHOUSE_DSN) are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, closeStores, err := stores.Open(ctx, stores.Config{
		PostgresDSN:   cfg.PostgresDSN,
		ClickhouseDSN: cfg.ClickhouseDSN,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
		os.Exit(1)
	}
	defer closeStores()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	g := reporting.NewGenerator(st.Runs, st.Samples)

	if *runID == "" {
		runs, err := g.Index(ctx, *token)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading runs: %v\n", err)
			os.Exit(1)
		}
		path := filepath.Join(*outputDir, "RUNS.md")
		if err := os.WriteFile(path, []byte(reporting.RenderIndexMarkdown(runs, time.Now().UTC())), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Run index generated: %s (%d runs)\n", path, len(runs))
		return
	}

	r, err := g.Generate(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	files := map[string]string{
		"RUN_" + *runID + ".md":          reporting.RenderMarkdown(r),
		"RUN_" + *runID + "_samples.csv": reporting.RenderCSV(r.Samples),
		"RUN_" + *runID + "_steps.csv":   reporting.RenderStepsCSV(r.Steps),
	}
	fmt.Println("Run report generated successfully:")
	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("  - %s\n", path)
	}
}
