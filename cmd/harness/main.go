// Command harness runs the market cap verification scenario against a
// deployed fee token on a development node.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fee-token-lab/internal/config"
	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/evm"
	"fee-token-lab/internal/ledger"
	"fee-token-lab/internal/logging"
	"fee-token-lab/internal/observability"
	"fee-token-lab/internal/reporting"
	"fee-token-lab/internal/scenario"
	"fee-token-lab/internal/storage/stores"
	"fee-token-lab/internal/trade"
)

func main() {
	os.Exit(harness())
}

// harness runs the scenario and returns the process exit code. Deferred
// cleanup runs before main exits.
func harness() int {
	envFile := flag.String("env-file", ".env", "Environment file, loaded when present")
	rpcURL := flag.String("rpc-url", "", "JSON-RPC endpoint (overrides RPC_URL)")
	wsURL := flag.String("ws-url", "", "Websocket endpoint for head logging (overrides WS_URL)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides POSTGRES_DSN)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides CLICKHOUSE_DSN)")
	useMemory := flag.Bool("use-memory", false, "Keep runs in memory even when DSNs are configured")
	migrate := flag.Bool("migrate", true, "Apply the embedded schema before storing runs")
	warp := flag.Duration("warp", 0, "Advance the chain clock by this much before every buy and sell")
	chainClock := flag.Bool("chain-clock", true, "Compute swap deadlines from the latest block timestamp")
	readyTimeout := flag.Duration("ready-timeout", time.Minute, "How long to wait for the node to answer")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address, e.g. :9090")
	reportDir := flag.String("report-dir", "", "Write the run report to this directory")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFile := flag.String("log-file", "", "Also write logs to this rotated file")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	logger := logging.New(logging.Config{
		Level:   level,
		Prefix:  "harness",
		File:    *logFile,
		NoColor: *noColor,
	})

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Errorf("Load config: %v", err)
		return 2
	}
	override(&cfg.RPCURL, *rpcURL)
	override(&cfg.WSURL, *wsURL)
	override(&cfg.PostgresDSN, *postgresDSN)
	override(&cfg.ClickhouseDSN, *clickhouseDSN)
	if err := cfg.RequireScenario(); err != nil {
		logger.Errorf("%v", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node := ledger.NewClient(cfg.RPCURL)
	readyCfg := ledger.DefaultReadyConfig()
	readyCfg.MaxElapsed = *readyTimeout
	readyCfg.Notify = func(err error, next time.Duration) {
		logger.Warnf("Node not ready (%v), retrying in %v", err, next.Round(time.Millisecond))
	}
	chainID, err := ledger.WaitReady(ctx, node, readyCfg)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	if cfg.ChainID == nil {
		cfg.ChainID = new(big.Int).SetUint64(chainID)
	} else if cfg.ChainID.Uint64() != chainID {
		logger.Errorf("CHAIN_ID %s does not match node chain id %d", cfg.ChainID, chainID)
		return 2
	}
	logger.Infof("Connected to %s (chain %s)", cfg.RPCURL, cfg.ChainID)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(observability.DefaultNamespace, reg)
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, reg, logger)
	}

	client, err := evm.Dial(ctx, cfg.RPCURL, cfg.PrivateKey, cfg.ChainID,
		evm.WithGasLimit(cfg.GasLimit),
		evm.WithLogger(logger),
		evm.WithMetrics(metrics),
	)
	if err != nil {
		logger.Errorf("Dial: %v", err)
		return 1
	}
	logger.Infof("Principal account %s", client.Account().Hex())

	storeCfg := stores.Config{Migrate: *migrate, Metrics: metrics}
	if !*useMemory {
		storeCfg.PostgresDSN = cfg.PostgresDSN
		storeCfg.ClickhouseDSN = cfg.ClickhouseDSN
	}
	st, closeStores, err := stores.Open(ctx, storeCfg)
	if err != nil {
		logger.Errorf("Open stores: %v", err)
		return 1
	}
	defer closeStores()
	logger.Infof("Storage: %s", st.Backends)

	if cfg.WSURL != "" {
		go logHeads(ctx, cfg.WSURL, logger)
	}

	var tradeOpts []trade.Option
	if *chainClock {
		tradeOpts = append(tradeOpts, trade.WithClock(client.ChainTime))
	}

	opts := scenario.Options{
		Resolver: evm.NewResolver(client, evm.Addresses{
			Token:     cfg.Token,
			Pair:      cfg.Pair,
			Router:    cfg.Router,
			PriceFeed: cfg.PairDatafeed,
		}),
		Account:      client.Account(),
		ChainID:      cfg.ChainID.Int64(),
		TradeOptions: tradeOpts,
		RunStore:     st.Runs,
		SampleStore:  st.Samples,
		Metrics:      metrics,
		Logger:       logger,
	}
	if *warp > 0 {
		opts.Warper = node
		opts.WarpSeconds = int64(warp.Seconds())
	}

	run, persistErr := scenario.New(opts).Run(ctx)
	if persistErr != nil {
		logger.Errorf("Persist run: %v", persistErr)
	}

	printSummary(run)

	if *reportDir != "" && persistErr == nil {
		if err := writeReport(ctx, *reportDir, st, run.RunID); err != nil {
			logger.Errorf("Write report: %v", err)
		} else {
			logger.Infof("Report written to %s", *reportDir)
		}
	}

	return exitCode(run, persistErr)
}

// exitCode is 0 only for a passing run that was persisted.
func exitCode(run *domain.ScenarioRun, persistErr error) int {
	if run == nil || !run.Passed || persistErr != nil {
		return 1
	}
	return 0
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(reg))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	logger.Infof("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Metrics server: %v", err)
	}
}

// logHeads logs new blocks until ctx ends. Failures only disable head logging.
func logHeads(ctx context.Context, endpoint string, logger logging.Logger) {
	sub, err := ledger.SubscribeHeads(ctx, endpoint, nil)
	if err != nil {
		logger.Warnf("Head subscription disabled: %v", err)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-sub.Heads():
			if !ok {
				return
			}
			logger.Debugf("Block %d %s at %s", h.Number, h.Hash, h.Timestamp.UTC().Format(time.RFC3339))
		}
	}
}

func printSummary(run *domain.ScenarioRun) {
	fmt.Printf("Run %s\n", run.RunID)
	for _, s := range run.Steps {
		status := "FAIL"
		switch {
		case s.Skipped:
			status = "SKIP"
		case s.Passed:
			status = "PASS"
		}
		line := fmt.Sprintf("  %-20s %s", s.Step, status)
		if s.Error != "" {
			line += ": " + s.Error
		}
		fmt.Println(line)
	}
	if run.Passed {
		fmt.Printf("Reached %s\n", domain.StepDone)
	}
}

func writeReport(ctx context.Context, dir string, st *stores.Stores, runID string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	r, err := reporting.NewGenerator(st.Runs, st.Samples).Generate(ctx, runID)
	if err != nil {
		return err
	}

	prefix := filepath.Join(dir, "RUN_"+shortID(runID))
	if err := os.WriteFile(prefix+".md", []byte(reporting.RenderMarkdown(r)), 0o644); err != nil {
		return err
	}
	return os.WriteFile(prefix+"_samples.csv", []byte(reporting.RenderCSV(r.Samples)), 0o644)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
