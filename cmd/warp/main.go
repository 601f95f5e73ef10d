// Command warp advances the development chain clock and mines a block.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"fee-token-lab/internal/config"
	"fee-token-lab/internal/ledger"
	"fee-token-lab/internal/logging"
)

func main() {
	envFile := flag.String("env-file", ".env", "Environment file, loaded when present")
	rpcURL := flag.String("rpc-url", "", "JSON-RPC endpoint (overrides RPC_URL)")
	days := flag.Int64("days", 0, "Whole days to advance")
	seconds := flag.Int64("seconds", 0, "Seconds to advance, added to --days")
	flag.Parse()

	logger := logging.New(logging.Config{Level: logging.LevelInfo, Prefix: "warp"})

	if *days < 0 || *seconds < 0 || *days == 0 && *seconds == 0 {
		fmt.Fprintln(os.Stderr, "Error: --days or --seconds must be a positive amount")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	if *rpcURL != "" {
		cfg.RPCURL = *rpcURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := ledger.NewClient(cfg.RPCURL)

	before, err := client.ChainTime(ctx)
	if err != nil {
		logger.Fatalf("Read chain time: %v", err)
	}

	total := *days*ledger.SecondsPerDay + *seconds
	if err := client.AdvanceTime(ctx, total); err != nil {
		logger.Fatalf("Advance time: %v", err)
	}

	after, err := client.ChainTime(ctx)
	if err != nil {
		logger.Fatalf("Read chain time: %v", err)
	}

	logger.Infof("Advanced %ds: %s -> %s", total,
		before.UTC().Format(time.RFC3339), after.UTC().Format(time.RFC3339))
}
