// Command deploy deploys the fee token from a compiled artifact using the
// NAME, SYMBOL, PAIR, STABLE and ROUTER settings.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fee-token-lab/internal/config"
	"fee-token-lab/internal/deploy"
	"fee-token-lab/internal/evm"
	"fee-token-lab/internal/ledger"
	"fee-token-lab/internal/logging"
)

func main() {
	envFile := flag.String("env-file", ".env", "Environment file, loaded when present")
	artifactPath := flag.String("artifact", "build/contracts/Token.json", "Compiled contract artifact (abi + bytecode)")
	rpcURL := flag.String("rpc-url", "", "JSON-RPC endpoint (overrides RPC_URL)")
	readyTimeout := flag.Duration("ready-timeout", time.Minute, "How long to wait for the node to answer")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(logging.Config{Level: level, Prefix: "deploy"})

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	if *rpcURL != "" {
		cfg.RPCURL = *rpcURL
	}
	if err := cfg.RequireDeploy(); err != nil {
		logger.Fatalf("%v", err)
	}

	art, err := deploy.LoadArtifact(*artifactPath)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	readyCfg := ledger.DefaultReadyConfig()
	readyCfg.MaxElapsed = *readyTimeout
	if _, err := ledger.WaitReady(ctx, ledger.NewClient(cfg.RPCURL), readyCfg); err != nil {
		logger.Fatalf("%v", err)
	}

	client, err := evm.Dial(ctx, cfg.RPCURL, cfg.PrivateKey, cfg.ChainID, evm.WithLogger(logger))
	if err != nil {
		logger.Fatalf("Dial: %v", err)
	}

	d := deploy.NewDeployer(client.Backend(), client.Backend(), client.TransactOpts(), logger)
	res, err := d.DeployToken(ctx, art, deploy.TokenArgs{
		Name:   cfg.Name,
		Symbol: cfg.Symbol,
		Pair:   cfg.Pair,
		Stable: cfg.Stable,
		Router: cfg.Router,
	})
	if err != nil {
		logger.Fatalf("%v", err)
	}

	fmt.Printf("TOKEN=%s\n", res.Address.Hex())
	fmt.Printf("# deployed in tx %s\n", res.TxHash.Hex())
}
