package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ReadyConfig bounds the wait for a node to answer.
type ReadyConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	// Notify is called after every failed probe.
	Notify func(err error, next time.Duration)
}

// DefaultReadyConfig waits up to one minute.
func DefaultReadyConfig() ReadyConfig {
	return ReadyConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsed:      time.Minute,
	}
}

// WaitReady probes eth_chainId until the node answers and returns the chain id.
// It is a startup gate; scenario calls are never retried.
func WaitReady(ctx context.Context, c *Client, cfg ReadyConfig) (uint64, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsed

	var chainID uint64
	probe := func() error {
		id, err := c.ChainID(ctx)
		if err != nil {
			return err
		}
		chainID = id
		return nil
	}

	if err := backoff.RetryNotify(probe, backoff.WithContext(b, ctx), cfg.Notify); err != nil {
		return 0, fmt.Errorf("node not ready: %w", err)
	}
	return chainID, nil
}
