// Package evm implements the contract interfaces over go-ethereum: calls and
// signed transactions through bind.BoundContract, receipts through
// bind.WaitMined, reverts mapped to contracts.ErrReverted.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"fee-token-lab/internal/contracts"
	"fee-token-lab/internal/logging"
	"fee-token-lab/internal/observability"
)

// DefaultGasLimit is attached to every transaction. A fixed limit skips gas
// estimation, so a reverting call is mined and surfaces as receipt status 0.
const DefaultGasLimit uint64 = 2_000_000

// Backend is the node surface the package needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Client signs and sends transactions for one account.
type Client struct {
	backend  Backend
	auth     *bind.TransactOpts
	gasLimit uint64
	logger   logging.Logger
	metrics  *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithGasLimit overrides DefaultGasLimit.
func WithGasLimit(limit uint64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.gasLimit = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records call durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client signing with key for chainID.
func NewClient(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, opts ...Option) (*Client, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	c := &Client{
		backend:  backend,
		auth:     auth,
		gasLimit: DefaultGasLimit,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dial connects to url and creates a Client for the hex private key.
// When chainID is nil it is queried from the node.
func Dial(ctx context.Context, url, privateKeyHex string, chainID *big.Int, opts ...Option) (*Client, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if chainID == nil {
		chainID, err = ec.ChainID(ctx)
		if err != nil {
			ec.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}
	return NewClient(ec, key, chainID, opts...)
}

// ParsePrivateKey parses a hex key with or without 0x prefix.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Account returns the signing address.
func (c *Client) Account() common.Address { return c.auth.From }

// TransactOpts returns a copy of the signer options.
func (c *Client) TransactOpts() *bind.TransactOpts {
	opts := *c.auth
	return &opts
}

// Backend returns the node backend.
func (c *Client) Backend() Backend { return c.backend }

// NativeBalance implements contracts.Ledger.
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	start := time.Now()
	bal, err := c.backend.BalanceAt(ctx, account, nil)
	c.metrics.ObserveRemoteCall("eth_getBalance", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance: %w", classify(err))
	}
	return bal, nil
}

// ChainTime returns the latest block timestamp. Usable as a trade.Clock.
func (c *Client) ChainTime(ctx context.Context) (time.Time, error) {
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest header: %w", err)
	}
	return time.Unix(int64(head.Time), 0), nil
}

// bound is one contract handle.
type bound struct {
	c        *Client
	address  common.Address
	contract *bind.BoundContract
}

func (c *Client) newBound(address common.Address, parsed abi.ABI) *bound {
	return &bound{
		c:        c,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, c.backend, c.backend, c.backend),
	}
}

// call performs a read-only call and returns the unpacked outputs.
func (b *bound) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	start := time.Now()
	err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	b.c.metrics.ObserveRemoteCall(method, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, classify(err))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}

// transact signs and sends a transaction, then waits for its receipt.
// A receipt with status 0 is reported as contracts.ErrReverted.
func (b *bound) transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (common.Hash, error) {
	opts := *b.c.auth
	opts.Context = ctx
	opts.Value = value
	opts.GasLimit = b.c.gasLimit

	start := time.Now()
	defer func() { b.c.metrics.ObserveRemoteCall(method, time.Since(start)) }()

	tx, err := b.contract.Transact(&opts, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", method, classify(err))
	}
	b.c.logger.Debugf("%s sent: %s", method, tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, b.c.backend, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("%s: wait mined %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("%s: %w (tx %s, gas used %d)", method, contracts.ErrReverted, tx.Hash().Hex(), receipt.GasUsed)
	}
	return tx.Hash(), nil
}

// classify wraps node-reported reverts in contracts.ErrReverted.
func classify(err error) error {
	if err == nil || errors.Is(err, contracts.ErrReverted) {
		return err
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) || strings.Contains(strings.ToLower(err.Error()), "revert") {
		return fmt.Errorf("%w: %v", contracts.ErrReverted, err)
	}
	return err
}
