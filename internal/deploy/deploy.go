// Package deploy deploys the token from a compiled contract artifact.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"fee-token-lab/internal/logging"
)

// ErrInvalidArtifact is returned for artifacts without ABI or bytecode.
var ErrInvalidArtifact = errors.New("invalid contract artifact")

// Artifact is the subset of a Truffle/Hardhat build artifact needed to deploy.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// LoadArtifact reads an artifact JSON file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes artifact JSON.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(a.ABI) == 0 || strings.TrimPrefix(a.Bytecode, "0x") == "" {
		return nil, fmt.Errorf("%w: missing abi or bytecode", ErrInvalidArtifact)
	}
	return &a, nil
}

// TokenArgs are the token constructor arguments, in constructor order.
type TokenArgs struct {
	Name   string
	Symbol string
	Pair   common.Address
	Stable common.Address
	Router common.Address
}

// Params returns the positional constructor parameters.
func (a TokenArgs) Params() []interface{} {
	return []interface{}{a.Name, a.Symbol, a.Pair, a.Stable, a.Router}
}

// Validate checks that every argument is set.
func (a TokenArgs) Validate() error {
	switch {
	case a.Name == "":
		return errors.New("NAME is empty")
	case a.Symbol == "":
		return errors.New("SYMBOL is empty")
	case a.Pair == (common.Address{}):
		return errors.New("PAIR is the zero address")
	case a.Stable == (common.Address{}):
		return errors.New("STABLE is the zero address")
	case a.Router == (common.Address{}):
		return errors.New("ROUTER is the zero address")
	}
	return nil
}

// Result describes a deployed contract.
type Result struct {
	Address common.Address
	TxHash  common.Hash
}

// Deployer deploys contracts through a go-ethereum backend.
type Deployer struct {
	backend bind.ContractBackend
	waiter  bind.DeployBackend
	auth    *bind.TransactOpts
	logger  logging.Logger
}

// NewDeployer creates a Deployer signing with auth.
func NewDeployer(backend bind.ContractBackend, waiter bind.DeployBackend, auth *bind.TransactOpts, logger logging.Logger) *Deployer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Deployer{backend: backend, waiter: waiter, auth: auth, logger: logger}
}

// DeployToken deploys the token artifact with args and waits until code is at
// the new address.
func (d *Deployer) DeployToken(ctx context.Context, art *Artifact, args TokenArgs) (*Result, error) {
	if err := args.Validate(); err != nil {
		return nil, fmt.Errorf("token args: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(art.ABI)))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	opts := *d.auth
	opts.Context = ctx

	addr, tx, _, err := bind.DeployContract(&opts, parsed, common.FromHex(art.Bytecode), d.backend, args.Params()...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", art.ContractName, err)
	}
	d.logger.Infof("Deploying %s (%s/%s) in tx %s", art.ContractName, args.Name, args.Symbol, tx.Hash().Hex())

	return d.wait(ctx, tx, addr)
}

func (d *Deployer) wait(ctx context.Context, tx *types.Transaction, expected common.Address) (*Result, error) {
	addr, err := bind.WaitDeployed(ctx, d.waiter, tx)
	if err != nil {
		return nil, fmt.Errorf("wait deployed %s: %w", tx.Hash().Hex(), err)
	}
	if addr != expected {
		return nil, fmt.Errorf("deployed at %s, expected %s", addr.Hex(), expected.Hex())
	}
	d.logger.Infof("Deployed at %s", addr.Hex())
	return &Result{Address: addr, TxHash: tx.Hash()}, nil
}
