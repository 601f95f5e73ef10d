package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"fee-token-lab/internal/contracts"
)

// Addresses are the configured contract addresses. The stats view is read
// from the token.
type Addresses struct {
	Token     common.Address
	Pair      common.Address
	Router    common.Address
	PriceFeed common.Address
}

// Resolver resolves the contract set on a live node.
type Resolver struct {
	c    *Client
	addr Addresses
}

// NewResolver creates a Resolver.
func NewResolver(c *Client, addr Addresses) *Resolver {
	return &Resolver{c: c, addr: addr}
}

// Resolve checks that every address holds code and binds the handles.
func (r *Resolver) Resolve(ctx context.Context) (*contracts.Set, error) {
	named := []struct {
		name string
		addr common.Address
	}{
		{"token", r.addr.Token},
		{"pair", r.addr.Pair},
		{"router", r.addr.Router},
		{"price feed", r.addr.PriceFeed},
	}
	for _, n := range named {
		if err := r.hasCode(ctx, n.name, n.addr); err != nil {
			return nil, err
		}
	}

	token := r.c.NewToken(r.addr.Token)
	statsAddr, err := token.DEXStatsAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve stats: %w", err)
	}
	if err := r.hasCode(ctx, "stats", statsAddr); err != nil {
		return nil, err
	}

	return &contracts.Set{
		Token:     token,
		Pair:      r.c.NewPair(r.addr.Pair),
		Router:    r.c.NewRouter(r.addr.Router),
		Stats:     r.c.NewStats(statsAddr),
		PriceFeed: r.c.NewPriceFeed(r.addr.PriceFeed),
		Ledger:    r.c,
	}, nil
}

func (r *Resolver) hasCode(ctx context.Context, name string, addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%s: zero address: %w", name, contracts.ErrNoCode)
	}
	code, err := r.c.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("%s code at %s: %w", name, addr.Hex(), err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%s at %s: %w", name, addr.Hex(), contracts.ErrNoCode)
	}
	return nil
}

var _ contracts.Resolver = (*Resolver)(nil)
