package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"fee-token-lab/internal/contracts"
)

// Token is the fee-bearing token contract.
type Token struct{ b *bound }

// Pair is ERC-20 metadata of the reference asset.
type Pair struct{ b *bound }

// Router is the Uniswap V2 style router.
type Router struct{ b *bound }

// Stats is the token's DEX statistics view.
type Stats struct{ b *bound }

// PriceFeed is a Chainlink style aggregator.
type PriceFeed struct{ b *bound }

var (
	_ contracts.Token     = (*Token)(nil)
	_ contracts.Pair      = (*Pair)(nil)
	_ contracts.Router    = (*Router)(nil)
	_ contracts.Stats     = (*Stats)(nil)
	_ contracts.PriceFeed = (*PriceFeed)(nil)
	_ contracts.Ledger    = (*Client)(nil)
)

// NewToken binds the token at address.
func (c *Client) NewToken(address common.Address) *Token {
	return &Token{b: c.newBound(address, tokenABI)}
}

// NewPair binds ERC-20 metadata at address.
func (c *Client) NewPair(address common.Address) *Pair {
	return &Pair{b: c.newBound(address, erc20ABI)}
}

// NewRouter binds the router at address.
func (c *Client) NewRouter(address common.Address) *Router {
	return &Router{b: c.newBound(address, routerABI)}
}

// NewStats binds the stats view at address.
func (c *Client) NewStats(address common.Address) *Stats {
	return &Stats{b: c.newBound(address, statsABI)}
}

// NewPriceFeed binds the price feed at address.
func (c *Client) NewPriceFeed(address common.Address) *PriceFeed {
	return &PriceFeed{b: c.newBound(address, feedABI)}
}

// Address returns the token contract address.
func (t *Token) Address() common.Address { return t.b.address }

// BalanceOf returns account's token balance in base units.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return t.b.callBig(ctx, "balanceOf", account)
}

// TotalSupply returns the token supply in base units.
func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	return t.b.callBig(ctx, "totalSupply")
}

// Initialized reports whether the token has seen its first liquidity.
func (t *Token) Initialized(ctx context.Context) (bool, error) {
	out, err := t.b.call(ctx, "initialized")
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// InitialMcap returns the market cap captured when liquidity was first added.
func (t *Token) InitialMcap(ctx context.Context) (*big.Int, error) {
	return t.b.callBig(ctx, "initialMcap")
}

// DEXStatsAddress returns the address of the token's stats view.
func (t *Token) DEXStatsAddress(ctx context.Context) (common.Address, error) {
	return t.b.callAddress(ctx, "getDEXStatsAddress")
}

// Approve sets spender's allowance and waits for the receipt.
func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	return t.b.transact(ctx, nil, "approve", spender, amount)
}

// Address returns the reference asset address.
func (p *Pair) Address() common.Address { return p.b.address }

// Decimals returns the reference asset's ERC-20 decimals.
func (p *Pair) Decimals(ctx context.Context) (uint8, error) {
	return p.b.callUint8(ctx, "decimals")
}

// Address returns the router address.
func (r *Router) Address() common.Address { return r.b.address }

// WETH returns the wrapped native asset the router pairs against.
func (r *Router) WETH(ctx context.Context) (common.Address, error) {
	return r.b.callAddress(ctx, "WETH")
}

// AddLiquidityETH adds token liquidity against opts.Value of native.
func (r *Router) AddLiquidityETH(ctx context.Context, token common.Address, amountTokenDesired, amountTokenMin, amountETHMin *big.Int,
	to common.Address, deadline *big.Int, opts contracts.TxOptions) (common.Hash, error) {
	return r.b.transact(ctx, opts.Value, "addLiquidityETH", token, amountTokenDesired, amountTokenMin, amountETHMin, to, deadline)
}

// SwapExactETHForTokensSupportingFeeOnTransferTokens buys tokens with opts.Value of native.
func (r *Router) SwapExactETHForTokensSupportingFeeOnTransferTokens(ctx context.Context, amountOutMin *big.Int, path []common.Address,
	to common.Address, deadline *big.Int, opts contracts.TxOptions) (common.Hash, error) {
	return r.b.transact(ctx, opts.Value, "swapExactETHForTokensSupportingFeeOnTransferTokens", amountOutMin, path, to, deadline)
}

// SwapExactTokensForETHSupportingFeeOnTransferTokens sells amountIn tokens for native.
func (r *Router) SwapExactTokensForETHSupportingFeeOnTransferTokens(ctx context.Context, amountIn, amountOutMin *big.Int,
	path []common.Address, to common.Address, deadline *big.Int) (common.Hash, error) {
	return r.b.transact(ctx, nil, "swapExactTokensForETHSupportingFeeOnTransferTokens", amountIn, amountOutMin, path, to, deadline)
}

// Address returns the stats view address.
func (s *Stats) Address() common.Address { return s.b.address }

// TokenDilutedMarketcap returns the diluted market cap at the given precision.
func (s *Stats) TokenDilutedMarketcap(ctx context.Context, precision uint8) (*big.Int, error) {
	return s.b.callBig(ctx, "getTOKENdilutedMarketcap", precision)
}

// ReservesPairToken returns the pool reserves, reference asset first.
func (s *Stats) ReservesPairToken(ctx context.Context) ([2]*big.Int, error) {
	out, err := s.b.call(ctx, "getReservesPairToken")
	if err != nil {
		return [2]*big.Int{}, err
	}
	if len(out) < 2 {
		return [2]*big.Int{}, fmt.Errorf("getReservesPairToken: expected 2 outputs, got %d", len(out))
	}
	return [2]*big.Int{
		abi.ConvertType(out[0], new(big.Int)).(*big.Int),
		abi.ConvertType(out[1], new(big.Int)).(*big.Int),
	}, nil
}

// Address returns the aggregator address.
func (f *PriceFeed) Address() common.Address { return f.b.address }

// LatestAnswer returns the raw feed answer, scaled by Decimals.
func (f *PriceFeed) LatestAnswer(ctx context.Context) (*big.Int, error) {
	return f.b.callBig(ctx, "latestAnswer")
}

// Decimals returns the feed answer's decimals.
func (f *PriceFeed) Decimals(ctx context.Context) (uint8, error) {
	return f.b.callUint8(ctx, "decimals")
}

func (b *bound) callBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := b.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (b *bound) callUint8(ctx context.Context, method string) (uint8, error) {
	out, err := b.call(ctx, method)
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (b *bound) callAddress(ctx context.Context, method string) (common.Address, error) {
	out, err := b.call(ctx, method)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
