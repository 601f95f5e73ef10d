// Package contracts defines the remote contract surfaces the harness consumes.
// Implementations live in internal/evm (go-ethereum) and internal/contracts/stub
// (in-process simulation).
package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxOptions carries the native value attached to a state-changing call.
type TxOptions struct {
	Value *big.Int
}

// Token is the fee-bearing token contract.
type Token interface {
	Address() common.Address
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
	Initialized(ctx context.Context) (bool, error)
	InitialMcap(ctx context.Context) (*big.Int, error)
	DEXStatsAddress(ctx context.Context) (common.Address, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error)
}

// Pair is the reference asset's ERC-20 metadata.
type Pair interface {
	Address() common.Address
	Decimals(ctx context.Context) (uint8, error)
}

// Router is the Uniswap V2 style DEX router.
type Router interface {
	Address() common.Address
	WETH(ctx context.Context) (common.Address, error)
	AddLiquidityETH(ctx context.Context, token common.Address, amountTokenDesired, amountTokenMin, amountETHMin *big.Int,
		to common.Address, deadline *big.Int, opts TxOptions) (common.Hash, error)
	SwapExactETHForTokensSupportingFeeOnTransferTokens(ctx context.Context, amountOutMin *big.Int, path []common.Address,
		to common.Address, deadline *big.Int, opts TxOptions) (common.Hash, error)
	SwapExactTokensForETHSupportingFeeOnTransferTokens(ctx context.Context, amountIn, amountOutMin *big.Int,
		path []common.Address, to common.Address, deadline *big.Int) (common.Hash, error)
}

// Stats is the token's DEX statistics view.
type Stats interface {
	Address() common.Address
	TokenDilutedMarketcap(ctx context.Context, precision uint8) (*big.Int, error)
	// ReservesPairToken returns [referenceAssetReserve, tokenReserve].
	ReservesPairToken(ctx context.Context) ([2]*big.Int, error)
}

// PriceFeed is a Chainlink style aggregator.
type PriceFeed interface {
	Address() common.Address
	LatestAnswer(ctx context.Context) (*big.Int, error)
	Decimals(ctx context.Context) (uint8, error)
}

// Ledger exposes account-level chain reads.
type Ledger interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

// Set groups the resolved contract handles for one scenario.
type Set struct {
	Token     Token
	Pair      Pair
	Router    Router
	Stats     Stats
	PriceFeed PriceFeed
	Ledger    Ledger
}

// Resolver resolves the contract handles; a failure means the deployment is incomplete.
type Resolver interface {
	Resolve(ctx context.Context) (*Set, error)
}
