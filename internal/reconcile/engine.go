// Package reconcile computes the token's market cap two independent ways and
// checks that they agree within a relative tolerance band.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"fee-token-lab/internal/contracts"
	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/logging"
	"fee-token-lab/internal/units"
)

// StatsPrecision is the rounding precision passed to getTOKENdilutedMarketcap.
const StatsPrecision uint8 = 6

// Tolerance band, as percent of the reference: (ToleranceLowPct, ToleranceHighPct) exclusive.
const (
	ToleranceLowPct  = 99
	ToleranceHighPct = 101
)

// pairAmountScale is the fixed-point scale applied to the reference-asset reserve.
var pairAmountScale = big.NewInt(1000)

// ErrEmptyReserve is returned when the pool holds no tokens, which makes the
// reference derivation divide by zero.
var ErrEmptyReserve = errors.New("token reserve is zero")

// Inputs are the raw on-chain values the reference market cap is derived from.
type Inputs struct {
	FeedPrice    *big.Int
	FeedDecimals uint8
	Reserve0     *big.Int // reference asset reserve
	Reserve1     *big.Int // token reserve
	PairDecimals uint8
	TotalSupply  *big.Int
}

// PairAmount scales the reference-asset reserve to a 1000-fixed-point amount:
// reserve0 * 1000 / 10^pairDecimals, truncated.
func PairAmount(reserve0 *big.Int, pairDecimals uint8) *big.Int {
	v := new(big.Int).Mul(reserve0, pairAmountScale)
	return v.Quo(v, units.Pow10(pairDecimals))
}

// ReferenceMarketCap derives the market cap from the price feed. The operation
// order mirrors the on-chain-style integer arithmetic:
//
//	feedPrice * totalSupply / reserve1 * pairAmount / 1000 / 10^feedDecimals
//
// Each division truncates toward zero; reordering changes the result.
func ReferenceMarketCap(in Inputs) (pairAmount, mcap *big.Int, err error) {
	if in.Reserve1 == nil || in.Reserve1.Sign() == 0 {
		return nil, nil, ErrEmptyReserve
	}

	pairAmount = PairAmount(in.Reserve0, in.PairDecimals)

	v := new(big.Int).Mul(in.FeedPrice, in.TotalSupply)
	v.Quo(v, in.Reserve1)
	v.Mul(v, pairAmount)
	v.Quo(v, pairAmountScale)
	v.Quo(v, units.Pow10(in.FeedDecimals))

	return pairAmount, v, nil
}

// WithinTolerance reports whether reference*0.99 < onChain < reference*1.01.
// Both bounds are strict; values exactly on a bound are out of tolerance.
func WithinTolerance(onChain, reference *big.Int) bool {
	scaled := new(big.Int).Mul(onChain, big.NewInt(100))
	low := new(big.Int).Mul(reference, big.NewInt(ToleranceLowPct))
	high := new(big.Int).Mul(reference, big.NewInt(ToleranceHighPct))
	return scaled.Cmp(low) > 0 && scaled.Cmp(high) < 0
}

// Engine reads the chain and produces market-cap samples.
type Engine struct {
	set     *contracts.Set
	account common.Address
	logger  logging.Logger
	now     func() time.Time

	// InitialMcap is shown in diagnostics once captured by the caller.
	InitialMcap *big.Int
}

// NewEngine creates an Engine over the resolved contracts for account.
func NewEngine(set *contracts.Set, account common.Address, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		set:     set,
		account: account,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckMarketCap reads all inputs sequentially and returns a fresh sample.
// Disagreement is reported through WithinTolerance, not as an error; any
// failed remote read is returned as is.
func (e *Engine) CheckMarketCap(ctx context.Context) (*domain.MarketCapSample, error) {
	tokenBal, err := e.set.Token.BalanceOf(ctx, e.account)
	if err != nil {
		return nil, fmt.Errorf("token balanceOf: %w", err)
	}
	nativeBal, err := e.set.Ledger.NativeBalance(ctx, e.account)
	if err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}

	onChain, err := e.set.Stats.TokenDilutedMarketcap(ctx, StatsPrecision)
	if err != nil {
		return nil, fmt.Errorf("getTOKENdilutedMarketcap: %w", err)
	}

	price, err := e.set.PriceFeed.LatestAnswer(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed latestAnswer: %w", err)
	}
	feedDecs, err := e.set.PriceFeed.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed decimals: %w", err)
	}
	reserves, err := e.set.Stats.ReservesPairToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("getReservesPairToken: %w", err)
	}
	pairDecs, err := e.set.Pair.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("pair decimals: %w", err)
	}
	supply, err := e.set.Token.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("token totalSupply: %w", err)
	}

	in := Inputs{
		FeedPrice:    price,
		FeedDecimals: feedDecs,
		Reserve0:     reserves[0],
		Reserve1:     reserves[1],
		PairDecimals: pairDecs,
		TotalSupply:  supply,
	}
	pairAmount, reference, err := ReferenceMarketCap(in)
	if err != nil {
		return nil, err
	}

	sample := &domain.MarketCapSample{
		SampledAt:       e.now().UnixMilli(),
		OnChainMcap:     onChain,
		ReferenceMcap:   reference,
		WithinTolerance: WithinTolerance(onChain, reference),
		TokenBalance:    tokenBal,
		NativeBalance:   nativeBal,
		FeedPrice:       price,
		FeedDecimals:    feedDecs,
		Reserve0:        reserves[0],
		Reserve1:        reserves[1],
		PairDecimals:    pairDecs,
		TotalSupply:     supply,
		PairAmount:      pairAmount,
	}

	initial := "n/a"
	if e.InitialMcap != nil {
		initial = e.InitialMcap.String()
	}
	e.logger.Debugf("Acc. native balance %s, acc. token balance %s, initial mcap %s, token marketcap %s$, token marketcap datafeed %s$",
		units.ToDecimalAmount(nativeBal, units.DefaultPrecision), tokenBal, initial, onChain, reference)

	return sample, nil
}
