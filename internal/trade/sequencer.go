// Package trade performs the approve-then-act request pairs against the DEX
// router: liquidity addition, buy and sell.
//
// Every action is bounded by a deadline of now + DeadlineAfter. Buys and sells
// accept any output amount (amountOutMin = 0). That is a test-harness
// simplification and must not be reused where slippage matters.
package trade

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
	"fee-token-lab/internal/observability"
	"fee-token-lab/internal/units"
)

// DeadlineAfter is added to the clock's now to form every router deadline.
const DeadlineAfter = 3600 * time.Second

// Op names a sequencer operation.
type Op string

// Operations.
const (
	OpAddLiquidity Op = "add_liquidity"
	OpBuy          Op = "buy"
	OpSell         Op = "sell"
)

// Stage is the request within an operation that failed.
type Stage string

// Stages.
const (
	StageNone    Stage = ""
	StageClock   Stage = "clock"
	StageApprove Stage = "approve"
	StageWETH    Stage = "weth"
	StageAction  Stage = "action"
)

// Result is the outcome of one operation. A zero Kind means success.
type Result struct {
	Op        Op
	Kind      domain.ErrorKind
	Stage     Stage
	Err       error
	ApproveTx common.Hash
	ActionTx  common.Hash
}

// OK reports whether every request of the operation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Reverted reports whether the operation failed because the contract rejected it.
func (r Result) Reverted() bool { return r.Kind == domain.ErrorKindReverted }

// Error implements error for failed results.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s %s (%s): %v", r.Op, r.Stage, r.Kind, r.Err)
}

// Classify maps a remote error to its kind. Reverts are recognised through
// contracts.ErrReverted, which every contracts implementation wraps.
func Classify(err error) domain.ErrorKind {
	switch {
	case err == nil:
		return domain.ErrorKindNone
	case errors.Is(err, contracts.ErrReverted):
		return domain.ErrorKindReverted
	default:
		return domain.ErrorKindTransport
	}
}

// Clock supplies the reference time for deadlines.
type Clock func(ctx context.Context) (time.Time, error)

// WallClock returns the local time.
func WallClock(context.Context) (time.Time, error) { return time.Now(), nil }

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock sets the deadline clock, e.g. chain time when the ledger is warped.
func WithClock(c Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithNativeFloor sets amountETHMin for liquidity additions.
func WithNativeFloor(v *big.Int) Option {
	return func(s *Sequencer) { s.nativeFloor = new(big.Int).Set(v) }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// WithMetrics records trade outcomes and call durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// Sequencer issues trade requests for a single principal account.
// Requests are issued strictly in order; nothing is retried or rolled back.
type Sequencer struct {
	set         *contracts.Set
	account     common.Address
	clock       Clock
	nativeFloor *big.Int
	logger      logging.Logger
	metrics     *observability.Metrics
}

// NewSequencer creates a Sequencer. The default native floor is one native unit.
func NewSequencer(set *contracts.Set, account common.Address, opts ...Option) *Sequencer {
	s := &Sequencer{
		set:         set,
		account:     account,
		clock:       WallClock,
		nativeFloor: units.MustToBaseUnits("1"),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deadline returns clock now + DeadlineAfter in Unix seconds.
func (s *Sequencer) Deadline(ctx context.Context) (*big.Int, error) {
	now, err := s.clock(ctx)
	if err != nil {
		return nil, err
	}
	return big.NewInt(now.Add(DeadlineAfter).Unix()), nil
}

// AddLiquidity approves tokens for the router, then pairs them with native.
// amountTokenMin equals tokens; amountETHMin is the native floor.
func (s *Sequencer) AddLiquidity(ctx context.Context, native, tokens *big.Int) Result {
	res := Result{Op: OpAddLiquidity}

	approveTx, err := s.approve(ctx, tokens)
	if err != nil {
		return s.fail(res, StageApprove, err)
	}
	res.ApproveTx = approveTx

	deadline, err := s.Deadline(ctx)
	if err != nil {
		return s.fail(res, StageClock, err)
	}

	start := time.Now()
	tx, err := s.set.Router.AddLiquidityETH(ctx, s.set.Token.Address(), tokens, tokens, s.nativeFloor,
		s.account, deadline, contracts.TxOptions{Value: native})
	s.metrics.ObserveRemoteCall("addLiquidityETH", time.Since(start))
	if err != nil {
		return s.fail(res, StageAction, err)
	}
	res.ActionTx = tx

	s.logger.Infof("Added liquidity: %s native, %s tokens (tx %s)",
		units.ToDecimalAmount(native, units.DefaultPrecision), units.ToDecimalAmount(tokens, units.DefaultPrecision), tx.Hex())
	return s.succeed(res)
}

// Buy swaps exactly native for tokens along [WETH, token].
func (s *Sequencer) Buy(ctx context.Context, native *big.Int) Result {
	res := Result{Op: OpBuy}

	weth, err := s.set.Router.WETH(ctx)
	if err != nil {
		return s.fail(res, StageWETH, err)
	}
	deadline, err := s.Deadline(ctx)
	if err != nil {
		return s.fail(res, StageClock, err)
	}

	path := []common.Address{weth, s.set.Token.Address()}
	start := time.Now()
	tx, err := s.set.Router.SwapExactETHForTokensSupportingFeeOnTransferTokens(ctx, big.NewInt(0), path,
		s.account, deadline, contracts.TxOptions{Value: native})
	s.metrics.ObserveRemoteCall("swapExactETHForTokens", time.Since(start))
	if err != nil {
		return s.fail(res, StageAction, err)
	}
	res.ActionTx = tx

	s.logger.Infof("Bought tokens for %s native (tx %s)", units.ToDecimalAmount(native, units.DefaultPrecision), tx.Hex())
	return s.succeed(res)
}

// Sell approves tokens for the router, then swaps them for native along
// [token, WETH]. A failed swap leaves the approval in place.
func (s *Sequencer) Sell(ctx context.Context, tokens *big.Int) Result {
	res := Result{Op: OpSell}

	approveTx, err := s.approve(ctx, tokens)
	if err != nil {
		return s.fail(res, StageApprove, err)
	}
	res.ApproveTx = approveTx

	weth, err := s.set.Router.WETH(ctx)
	if err != nil {
		return s.fail(res, StageWETH, err)
	}
	deadline, err := s.Deadline(ctx)
	if err != nil {
		return s.fail(res, StageClock, err)
	}

	path := []common.Address{s.set.Token.Address(), weth}
	start := time.Now()
	tx, err := s.set.Router.SwapExactTokensForETHSupportingFeeOnTransferTokens(ctx, tokens, big.NewInt(0), path,
		s.account, deadline)
	s.metrics.ObserveRemoteCall("swapExactTokensForETH", time.Since(start))
	if err != nil {
		return s.fail(res, StageAction, err)
	}
	res.ActionTx = tx

	s.logger.Infof("Sold %s tokens (tx %s)", units.ToDecimalAmount(tokens, units.DefaultPrecision), tx.Hex())
	return s.succeed(res)
}

func (s *Sequencer) approve(ctx context.Context, amount *big.Int) (common.Hash, error) {
	start := time.Now()
	tx, err := s.set.Token.Approve(ctx, s.set.Router.Address(), amount)
	s.metrics.ObserveRemoteCall("approve", time.Since(start))
	return tx, err
}

func (s *Sequencer) fail(res Result, stage Stage, err error) Result {
	res.Stage = stage
	res.Err = err
	res.Kind = Classify(err)
	s.metrics.RecordTrade(string(res.Op), string(res.Kind))
	s.logger.Warnf("%s failed at %s: %v", res.Op, stage, err)
	return res
}

func (s *Sequencer) succeed(res Result) Result {
	s.metrics.RecordTrade(string(res.Op), "OK")
	return res
}
