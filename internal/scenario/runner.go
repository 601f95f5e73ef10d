// Package scenario runs the fixed liquidity/buy/sell narrative against a
// deployed token and reports pass/fail per step.
//
// Flow: DEPLOYED_CHECK → LIQUIDITY_ADDED → BOUGHT_1 → SOLD_LARGE →
// SOLD_SMALL_REJECTED → BOUGHT_2 → DONE. The first failed step halts the run;
// the remaining steps are recorded as skipped.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"fee-token-lab/internal/contracts"
	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/idhash"
	"fee-token-lab/internal/logging"
	"fee-token-lab/internal/observability"
	"fee-token-lab/internal/reconcile"
	"fee-token-lab/internal/storage"
	"fee-token-lab/internal/trade"
	"fee-token-lab/internal/units"
)

// Amounts sizes the scenario's trades.
type Amounts struct {
	LiquidityNative  *big.Int // native paired with the liquidity tokens
	LiquidityDivisor int64    // liquidity tokens = balance / LiquidityDivisor
	BuyNative        *big.Int // native spent by each buy
	LargeSellDivisor int64    // large sell = balance / LargeSellDivisor
	SmallSellDivisor int64    // undersized sell = balance / SmallSellDivisor
}

// DefaultAmounts returns 1 native of liquidity against half the balance,
// 0.02 native buys, a half-balance sell and a 1/20th-balance sell.
func DefaultAmounts() Amounts {
	return Amounts{
		LiquidityNative:  units.MustToBaseUnits("1"),
		LiquidityDivisor: 2,
		BuyNative:        units.MustToBaseUnits("0.02"),
		LargeSellDivisor: 2,
		SmallSellDivisor: 20,
	}
}

// Warper advances the ledger clock.
type Warper interface {
	AdvanceTime(ctx context.Context, seconds int64) error
}

// Options for creating a Runner.
type Options struct {
	// Required
	Resolver contracts.Resolver
	Account  common.Address

	// ChainID is part of the run ID.
	ChainID int64
	// Amounts defaults to DefaultAmounts when nil.
	Amounts      *Amounts
	TradeOptions []trade.Option

	// Optional clock warp before every buy and sell step
	Warper      Warper
	WarpSeconds int64

	// Optional persistence
	RunStore    storage.ScenarioRunStore
	SampleStore storage.McapSampleStore

	Metrics *observability.Metrics
	Logger  logging.Logger
	Now     func() time.Time
}

// Context is the state threaded through the steps of one run.
type Context struct {
	Account     common.Address
	Set         *contracts.Set
	Engine      *reconcile.Engine
	Sequencer   *trade.Sequencer
	InitialMcap *big.Int
	Samples     []*domain.MarketCapSample
}

// Runner executes scenario runs.
type Runner struct {
	resolver     contracts.Resolver
	account      common.Address
	chainID      int64
	amounts      Amounts
	tradeOptions []trade.Option
	warper       Warper
	warpSeconds  int64
	runStore     storage.ScenarioRunStore
	sampleStore  storage.McapSampleStore
	metrics      *observability.Metrics
	logger       logging.Logger
	now          func() time.Time
}

// New creates a Runner.
func New(opts Options) *Runner {
	r := &Runner{
		resolver:     opts.Resolver,
		account:      opts.Account,
		chainID:      opts.ChainID,
		amounts:      DefaultAmounts(),
		tradeOptions: opts.TradeOptions,
		warper:       opts.Warper,
		warpSeconds:  opts.WarpSeconds,
		runStore:     opts.RunStore,
		sampleStore:  opts.SampleStore,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if opts.Amounts != nil {
		r.amounts = *opts.Amounts
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// outcome is a step's verdict when no remote call failed.
type outcome struct {
	passed bool
	reason string
	kind   domain.ErrorKind // expected failure observed by a passing step
	sample *domain.MarketCapSample
}

func pass(sample *domain.MarketCapSample) outcome { return outcome{passed: true, sample: sample} }

func fail(reason string, sample *domain.MarketCapSample) outcome {
	return outcome{reason: reason, sample: sample}
}

type stepFunc func(ctx context.Context, sc *Context) (outcome, error)

// Run executes every step in order and returns the run record. The error is
// non-nil only when persisting the run fails; step failures are in the record.
func (r *Runner) Run(ctx context.Context) (*domain.ScenarioRun, error) {
	started := r.now()
	run := &domain.ScenarioRun{
		Account:   r.account.Hex(),
		StartedAt: started.UnixMilli(),
	}
	sc := &Context{Account: r.account}

	steps := map[domain.Step]stepFunc{
		domain.StepDeployedCheck:     r.deployedCheck,
		domain.StepLiquidityAdded:    r.addLiquidity,
		domain.StepBought1:           r.buy,
		domain.StepSoldLarge:         r.sellLarge,
		domain.StepSoldSmallRejected: r.sellSmall,
		domain.StepBought2:           r.buy,
	}

	halted := false
	for _, step := range domain.Steps {
		if halted {
			res := domain.StepResult{Step: step, Skipped: true}
			run.Steps = append(run.Steps, res)
			r.metrics.RecordStep(res)
			continue
		}

		res := r.runStep(ctx, step, steps[step], sc)
		run.Steps = append(run.Steps, res)
		r.metrics.RecordStep(res)

		if res.Passed {
			r.logger.Infof("%s: PASS", step)
			continue
		}
		r.logger.Errorf("%s: FAIL (%s)", step, res.Error)
		halted = true
	}

	run.FinishedAt = r.now().UnixMilli()
	run.Passed = !halted
	if sc.Set != nil {
		run.Token = sc.Set.Token.Address().Hex()
	}
	run.InitialMcap = sc.InitialMcap
	run.RunID = idhash.ComputeRunID(r.chainID, run.Token, run.Account, run.StartedAt)
	for _, s := range sc.Samples {
		s.RunID = run.RunID
	}

	r.metrics.RecordRun(run.Passed)
	if run.Passed {
		r.logger.Infof("Scenario reached %s", domain.StepDone)
	} else if last := run.LastStep(); last != "" {
		r.logger.Warnf("Scenario halted after %s", last)
	}

	return run, r.persist(ctx, run, sc.Samples)
}

func (r *Runner) runStep(ctx context.Context, step domain.Step, fn stepFunc, sc *Context) domain.StepResult {
	res := domain.StepResult{Step: step, StartedAt: r.now().UnixMilli()}
	before := len(sc.Samples)

	o, err := fn(ctx, sc)
	for _, s := range sc.Samples[before:] {
		s.Step = step
	}
	res.FinishedAt = r.now().UnixMilli()
	res.Sample = o.sample

	if err != nil {
		res.ErrorKind = kindOf(err)
		res.Error = err.Error()
		return res
	}
	res.Passed = o.passed
	res.Error = o.reason
	res.ErrorKind = o.kind
	return res
}

// kindOf returns the error kind of a trade result or a raw remote error.
func kindOf(err error) domain.ErrorKind {
	var tr trade.Result
	if errors.As(err, &tr) {
		return tr.Kind
	}
	return trade.Classify(err)
}

// DEPLOYED_CHECK: every contract handle resolves.
func (r *Runner) deployedCheck(ctx context.Context, sc *Context) (outcome, error) {
	set, err := r.resolver.Resolve(ctx)
	if err != nil {
		return outcome{}, fmt.Errorf("resolve contracts: %w", err)
	}
	sc.Set = set
	sc.Engine = reconcile.NewEngine(set, r.account, r.logger)
	sc.Sequencer = trade.NewSequencer(set, r.account,
		append([]trade.Option{trade.WithLogger(r.logger), trade.WithMetrics(r.metrics)}, r.tradeOptions...)...)

	initialized, err := set.Token.Initialized(ctx)
	if err != nil {
		return outcome{}, fmt.Errorf("token initialized: %w", err)
	}
	r.logger.Infof("Token %s resolved, initialized=%v", set.Token.Address().Hex(), initialized)
	return pass(nil), nil
}

// LIQUIDITY_ADDED: the flag flips and the first sample is within tolerance.
func (r *Runner) addLiquidity(ctx context.Context, sc *Context) (outcome, error) {
	bal, err := sc.Set.Token.BalanceOf(ctx, r.account)
	if err != nil {
		return outcome{}, fmt.Errorf("token balanceOf: %w", err)
	}
	tokens := new(big.Int).Quo(bal, big.NewInt(r.amounts.LiquidityDivisor))

	if res := sc.Sequencer.AddLiquidity(ctx, r.amounts.LiquidityNative, tokens); !res.OK() {
		return outcome{}, res
	}

	initialized, err := sc.Set.Token.Initialized(ctx)
	if err != nil {
		return outcome{}, fmt.Errorf("token initialized: %w", err)
	}
	if !initialized {
		return fail("token not initialized after liquidity add", nil), nil
	}

	mcap, err := sc.Set.Token.InitialMcap(ctx)
	if err != nil {
		return outcome{}, fmt.Errorf("token initialMcap: %w", err)
	}
	sc.InitialMcap = mcap
	sc.Engine.InitialMcap = mcap

	return r.postCheck(ctx, sc)
}

// BOUGHT_1, BOUGHT_2: the post-buy sample is within tolerance.
func (r *Runner) buy(ctx context.Context, sc *Context) (outcome, error) {
	if _, err := r.preTrade(ctx, sc); err != nil {
		return outcome{}, err
	}
	if res := sc.Sequencer.Buy(ctx, r.amounts.BuyNative); !res.OK() {
		return outcome{}, res
	}
	return r.postCheck(ctx, sc)
}

// SOLD_LARGE: the post-sell sample is within tolerance.
func (r *Runner) sellLarge(ctx context.Context, sc *Context) (outcome, error) {
	pre, err := r.preTrade(ctx, sc)
	if err != nil {
		return outcome{}, err
	}
	amount := new(big.Int).Quo(pre.TokenBalance, big.NewInt(r.amounts.LargeSellDivisor))
	if res := sc.Sequencer.Sell(ctx, amount); !res.OK() {
		return outcome{}, res
	}
	return r.postCheck(ctx, sc)
}

// SOLD_SMALL_REJECTED: the undersized sell must fail and leave the token
// balance untouched. A revert and a transport failure both count as the
// rejection; the kind is kept on the step result. No post-trade sample is taken.
func (r *Runner) sellSmall(ctx context.Context, sc *Context) (outcome, error) {
	pre, err := r.preTrade(ctx, sc)
	if err != nil {
		return outcome{}, err
	}
	amount := new(big.Int).Quo(pre.TokenBalance, big.NewInt(r.amounts.SmallSellDivisor))

	res := sc.Sequencer.Sell(ctx, amount)
	if res.OK() {
		return fail(fmt.Sprintf("undersized sell of %s tokens was accepted (tx %s)",
			units.ToDecimalAmount(amount, units.DefaultPrecision), res.ActionTx.Hex()), pre), nil
	}
	r.logger.Infof("Undersized sell rejected as expected (%s): %v", res.Kind, res.Err)

	after, err := sc.Set.Token.BalanceOf(ctx, r.account)
	if err != nil {
		return outcome{}, fmt.Errorf("token balanceOf: %w", err)
	}
	if after.Cmp(pre.TokenBalance) != 0 {
		return fail(fmt.Sprintf("token balance changed on rejected sell: %s -> %s", pre.TokenBalance, after), pre), nil
	}
	if ok, err := r.stillInitialized(ctx, sc); err != nil {
		return outcome{}, err
	} else if !ok {
		return fail(reasonUninitialized, pre), nil
	}
	o := pass(pre)
	o.kind = res.Kind
	return o, nil
}

// preTrade warps the clock when configured and takes a diagnostic sample.
func (r *Runner) preTrade(ctx context.Context, sc *Context) (*domain.MarketCapSample, error) {
	if r.warper != nil && r.warpSeconds > 0 {
		if err := r.warper.AdvanceTime(ctx, r.warpSeconds); err != nil {
			return nil, fmt.Errorf("advance time: %w", err)
		}
	}
	s, err := sc.Engine.CheckMarketCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("pre-trade sample: %w", err)
	}
	s.Phase = domain.SamplePhasePre
	r.record(sc, s)
	return s, nil
}

// postCheck samples after a trade; the step passes iff the sample is within
// tolerance and the token is still initialized.
func (r *Runner) postCheck(ctx context.Context, sc *Context) (outcome, error) {
	s, err := sc.Engine.CheckMarketCap(ctx)
	if err != nil {
		return outcome{}, fmt.Errorf("post-trade sample: %w", err)
	}
	s.Phase = domain.SamplePhasePost
	r.record(sc, s)

	if ok, err := r.stillInitialized(ctx, sc); err != nil {
		return outcome{}, err
	} else if !ok {
		return fail(reasonUninitialized, s), nil
	}
	if !s.WithinTolerance {
		return fail(fmt.Sprintf("market cap %s outside 1%% of reference %s", s.OnChainMcap, s.ReferenceMcap), s), nil
	}
	return pass(s), nil
}

// The initialized flag is one-way once liquidity was added.
const reasonUninitialized = "token initialized flag reverted to false"

func (r *Runner) stillInitialized(ctx context.Context, sc *Context) (bool, error) {
	ok, err := sc.Set.Token.Initialized(ctx)
	if err != nil {
		return false, fmt.Errorf("token initialized: %w", err)
	}
	return ok, nil
}

func (r *Runner) record(sc *Context, s *domain.MarketCapSample) {
	sc.Samples = append(sc.Samples, s)
	r.metrics.RecordSample(s)
}

func (r *Runner) persist(ctx context.Context, run *domain.ScenarioRun, samples []*domain.MarketCapSample) error {
	if r.sampleStore != nil && len(samples) > 0 {
		if err := r.sampleStore.InsertBulk(ctx, samples); err != nil {
			return fmt.Errorf("store samples: %w", err)
		}
	}
	if r.runStore != nil {
		if err := r.runStore.Insert(ctx, run); err != nil {
			return fmt.Errorf("store run: %w", err)
		}
	}
	return nil
}
