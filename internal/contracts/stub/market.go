// Package stub provides an in-process simulated market implementing the
// contracts interfaces: a fee-on-transfer token, a constant-product pool
// against a wrapped native asset, a stats view and a price feed.
// It backs the package tests; it is not a model of any specific token.
package stub

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"fee-token-lab/internal/contracts"
	"fee-token-lab/internal/units"
)

// Fixed stub addresses.
var (
	TokenAddress  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	PairAddress   = common.HexToAddress("0x00000000000000000000000000000000000000a2") // wrapped native
	RouterAddress = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	StatsAddress  = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	FeedAddress   = common.HexToAddress("0x00000000000000000000000000000000000000a5")
)

// Config seeds a Market.
type Config struct {
	Account       common.Address
	TokenSupply   *big.Int // minted to Account
	NativeBalance *big.Int // Account's native balance
	FeedPrice     *big.Int // e.g. 2000e8
	FeedDecimals  uint8
	PairDecimals  uint8
	FeeBps        int64    // transfer fee on swaps, basis points
	MinSell       *big.Int // sells below this amount revert; nil disables
	Now           func() time.Time
}

// DefaultConfig returns a market with 1,000,000 tokens, 10 native units and a
// 2000.00000000 feed price.
func DefaultConfig(account common.Address) Config {
	return Config{
		Account:       account,
		TokenSupply:   units.MustToBaseUnits("1000000"),
		NativeBalance: units.MustToBaseUnits("10"),
		FeedPrice:     big.NewInt(2000_00000000),
		FeedDecimals:  8,
		PairDecimals:  18,
		FeeBps:        300,
	}
}

// Market is the simulated chain state. All methods are goroutine-safe.
type Market struct {
	mu sync.Mutex

	now          func() time.Time
	account      common.Address
	tokenBal     map[common.Address]*big.Int
	nativeBal    map[common.Address]*big.Int
	allowance    map[common.Address]map[common.Address]*big.Int
	totalSupply  *big.Int
	reserveWETH  *big.Int
	reserveToken *big.Int
	initialized  bool
	initialMcap  *big.Int
	feedPrice    *big.Int
	feedDecimals uint8
	pairDecimals uint8
	feeBps       int64
	minSell      *big.Int
	txCount      int64

	failures   map[string]error
	calls      []string
	resolveErr error
}

// New creates a Market from cfg.
func New(cfg Config) *Market {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m := &Market{
		now:          now,
		account:      cfg.Account,
		tokenBal:     make(map[common.Address]*big.Int),
		nativeBal:    make(map[common.Address]*big.Int),
		allowance:    make(map[common.Address]map[common.Address]*big.Int),
		totalSupply:  clone(cfg.TokenSupply),
		reserveWETH:  new(big.Int),
		reserveToken: new(big.Int),
		feedPrice:    clone(cfg.FeedPrice),
		feedDecimals: cfg.FeedDecimals,
		pairDecimals: cfg.PairDecimals,
		feeBps:       cfg.FeeBps,
		minSell:      clone(cfg.MinSell),
		failures:     make(map[string]error),
	}
	m.tokenBal[cfg.Account] = clone(cfg.TokenSupply)
	m.nativeBal[cfg.Account] = clone(cfg.NativeBalance)
	return m
}

// FailOn makes every subsequent call of method return err until cleared with a nil err.
// Method names are the contract method names, e.g. "balanceOf", "approve".
func (m *Market) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// FailResolve makes Resolve return err.
func (m *Market) FailResolve(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveErr = err
}

// SetFeedPrice changes the oracle answer.
func (m *Market) SetFeedPrice(p *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedPrice = clone(p)
}

// SetMinSell changes the minimum sell size rule.
func (m *Market) SetMinSell(v *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minSell = clone(v)
}

// Calls returns the contract methods invoked so far, in order.
func (m *Market) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Reserves returns copies of the pool reserves (wrapped native, token).
func (m *Market) Reserves() (*big.Int, *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.reserveWETH), clone(m.reserveToken)
}

// Allowance returns owner's allowance for spender.
func (m *Market) Allowance(owner, spender common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.allowanceOf(owner, spender))
}

// Resolve implements contracts.Resolver.
func (m *Market) Resolve(_ context.Context) (*contracts.Set, error) {
	m.mu.Lock()
	err := m.resolveErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &contracts.Set{
		Token:     &Token{m: m},
		Pair:      &Pair{m: m},
		Router:    &Router{m: m},
		Stats:     &Stats{m: m},
		PriceFeed: &Feed{m: m},
		Ledger:    &Ledger{m: m},
	}, nil
}

var _ contracts.Resolver = (*Market)(nil)

// enter records the call and returns an injected failure. Caller holds mu.
func (m *Market) enter(method string) error {
	m.calls = append(m.calls, method)
	if err := m.failures[method]; err != nil {
		return err
	}
	return nil
}

// sender is the signer of every stub transaction.
func (m *Market) sender() common.Address { return m.account }

func (m *Market) nextTx() common.Hash {
	m.txCount++
	return common.BigToHash(big.NewInt(m.txCount))
}

func (m *Market) balance(acc common.Address) *big.Int {
	if b, ok := m.tokenBal[acc]; ok {
		return b
	}
	return new(big.Int)
}

func (m *Market) native(acc common.Address) *big.Int {
	if b, ok := m.nativeBal[acc]; ok {
		return b
	}
	return new(big.Int)
}

func (m *Market) allowanceOf(owner, spender common.Address) *big.Int {
	if a, ok := m.allowance[owner][spender]; ok {
		return a
	}
	return new(big.Int)
}

func (m *Market) setAllowance(owner, spender common.Address, v *big.Int) {
	if m.allowance[owner] == nil {
		m.allowance[owner] = make(map[common.Address]*big.Int)
	}
	m.allowance[owner][spender] = v
}

// dilutedMcap is price-in-feed-units * supply, floored to whole units.
// Caller holds mu.
func (m *Market) dilutedMcap() *big.Int {
	if m.reserveToken.Sign() == 0 {
		return new(big.Int)
	}
	num := new(big.Int).Mul(m.feedPrice, m.totalSupply)
	num.Mul(num, m.reserveWETH)
	den := new(big.Int).Mul(m.reserveToken, units.Pow10(m.pairDecimals))
	den.Mul(den, units.Pow10(m.feedDecimals))
	return num.Quo(num, den)
}

func (m *Market) checkDeadline(deadline *big.Int) error {
	if deadline == nil || deadline.Int64() < m.now().Unix() {
		return revert("UniswapV2Router: EXPIRED")
	}
	return nil
}

// amountOut is the Uniswap V2 constant-product output with a 0.3% pool fee.
func amountOut(in, reserveIn, reserveOut *big.Int) *big.Int {
	inWithFee := new(big.Int).Mul(in, big.NewInt(997))
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(1000))
	den.Add(den, inWithFee)
	return num.Quo(num, den)
}

func (m *Market) transferFee(amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(m.feeBps))
	return fee.Quo(fee, big.NewInt(10000))
}

func revert(reason string) error {
	return fmt.Errorf("%w: %s", contracts.ErrReverted, reason)
}

func clone(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
