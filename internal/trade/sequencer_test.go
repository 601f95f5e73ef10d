package trade

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"fee-token-lab/internal/contracts"
	"fee-token-lab/internal/contracts/stub"
	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/units"
)

var account = common.HexToAddress("0x00000000000000000000000000000000000000ff")

func newSequencer(t *testing.T, opts ...Option) (*stub.Market, *contracts.Set, *Sequencer) {
	t.Helper()
	m := stub.New(stub.DefaultConfig(account))
	set, err := m.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return m, set, NewSequencer(set, account, opts...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, domain.ErrorKindNone},
		{"revert", contracts.ErrReverted, domain.ErrorKindReverted},
		{"wrapped revert", fmt.Errorf("swap: %w", contracts.ErrReverted), domain.ErrorKindReverted},
		{"transport", errors.New("dial tcp: connection refused"), domain.ErrorKindTransport},
		{"context", context.DeadlineExceeded, domain.ErrorKindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestDeadline_UsesClock(t *testing.T) {
	chainNow := time.Unix(1_800_000_000, 0)
	_, _, s := newSequencer(t, WithClock(func(context.Context) (time.Time, error) { return chainNow, nil }))

	d, err := s.Deadline(context.Background())
	if err != nil {
		t.Fatalf("Deadline: %v", err)
	}
	if d.Int64() != chainNow.Unix()+3600 {
		t.Errorf("deadline = %d, want %d", d.Int64(), chainNow.Unix()+3600)
	}
}

func TestAddLiquidity(t *testing.T) {
	ctx := context.Background()
	m, set, s := newSequencer(t)

	res := s.AddLiquidity(ctx, units.MustToBaseUnits("1"), units.MustToBaseUnits("500000"))
	if !res.OK() {
		t.Fatalf("AddLiquidity failed: %v", res.Err)
	}
	if res.ApproveTx == (common.Hash{}) || res.ActionTx == (common.Hash{}) {
		t.Error("expected both tx hashes")
	}
	ok, _ := set.Token.Initialized(ctx)
	if !ok {
		t.Error("expected initialized")
	}

	calls := m.Calls()
	if calls[0] != "approve" || calls[1] != "addLiquidityETH" {
		t.Errorf("calls = %v, want approve then addLiquidityETH", calls)
	}
}

func TestAddLiquidity_NativeBelowFloorReverts(t *testing.T) {
	_, _, s := newSequencer(t)
	res := s.AddLiquidity(context.Background(), units.MustToBaseUnits("0.5"), units.MustToBaseUnits("1000"))
	if !res.Reverted() {
		t.Fatalf("expected revert, got kind %q err %v", res.Kind, res.Err)
	}
	if res.Stage != StageAction {
		t.Errorf("stage = %q, want action", res.Stage)
	}
}

func TestAddLiquidity_ApproveFailureStopsSequence(t *testing.T) {
	m, _, s := newSequencer(t)
	m.FailOn("approve", errors.New("nonce too low"))

	res := s.AddLiquidity(context.Background(), units.MustToBaseUnits("1"), units.MustToBaseUnits("1000"))
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Stage != StageApprove || res.Kind != domain.ErrorKindTransport {
		t.Errorf("stage/kind = %q/%q", res.Stage, res.Kind)
	}
	for _, c := range m.Calls() {
		if c == "addLiquidityETH" {
			t.Error("router called after failed approve")
		}
	}
}

func TestBuy(t *testing.T) {
	ctx := context.Background()
	m, set, s := newSequencer(t)
	if res := s.AddLiquidity(ctx, units.MustToBaseUnits("1"), units.MustToBaseUnits("500000")); !res.OK() {
		t.Fatalf("AddLiquidity: %v", res.Err)
	}
	before, _ := set.Token.BalanceOf(ctx, account)

	res := s.Buy(ctx, units.MustToBaseUnits("0.02"))
	if !res.OK() {
		t.Fatalf("Buy: %v", res.Err)
	}
	calls := m.Calls()
	if res.ApproveTx != (common.Hash{}) {
		t.Error("buy must not approve")
	}
	after, _ := set.Token.BalanceOf(ctx, account)
	if after.Cmp(before) <= 0 {
		t.Errorf("token balance did not grow: %s -> %s", before, after)
	}

	tail := calls[len(calls)-2:]
	if tail[0] != "WETH" || tail[1] != "swapExactETHForTokensSupportingFeeOnTransferTokens" {
		t.Errorf("calls tail = %v", tail)
	}
}

func TestBuy_ExpiredClockReverts(t *testing.T) {
	ctx := context.Background()
	_, _, s := newSequencer(t)
	if res := s.AddLiquidity(ctx, units.MustToBaseUnits("1"), units.MustToBaseUnits("500000")); !res.OK() {
		t.Fatalf("AddLiquidity: %v", res.Err)
	}

	s.clock = func(context.Context) (time.Time, error) { return time.Now().Add(-2 * time.Hour), nil }
	res := s.Buy(ctx, units.MustToBaseUnits("0.02"))
	if !res.Reverted() {
		t.Fatalf("expected revert on expired deadline, got %q %v", res.Kind, res.Err)
	}
}

func TestBuy_ClockError(t *testing.T) {
	boom := errors.New("eth_getBlockByNumber: timeout")
	_, _, s := newSequencer(t, WithClock(func(context.Context) (time.Time, error) { return time.Time{}, boom }))

	res := s.Buy(context.Background(), big.NewInt(1))
	if !errors.Is(res.Err, boom) || res.Stage != StageClock || res.Kind != domain.ErrorKindTransport {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSell_RejectedLeavesApproval(t *testing.T) {
	ctx := context.Background()
	m, set, s := newSequencer(t)
	if res := s.AddLiquidity(ctx, units.MustToBaseUnits("1"), units.MustToBaseUnits("500000")); !res.OK() {
		t.Fatalf("AddLiquidity: %v", res.Err)
	}
	m.SetMinSell(units.MustToBaseUnits("50000"))
	before, _ := set.Token.BalanceOf(ctx, account)

	amount := units.MustToBaseUnits("1000")
	res := s.Sell(ctx, amount)
	if !res.Reverted() {
		t.Fatalf("expected revert, got %q %v", res.Kind, res.Err)
	}
	if res.ApproveTx == (common.Hash{}) || res.ActionTx != (common.Hash{}) {
		t.Error("expected approve hash only")
	}
	after, _ := set.Token.BalanceOf(ctx, account)
	if after.Cmp(before) != 0 {
		t.Errorf("balance changed: %s -> %s", before, after)
	}
	if m.Allowance(account, stub.RouterAddress).Cmp(amount) != 0 {
		t.Error("approval should remain after failed sell")
	}
}

func TestSell(t *testing.T) {
	ctx := context.Background()
	_, set, s := newSequencer(t)
	if res := s.AddLiquidity(ctx, units.MustToBaseUnits("1"), units.MustToBaseUnits("500000")); !res.OK() {
		t.Fatalf("AddLiquidity: %v", res.Err)
	}
	nativeBefore, _ := set.Ledger.NativeBalance(ctx, account)

	res := s.Sell(ctx, units.MustToBaseUnits("250000"))
	if !res.OK() {
		t.Fatalf("Sell: %v", res.Err)
	}
	nativeAfter, _ := set.Ledger.NativeBalance(ctx, account)
	if nativeAfter.Cmp(nativeBefore) <= 0 {
		t.Errorf("native did not grow: %s -> %s", nativeBefore, nativeAfter)
	}
}

func TestResultError(t *testing.T) {
	r := Result{Op: OpSell, Stage: StageAction, Kind: domain.ErrorKindReverted, Err: errors.New("min sell")}
	if got := r.Error(); got != "sell action (REVERTED): min sell" {
		t.Errorf("Error() = %q", got)
	}
	if (Result{}).Error() != "" {
		t.Error("expected empty message for success")
	}
}
