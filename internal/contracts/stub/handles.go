package stub

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"fee-token-lab/internal/contracts"
)

// Token is the simulated token handle.
type Token struct{ m *Market }

// Pair is the simulated wrapped-native metadata handle.
type Pair struct{ m *Market }

// Router is the simulated DEX router handle.
type Router struct{ m *Market }

// Stats is the simulated DEX stats handle.
type Stats struct{ m *Market }

// Feed is the simulated price feed handle.
type Feed struct{ m *Market }

// Ledger is the simulated native-balance reader.
type Ledger struct{ m *Market }

var (
	_ contracts.Token     = (*Token)(nil)
	_ contracts.Pair      = (*Pair)(nil)
	_ contracts.Router    = (*Router)(nil)
	_ contracts.Stats     = (*Stats)(nil)
	_ contracts.PriceFeed = (*Feed)(nil)
	_ contracts.Ledger    = (*Ledger)(nil)
)

func (t *Token) Address() common.Address { return TokenAddress }

func (t *Token) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.enter("balanceOf"); err != nil {
		return nil, err
	}
	return clone(t.m.balance(account)), nil
}

func (t *Token) TotalSupply(_ context.Context) (*big.Int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.enter("totalSupply"); err != nil {
		return nil, err
	}
	return clone(t.m.totalSupply), nil
}

func (t *Token) Initialized(_ context.Context) (bool, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.enter("initialized"); err != nil {
		return false, err
	}
	return t.m.initialized, nil
}

func (t *Token) InitialMcap(_ context.Context) (*big.Int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.enter("initialMcap"); err != nil {
		return nil, err
	}
	if t.m.initialMcap == nil {
		return new(big.Int), nil
	}
	return clone(t.m.initialMcap), nil
}

func (t *Token) DEXStatsAddress(_ context.Context) (common.Address, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.enter("getDEXStatsAddress"); err != nil {
		return common.Address{}, err
	}
	return StatsAddress, nil
}

// Approve sets the allowance of the stub's single sender. The sender is the
// market's seeded account.
func (t *Token) Approve(_ context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.enter("approve"); err != nil {
		return common.Hash{}, err
	}
	t.m.setAllowance(t.m.sender(), spender, clone(amount))
	return t.m.nextTx(), nil
}

func (p *Pair) Address() common.Address { return PairAddress }

func (p *Pair) Decimals(_ context.Context) (uint8, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	if err := p.m.enter("pair.decimals"); err != nil {
		return 0, err
	}
	return p.m.pairDecimals, nil
}

func (s *Stats) Address() common.Address { return StatsAddress }

// TokenDilutedMarketcap returns the market cap in whole feed units; precision
// is accepted for interface parity only.
func (s *Stats) TokenDilutedMarketcap(_ context.Context, _ uint8) (*big.Int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.enter("getTOKENdilutedMarketcap"); err != nil {
		return nil, err
	}
	return s.m.dilutedMcap(), nil
}

func (s *Stats) ReservesPairToken(_ context.Context) ([2]*big.Int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.enter("getReservesPairToken"); err != nil {
		return [2]*big.Int{}, err
	}
	return [2]*big.Int{clone(s.m.reserveWETH), clone(s.m.reserveToken)}, nil
}

func (f *Feed) Address() common.Address { return FeedAddress }

func (f *Feed) LatestAnswer(_ context.Context) (*big.Int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if err := f.m.enter("latestAnswer"); err != nil {
		return nil, err
	}
	return clone(f.m.feedPrice), nil
}

func (f *Feed) Decimals(_ context.Context) (uint8, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if err := f.m.enter("feed.decimals"); err != nil {
		return 0, err
	}
	return f.m.feedDecimals, nil
}

func (l *Ledger) NativeBalance(_ context.Context, account common.Address) (*big.Int, error) {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if err := l.m.enter("eth_getBalance"); err != nil {
		return nil, err
	}
	return clone(l.m.native(account)), nil
}
