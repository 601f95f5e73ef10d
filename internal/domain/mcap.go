package domain

import "math/big"

// MarketCapSample is one reconciliation of the on-chain diluted market cap
// against the market cap derived from pool reserves and the price feed.
// Produced fresh on every check.
type MarketCapSample struct {
	RunID     string // empty when not part of a scenario run
	Step      Step   // step during which the sample was taken
	Phase     string // SamplePhasePre | SamplePhasePost
	SampledAt int64  // Unix ms

	OnChainMcap     *big.Int // StatsView diluted market cap
	ReferenceMcap   *big.Int // derived from reserves, supply and price feed
	WithinTolerance bool

	// Inputs, kept for diagnostics.
	TokenBalance  *big.Int
	NativeBalance *big.Int
	FeedPrice     *big.Int
	FeedDecimals  uint8
	Reserve0      *big.Int // reference asset reserve
	Reserve1      *big.Int // token reserve
	PairDecimals  uint8
	TotalSupply   *big.Int
	PairAmount    *big.Int // reserve0 scaled to 1000-fixed-point
}

// Sample phase constants.
const (
	SamplePhasePre  = "pre"
	SamplePhasePost = "post"
)

// Deviation returns (onChain - reference) / reference as a float, for
// reporting only. Returns 0 when the reference is zero.
func (s *MarketCapSample) Deviation() float64 {
	if s == nil || s.ReferenceMcap == nil || s.OnChainMcap == nil || s.ReferenceMcap.Sign() == 0 {
		return 0
	}
	diff := new(big.Rat).SetFrac(new(big.Int).Sub(s.OnChainMcap, s.ReferenceMcap), s.ReferenceMcap)
	f, _ := diff.Float64()
	return f
}
