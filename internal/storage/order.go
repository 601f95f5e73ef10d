package storage

import (
	"sort"

	"fee-token-lab/internal/domain"
)

// SortSamples orders samples by sampled_at, then by step order with the
// pre-trade sample before the post-trade one.
func SortSamples(samples []*domain.MarketCapSample) {
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].SampledAt != samples[j].SampledAt {
			return samples[i].SampledAt < samples[j].SampledAt
		}
		return sampleRank(samples[i]) < sampleRank(samples[j])
	})
}

func sampleRank(m *domain.MarketCapSample) int {
	idx := len(domain.Steps)
	for i, s := range domain.Steps {
		if s == m.Step {
			idx = i
			break
		}
	}
	idx *= 2
	if m.Phase == domain.SamplePhasePost {
		idx++
	}
	return idx
}
