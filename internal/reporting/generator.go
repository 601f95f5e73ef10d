package reporting

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/storage"
	"fee-token-lab/internal/units"
)

// balancePrecision is the number of fractional digits shown for balances.
const balancePrecision = 6

// Generator produces reports from stored runs and samples.
type Generator struct {
	runStore    storage.ScenarioRunStore
	sampleStore storage.McapSampleStore
	now         func() time.Time
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.ScenarioRunStore, sampleStore storage.McapSampleStore) *Generator {
	return &Generator{
		runStore:    runStore,
		sampleStore: sampleStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of one run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	samples, err := g.sampleStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load samples of %s: %w", runID, err)
	}

	steps := make([]StepRow, 0, len(run.Steps))
	for _, s := range run.Steps {
		steps = append(steps, stepRow(s))
	}

	rows := make([]SampleRow, 0, len(samples))
	for _, m := range samples {
		rows = append(rows, sampleRow(m))
	}

	return &Report{
		GeneratedAt: g.now(),
		Run:         summarize(run),
		Steps:       steps,
		Samples:     rows,
	}, nil
}

// Index summarizes the runs against token, or every run when token is empty.
func (g *Generator) Index(ctx context.Context, token string) ([]RunSummary, error) {
	var (
		runs []*domain.ScenarioRun
		err  error
	)
	if token == "" {
		runs, err = g.runStore.GetAll(ctx)
	} else {
		runs, err = g.runStore.GetByToken(ctx, token)
	}
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, summarize(r))
	}
	return out, nil
}

func summarize(r *domain.ScenarioRun) RunSummary {
	s := RunSummary{
		RunID:       r.RunID,
		Token:       r.Token,
		Account:     r.Account,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		InitialMcap: intString(r.InitialMcap),
		LastStep:    string(r.LastStep()),
		Passed:      r.Passed,
	}
	if f := r.FailedStep(); f != nil {
		s.FailedStep = string(f.Step)
	}
	return s
}

func stepRow(s domain.StepResult) StepRow {
	status := "FAIL"
	switch {
	case s.Skipped:
		status = "SKIPPED"
	case s.Passed:
		status = "PASS"
	}
	var d int64
	if s.FinishedAt > s.StartedAt {
		d = s.FinishedAt - s.StartedAt
	}
	return StepRow{
		Step:       string(s.Step),
		Status:     status,
		ErrorKind:  string(s.ErrorKind),
		Error:      s.Error,
		DurationMs: d,
	}
}

func sampleRow(m *domain.MarketCapSample) SampleRow {
	return SampleRow{
		Step:            string(m.Step),
		Phase:           m.Phase,
		SampledAt:       m.SampledAt,
		OnChainMcap:     intString(m.OnChainMcap),
		ReferenceMcap:   intString(m.ReferenceMcap),
		DeviationPct:    m.Deviation() * 100,
		WithinTolerance: m.WithinTolerance,
		TokenBalance:    amount(m.TokenBalance),
		NativeBalance:   amount(m.NativeBalance),
		FeedPrice:       feedPrice(m.FeedPrice, m.FeedDecimals),
		Reserve0:        amountAt(m.Reserve0, m.PairDecimals),
		Reserve1:        amount(m.Reserve1),
		PairAmount:      intString(m.PairAmount),
	}
}

func intString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func amount(v *big.Int) string {
	return amountAt(v, units.DefaultDecimals)
}

func amountAt(v *big.Int, decimals uint8) string {
	if v == nil {
		return ""
	}
	return units.ToDecimalAmountWithDecimals(v, decimals, balancePrecision)
}

func feedPrice(v *big.Int, decimals uint8) string {
	if v == nil {
		return ""
	}
	return units.ToDecimalAmountWithDecimals(v, decimals, int(decimals))
}
