package reporting

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/storage"
	"fee-token-lab/internal/storage/memory"
	"fee-token-lab/internal/units"
)

var fixedTime = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func setupTestData(t *testing.T) (*memory.ScenarioRunStore, *memory.McapSampleStore) {
	t.Helper()
	ctx := context.Background()

	runs := memory.NewScenarioRunStore()
	samples := memory.NewMcapSampleStore()

	passed := &domain.ScenarioRun{
		RunID:       "run-pass-0123456789",
		Token:       "0xA1",
		Account:     "0xB1",
		StartedAt:   1_700_000_000_000,
		FinishedAt:  1_700_000_004_000,
		InitialMcap: big.NewInt(4000),
		Passed:      true,
	}
	for i, s := range domain.Steps {
		at := passed.StartedAt + int64(i)*500
		passed.Steps = append(passed.Steps, domain.StepResult{Step: s, Passed: true, StartedAt: at, FinishedAt: at + 250})
	}

	failed := &domain.ScenarioRun{
		RunID:      "run-fail",
		Token:      "0xa1",
		Account:    "0xB1",
		StartedAt:  1_700_000_100_000,
		FinishedAt: 1_700_000_100_300,
		Steps: []domain.StepResult{
			{Step: domain.StepDeployedCheck, Passed: true},
			{Step: domain.StepLiquidityAdded, ErrorKind: domain.ErrorKindReverted, Error: "execution reverted: a|b"},
			{Step: domain.StepBought1, Skipped: true},
		},
	}

	other := &domain.ScenarioRun{RunID: "run-other", Token: "0xC3", StartedAt: 1_600_000_000_000}

	for _, r := range []*domain.ScenarioRun{failed, passed, other} {
		if err := runs.Insert(ctx, r); err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}

	err := samples.InsertBulk(ctx, []*domain.MarketCapSample{
		{
			RunID: passed.RunID, Step: domain.StepBought1, Phase: domain.SamplePhasePost, SampledAt: 2000,
			OnChainMcap: big.NewInt(4040), ReferenceMcap: big.NewInt(4000), WithinTolerance: true,
			TokenBalance: units.MustToBaseUnits("500000.5"), NativeBalance: units.MustToBaseUnits("8.98"),
			FeedPrice: big.NewInt(2000_00000000), FeedDecimals: 8,
			Reserve0: units.MustToBaseUnits("1.02"), Reserve1: units.MustToBaseUnits("490000"), PairDecimals: 18,
			PairAmount: big.NewInt(1020),
		},
		{
			RunID: passed.RunID, Step: domain.StepLiquidityAdded, Phase: domain.SamplePhasePost, SampledAt: 1000,
			OnChainMcap: big.NewInt(4000), ReferenceMcap: big.NewInt(4000), WithinTolerance: true,
		},
	})
	if err != nil {
		t.Fatalf("insert samples: %v", err)
	}

	return runs, samples
}

func TestGenerate(t *testing.T) {
	runs, samples := setupTestData(t)
	g := NewGenerator(runs, samples).WithClock(func() time.Time { return fixedTime })

	r, err := g.Generate(context.Background(), "run-pass-0123456789")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !r.GeneratedAt.Equal(fixedTime) {
		t.Errorf("expected GeneratedAt %v, got %v", fixedTime, r.GeneratedAt)
	}
	if r.Run.LastStep != string(domain.StepDone) {
		t.Errorf("expected last step DONE, got %s", r.Run.LastStep)
	}
	if r.Run.InitialMcap != "4000" {
		t.Errorf("expected initial mcap 4000, got %s", r.Run.InitialMcap)
	}
	if len(r.Steps) != len(domain.Steps) {
		t.Fatalf("expected %d steps, got %d", len(domain.Steps), len(r.Steps))
	}
	if r.Steps[0].DurationMs != 250 || r.Steps[0].Status != "PASS" {
		t.Errorf("unexpected first step row %+v", r.Steps[0])
	}

	if len(r.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(r.Samples))
	}
	if r.Samples[0].Step != string(domain.StepLiquidityAdded) {
		t.Errorf("samples not in sampled_at order: %s first", r.Samples[0].Step)
	}
	s := r.Samples[1]
	if s.TokenBalance != "500000.500000" {
		t.Errorf("token balance = %s", s.TokenBalance)
	}
	if s.NativeBalance != "8.980000" {
		t.Errorf("native balance = %s", s.NativeBalance)
	}
	if s.FeedPrice != "2000.00000000" {
		t.Errorf("feed price = %s", s.FeedPrice)
	}
	if s.DeviationPct < 0.999 || s.DeviationPct > 1.001 {
		t.Errorf("deviation = %f, want 1", s.DeviationPct)
	}
	if r.Samples[0].TokenBalance != "" {
		t.Errorf("nil balance should render empty, got %q", r.Samples[0].TokenBalance)
	}
}

func TestGenerate_FailedRun(t *testing.T) {
	runs, samples := setupTestData(t)
	g := NewGenerator(runs, samples)

	r, err := g.Generate(context.Background(), "run-fail")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if r.Run.FailedStep != string(domain.StepLiquidityAdded) {
		t.Errorf("expected failed step LIQUIDITY_ADDED, got %q", r.Run.FailedStep)
	}
	if r.Run.LastStep != string(domain.StepDeployedCheck) {
		t.Errorf("expected last step DEPLOYED_CHECK, got %q", r.Run.LastStep)
	}
	want := []string{"PASS", "FAIL", "SKIPPED"}
	for i, s := range r.Steps {
		if s.Status != want[i] {
			t.Errorf("step %d status = %s, want %s", i, s.Status, want[i])
		}
	}
	if len(r.Samples) != 0 {
		t.Errorf("expected no samples, got %d", len(r.Samples))
	}
}

func TestGenerate_NotFound(t *testing.T) {
	runs, samples := setupTestData(t)

	_, err := NewGenerator(runs, samples).Generate(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIndex(t *testing.T) {
	runs, samples := setupTestData(t)
	g := NewGenerator(runs, samples)

	all, err := g.Index(context.Background(), "")
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if len(all) != 3 || all[0].RunID != "run-other" {
		t.Fatalf("unexpected index %+v", all)
	}

	byToken, err := g.Index(context.Background(), "0xa1")
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if len(byToken) != 2 {
		t.Fatalf("expected 2 runs for token, got %d", len(byToken))
	}
	if byToken[0].RunID != "run-pass-0123456789" || byToken[1].RunID != "run-fail" {
		t.Errorf("unexpected order: %s, %s", byToken[0].RunID, byToken[1].RunID)
	}
}

func TestRenderMarkdown(t *testing.T) {
	runs, samples := setupTestData(t)
	g := NewGenerator(runs, samples).WithClock(func() time.Time { return fixedTime })

	r, err := g.Generate(context.Background(), "run-fail")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Scenario Run run-fail",
		"Generated: 2024-06-15T10:30:00Z",
		"## Summary",
		"| Status | FAILED |",
		"| Failed Step | LIQUIDITY_ADDED |",
		"## Steps",
		"| LIQUIDITY_ADDED | FAIL | REVERTED | 0 | execution reverted: a\\|b |",
		"No samples recorded.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestRenderIndexMarkdown(t *testing.T) {
	runs, samples := setupTestData(t)
	all, err := NewGenerator(runs, samples).Index(context.Background(), "")
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	md := RenderIndexMarkdown(all, fixedTime)
	if !strings.Contains(md, "Runs: 3") {
		t.Errorf("missing run count:\n%s", md)
	}
	if !strings.Contains(md, "| run-pass-012 | 0xA1 |") {
		t.Errorf("run id not shortened:\n%s", md)
	}
	if !strings.Contains(RenderIndexMarkdown(nil, fixedTime), "No runs recorded.") {
		t.Error("empty index should say so")
	}
}

func TestRenderCSV(t *testing.T) {
	runs, samples := setupTestData(t)
	r, err := NewGenerator(runs, samples).Generate(context.Background(), "run-pass-0123456789")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(RenderCSV(r.Samples)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "step,phase,sampled_at,onchain_mcap,reference_mcap") {
		t.Errorf("unexpected header %q", lines[0])
	}
	want := "BOUGHT_1,post,2000,4040,4000,1.000000,true,500000.500000,8.980000,2000.00000000,1.020000,490000.000000,1020"
	if lines[2] != want {
		t.Errorf("row = %q\nwant  %q", lines[2], want)
	}

	steps := strings.Split(strings.TrimSpace(RenderStepsCSV(r.Steps)), "\n")
	if len(steps) != len(domain.Steps)+1 {
		t.Errorf("expected %d step lines, got %d", len(domain.Steps)+1, len(steps))
	}
	if steps[1] != `DEPLOYED_CHECK,PASS,,250,""` {
		t.Errorf("unexpected step row %q", steps[1])
	}
}
