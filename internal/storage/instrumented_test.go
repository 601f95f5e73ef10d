package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/observability"
	"fee-token-lab/internal/storage"
	"fee-token-lab/internal/storage/memory"
)

func TestInstrumentRuns(t *testing.T) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	store := storage.InstrumentRuns(memory.NewScenarioRunStore(), m, "postgres")
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.ScenarioRun{RunID: "r1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, &domain.ScenarioRun{RunID: "r1"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if got := counter(t, m.DBQueryErrors, "postgres", "insert_run"); got != 1 {
		t.Errorf("insert errors = %v, want 1", got)
	}
	if got := counter(t, m.DBQueryErrors, "postgres", "get_run"); got != 1 {
		t.Errorf("get errors = %v, want 1", got)
	}
	if got := observations(t, m.DBQueryDuration, "postgres", "insert_run"); got != 2 {
		t.Errorf("insert observations = %d, want 2", got)
	}
}

func TestInstrumentSamples(t *testing.T) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	store := storage.InstrumentSamples(memory.NewMcapSampleStore(), m, "clickhouse")
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.MarketCapSample{{RunID: "r1", Step: domain.StepBought1, Phase: domain.SamplePhasePost}})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}
	got, err := store.GetByRunID(ctx, "r1")
	if err != nil || len(got) != 1 {
		t.Fatalf("GetByRunID = %d samples, %v", len(got), err)
	}
	if n := observations(t, m.DBQueryDuration, "clickhouse", "get_samples"); n != 1 {
		t.Errorf("get observations = %d, want 1", n)
	}
}

func TestInstrumentNilMetrics(t *testing.T) {
	runs := memory.NewScenarioRunStore()
	if storage.InstrumentRuns(runs, nil, "postgres") != storage.ScenarioRunStore(runs) {
		t.Error("nil metrics should return the store unchanged")
	}
}

func counter(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var out dto.Metric
	if err := vec.WithLabelValues(labels...).Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return out.Counter.GetValue()
}

func observations(t *testing.T, vec *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	var out dto.Metric
	if err := vec.WithLabelValues(labels...).(prometheus.Metric).Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return out.Histogram.GetSampleCount()
}
