package observability

import (
	"io"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"fee-token-lab/internal/domain"
)

func TestRecordStep(t *testing.T) {
	m := NewMetrics("", prometheus.NewRegistry())

	m.RecordStep(domain.StepResult{Step: domain.StepBought1, Passed: true})
	m.RecordStep(domain.StepResult{Step: domain.StepBought1, Passed: true})
	m.RecordStep(domain.StepResult{Step: domain.StepSoldLarge})
	m.RecordStep(domain.StepResult{Step: domain.StepBought2, Skipped: true})

	if got := value(t, m.StepsTotal.WithLabelValues("BOUGHT_1", "pass")); got != 2 {
		t.Errorf("BOUGHT_1 pass = %v, want 2", got)
	}
	if got := value(t, m.StepsTotal.WithLabelValues("SOLD_LARGE", "fail")); got != 1 {
		t.Errorf("SOLD_LARGE fail = %v, want 1", got)
	}
	if got := value(t, m.StepsTotal.WithLabelValues("BOUGHT_2", "skipped")); got != 1 {
		t.Errorf("BOUGHT_2 skipped = %v, want 1", got)
	}
}

func TestRecordSample(t *testing.T) {
	m := NewMetrics("", prometheus.NewRegistry())

	m.RecordSample(&domain.MarketCapSample{
		OnChainMcap:     big.NewInt(1005),
		ReferenceMcap:   big.NewInt(1000),
		WithinTolerance: true,
	})

	if got := value(t, m.SamplesTotal.WithLabelValues("true")); got != 1 {
		t.Errorf("within=true = %v, want 1", got)
	}
	if got := value(t, m.DeviationRatio); got < 0.0049 || got > 0.0051 {
		t.Errorf("deviation = %v, want 0.005", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordStep(domain.StepResult{Step: domain.StepBought1})
	m.RecordRun(true)
	m.RecordSample(&domain.MarketCapSample{})
	m.RecordTrade("buy", "OK")
	m.ObserveRemoteCall("approve", time.Second)
	m.RecordDBQuery("postgres", "insert", time.Second, nil)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.RecordTrade("buy", "OK")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `test_trade_results_total{kind="OK",op="buy"} 1`) {
		t.Errorf("metric not exposed:\n%s", body)
	}
}

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}
