package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"faturas/model"
)

func TestObserveRunCountsOutcomes(t *testing.T) {
	m := NewExtraction()
	m.ObserveRun(map[model.Outcome]int{model.OutcomeSuccess: 3, model.OutcomeRetained: 1, model.OutcomeNoInvoice: 0}, false)
	m.ObserveRun(map[model.Outcome]int{model.OutcomeSuccess: 2}, true)

	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("success")); got != 5 {
		t.Fatalf("success = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("cancelled")); got != 1 {
		t.Fatalf("cancelled runs = %v, want 1", got)
	}
}

func TestProgressAndNilSafety(t *testing.T) {
	m := NewExtraction()
	m.SetProgress(1, 4)
	if got := testutil.ToFloat64(m.progress); got != 0.25 {
		t.Fatalf("progress = %v", got)
	}
	m.ObserveAccount("COELBA", 2*time.Second)

	var nilMetrics *Extraction
	nilMetrics.SetProgress(1, 2)
	nilMetrics.ObserveAccount("x", time.Second)
	nilMetrics.ObserveRun(nil, false)
	if nilMetrics.Handler() == nil {
		t.Fatalf("nil metrics must still return a handler")
	}
}
