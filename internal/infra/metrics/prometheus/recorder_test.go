package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	ctx := context.Background()
	r.Observe(ctx, "add_records", true, 3*time.Millisecond)
	r.Observe(ctx, "add_records", true, time.Millisecond)
	r.Observe(ctx, "add_records", false, time.Millisecond)
	r.Observe(ctx, "", true, time.Millisecond)
	r.SetRecords(12)

	if got := testutil.ToFloat64(r.results.WithLabelValues("add_records", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(r.results.WithLabelValues("add_records", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(r.records); got != 12 {
		t.Fatalf("expected gauge 12, got %v", got)
	}
	if n := testutil.CollectAndCount(r.opLatency); n != 2 {
		t.Fatalf("expected 2 latency series, got %d", n)
	}
}

func TestRecordersShareRegisteredSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, _ := NewRecorder(reg)
	b, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	b.Observe(context.Background(), "swap_record", true, time.Millisecond)
	if got := testutil.ToFloat64(a.results.WithLabelValues("swap_record", "success")); got != 1 {
		t.Fatalf("second recorder should write to the registered counter, got %v", got)
	}
}
