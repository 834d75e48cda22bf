package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordRefresh(t *testing.T) {
	// Reset metrics before test
	refreshTotal.Reset()

	RecordRefresh("timer", "ok")

	metric := &dto.Metric{}
	if err := refreshTotal.WithLabelValues("timer", "ok").Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("Expected counter value 1, got %f", metric.Counter.GetValue())
	}

	RecordRefresh("timer", "ok")
	RecordRefresh("manual", "transport")
	if got := testutil.ToFloat64(refreshTotal.WithLabelValues("timer", "ok")); got != 2 {
		t.Errorf("Expected counter value 2, got %f", got)
	}
	if got := testutil.ToFloat64(refreshTotal.WithLabelValues("manual", "transport")); got != 1 {
		t.Errorf("Expected counter value 1, got %f", got)
	}
}

func TestRecordFetchDuration(t *testing.T) {
	RecordFetchDuration(0.2)
	RecordFetchDuration(3)

	metric := &dto.Metric{}
	if err := fetchDuration.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() < 2 {
		t.Errorf("Expected at least 2 samples, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestGaugesAndCounters(t *testing.T) {
	SetCachedTasks(25)
	if got := testutil.ToFloat64(cachedTasks); got != 25 {
		t.Errorf("Expected gauge 25, got %f", got)
	}

	before := testutil.ToFloat64(skippedTicksTotal)
	RecordSkippedTick()
	if got := testutil.ToFloat64(skippedTicksTotal); got != before+1 {
		t.Errorf("Expected skipped ticks %f, got %f", before+1, got)
	}

	uploadsTotal.Reset()
	RecordUpload("ok")
	RecordUpload("invalid")
	RecordUpload("ok")
	if got := testutil.ToFloat64(uploadsTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("Expected 2 successful uploads, got %f", got)
	}
}
