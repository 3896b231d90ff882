package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func histogramCount(t *testing.T, observer prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := observer.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not expose a metric", observer)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordStageSkipsZeroDurations(t *testing.T) {
	before := histogramCount(t, stageDuration.WithLabelValues("cover"))
	RecordStage("cover", "success", 3*time.Second)
	RecordStage("cover", "skipped", 0)
	if got := histogramCount(t, stageDuration.WithLabelValues("cover")); got != before+1 {
		t.Fatalf("expected %d observations, got %d", before+1, got)
	}
}

func TestRecordTickObservesDuration(t *testing.T) {
	before := histogramCount(t, tickDuration)
	RecordTick(5*time.Millisecond, 1)
	if got := histogramCount(t, tickDuration); got != before+1 {
		t.Fatalf("expected %d observations, got %d", before+1, got)
	}
}

func TestRecordStageCountsByLabel(t *testing.T) {
	before := testutil.ToFloat64(stageOutcomes.WithLabelValues("metadata", "timeout"))
	RecordStage("metadata", "timeout", 2*time.Second)
	RecordStage("metadata", "timeout", 0)
	if got := testutil.ToFloat64(stageOutcomes.WithLabelValues("metadata", "timeout")); got != before+2 {
		t.Fatalf("expected %v, got %v", before+2, got)
	}
}

func TestRecordTickSetsSessionGauge(t *testing.T) {
	RecordTick(10*time.Millisecond, 3)
	if got := testutil.ToFloat64(servicedSessions); got != 3 {
		t.Fatalf("expected gauge 3, got %v", got)
	}
}

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(staleDeleted)
	RecordStaleDeleted(2)
	RecordStaleDeleted(0)
	if got := testutil.ToFloat64(staleDeleted); got != before+2 {
		t.Fatalf("expected %v, got %v", before+2, got)
	}
	beforeRecovered := testutil.ToFloat64(recoveredSongs)
	RecordRecovered(4)
	if got := testutil.ToFloat64(recoveredSongs); got != beforeRecovered+4 {
		t.Fatalf("expected %v, got %v", beforeRecovered+4, got)
	}
}
