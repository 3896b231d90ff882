// Package metrics exposes Prometheus instruments for the scheduler. All
// collectors register on the default registry and are served by the daemon
// at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songflow_scheduler_ticks_total",
		Help: "Total number of scheduler ticks",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "songflow_scheduler_tick_duration_seconds",
		Help:    "Time spent reconciling and dispatching in one tick",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	servicedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "songflow_serviced_sessions",
		Help: "Sessions in active or closing status at the last tick",
	})

	stageOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songflow_stage_outcomes_total",
		Help: "Processor runs by stage and outcome",
	}, []string{"stage", "outcome"}) // outcome=success|timeout|provider_error|invalid_response|configuration|failure|cancelled|skipped

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "songflow_stage_duration_seconds",
		Help:    "Processor run duration by stage",
		Buckets: prometheus.ExponentialBuckets(0.05, 3, 9),
	}, []string{"stage"})

	busySkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songflow_busy_skips_total",
		Help: "Dispatches skipped because the stage was already running for the session",
	}, []string{"stage"})

	songsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songflow_songs_created_total",
		Help: "Songs inserted by kind",
	}, []string{"kind"}) // kind=buffer|oneshot|interrupt

	songsReady = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songflow_songs_ready_total",
		Help: "Songs saved and ready to play",
	})

	staleDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songflow_stale_songs_deleted_total",
		Help: "Songs deleted after sitting in a transient status too long",
	})

	recoveredSongs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songflow_recovered_songs_total",
		Help: "Songs returned to a resumable status by startup recovery",
	})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songflow_session_transitions_total",
		Help: "Session lifecycle transitions",
	}, []string{"to"})
)

// RecordTick records one scheduler tick.
func RecordTick(d time.Duration, sessions int) {
	ticksTotal.Inc()
	tickDuration.Observe(d.Seconds())
	servicedSessions.Set(float64(sessions))
}

// RecordStage records the outcome of one processor run.
func RecordStage(stage, outcome string, d time.Duration) {
	stageOutcomes.WithLabelValues(stage, outcome).Inc()
	if d > 0 {
		stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// RecordBusySkip counts a dispatch skipped by a held busy flag.
func RecordBusySkip(stage string) {
	busySkips.WithLabelValues(stage).Inc()
}

// RecordSongCreated counts an inserted song.
func RecordSongCreated(kind string) {
	songsCreated.WithLabelValues(kind).Inc()
}

// RecordSongReady counts a song that finished saving.
func RecordSongReady() {
	songsReady.Inc()
}

// RecordStaleDeleted counts songs removed by stale cleanup.
func RecordStaleDeleted(n int) {
	staleDeleted.Add(float64(n))
}

// RecordRecovered counts songs reverted at startup.
func RecordRecovered(n int64) {
	recoveredSongs.Add(float64(n))
}

// RecordSessionTransition counts a session status change.
func RecordSessionTransition(to string) {
	sessionTransitions.WithLabelValues(to).Inc()
}
