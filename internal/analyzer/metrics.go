package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/justdice/usagestats/internal/usage"
)

// Metrics counts what the engine filtered, skipped or failed on. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	SamplesDropped   prometheus.Counter
	RecordsMerged    prometheus.Counter
	EventsEmitted    prometheus.Counter
	BucketsCounted   prometheus.Counter
	BucketsSkipped   prometheus.Counter
	SourceFailures   *prometheus.CounterVec
	UnsupportedCalls *prometheus.CounterVec
	PermissionChecks *prometheus.CounterVec
}

// NewMetrics creates the engine counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usagestats",
			Name:      "samples_dropped_total",
			Help:      "Usage samples discarded because their foreground time truncates to zero seconds.",
		}),
		RecordsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usagestats",
			Name:      "records_merged_total",
			Help:      "Per-interval samples merged into an existing package record.",
		}),
		EventsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usagestats",
			Name:      "events_emitted_total",
			Help:      "Usage events produced by event streams.",
		}),
		BucketsCounted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usagestats",
			Name:      "network_buckets_counted_total",
			Help:      "Network buckets summed into an application total.",
		}),
		BucketsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usagestats",
			Name:      "network_buckets_skipped_total",
			Help:      "Network buckets skipped because another uid owns them.",
		}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usagestats",
			Name:      "source_failures_total",
			Help:      "Accounting sub-queries that failed and contributed nothing.",
		}, []string{"source"}),
		UnsupportedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usagestats",
			Name:      "capability_unsupported_total",
			Help:      "Calls rejected because the platform lacks the capability.",
		}, []string{"capability"}),
		PermissionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usagestats",
			Name:      "permission_checks_total",
			Help:      "Usage-access checks by result.",
		}, []string{"granted"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SamplesDropped,
			m.RecordsMerged,
			m.EventsEmitted,
			m.BucketsCounted,
			m.BucketsSkipped,
			m.SourceFailures,
			m.UnsupportedCalls,
			m.PermissionChecks,
		)
	}
	return m
}

func (m *Metrics) sampleDropped() {
	if m != nil {
		m.SamplesDropped.Inc()
	}
}

func (m *Metrics) recordMerged() {
	if m != nil {
		m.RecordsMerged.Inc()
	}
}

func (m *Metrics) eventEmitted() {
	if m != nil {
		m.EventsEmitted.Inc()
	}
}

func (m *Metrics) bucket(counted bool) {
	if m == nil {
		return
	}
	if counted {
		m.BucketsCounted.Inc()
	} else {
		m.BucketsSkipped.Inc()
	}
}

func (m *Metrics) sourceFailure(source string) {
	if m != nil {
		m.SourceFailures.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) unsupported(c usage.Capability) {
	if m != nil {
		m.UnsupportedCalls.WithLabelValues(string(c)).Inc()
	}
}

func (m *Metrics) permission(granted bool) {
	if m == nil {
		return
	}
	label := "false"
	if granted {
		label = "true"
	}
	m.PermissionChecks.WithLabelValues(label).Inc()
}
