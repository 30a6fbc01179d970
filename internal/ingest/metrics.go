package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts import outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Dumps *prometheus.CounterVec
	Rows  prometheus.Counter
}

// NewMetrics creates the ingest counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Dumps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usagestats",
			Subsystem: "ingest",
			Name:      "dumps_total",
			Help:      "Dumps processed, by result (imported, skipped, failed).",
		}, []string{"result"}),
		Rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usagestats",
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Data rows written by imported dumps.",
		}),
	}
	reg.MustRegister(m.Dumps, m.Rows)
	return m
}

func (m *Metrics) dump(result string, rows int) {
	if m == nil {
		return
	}
	m.Dumps.WithLabelValues(result).Inc()
	m.Rows.Add(float64(rows))
}
