package archiv

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	sessions          *prometheus.CounterVec
	skips             *prometheus.CounterVec
	documents         *prometheus.CounterVec
	indexedSessions   prometheus.Gauge
	exportedDocuments prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratsarchiv",
			Subsystem: "acquire",
			Name:      "sessions_total",
			Help:      "Sessions processed by acquisition runs, by status.",
		}, []string{"status"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratsarchiv",
			Subsystem: "acquire",
			Name:      "skips_total",
			Help:      "Items skipped by acquisition runs, by kind.",
		}, []string{"kind"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratsarchiv",
			Subsystem: "acquire",
			Name:      "documents_total",
			Help:      "Documents handled by acquisition runs, by outcome.",
		}, []string{"outcome"}),
		indexedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ratsarchiv",
			Subsystem: "index",
			Name:      "built_sessions",
			Help:      "Sessions projected by the last index build.",
		}),
		exportedDocuments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ratsarchiv",
			Subsystem: "export",
			Name:      "documents_total",
			Help:      "Documents written to export batches.",
		}),
	}
	reg.MustRegister(m.sessions, m.skips, m.documents, m.indexedSessions, m.exportedDocuments)
	return m
}
