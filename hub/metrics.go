package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the hub's instrumentation. All metrics are optional: with a
// nil registerer they are created but never exported, keeping the hot path
// free of nil checks.
type metrics struct {
	parkedWatchers   prometheus.Gauge
	publishes        prometheus.Counter
	immediateReplies prometheus.Counter
	holdExpiries     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		parkedWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "confsync",
			Subsystem: "hub",
			Name:      "parked_watchers",
			Help:      "Long polls currently held open waiting for a publication.",
		}),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "confsync",
			Subsystem: "hub",
			Name:      "publishes_total",
			Help:      "Notification publications processed.",
		}),
		immediateReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "confsync",
			Subsystem: "hub",
			Name:      "immediate_replies_total",
			Help:      "Polls answered without parking because news was already available.",
		}),
		holdExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "confsync",
			Subsystem: "hub",
			Name:      "hold_expiries_total",
			Help:      "Parked polls answered 304 because the hold timed out.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.parkedWatchers, m.publishes, m.immediateReplies, m.holdExpiries)
	}
	return m
}
