// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Slice labels.
const (
	SliceStatus  = "status"
	SliceHistory = "history"
)

// Toggle results.
const (
	ToggleOK    = "ok"
	ToggleError = "error"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	counters map[string]*prometheus.CounterVec
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "binwatch_source_updates_total",
		Help: "Snapshots received from the data source.",
	}, []string{"slice"})
	readErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "binwatch_source_read_errors_total",
		Help: "Read errors reported by the data source.",
	}, []string{"slice"})
	toggles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "binwatch_lid_toggles_total",
		Help: "Lid toggle writes by result.",
	}, []string{"result"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "binwatch_alerts_dispatched_total",
		Help: "Bin full alerts handed to the notification workers.",
	}, []string{})
	fill := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "binwatch_fill_percent",
		Help: "Last reported fill level.",
	})
	records := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "binwatch_history_records",
		Help: "Valid history records in the last snapshot.",
	})
	derive := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "binwatch_derive_seconds",
		Help:    "Time spent deriving dashboard state from a snapshot.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	reg.MustRegister(updates, readErrors, toggles, alerts, fill, records, derive)

	return &Metrics{
		counters: map[string]*prometheus.CounterVec{
			"binwatch_source_updates_total":     updates,
			"binwatch_source_read_errors_total": readErrors,
			"binwatch_lid_toggles_total":        toggles,
			"binwatch_alerts_dispatched_total":  alerts,
		},
		gauges: map[string]prometheus.Gauge{
			"binwatch_fill_percent":    fill,
			"binwatch_history_records": records,
		},
		histos: map[string]prometheus.Observer{
			"binwatch_derive_seconds": derive,
		},
	}
}

func (m *Metrics) inc(name string, labels ...string) {
	if m == nil {
		return
	}
	if c, ok := m.counters[name]; ok {
		c.WithLabelValues(labels...).Inc()
	}
}

func (m *Metrics) set(name string, v float64) {
	if m == nil {
		return
	}
	if g, ok := m.gauges[name]; ok {
		g.Set(v)
	}
}

// IncUpdate counts a snapshot received for slice.
func (m *Metrics) IncUpdate(slice string) { m.inc("binwatch_source_updates_total", slice) }

// IncReadError counts a read error for slice.
func (m *Metrics) IncReadError(slice string) { m.inc("binwatch_source_read_errors_total", slice) }

// IncToggle counts a lid toggle write with its result.
func (m *Metrics) IncToggle(result string) { m.inc("binwatch_lid_toggles_total", result) }

// IncAlert counts a dispatched alert.
func (m *Metrics) IncAlert() { m.inc("binwatch_alerts_dispatched_total") }

// SetFill records the current fill level.
func (m *Metrics) SetFill(v float64) { m.set("binwatch_fill_percent", v) }

// SetHistoryRecords records the number of valid history records.
func (m *Metrics) SetHistoryRecords(n int) { m.set("binwatch_history_records", float64(n)) }

// ObserveDerive records how long a derivation took.
func (m *Metrics) ObserveDerive(seconds float64) {
	if m == nil {
		return
	}
	if h, ok := m.histos["binwatch_derive_seconds"]; ok {
		h.Observe(seconds)
	}
}
