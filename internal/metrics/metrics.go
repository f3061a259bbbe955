// Package metrics exposes Prometheus metrics for the notifier.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adnotify"

// Metrics holds the notifier collectors. A nil *Metrics is valid and
// records nothing, so components can take one unconditionally.
type Metrics struct {
	WatchesOpen          prometheus.Gauge
	RegistrationFailures prometheus.Counter
	EventsDelivered      prometheus.Counter
	EventsDropped        prometheus.Counter
	FetchFailures        prometheus.Counter
	FetchDuration        prometheus.Histogram
	Aborts               *prometheus.CounterVec
	WatchesEnded         *prometheus.CounterVec
	RecordsDecoded       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WatchesOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watches_open",
			Help:      "Number of change notification searches currently open",
		}),
		RegistrationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_failures_total",
			Help:      "Total number of notification searches the server refused",
		}),
		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Total number of change events handed to subscribers",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of change events dropped for lack of a subscriber or buffer space",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Total number of partial result fetches that failed",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of partial result fetches",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		Aborts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aborts_total",
			Help:      "Total number of notification searches abandoned, by result",
		}, []string{"result"}),
		WatchesEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watches_ended_total",
			Help:      "Total number of notification searches the server finished on its own, by result",
		}, []string{"result"}),
		RecordsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Total number of dnsRecord values decoded, by kind",
		}, []string{"kind"}),
	}
}

// WatchOpened records a successful registration.
func (m *Metrics) WatchOpened() {
	if m == nil {
		return
	}
	m.WatchesOpen.Inc()
}

// RegistrationFailed records a refused registration.
func (m *Metrics) RegistrationFailed() {
	if m == nil {
		return
	}
	m.RegistrationFailures.Inc()
}

// WatchAborted records the teardown of one watch.
func (m *Metrics) WatchAborted(err error) {
	if m == nil {
		return
	}
	m.WatchesOpen.Dec()
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Aborts.WithLabelValues(result).Inc()
}

// WatchEnded records a watch the server finished without being aborted.
func (m *Metrics) WatchEnded(err error) {
	if m == nil {
		return
	}
	m.WatchesOpen.Dec()
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.WatchesEnded.WithLabelValues(result).Inc()
}

// ObserveFetch records a partial result fetch started at start.
func (m *Metrics) ObserveFetch(start time.Time, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.FetchFailures.Inc()
	}
}

// EventDelivered counts one event handed to a subscriber.
func (m *Metrics) EventDelivered() {
	if m == nil {
		return
	}
	m.EventsDelivered.Inc()
}

// EventDropped counts one event nobody received.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// RecordDecoded counts a decoded value by kind ("A", "Other", "Truncated").
func (m *Metrics) RecordDecoded(kind string) {
	if m == nil {
		return
	}
	m.RecordsDecoded.WithLabelValues(kind).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
