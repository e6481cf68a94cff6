// Package promstat implements trialkit.Statter on top of Prometheus metric
// vectors. Every stat becomes a label value rather than its own metric, so
// stats can be added anywhere without registering anything.
package promstat

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Statter exports counts, gauges, histograms and timings as Prometheus
// metrics labeled with the stat name and its tags.
type Statter struct {
	Counts     *prometheus.CounterVec
	Gauges     *prometheus.GaugeVec
	Histograms *prometheus.HistogramVec
	Timings    *prometheus.HistogramVec
}

// New creates a Statter and registers its metrics with reg, prefixing their
// names with namespace.
func New(reg prometheus.Registerer, namespace string) *Statter {
	f := promauto.With(reg)
	labels := []string{"stat", "tags"}
	return &Statter{
		Counts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total of counted events by stat",
		}, labels),
		Gauges: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gauge",
			Help:      "Last reported value by stat",
		}, labels),
		Histograms: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "values",
			Help:      "Distribution of reported values by stat",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 7),
		}, labels),
		Timings: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Duration of timed operations by stat",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, labels),
	}
}

func tagLabel(tags []string) string {
	return strings.Join(tags, ",")
}

// Count adds value to the stat's counter. Negative values are ignored since
// Prometheus counters only go up.
func (s *Statter) Count(name string, value int64, rate float64, tags ...string) {
	if value < 0 {
		return
	}
	s.Counts.WithLabelValues(name, tagLabel(tags)).Add(float64(value))
}

// Gauge sets the stat's gauge.
func (s *Statter) Gauge(name string, value float64, rate float64, tags ...string) {
	s.Gauges.WithLabelValues(name, tagLabel(tags)).Set(value)
}

// Histogram observes value.
func (s *Statter) Histogram(name string, value float64, rate float64, tags ...string) {
	s.Histograms.WithLabelValues(name, tagLabel(tags)).Observe(value)
}

// Set does nothing.
func (s *Statter) Set(name string, value string, rate float64, tags ...string) {}

// Timing observes value in seconds.
func (s *Statter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	s.Timings.WithLabelValues(name, tagLabel(tags)).Observe(value.Seconds())
}
