// Package metrics exposes Prometheus counters for profile resolution and
// authentication events.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeFound             = "found"
	OutcomeCreated           = "created"
	OutcomeConflictRecovered = "conflict_recovered"
	OutcomeTimeout           = "timeout"
	OutcomeError             = "error"
)

type Recorder interface {
	RecordResolution(outcome string, duration time.Duration)
	RecordAuthEvent(event string)
}

type Collector struct {
	resolutions       *prometheus.CounterVec
	resolutionLatency prometheus.Histogram
	authEvents        *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainsmart_profile_resolutions_total",
			Help: "Profile resolutions by outcome",
		}, []string{"outcome"}),
		resolutionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trainsmart_profile_resolution_seconds",
			Help:    "Time spent resolving a profile",
			Buckets: prometheus.DefBuckets,
		}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainsmart_auth_events_total",
			Help: "Authentication events by type",
		}, []string{"event"}),
	}

	reg.MustRegister(c.resolutions, c.resolutionLatency, c.authEvents)
	return c
}

func (c *Collector) RecordResolution(outcome string, duration time.Duration) {
	c.resolutions.WithLabelValues(outcome).Inc()
	c.resolutionLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordAuthEvent(event string) {
	c.authEvents.WithLabelValues(event).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordResolution(string, time.Duration) {}
func (Nop) RecordAuthEvent(string)                 {}
