package collector

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stampede/internal/core"
)

// PromReporter exposes live flow and journey counters for Prometheus
// scraping. It implements core.Reporter and is typically fanned into a
// core.MultiReporter next to the Collector.
type PromReporter struct {
	registry *prometheus.Registry

	journeysTotal *prometheus.CounterVec
	flowsTotal    *prometheus.CounterVec
	flowFailures  *prometheus.CounterVec
	flowDuration  *prometheus.HistogramVec
	activeUsers   prometheus.Gauge
}

// NewPromReporter creates a reporter with its own registry.
func NewPromReporter() *PromReporter {
	p := &PromReporter{
		registry: prometheus.NewRegistry(),
		journeysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampede_journeys_total",
			Help: "Completed journey iterations by journey name and result.",
		}, []string{"journey", "result"}),
		flowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampede_flows_total",
			Help: "Executed flows by name and result.",
		}, []string{"flow", "result"}),
		flowFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampede_flow_failures_total",
			Help: "Failed flows by name and failure class.",
		}, []string{"flow", "class"}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stampede_flow_duration_seconds",
			Help:    "Flow duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"flow"}),
		activeUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stampede_active_users",
			Help: "Number of virtual users currently running.",
		}),
	}
	p.registry.MustRegister(
		p.journeysTotal, p.flowsTotal, p.flowFailures, p.flowDuration, p.activeUsers)
	return p
}

// Report records one flow event. Thread-safe.
func (p *PromReporter) Report(e core.Event) {
	result := "success"
	if !e.Success {
		result = "failure"
	}
	p.flowsTotal.WithLabelValues(e.Flow, result).Inc()
	p.flowDuration.WithLabelValues(e.Flow).Observe(e.Duration.Seconds())
	if !e.Success {
		class := e.Class
		if class == "" {
			class = "unknown"
		}
		p.flowFailures.WithLabelValues(e.Flow, class).Inc()
	}
	if e.Terminal {
		p.journeysTotal.WithLabelValues(e.Journey, result).Inc()
	}
}

// SetActiveUsers updates the virtual user gauge.
func (p *PromReporter) SetActiveUsers(n int) {
	p.activeUsers.Set(float64(n))
}

// Handler returns the scrape endpoint handler.
func (p *PromReporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
