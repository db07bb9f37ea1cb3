// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "weatherbot"

var (
	once sync.Once

	botCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_commands_total",
			Help:      "Chat messages dispatched by intent.",
		},
		[]string{"intent"},
	)

	weatherLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_lookups_total",
			Help:      "Weather lookups by result.",
		},
		[]string{"result"},
	)

	weatherLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_request_duration_seconds",
			Help:      "Latency of weather provider calls.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	dashboardEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_events_total",
			Help:      "Dashboard events published by name.",
		},
		[]string{"event"},
	)

	dashboardDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_dropped_total",
			Help:      "Dashboard events dropped because a subscriber buffer was full.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		},
		[]string{"route", "status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			botCommands,
			weatherLookups,
			weatherLatency,
			dashboardEvents,
			dashboardDropped,
			httpRequests,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncCommand counts a dispatched chat intent.
func IncCommand(intent string) {
	botCommands.WithLabelValues(intent).Inc()
}

// IncWeatherLookup counts a lookup outcome (ok, error, invalid, denied).
func IncWeatherLookup(result string) {
	weatherLookups.WithLabelValues(result).Inc()
}

// ObserveWeatherLatency records how long a provider call took.
func ObserveWeatherLatency(d time.Duration) {
	weatherLatency.Observe(d.Seconds())
}

// IncDashboardEvent counts a published dashboard event.
func IncDashboardEvent(event string) {
	dashboardEvents.WithLabelValues(event).Inc()
}

// IncDashboardDropped counts an event dropped for one subscriber.
func IncDashboardDropped() {
	dashboardDropped.Inc()
}

// IncHTTP counts a served request.
func IncHTTP(route string, status int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
