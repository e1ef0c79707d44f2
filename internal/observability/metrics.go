// Package observability holds the daemon's Prometheus metrics, registered
// once at package init time and updated from the scheduler, the interceptor
// chain, the HTTP adapter, the event hub, and the daemon's force-off wiring
// as they run.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts every job the scheduler accepts (from POST /jobs
	// or POST /courts/{id}), by priority.
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprinklerd_jobs_submitted_total",
		Help: "Total number of jobs accepted by the scheduler",
	}, []string{"priority"})

	// JobsRejected counts submissions rejected by validation, by reason.
	JobsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprinklerd_jobs_rejected_total",
		Help: "Total number of job submissions rejected before entering the queue",
	}, []string{"reason"})

	// ActivationRejections counts turn_on calls rejected by the interceptor
	// chain, by rejection kind.
	ActivationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprinklerd_activation_rejections_total",
		Help: "Total number of turn_on calls rejected by the interceptor chain",
	}, []string{"kind"})

	// ForcedOffs counts budget-triggered force-off timers that fired.
	ForcedOffs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprinklerd_forced_offs_total",
		Help: "Total number of force-offs triggered by a runtime budget timeout",
	}, []string{"sprinkler_id"})

	// DriverErrors counts On/Off calls that returned an error from the
	// underlying output driver.
	DriverErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprinklerd_driver_errors_total",
		Help: "Total number of driver On/Off calls that returned an error",
	}, []string{"sprinkler_id", "op"})

	// ActiveJobs tracks the current number of active jobs.
	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sprinklerd_active_jobs",
		Help: "Current number of active jobs",
	})

	// WaitingJobs tracks the current number of waiting jobs.
	WaitingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sprinklerd_waiting_jobs",
		Help: "Current number of waiting jobs",
	})

	// SprinklerActiveSeconds tracks cumulative active runtime per sprinkler,
	// mirroring the rolling-window budget accounting for dashboards.
	SprinklerActiveSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprinklerd_sprinkler_active_seconds_total",
		Help: "Cumulative seconds a sprinkler has spent active",
	}, []string{"sprinkler_id"})

	// HTTPRateLimited counts requests rejected by the storm-protection rate
	// limiter, by route.
	HTTPRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprinklerd_http_rate_limited_total",
		Help: "HTTP requests rejected by the storm-protection rate limiter",
	}, []string{"route"})

	// ConnectedEventClients tracks the current number of websocket event
	// subscribers.
	ConnectedEventClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sprinklerd_connected_event_clients",
		Help: "Current number of connected websocket event-stream clients",
	})
)
