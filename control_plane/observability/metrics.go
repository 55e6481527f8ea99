package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WaitingAreaDepth tracks live requests held in each waiting area.
	WaitingAreaDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pileflow_waiting_area_depth",
		Help: "Current number of unassigned requests per pile kind",
	}, []string{"kind"})

	// PileQueueDepth tracks the occupancy of each pile's queue.
	PileQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pileflow_pile_queue_depth",
		Help: "Current number of requests queued at each pile",
	}, []string{"pile_id"})

	// RequestsSubmitted counts admitted charging requests.
	RequestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pileflow_requests_submitted_total",
		Help: "Total charging requests admitted into the waiting area",
	}, []string{"kind"})

	// RequestsRejected counts admissions refused by the scheduler.
	RequestsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pileflow_requests_rejected_total",
		Help: "Total charging requests rejected at admission",
	}, []string{"reason"}) // already_requested, out_of_space, out_of_ids

	// RequestsEnded counts request terminations by outcome.
	RequestsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pileflow_requests_ended_total",
		Help: "Total charging requests ended",
	}, []string{"outcome"}) // settled, cancelled

	// DispatchesTotal counts waiting-area requests placed onto a pile queue.
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pileflow_dispatches_total",
		Help: "Total requests moved from a waiting area into a pile queue",
	}, []string{"kind"})

	// RecoveryRequeues counts requests displaced into the recovery queue.
	RecoveryRequeues = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pileflow_recovery_requeues_total",
		Help: "Total requests moved into the recovery queue by brake/recover",
	})

	// SchedulerModeMetric tracks the current scheduling mode.
	SchedulerModeMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pileflow_scheduler_mode",
		Help: "Current scheduler mode (1 = active)",
	}, []string{"mode"})

	// OrdersCreated counts settled billing orders.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pileflow_orders_created_total",
		Help: "Total billing orders persisted at settlement",
	})

	// ChargeSessionSeconds tracks the mock-time length of settled sessions.
	ChargeSessionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pileflow_charge_session_seconds",
		Help:    "Mock-time duration of settled charging sessions",
		Buckets: prometheus.ExponentialBuckets(60, 2, 12), // 1min to ~3.4d mock
	})

	// PileFaults counts brake and recover events.
	PileFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pileflow_pile_faults_total",
		Help: "Total pile brake/recover transitions",
	}, []string{"event"}) // brake, recover

	// APIRateLimited tracks API requests rejected by rate limiters.
	APIRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pileflow_api_rate_limited_total",
		Help: "API requests rejected by rate limiter (storm protection)",
	}, []string{"endpoint"})

	// ConnectedMonitors tracks live admin WebSocket clients.
	ConnectedMonitors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pileflow_connected_monitors",
		Help: "Current number of connected monitor WebSocket clients",
	})
)
