package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "enrollments_total",
		Help:      "Total number of face enrollment attempts",
	}, []string{"outcome"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "verifications_total",
		Help:      "Total number of face verification attempts",
	}, []string{"method", "outcome"})

	LowLightRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "low_light_rejections_total",
		Help:      "Total number of images rejected for insufficient brightness",
	})

	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "sessions_opened_total",
		Help:      "Total number of verification sessions opened",
	})

	SessionsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "sessions_purged_total",
		Help:      "Total number of expired sessions reaped",
	})

	OfflineItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "offline_items_total",
		Help:      "Total number of offline reconciliation items processed",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "stage_duration_seconds",
		Help:      "Duration of recognition pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "notifications_dispatched_total",
		Help:      "Total number of notification delivery attempts",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "presence",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
