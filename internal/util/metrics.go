package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_started_total",
		Help: "Total number of checkouts started",
	})

	CheckoutsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_confirmed_total",
		Help: "Total number of checkouts that reached a confirmed order",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of checkouts that exited with a failure",
	}, []string{"code"})

	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders recorded",
	}, []string{"method"})

	PaymentsCollectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_collected_total",
		Help: "Total number of payments collected or accepted",
	}, []string{"method"})

	PaymentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of declined or failed payment collections",
	}, []string{"method"})

	PaymentsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_cancelled_total",
		Help: "Total number of payments dismissed by the buyer",
	})

	GatewayInitFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_init_failures_total",
		Help: "Total number of failed gateway transaction creations",
	})

	SignatureFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_signature_failures_total",
		Help: "Total number of gateway callbacks rejected on signature verification",
	})

	AmbiguousVerificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_ambiguous_verifications_total",
		Help: "Total number of payments whose verification could not be confirmed",
	})

	FinalizerDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finalizer_duplicate_hits_total",
		Help: "Total number of finalizations that returned an existing order",
	})

	CouponsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupons_rejected_total",
		Help: "Total number of coupon validations rejected",
	}, []string{"reason"})

	GatewayRequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of server-side gateway API calls",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
