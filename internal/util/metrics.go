package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_reservations_created_total",
		Help: "Total number of successful number reservations",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_reservations_failed_total",
		Help: "Total number of failed reservation attempts",
	}, []string{"reason"})

	ReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "raffle_reservation_latency_seconds",
		Help:    "Latency of reservation transactions",
		Buckets: prometheus.DefBuckets,
	})

	NumbersReservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_numbers_reserved_total",
		Help: "Total count of numbers placed under reservation",
	})

	DepositsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_deposits_created_total",
		Help: "Total number of PIX deposits created",
	})

	DepositsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_deposits_failed_total",
		Help: "Total number of failed deposit creations",
	}, []string{"reason"})

	DepositAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_deposit_gateway_attempts_total",
		Help: "Total gateway order-creation attempts including retries",
	})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "raffle_gateway_request_latency_seconds",
		Help:    "Latency of payment gateway requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_webhooks_received_total",
		Help: "Total webhook deliveries received",
	}, []string{"outcome"})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_orders_paid_total",
		Help: "Total number of orders reconciled as paid",
	})

	PaidSideEffectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raffle_paid_side_effects_total",
		Help: "One-time paid side effect executions",
	}, []string{"result"})

	NumbersSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_numbers_sold_total",
		Help: "Total count of numbers transitioned to sold",
	})

	ExpiredReservationsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raffle_expired_reservations_swept_total",
		Help: "Total reservations cleared by the expiry sweeper",
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
