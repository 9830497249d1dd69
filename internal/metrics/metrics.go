// Package metrics holds the Prometheus collectors for the payment and loyalty flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	STKPushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuzo",
		Name:      "stk_push_total",
		Help:      "STK push initiations by outcome.",
	}, []string{"outcome"})

	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuzo",
		Name:      "payment_callbacks_total",
		Help:      "Payment callbacks processed by outcome.",
	}, []string{"outcome"})

	PointsAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tuzo",
		Name:      "points_awarded_total",
		Help:      "Loyalty points credited to customers.",
	})

	RewardsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tuzo",
		Name:      "rewards_issued_total",
		Help:      "Rewards issued after a threshold crossing.",
	})

	RewardsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tuzo",
		Name:      "rewards_redeemed_total",
		Help:      "Rewards redeemed by business owners.",
	})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tuzo",
		Name:      "mpesa_request_duration_seconds",
		Help:      "Latency of Daraja API calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	OutboxTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuzo",
		Name:      "outbox_tasks_total",
		Help:      "Outbox task executions by kind and outcome.",
	}, []string{"kind", "outcome"})

	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuzo",
		Name:      "websocket_connections",
		Help:      "Open websocket connections.",
	})

	WebsocketDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tuzo",
		Name:      "websocket_dropped_messages_total",
		Help:      "Messages dropped because a client send buffer was full.",
	})
)
