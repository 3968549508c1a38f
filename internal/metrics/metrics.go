package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// OrdersCreated counts persisted orders by source: checkout, repeat or admin.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders persisted, by source.",
	}, []string{"source"})

	StockRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_stock_rejections_total",
		Help: "Checkouts rejected for insufficient stock.",
	})

	OrderEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_events_total",
		Help: "Order events handled by the worker, by type and outcome.",
	}, []string{"type", "outcome"})
)
