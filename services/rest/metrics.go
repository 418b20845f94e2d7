package rest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusRESTRequests  *prometheus.CounterVec
	prometheusRESTResponses *prometheus.CounterVec
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusRESTRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "rest",
			Name:      "requests",
			Help:      "Number of REST requests, by operation",
		},
		[]string{"operation"},
	)

	prometheusRESTResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "rest",
			Name:      "responses",
			Help:      "Number of REST responses, by status",
		},
		[]string{"status"},
	)
}
