package coordinator

import (
	"sync"

	"github.com/bsv-blockchain/shardledger/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusCoordinatorRequests          *prometheus.CounterVec
	prometheusCoordinatorRequestDuration   prometheus.Histogram
	prometheusCoordinatorPending           prometheus.Gauge
	prometheusCoordinatorForwarded         prometheus.Counter
	prometheusCoordinatorForwardFailed     prometheus.Counter
	prometheusCoordinatorRecorded          prometheus.Counter
	prometheusCoordinatorPropagationFailed prometheus.Counter
	prometheusCoordinatorVotes             *prometheus.CounterVec
	prometheusCoordinatorVoteDuration      prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusCoordinatorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "coordinator",
			Name:      "requests",
			Help:      "Number of client requests handled, by handler",
		},
		[]string{"handler"},
	)

	prometheusCoordinatorRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shardledger",
			Subsystem: "coordinator",
			Name:      "request_duration_millis",
			Help:      "Duration of client requests",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusCoordinatorPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shardledger",
			Subsystem: "coordinator",
			Name:      "pending_requests",
			Help:      "Number of requests waiting for the local executor",
		},
	)

	prometheusCoordinatorForwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "coordinator",
			Name:      "forwarded",
			Help:      "Number of requests forwarded to the owning shard",
		},
	)

	prometheusCoordinatorForwardFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "coordinator",
			Name:      "forward_failed",
			Help:      "Number of forwarded requests no replica of the owning shard answered",
		},
	)

	prometheusCoordinatorRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "coordinator",
			Name:      "recorded",
			Help:      "Number of transactions recorded on behalf of another shard",
		},
	)

	prometheusCoordinatorPropagationFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "coordinator",
			Name:      "propagation_failed",
			Help:      "Number of failed attempts to record a transaction on a recipient replica",
		},
	)

	prometheusCoordinatorVotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "coordinator",
			Name:      "atomic_decisions",
			Help:      "Number of atomic list decisions observed, by outcome",
		},
		[]string{"outcome"},
	)

	prometheusCoordinatorVoteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shardledger",
			Subsystem: "coordinator",
			Name:      "atomic_vote_duration_millis",
			Help:      "Time spent waiting for the decision on an atomic list",
			Buckets:   util.MetricsBucketsMilliLongSeconds,
		},
	)
}
