package broadcast

import (
	"sync"

	"github.com/bsv-blockchain/shardledger/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusSequencerProposed   prometheus.Counter
	prometheusSequencerDuplicates prometheus.Counter
	prometheusSequencerSequenced  *prometheus.CounterVec
	prometheusReplicationDropped  *prometheus.CounterVec
	prometheusReplicationFailed   *prometheus.CounterVec
	prometheusExecutorExecuted    *prometheus.CounterVec
	prometheusExecutorDuration    prometheus.Histogram
	prometheusExecutorQueueLength prometheus.Gauge
	prometheusBroadcasterProposed prometheus.Counter
	prometheusBroadcasterFailed   prometheus.Counter
	prometheusBroadcastRejected   prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusSequencerProposed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "sequencer",
			Name:      "proposed",
			Help:      "Number of packets proposed to the local sequencer",
		},
	)

	prometheusSequencerDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "sequencer",
			Name:      "duplicates",
			Help:      "Number of proposals dropped because their request was already sequenced",
		},
	)

	prometheusSequencerSequenced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "sequencer",
			Name:      "sequenced",
			Help:      "Number of packets sequenced, by kind",
		},
		[]string{"kind"},
	)

	prometheusReplicationDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "sequencer",
			Name:      "replication_dropped",
			Help:      "Number of packets dropped because a sibling replication queue was full",
		},
		[]string{"server"},
	)

	prometheusReplicationFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "sequencer",
			Name:      "replication_failed",
			Help:      "Number of packets a sibling failed to accept",
		},
		[]string{"server"},
	)

	prometheusExecutorExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "executor",
			Name:      "executed",
			Help:      "Number of packets applied to the local replica, by kind",
		},
		[]string{"kind"},
	)

	prometheusExecutorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shardledger",
			Subsystem: "executor",
			Name:      "duration_seconds",
			Help:      "Time taken to apply one packet",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusExecutorQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shardledger",
			Subsystem: "executor",
			Name:      "queue_length",
			Help:      "Number of ordered packets waiting to be applied",
		},
	)

	prometheusBroadcasterProposed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "broadcaster",
			Name:      "proposed",
			Help:      "Number of packets scheduled by a shard sequencer",
		},
	)

	prometheusBroadcasterFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "broadcaster",
			Name:      "failed",
			Help:      "Number of packets no sequencer accepted",
		},
	)

	prometheusBroadcastRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shardledger",
			Subsystem: "broadcast",
			Name:      "rejected",
			Help:      "Number of proposals rejected because the local replica is not the sequencer",
		},
	)
}
