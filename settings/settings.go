package settings

import (
	"math"
	"strings"

	"github.com/bsv-blockchain/shardledger/errors"
)

const defaultReplicas = "shard-0/server-0=localhost:9000," +
	"shard-0/server-1=localhost:9001," +
	"shard-1/server-2=localhost:9002," +
	"shard-1/server-3=localhost:9003"

func NewSettings() *Settings {
	replicas, err := ParseReplicas(getString("REPLICAS", defaultReplicas))
	if err != nil {
		panic(err)
	}

	return &Settings{
		ClientName: getString("clientName", "shardledger"),
		LogLevel:   getString("logLevel", "INFO"),
		Cluster: ClusterSettings{
			ShardIDs: getMultiString("SHARD_IDS", "shard-0,shard-1"),
			Replicas: replicas,
			ServerID: getString("SERVER_ID", "server-0"),
		},
		GRPC: GRPCSettings{
			ListenAddress: getString("GRPC_LISTEN_ADDRESS", ":9000"),
			CallTimeout:   getMillis("GRPC_CALL_TIMEOUT_MS", 5000),
			Prometheus:    getBool("use_prometheus_grpc_metrics", true),
			OpenTelemetry: getBool("use_otel_grpc", false),
		},
		HTTP: HTTPSettings{
			ListenAddress:      getString("HTTP_LISTEN_ADDRESS", ":8080"),
			APIPrefix:          getString("HTTP_API_PREFIX", "/"),
			PrometheusEndpoint: getString("PROMETHEUS_ENDPOINT", "/metrics"),
		},
		Coordination: CoordinationSettings{
			Backend:      getString("COORDINATION_BACKEND", "memory"),
			RedisURL:     getURL("REDIS_URL", "redis://localhost:6379/0"),
			KeyPrefix:    getString("COORDINATION_KEY_PREFIX", "shardledger"),
			PollInterval: getMillis("COORDINATION_POLL_INTERVAL_MS", 20),
			HeartbeatTTL: getMillis("COORDINATION_HEARTBEAT_TTL_MS", 3000),
			Timeout:      getMillis("COORDINATION_TIMEOUT_MS", 30000),
		},
		Coordinator: CoordinatorSettings{
			RequestTimeout: getMillis("REQUEST_TIMEOUT_MS", 30000),
		},
		Broadcast: BroadcastSettings{
			ReplicationQueueSize: getInt("REPLICATION_QUEUE_SIZE", 1024),
			ProposeRetries:       getInt("PROPOSE_RETRIES", 5),
			ProposeBackoff:       getMillis("PROPOSE_BACKOFF_MS", 50),
			DuplicateTTL:         getMillis("DUPLICATE_TTL_MS", 600000),
		},
		Genesis: GenesisSettings{
			Address: getString("GENESIS_ADDRESS", "GenesisAddress"),
			TxID:    getString("GENESIS_TX_ID", "GenesisTxId"),
			Coins:   getInt64("GENESIS_COINS", math.MaxInt64),
		},
		Tracing: TracingSettings{
			Enabled:      getBool("TRACING_ENABLED", false),
			SamplingRate: getFloat64("TRACING_SAMPLE_RATE", 1.0),
			CollectorURL: getURL("TRACING_COLLECTOR_URL", "http://localhost:4318"),
		},
	}
}

// Validate checks the cluster layout and that a sequenced packet is remembered for longer than
// its originator can wait for it, so a re-proposed packet is never sequenced twice.
func (s *Settings) Validate() error {
	if err := s.Cluster.Validate(); err != nil {
		return err
	}

	if s.Broadcast.DuplicateTTL < s.Coordinator.RequestTimeout {
		return errors.NewConfigurationError("DUPLICATE_TTL_MS (%s) must not be shorter than REQUEST_TIMEOUT_MS (%s)",
			s.Broadcast.DuplicateTTL, s.Coordinator.RequestTimeout)
	}

	return nil
}

// ParseReplicas parses "shardID/serverID=host:port,..." into replicas.
func ParseReplicas(value string) ([]Replica, error) {
	replicas := make([]Replica, 0)

	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		ids, address, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, errors.NewConfigurationError("replica entry %q has no address", entry)
		}

		shardID, serverID, ok := strings.Cut(ids, "/")
		if !ok || shardID == "" || serverID == "" {
			return nil, errors.NewConfigurationError("replica entry %q must be shardID/serverID=address", entry)
		}

		replicas = append(replicas, Replica{
			ShardID:  strings.TrimSpace(shardID),
			ServerID: strings.TrimSpace(serverID),
			Address:  strings.TrimSpace(address),
		})
	}

	return replicas, nil
}
