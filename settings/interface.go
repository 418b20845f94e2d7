package settings

import (
	"net/url"
	"time"
)

// Replica is one server of one shard and the address its gRPC services listen on.
type Replica struct {
	ShardID  string
	ServerID string
	Address  string
}

type ClusterSettings struct {
	ShardIDs []string
	Replicas []Replica
	ServerID string
}

type GRPCSettings struct {
	ListenAddress string
	CallTimeout   time.Duration
	Prometheus    bool
	OpenTelemetry bool
}

type HTTPSettings struct {
	ListenAddress      string
	APIPrefix          string
	PrometheusEndpoint string
}

type CoordinationSettings struct {
	Backend      string
	RedisURL     *url.URL
	KeyPrefix    string
	PollInterval time.Duration
	HeartbeatTTL time.Duration
	Timeout      time.Duration
}

type CoordinatorSettings struct {
	RequestTimeout time.Duration
}

type BroadcastSettings struct {
	ReplicationQueueSize int
	ProposeRetries       int
	ProposeBackoff       time.Duration
	DuplicateTTL         time.Duration
}

type GenesisSettings struct {
	Address string
	TxID    string
	Coins   int64
}

type TracingSettings struct {
	Enabled      bool
	SamplingRate float64
	CollectorURL *url.URL
}

type Settings struct {
	ClientName   string
	Version      string
	Commit       string
	LogLevel     string
	Cluster      ClusterSettings
	GRPC         GRPCSettings
	HTTP         HTTPSettings
	Coordination CoordinationSettings
	Coordinator  CoordinatorSettings
	Broadcast    BroadcastSettings
	Genesis      GenesisSettings
	Tracing      TracingSettings
}
