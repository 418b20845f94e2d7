package settings

import (
	"testing"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// check settings object is initialised
func TestInitialiseSettings(t *testing.T) {
	tSettings := NewSettings()

	require.NotEmpty(t, tSettings.Cluster.ShardIDs)
	require.NotEmpty(t, tSettings.Cluster.Replicas)
	require.NotEmpty(t, tSettings.Genesis.Address)
	require.NotEmpty(t, tSettings.Genesis.TxID)
	require.Positive(t, tSettings.Genesis.Coins)
	require.Positive(t, tSettings.Coordinator.RequestTimeout)
	require.Positive(t, tSettings.Broadcast.ReplicationQueueSize)
}

func TestParseReplicas(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []Replica
		wantErr bool
	}{
		{
			name:  "two replicas",
			value: "shard-0/server-0=localhost:9000, shard-1/server-1=localhost:9001",
			want: []Replica{
				{ShardID: "shard-0", ServerID: "server-0", Address: "localhost:9000"},
				{ShardID: "shard-1", ServerID: "server-1", Address: "localhost:9001"},
			},
		},
		{name: "empty", value: "", want: []Replica{}},
		{name: "missing address", value: "shard-0/server-0", wantErr: true},
		{name: "missing server", value: "shard-0=localhost:9000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReplicas(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrConfiguration))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testCluster() ClusterSettings {
	return ClusterSettings{
		ShardIDs: []string{"shard-0", "shard-1"},
		Replicas: []Replica{
			{ShardID: "shard-0", ServerID: "server-1", Address: "a1"},
			{ShardID: "shard-0", ServerID: "server-0", Address: "a0"},
			{ShardID: "shard-1", ServerID: "server-2", Address: "a2"},
		},
		ServerID: "server-0",
	}
}

func TestClusterHelpers(t *testing.T) {
	c := testCluster()

	require.NoError(t, c.Validate())
	assert.Equal(t, "shard-0", c.MyShardID())

	replicas := c.ReplicasOf("shard-0")
	require.Len(t, replicas, 2)
	assert.Equal(t, "server-0", replicas[0].ServerID)
	assert.Equal(t, "server-1", replicas[1].ServerID)

	siblings := c.Siblings()
	require.Len(t, siblings, 1)
	assert.Equal(t, "server-1", siblings[0].ServerID)

	addr, ok := c.Address("server-2")
	require.True(t, ok)
	assert.Equal(t, "a2", addr)

	assert.Equal(t, 3, c.TotalReplicas([]string{"shard-0", "shard-1"}))
	assert.Equal(t, 1, c.TotalReplicas([]string{"shard-1"}))
}

func TestClusterValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ClusterSettings)
	}{
		{"unknown shard", func(c *ClusterSettings) { c.Replicas[0].ShardID = "shard-9" }},
		{"local server missing", func(c *ClusterSettings) { c.ServerID = "server-9" }},
		{"duplicate server", func(c *ClusterSettings) { c.Replicas[1].ServerID = "server-1" }},
		{"shard without replicas", func(c *ClusterSettings) { c.ShardIDs = append(c.ShardIDs, "shard-2") }},
		{"no shards", func(c *ClusterSettings) { c.ShardIDs = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCluster()
			tt.mutate(&c)

			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration))
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"duplicate window equals request timeout", func(s *Settings) { s.Broadcast.DuplicateTTL = s.Coordinator.RequestTimeout }, false},
		{"duplicate window shorter than request timeout", func(s *Settings) { s.Broadcast.DuplicateTTL = s.Coordinator.RequestTimeout - time.Millisecond }, true},
		{"invalid cluster", func(s *Settings) { s.Cluster.ServerID = "server-9" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSettings()
			s.Cluster = testCluster()
			tt.mutate(s)

			err := s.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration))
		})
	}
}
