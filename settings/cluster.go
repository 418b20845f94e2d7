package settings

import (
	"sort"

	"github.com/bsv-blockchain/shardledger/errors"
)

// Validate checks that the replica map is consistent with the shard list and the local server.
func (c *ClusterSettings) Validate() error {
	if len(c.ShardIDs) == 0 {
		return errors.NewConfigurationError("no shards configured")
	}

	known := make(map[string]struct{}, len(c.ShardIDs))
	for _, shardID := range c.ShardIDs {
		if _, dup := known[shardID]; dup {
			return errors.NewConfigurationError("shard %s configured twice", shardID)
		}

		known[shardID] = struct{}{}
	}

	servers := make(map[string]struct{}, len(c.Replicas))
	for _, r := range c.Replicas {
		if _, ok := known[r.ShardID]; !ok {
			return errors.NewConfigurationError("replica %s belongs to unknown shard %s", r.ServerID, r.ShardID)
		}

		if _, dup := servers[r.ServerID]; dup {
			return errors.NewConfigurationError("server %s configured twice", r.ServerID)
		}

		servers[r.ServerID] = struct{}{}
	}

	for _, shardID := range c.ShardIDs {
		if len(c.ReplicasOf(shardID)) == 0 {
			return errors.NewConfigurationError("shard %s has no replicas", shardID)
		}
	}

	if _, ok := servers[c.ServerID]; !ok {
		return errors.NewConfigurationError("local server %s is not in the replica map", c.ServerID)
	}

	return nil
}

// ShardOf returns the shard the server belongs to.
func (c *ClusterSettings) ShardOf(serverID string) (string, bool) {
	for _, r := range c.Replicas {
		if r.ServerID == serverID {
			return r.ShardID, true
		}
	}

	return "", false
}

// MyShardID returns the shard of the local server.
func (c *ClusterSettings) MyShardID() string {
	shardID, _ := c.ShardOf(c.ServerID)
	return shardID
}

// ReplicasOf returns the replicas of a shard ordered by server id.
func (c *ClusterSettings) ReplicasOf(shardID string) []Replica {
	replicas := make([]Replica, 0)

	for _, r := range c.Replicas {
		if r.ShardID == shardID {
			replicas = append(replicas, r)
		}
	}

	sort.Slice(replicas, func(i, j int) bool {
		return replicas[i].ServerID < replicas[j].ServerID
	})

	return replicas
}

// Siblings returns the other replicas of the local server's shard.
func (c *ClusterSettings) Siblings() []Replica {
	siblings := make([]Replica, 0)

	for _, r := range c.ReplicasOf(c.MyShardID()) {
		if r.ServerID != c.ServerID {
			siblings = append(siblings, r)
		}
	}

	return siblings
}

// Address returns the gRPC address of a server.
func (c *ClusterSettings) Address(serverID string) (string, bool) {
	for _, r := range c.Replicas {
		if r.ServerID == serverID {
			return r.Address, true
		}
	}

	return "", false
}

// TotalReplicas counts the replicas of the given shards.
func (c *ClusterSettings) TotalReplicas(shardIDs []string) int {
	total := 0
	for _, shardID := range shardIDs {
		total += len(c.ReplicasOf(shardID))
	}

	return total
}
