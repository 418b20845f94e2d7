package coordination

import (
	"sort"

	"github.com/cespare/xxhash"
	"github.com/dgryski/go-rendezvous"
)

// Resolver assigns addresses to shards by rendezvous hashing over the xxhash of the address,
// so the assignment only depends on the set of shard ids.
type Resolver struct {
	shardIDs []string
	hash     *rendezvous.Rendezvous
}

func NewResolver(shardIDs []string) *Resolver {
	sorted := append([]string{}, shardIDs...)
	sort.Strings(sorted)

	return &Resolver{
		shardIDs: sorted,
		hash:     rendezvous.New(sorted, xxhash.Sum64String),
	}
}

func (r *Resolver) ShardIDs() []string {
	return append([]string{}, r.shardIDs...)
}

func (r *Resolver) ResolveOwningShard(address string) string {
	if len(r.shardIDs) == 0 {
		return ""
	}

	return r.hash.Lookup(address)
}

// MinServerID returns the lexicographically smallest id, or "" when there is none.
func MinServerID(serverIDs []string) string {
	current := ""

	for _, id := range serverIDs {
		if current == "" || id < current {
			current = id
		}
	}

	return current
}
