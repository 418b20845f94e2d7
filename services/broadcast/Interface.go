// Package broadcast implements the total order broadcast within one shard. The shard's current
// sequencer schedules proposals, stamps single transactions with a global timestamp and ships
// every packet to all replicas, whose executors apply them one at a time in that order.
package broadcast

import (
	"context"

	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/settings"
)

// ClientI is the broadcast API of one replica.
type ClientI interface {
	// BroadcastToShard proposes packet to the replica, which must be its shard's sequencer. It
	// returns once the packet has a fixed position in the shard's order.
	BroadcastToShard(ctx context.Context, packet *Packet) error
	// ExecuteMsg hands an ordered packet to the replica's executor.
	ExecuteMsg(ctx context.Context, packet *Packet) error
}

// Dialer returns a client for a replica.
type Dialer func(ctx context.Context, replica settings.Replica) (ClientI, error)

// Handler applies ordered packets to the replica's state. Calls are strictly sequential.
type Handler interface {
	ProcessTransactionLocally(ctx context.Context, tx *model.Transaction, idempotencyKey, origServerID string, pendingRequestID uint64)
	ProcessAtomicTxListLocally(ctx context.Context, txs []*model.Transaction, idempotencyKey, origServerID string, pendingRequestID uint64)
	ProcessListEntireHistoryLocally(ctx context.Context, limit int, origShardID, origServerID string, pendingRequestID uint64)
}
