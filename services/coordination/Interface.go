// Package coordination defines the primitives the ledger needs from an external coordination
// service: shard resolution, a global clock, barriers, atomic votes and sequencer watches.
package coordination

import (
	"context"

	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/settings"
)

// SequencerChangeFunc is invoked with the new sequencer of shardID.
type SequencerChangeFunc func(shardID, serverID string)

type Coordination interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// ResolveOwningShard maps an address onto a shard. The result only changes when the shard
	// set changes.
	ResolveOwningShard(address string) string

	// NewGlobalTimestamp returns a value larger than every value returned before, by any caller.
	NewGlobalTimestamp(ctx context.Context) (int64, error)

	// EnterBarrier blocks until expected distinct participants have entered barrierID.
	EnterBarrier(ctx context.Context, barrierID, participant string, expected int) error

	// LeaveBarrier blocks until expected distinct participants have left barrierID.
	LeaveBarrier(ctx context.Context, barrierID, participant string, expected int) error

	// CastVoteAndAwaitDecision records the vote of shardID for commitID and blocks until every
	// shard in expectedShards has voted. All callers receive the same Decision. If ctx ends first
	// the round is aborted, unless another caller already published a Decision, in which case
	// that Decision is returned.
	CastVoteAndAwaitDecision(ctx context.Context, commitID, shardID string, vote bool, expectedShards []string) (model.Decision, error)

	// Register announces replica as alive until ctx is done.
	Register(ctx context.Context, replica settings.Replica) error

	// WatchCurrentSequencer returns the current sequencer of shardID, the lexicographically
	// smallest live server id, and calls onChange whenever it changes until ctx is done.
	WatchCurrentSequencer(ctx context.Context, shardID string, onChange SequencerChangeFunc) (string, error)
}
