// Package ledger defines the per-shard UTXO ledger: the unspent output index, the transaction
// history and the validation rules applied before a transaction is committed.
package ledger

import (
	"context"

	"github.com/bsv-blockchain/shardledger/model"
)

// OwnershipFunc reports whether the local shard is responsible for an address.
type OwnershipFunc func(address string) bool

// Store is the ledger of one shard. Mutations are serialized by the store itself; callers
// provide the ordering.
type Store interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// CanProcessTransaction validates tx without mutating state. checkTimestamps must be false
	// for atomic list pre-votes, where no timestamp has been assigned yet.
	CanProcessTransaction(tx *model.Transaction, checkTimestamps bool) error
	// PerformTransaction applies a validated transaction. A transaction already in history is
	// a no-op.
	PerformTransaction(tx *model.Transaction) error
	// RecordTransaction absorbs a transaction committed by another shard without validating it.
	RecordTransaction(tx *model.Transaction) error

	HasTransaction(txID string) bool
	ListUTXOs(address string) []model.UTXO
	ListTransactions(address string, limit int) []*model.Transaction
	CreateTransactionForCoinTransfer(source, target string, coins int64) (*model.Transaction, error)
	GetEntireHistory(limit int) []*model.Transaction
	AddGenesisBlock(timestamp int64) *model.Transaction
}
