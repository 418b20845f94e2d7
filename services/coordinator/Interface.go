// Package coordinator routes ledger requests to the shard owning them, correlates the
// asynchronous execution of broadcast packets with the waiting request and runs the cross
// shard commit of atomic transaction lists.
package coordinator

import (
	"context"

	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/services/broadcast"
	"github.com/bsv-blockchain/shardledger/settings"
)

// Interface is the front door of a replica.
type Interface interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	HandleTransaction(ctx context.Context, req *model.TransactionRequest) *model.Response
	HandleCoinTransfer(ctx context.Context, req *model.CoinTransferRequest) *model.Response
	HandleAtomicTxList(ctx context.Context, reqs []model.TransactionRequest) *model.Response
	HandleListAddrUTXOs(ctx context.Context, address string) *model.Response
	HandleListAddrTransactions(ctx context.Context, address string, limit int) *model.Response
	HandleListEntireHistory(ctx context.Context, limit int) *model.Response
}

// PeerClientI is the API one replica calls on another.
type PeerClientI interface {
	DelegateHandleTransaction(ctx context.Context, req *model.TransactionRequest) (*model.Response, error)
	DelegateHandleCoinTransfer(ctx context.Context, req *model.CoinTransferRequest) (*model.Response, error)
	DelegateHandleAtomicTxList(ctx context.Context, reqs []model.TransactionRequest) (*model.Response, error)
	DelegateHandleListAddrUTXOs(ctx context.Context, address string) (*model.Response, error)
	DelegateHandleListAddrTransactions(ctx context.Context, address string, limit int) (*model.Response, error)
	DelegateHandleListEntireHistory(ctx context.Context, limit int) (*model.Response, error)
	RecordSubmittedTransaction(ctx context.Context, tx *model.Transaction) error
	GetEntireHistory(ctx context.Context, limit int) ([]*model.Transaction, error)
}

// PeerDialer returns a client for a replica.
type PeerDialer func(ctx context.Context, replica settings.Replica) (PeerClientI, error)

// Proposer hands packets to shard sequencers.
type Proposer interface {
	ProposeAll(ctx context.Context, shardIDs []string, packet *broadcast.Packet) error
}
