package coordinator

import (
	"context"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/ulogger"
)

// Server exposes a manager to the other replicas and runs its lifecycle.
type Server struct {
	logger  ulogger.Logger
	manager *Manager
}

func NewServer(logger ulogger.Logger, manager *Manager) *Server {
	return &Server{
		logger:  logger,
		manager: manager,
	}
}

func (s *Server) Manager() *Manager {
	return s.manager
}

func (s *Server) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	return s.manager.Health(ctx, checkLiveness)
}

// Init seeds the genesis block on the shard owning the genesis address.
func (s *Server) Init(_ context.Context) error {
	genesis := s.manager.settings.Genesis

	if !s.manager.Owns(genesis.Address) {
		return nil
	}

	tx := s.manager.ledger.AddGenesisBlock(0)

	s.logger.Infof("[Coordinator] %s holds genesis transaction %s", s.manager.shardID, tx.TransactionID)

	return nil
}

func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	if readyCh != nil {
		close(readyCh)
	}

	<-ctx.Done()

	return nil
}

func (s *Server) Stop(_ context.Context) error {
	return nil
}

func (s *Server) HandleTransactionGRPC(ctx context.Context, req *model.TransactionRequest) (*model.Response, error) {
	return s.manager.HandleTransaction(ctx, req), nil
}

func (s *Server) HandleCoinTransferGRPC(ctx context.Context, req *model.CoinTransferRequest) (*model.Response, error) {
	return s.manager.HandleCoinTransfer(ctx, req), nil
}

func (s *Server) HandleAtomicTxListGRPC(ctx context.Context, msg *AtomicTxListMsg) (*model.Response, error) {
	return s.manager.HandleAtomicTxList(ctx, msg.Requests), nil
}

func (s *Server) HandleListAddrUTXOsGRPC(ctx context.Context, msg *AddressMsg) (*model.Response, error) {
	return s.manager.HandleListAddrUTXOs(ctx, msg.Address), nil
}

func (s *Server) HandleListAddrTransactionsGRPC(ctx context.Context, msg *AddressMsg) (*model.Response, error) {
	return s.manager.HandleListAddrTransactions(ctx, msg.Address, msg.Limit), nil
}

func (s *Server) HandleListEntireHistoryGRPC(ctx context.Context, msg *HistoryMsg) (*model.Response, error) {
	return s.manager.HandleListEntireHistory(ctx, msg.Limit), nil
}

func (s *Server) RecordSubmittedTransactionGRPC(ctx context.Context, tx *model.Transaction) (*Ack, error) {
	if err := s.manager.RecordSubmittedTransaction(ctx, tx); err != nil {
		return nil, errors.WrapGRPC(err)
	}

	return &Ack{OK: true}, nil
}

func (s *Server) GetEntireHistoryGRPC(ctx context.Context, msg *HistoryMsg) (*TransactionListMsg, error) {
	txs, err := s.manager.GetEntireHistory(ctx, msg.Limit)
	if err != nil {
		return nil, errors.WrapGRPC(err)
	}

	return &TransactionListMsg{Transactions: txs}, nil
}
