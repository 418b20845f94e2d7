package coordinator

import (
	"context"

	"github.com/bsv-blockchain/shardledger/model"
	"github.com/stretchr/testify/mock"
)

// Mock implements Interface for testing purposes
type Mock struct {
	mock.Mock
}

func (m *Mock) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	args := m.Called(ctx, checkLiveness)
	return args.Int(0), args.String(1), args.Error(2)
}

func (m *Mock) HandleTransaction(ctx context.Context, req *model.TransactionRequest) *model.Response {
	return m.response(m.Called(ctx, req))
}

func (m *Mock) HandleCoinTransfer(ctx context.Context, req *model.CoinTransferRequest) *model.Response {
	return m.response(m.Called(ctx, req))
}

func (m *Mock) HandleAtomicTxList(ctx context.Context, reqs []model.TransactionRequest) *model.Response {
	return m.response(m.Called(ctx, reqs))
}

func (m *Mock) HandleListAddrUTXOs(ctx context.Context, address string) *model.Response {
	return m.response(m.Called(ctx, address))
}

func (m *Mock) HandleListAddrTransactions(ctx context.Context, address string, limit int) *model.Response {
	return m.response(m.Called(ctx, address, limit))
}

func (m *Mock) HandleListEntireHistory(ctx context.Context, limit int) *model.Response {
	return m.response(m.Called(ctx, limit))
}

func (m *Mock) response(args mock.Arguments) *model.Response {
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(*model.Response)
}
