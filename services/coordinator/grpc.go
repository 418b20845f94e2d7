package coordinator

import (
	"context"

	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/util"
	"google.golang.org/grpc"
)

const ServiceName = "shardledger.RequestHandler"

type AtomicTxListMsg struct {
	Requests []model.TransactionRequest `json:"requests"`
}

type AddressMsg struct {
	Address string `json:"address"`
	Limit   int    `json:"limit"`
}

type HistoryMsg struct {
	Limit int `json:"limit"`
}

type TransactionListMsg struct {
	Transactions []*model.Transaction `json:"transactions"`
}

type Ack struct {
	OK bool `json:"ok"`
}

type apiServer interface {
	HandleTransactionGRPC(ctx context.Context, req *model.TransactionRequest) (*model.Response, error)
	HandleCoinTransferGRPC(ctx context.Context, req *model.CoinTransferRequest) (*model.Response, error)
	HandleAtomicTxListGRPC(ctx context.Context, msg *AtomicTxListMsg) (*model.Response, error)
	HandleListAddrUTXOsGRPC(ctx context.Context, msg *AddressMsg) (*model.Response, error)
	HandleListAddrTransactionsGRPC(ctx context.Context, msg *AddressMsg) (*model.Response, error)
	HandleListEntireHistoryGRPC(ctx context.Context, msg *HistoryMsg) (*model.Response, error)
	RecordSubmittedTransactionGRPC(ctx context.Context, tx *model.Transaction) (*Ack, error)
	GetEntireHistoryGRPC(ctx context.Context, msg *HistoryMsg) (*TransactionListMsg, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*apiServer)(nil),
	Methods: []grpc.MethodDesc{
		util.UnaryMethod(ServiceName, "HandleTransaction", func(srv interface{}, ctx context.Context, req *model.TransactionRequest) (interface{}, error) {
			return srv.(apiServer).HandleTransactionGRPC(ctx, req)
		}),
		util.UnaryMethod(ServiceName, "HandleCoinTransfer", func(srv interface{}, ctx context.Context, req *model.CoinTransferRequest) (interface{}, error) {
			return srv.(apiServer).HandleCoinTransferGRPC(ctx, req)
		}),
		util.UnaryMethod(ServiceName, "HandleAtomicTxList", func(srv interface{}, ctx context.Context, msg *AtomicTxListMsg) (interface{}, error) {
			return srv.(apiServer).HandleAtomicTxListGRPC(ctx, msg)
		}),
		util.UnaryMethod(ServiceName, "HandleListAddrUTXOs", func(srv interface{}, ctx context.Context, msg *AddressMsg) (interface{}, error) {
			return srv.(apiServer).HandleListAddrUTXOsGRPC(ctx, msg)
		}),
		util.UnaryMethod(ServiceName, "HandleListAddrTransactions", func(srv interface{}, ctx context.Context, msg *AddressMsg) (interface{}, error) {
			return srv.(apiServer).HandleListAddrTransactionsGRPC(ctx, msg)
		}),
		util.UnaryMethod(ServiceName, "HandleListEntireHistory", func(srv interface{}, ctx context.Context, msg *HistoryMsg) (interface{}, error) {
			return srv.(apiServer).HandleListEntireHistoryGRPC(ctx, msg)
		}),
		util.UnaryMethod(ServiceName, "RecordSubmittedTransaction", func(srv interface{}, ctx context.Context, tx *model.Transaction) (interface{}, error) {
			return srv.(apiServer).RecordSubmittedTransactionGRPC(ctx, tx)
		}),
		util.UnaryMethod(ServiceName, "GetEntireHistory", func(srv interface{}, ctx context.Context, msg *HistoryMsg) (interface{}, error) {
			return srv.(apiServer).GetEntireHistoryGRPC(ctx, msg)
		}),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterGRPC registers s on server.
func (s *Server) RegisterGRPC(server *grpc.Server) {
	server.RegisterService(&serviceDesc, s)
}
