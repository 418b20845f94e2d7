package broadcast

import (
	"context"

	"github.com/bsv-blockchain/shardledger/util"
	"google.golang.org/grpc"
)

const ServiceName = "shardledger.Broadcast"

// Ack acknowledges a broadcast call.
type Ack struct {
	OK bool `json:"ok"`
}

type apiServer interface {
	BroadcastToShardGRPC(ctx context.Context, packet *Packet) (*Ack, error)
	ExecuteMsgGRPC(ctx context.Context, packet *Packet) (*Ack, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*apiServer)(nil),
	Methods: []grpc.MethodDesc{
		util.UnaryMethod(ServiceName, "BroadcastToShard", func(srv interface{}, ctx context.Context, packet *Packet) (interface{}, error) {
			return srv.(apiServer).BroadcastToShardGRPC(ctx, packet)
		}),
		util.UnaryMethod(ServiceName, "ExecuteMsg", func(srv interface{}, ctx context.Context, packet *Packet) (interface{}, error) {
			return srv.(apiServer).ExecuteMsgGRPC(ctx, packet)
		}),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterGRPC registers s on server.
func (s *Server) RegisterGRPC(server *grpc.Server) {
	server.RegisterService(&serviceDesc, s)
}
