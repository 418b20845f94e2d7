package broadcast

import (
	"context"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/util"
	"google.golang.org/grpc"
)

// Client calls the broadcast service of a remote replica.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) BroadcastToShard(ctx context.Context, packet *Packet) error {
	return c.invoke(ctx, "BroadcastToShard", packet)
}

func (c *Client) ExecuteMsg(ctx context.Context, packet *Packet) error {
	return c.invoke(ctx, "ExecuteMsg", packet)
}

func (c *Client) invoke(ctx context.Context, method string, packet *Packet) error {
	if err := c.conn.Invoke(ctx, util.FullMethodName(ServiceName, method), packet, &Ack{}); err != nil {
		return errors.UnwrapGRPC(err)
	}

	return nil
}

// LocalClient calls the broadcast service of the local replica without a network hop.
type LocalClient struct {
	server *Server
}

func NewLocalClient(server *Server) *LocalClient {
	return &LocalClient{server: server}
}

func (c *LocalClient) BroadcastToShard(ctx context.Context, packet *Packet) error {
	return c.server.BroadcastToShard(ctx, packet)
}

func (c *LocalClient) ExecuteMsg(ctx context.Context, packet *Packet) error {
	return c.server.ExecuteMsg(ctx, packet)
}
