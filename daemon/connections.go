package daemon

import (
	"context"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/util"
	"github.com/puzpuzpuz/xsync/v2"
	"google.golang.org/grpc"
)

// connections shares one gRPC connection per remote replica between the broadcast and the
// coordinator clients.
type connections struct {
	settings *settings.Settings
	conns    *xsync.MapOf[string, *grpc.ClientConn]
}

func newConnections(tSettings *settings.Settings) *connections {
	return &connections{
		settings: tSettings,
		conns:    xsync.NewMapOf[*grpc.ClientConn](),
	}
}

func (c *connections) Get(ctx context.Context, replica settings.Replica) (*grpc.ClientConn, error) {
	if conn, ok := c.conns.Load(replica.ServerID); ok {
		return conn, nil
	}

	if replica.Address == "" {
		return nil, errors.NewConfigurationError("replica %s has no address", replica.ServerID)
	}

	conn, err := util.GetGRPCClient(ctx, replica.Address, &util.ConnectionOptions{MaxRetries: 3}, c.settings)
	if err != nil {
		return nil, err
	}

	actual, loaded := c.conns.LoadOrStore(replica.ServerID, conn)
	if loaded {
		_ = conn.Close()
	}

	return actual, nil
}

func (c *connections) Close() {
	c.conns.Range(func(serverID string, conn *grpc.ClientConn) bool {
		_ = conn.Close()
		c.conns.Delete(serverID)

		return true
	})
}
