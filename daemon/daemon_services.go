package daemon

import (
	"context"
	"net/http"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/services/broadcast"
	"github.com/bsv-blockchain/shardledger/services/coordination"
	coordmemory "github.com/bsv-blockchain/shardledger/services/coordination/memory"
	coordredis "github.com/bsv-blockchain/shardledger/services/coordination/redis"
	"github.com/bsv-blockchain/shardledger/services/coordinator"
	"github.com/bsv-blockchain/shardledger/settings"
	ledgermemory "github.com/bsv-blockchain/shardledger/stores/ledger/memory"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/bsv-blockchain/shardledger/util"
	"google.golang.org/grpc"
)

// replica holds the services of one server.
type replica struct {
	settings    *settings.Settings
	manager     *coordinator.Manager
	coordinator *coordinator.Server
	broadcast   *broadcast.Server
	grpc        *grpcService
}

// newReplica builds the services of serverID. A replica hosted next to others listens for gRPC
// on its address from the replica map.
func (d *Daemon) newReplica(base *settings.Settings, serverID string, hostsMany bool, coord coordination.Coordination) *replica {
	tSettings := *base
	tSettings.Cluster.ServerID = serverID

	if hostsMany {
		tSettings.GRPC.ListenAddress, _ = tSettings.Cluster.Address(serverID)
	}

	shardID := tSettings.Cluster.MyShardID()
	logger := d.loggerFactory(serverID)

	store := ledgermemory.New(logger.New("ledger"), tSettings.Genesis, func(address string) bool {
		return coord.ResolveOwningShard(address) == shardID
	})

	broadcaster := broadcast.NewBroadcaster(logger.New("broadcast"), &tSettings, coord, d.dialBroadcast)
	manager := coordinator.New(logger.New("coordinator"), &tSettings, store, coord, broadcaster, d.dialPeer)
	broadcastServer := broadcast.NewServer(logger.New("broadcast"), &tSettings, coord, broadcaster, manager, d.dialBroadcast)
	coordinatorServer := coordinator.NewServer(logger.New("coordinator"), manager)

	return &replica{
		settings:    &tSettings,
		manager:     manager,
		coordinator: coordinatorServer,
		broadcast:   broadcastServer,
		grpc: &grpcService{
			logger:   logger.New("grpc"),
			settings: &tSettings,
			register: func(server *grpc.Server) {
				broadcastServer.RegisterGRPC(server)
				coordinatorServer.RegisterGRPC(server)
			},
		},
	}
}

func (d *Daemon) hosted(serverID string) (*replica, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.replicas[serverID]

	return r, ok
}

func (d *Daemon) dialBroadcast(ctx context.Context, target settings.Replica) (broadcast.ClientI, error) {
	if r, ok := d.hosted(target.ServerID); ok {
		return broadcast.NewLocalClient(r.broadcast), nil
	}

	conn, err := d.connections.Get(ctx, target)
	if err != nil {
		return nil, err
	}

	return broadcast.NewClient(conn), nil
}

func (d *Daemon) dialPeer(ctx context.Context, target settings.Replica) (coordinator.PeerClientI, error) {
	if r, ok := d.hosted(target.ServerID); ok {
		return coordinator.NewLocalClient(r.manager), nil
	}

	conn, err := d.connections.Get(ctx, target)
	if err != nil {
		return nil, err
	}

	return coordinator.NewClient(conn), nil
}

// newCoordination builds the configured coordination backend and a function releasing it.
func newCoordination(logger ulogger.Logger, tSettings *settings.Settings) (coordination.Coordination, func(), error) {
	switch tSettings.Coordination.Backend {
	case "", "memory":
		return coordmemory.New(logger, tSettings.Cluster.ShardIDs), func() {}, nil
	case "redis":
		client, err := coordredis.NewClient(tSettings.Coordination.RedisURL)
		if err != nil {
			return nil, nil, err
		}

		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warnf("[Coordination] closing redis client: %v", err)
			}
		}

		return coordredis.New(logger, client, tSettings.Cluster.ShardIDs, tSettings.Coordination), closeFn, nil
	default:
		return nil, nil, errors.NewConfigurationError("unknown coordination backend %q", tSettings.Coordination.Backend)
	}
}

// grpcService serves the gRPC API of one replica.
type grpcService struct {
	logger   ulogger.Logger
	settings *settings.Settings
	register func(server *grpc.Server)
}

func (s *grpcService) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "GRPC listening on " + s.settings.GRPC.ListenAddress, nil
}

func (s *grpcService) Init(_ context.Context) error {
	return nil
}

func (s *grpcService) Start(ctx context.Context, readyCh chan<- struct{}) error {
	return util.StartGRPCServer(ctx, s.logger, s.settings, "GRPC "+s.settings.Cluster.ServerID, s.settings.GRPC.ListenAddress, s.register, readyCh)
}

func (s *grpcService) Stop(_ context.Context) error {
	return nil
}
