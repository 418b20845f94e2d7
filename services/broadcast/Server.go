package broadcast

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/services/coordination"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/ordishs/gocore"
	"golang.org/x/sync/errgroup"
)

// Server is the broadcast service of one replica. It owns the replica's sequencer and executor
// and accepts proposals only while the replica is its shard's current sequencer.
type Server struct {
	logger       ulogger.Logger
	settings     *settings.Settings
	coordination coordination.Coordination
	broadcaster  *Broadcaster
	sequencer    *Sequencer
	executor     *Executor
	stats        *gocore.Stat
}

func NewServer(logger ulogger.Logger, tSettings *settings.Settings, coord coordination.Coordination, broadcaster *Broadcaster,
	handler Handler, dial Dialer) *Server {
	initPrometheusMetrics()

	executor := NewExecutor(logger, handler)

	return &Server{
		logger:       logger,
		settings:     tSettings,
		coordination: coord,
		broadcaster:  broadcaster,
		sequencer:    NewSequencer(logger, tSettings, coord, executor, dial),
		executor:     executor,
		stats:        gocore.NewStat("broadcast"),
	}
}

func (s *Server) Health(_ context.Context, _ bool) (int, string, error) {
	sequencer, ok := s.broadcaster.CurrentSequencer(s.settings.Cluster.MyShardID())
	if !ok {
		return http.StatusServiceUnavailable, "Broadcast: shard has no sequencer", nil
	}

	return http.StatusOK, fmt.Sprintf("Broadcast: sequencer %s, %d packets pending", sequencer.ServerID, s.executor.Pending()), nil
}

func (s *Server) Init(ctx context.Context) error {
	return s.broadcaster.Init(ctx)
}

// Start registers the replica with the coordination service and runs the sequencer and the
// executor until ctx is done.
func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	replica := settings.Replica{
		ShardID:  s.settings.Cluster.MyShardID(),
		ServerID: s.settings.Cluster.ServerID,
	}

	replica.Address, _ = s.settings.Cluster.Address(replica.ServerID)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.executor.Start(gCtx)
	})

	g.Go(func() error {
		return s.sequencer.Start(gCtx)
	})

	if err := s.coordination.Register(gCtx, replica); err != nil {
		return errors.NewCoordinationError("[Broadcast] failed to register %s", replica.ServerID, err)
	}

	s.logger.Infof("[Broadcast] %s registered in %s", replica.ServerID, replica.ShardID)

	if readyCh != nil {
		close(readyCh)
	}

	return g.Wait()
}

func (s *Server) Stop(_ context.Context) error {
	return nil
}

// BroadcastToShard proposes packet to the local sequencer.
func (s *Server) BroadcastToShard(ctx context.Context, packet *Packet) error {
	start := gocore.CurrentTime()
	defer s.stats.NewStat("BroadcastToShard").AddTime(start)

	if !s.broadcaster.IsSequencer() {
		prometheusBroadcastRejected.Inc()
		return errors.NewServiceUnavailableError("%s is not the sequencer of %s", s.settings.Cluster.ServerID, s.settings.Cluster.MyShardID())
	}

	return s.sequencer.Propose(ctx, packet)
}

// ExecuteMsg queues an ordered packet on the local executor.
func (s *Server) ExecuteMsg(_ context.Context, packet *Packet) error {
	if err := packet.Validate(); err != nil {
		return err
	}

	s.executor.Execute(packet)

	return nil
}

func (s *Server) BroadcastToShardGRPC(ctx context.Context, packet *Packet) (*Ack, error) {
	if err := s.BroadcastToShard(ctx, packet); err != nil {
		return nil, errors.WrapGRPC(err)
	}

	return &Ack{OK: true}, nil
}

func (s *Server) ExecuteMsgGRPC(ctx context.Context, packet *Packet) (*Ack, error) {
	if err := s.ExecuteMsg(ctx, packet); err != nil {
		return nil, errors.WrapGRPC(err)
	}

	return &Ack{OK: true}, nil
}
