package broadcast

import (
	"context"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/services/coordination"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/bsv-blockchain/shardledger/util/retry"
	"github.com/puzpuzpuz/xsync/v2"
	"golang.org/x/sync/errgroup"
)

// Broadcaster proposes packets to the current sequencer of any shard. It tracks the sequencer
// of every shard through the coordination watch.
type Broadcaster struct {
	logger       ulogger.Logger
	settings     *settings.Settings
	coordination coordination.Coordination
	dial         Dialer
	directory    *xsync.MapOf[string, string]
	clients      *xsync.MapOf[string, ClientI]
}

func NewBroadcaster(logger ulogger.Logger, tSettings *settings.Settings, coord coordination.Coordination, dial Dialer) *Broadcaster {
	initPrometheusMetrics()

	return &Broadcaster{
		logger:       logger,
		settings:     tSettings,
		coordination: coord,
		dial:         dial,
		directory:    xsync.NewMapOf[string](),
		clients:      xsync.NewMapOf[ClientI](),
	}
}

// Init starts watching the sequencer of every shard until ctx is done.
func (b *Broadcaster) Init(ctx context.Context) error {
	for _, shardID := range b.settings.Cluster.ShardIDs {
		current, err := b.coordination.WatchCurrentSequencer(ctx, shardID, b.onSequencerChange)
		if err != nil {
			return errors.NewCoordinationError("[Broadcaster] failed to watch sequencer of %s", shardID, err)
		}

		if current != "" {
			b.directory.Store(shardID, current)
		}
	}

	return nil
}

func (b *Broadcaster) onSequencerChange(shardID, serverID string) {
	b.logger.Infof("[Broadcaster] sequencer of %s is now %q", shardID, serverID)

	if serverID == "" {
		b.directory.Delete(shardID)
		return
	}

	b.directory.Store(shardID, serverID)
}

// CurrentSequencer returns the replica currently sequencing shardID.
func (b *Broadcaster) CurrentSequencer(shardID string) (settings.Replica, bool) {
	serverID, ok := b.directory.Load(shardID)
	if !ok {
		return settings.Replica{}, false
	}

	address, ok := b.settings.Cluster.Address(serverID)
	if !ok {
		return settings.Replica{}, false
	}

	return settings.Replica{ShardID: shardID, ServerID: serverID, Address: address}, true
}

// IsSequencer reports whether the local replica currently sequences its shard.
func (b *Broadcaster) IsSequencer() bool {
	serverID, ok := b.directory.Load(b.settings.Cluster.MyShardID())

	return ok && serverID == b.settings.Cluster.ServerID
}

// Propose hands packet to the sequencer of shardID and returns once it is scheduled. The
// sequencer is looked up again on every attempt so a change of sequencer is picked up.
func (b *Broadcaster) Propose(ctx context.Context, shardID string, packet *Packet) error {
	_, err := retry.Retry(ctx, b.logger, func() (struct{}, error) {
		return struct{}{}, b.proposeOnce(ctx, shardID, packet)
	}, b.settings.Broadcast.ProposeRetries, 1, b.settings.Broadcast.ProposeBackoff, errors.IsRetryableError,
		"[Broadcaster] failed to propose packet "+packet.Key()+" to "+shardID)
	if err != nil {
		prometheusBroadcasterFailed.Inc()
		return err
	}

	prometheusBroadcasterProposed.Inc()

	return nil
}

func (b *Broadcaster) proposeOnce(ctx context.Context, shardID string, packet *Packet) error {
	replica, ok := b.CurrentSequencer(shardID)
	if !ok {
		return errors.NewShardUnavailableError("shard %s has no sequencer", shardID)
	}

	client, err := b.client(ctx, replica)
	if err != nil {
		return errors.NewServiceUnavailableError("cannot reach sequencer %s of %s", replica.ServerID, shardID, err)
	}

	callCtx := ctx

	if b.settings.GRPC.CallTimeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, b.settings.GRPC.CallTimeout)
		defer cancel()
	}

	return client.BroadcastToShard(callCtx, packet)
}

// ProposeAll proposes packet to every shard in shardIDs concurrently.
func (b *Broadcaster) ProposeAll(ctx context.Context, shardIDs []string, packet *Packet) error {
	g, gCtx := errgroup.WithContext(ctx)

	for _, shardID := range shardIDs {
		shardID := shardID

		g.Go(func() error {
			return b.Propose(gCtx, shardID, packet)
		})
	}

	return g.Wait()
}

func (b *Broadcaster) client(ctx context.Context, replica settings.Replica) (ClientI, error) {
	if client, ok := b.clients.Load(replica.ServerID); ok {
		return client, nil
	}

	client, err := b.dial(ctx, replica)
	if err != nil {
		return nil, err
	}

	actual, _ := b.clients.LoadOrStore(replica.ServerID, client)

	return actual, nil
}
