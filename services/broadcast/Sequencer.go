package broadcast

import (
	"context"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/services/coordination"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/bsv-blockchain/shardledger/util"
	"github.com/bsv-blockchain/shardledger/util/retry"
	"github.com/jellydator/ttlcache/v3"
	"github.com/ordishs/gocore"
)

type proposal struct {
	packet    *Packet
	scheduled chan struct{}
}

// Sequencer orders the proposals made to one shard. The queue belongs to the loop goroutine
// started by Start. Packet keys are remembered for Broadcast.DuplicateTTL.
type Sequencer struct {
	logger       ulogger.Logger
	settings     *settings.Settings
	coordination coordination.Coordination
	executor     *Executor
	replicators  []*replicator
	queue        *util.FIFO[*proposal]
	seen         *ttlcache.Cache[string, struct{}]
	stats        *gocore.Stat
}

// NewSequencer creates the sequencer of the local replica. The siblings it replicates to are
// taken from the configured replica map.
func NewSequencer(logger ulogger.Logger, tSettings *settings.Settings, coord coordination.Coordination, executor *Executor, dial Dialer) *Sequencer {
	initPrometheusMetrics()

	siblings := tSettings.Cluster.Siblings()
	replicators := make([]*replicator, 0, len(siblings))

	for _, sibling := range siblings {
		replicators = append(replicators, newReplicator(logger, sibling, dial, tSettings.Broadcast.ReplicationQueueSize, tSettings.GRPC.CallTimeout))
	}

	return &Sequencer{
		logger:       logger,
		settings:     tSettings,
		coordination: coord,
		executor:     executor,
		replicators:  replicators,
		queue:        util.NewFIFO[*proposal](),
		seen: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](tSettings.Broadcast.DuplicateTTL),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
		stats: gocore.NewStat("sequencer"),
	}
}

// Propose queues packet and returns once its position in the order is fixed.
func (s *Sequencer) Propose(ctx context.Context, packet *Packet) error {
	if err := packet.Validate(); err != nil {
		return err
	}

	start := gocore.CurrentTime()
	defer s.stats.NewStat("Propose").AddTime(start)

	p := &proposal{
		packet:    packet,
		scheduled: make(chan struct{}),
	}

	s.queue.Push(p)
	prometheusSequencerProposed.Inc()

	select {
	case <-p.scheduled:
		return nil
	case <-ctx.Done():
		return errors.FromContext(ctx, "packet %s was not scheduled", packet.Key())
	}
}

// Start runs the ordering loop and the sibling replicators until ctx is done.
func (s *Sequencer) Start(ctx context.Context) error {
	for _, r := range s.replicators {
		go r.run(ctx)
	}

	go s.seen.Start()
	defer s.seen.Stop()

	s.logger.Infof("[Sequencer] started with %d siblings", len(s.replicators))

	for {
		for {
			p, ok := s.queue.Pop()
			if !ok {
				break
			}

			s.sequence(ctx, p)

			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.queue.Ready():
		}
	}
}

func (s *Sequencer) sequence(ctx context.Context, p *proposal) {
	start := gocore.CurrentTime()
	defer s.stats.NewStat("sequence").AddTime(start)

	close(p.scheduled)

	packet := p.packet
	key := packet.Key()

	if s.seen.Has(key) {
		s.logger.Debugf("[Sequencer] dropping duplicate packet %s", key)
		prometheusSequencerDuplicates.Inc()

		return
	}

	s.seen.Set(key, struct{}{}, ttlcache.DefaultTTL)

	if packet.Kind == KindTransaction {
		timestamp, err := retry.Retry(ctx, s.logger, func() (int64, error) {
			return s.coordination.NewGlobalTimestamp(ctx)
		}, 3, 1, s.settings.Coordination.PollInterval, errors.IsRetryableError, "[Sequencer] failed to get global timestamp")
		if err != nil {
			s.logger.Errorf("[Sequencer] dropping packet %s without a timestamp: %v", key, err)
			return
		}

		packet = packet.stamped(timestamp)
	}

	for _, r := range s.replicators {
		r.enqueue(packet)
	}

	s.executor.Execute(packet)
	prometheusSequencerSequenced.WithLabelValues(string(packet.Kind)).Inc()
}

// replicator ships ordered packets to one sibling, in order and best effort.
type replicator struct {
	logger      ulogger.Logger
	replica     settings.Replica
	dial        Dialer
	client      ClientI
	queue       chan *Packet
	callTimeout time.Duration
}

func newReplicator(logger ulogger.Logger, replica settings.Replica, dial Dialer, queueSize int, callTimeout time.Duration) *replicator {
	return &replicator{
		logger:      logger,
		replica:     replica,
		dial:        dial,
		queue:       make(chan *Packet, queueSize),
		callTimeout: callTimeout,
	}
}

// enqueue never blocks. A full queue drops the packet.
func (r *replicator) enqueue(packet *Packet) {
	select {
	case r.queue <- packet:
	default:
		prometheusReplicationDropped.WithLabelValues(r.replica.ServerID).Inc()
		r.logger.Warnf("[Sequencer] replication queue to %s is full, dropping packet %s", r.replica.ServerID, packet.Key())
	}
}

func (r *replicator) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case packet := <-r.queue:
			if err := r.send(ctx, packet); err != nil {
				prometheusReplicationFailed.WithLabelValues(r.replica.ServerID).Inc()
				r.logger.Warnf("[Sequencer] failed to replicate packet %s to %s: %v", packet.Key(), r.replica.ServerID, err)
			}
		}
	}
}

func (r *replicator) send(ctx context.Context, packet *Packet) error {
	if r.client == nil {
		client, err := r.dial(ctx, r.replica)
		if err != nil {
			return err
		}

		r.client = client
	}

	callCtx := ctx

	if r.callTimeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	return r.client.ExecuteMsg(callCtx, packet)
}
