package broadcast

import (
	"context"

	"github.com/bsv-blockchain/shardledger/tracing"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/bsv-blockchain/shardledger/util"
	"github.com/ordishs/gocore"
)

// Executor applies ordered packets to the local replica, one at a time.
type Executor struct {
	logger  ulogger.Logger
	handler Handler
	queue   *util.FIFO[*Packet]
	stats   *gocore.Stat
}

func NewExecutor(logger ulogger.Logger, handler Handler) *Executor {
	initPrometheusMetrics()

	return &Executor{
		logger:  logger,
		handler: handler,
		queue:   util.NewFIFO[*Packet](),
		stats:   gocore.NewStat("executor"),
	}
}

// Execute queues an ordered packet. It never blocks.
func (e *Executor) Execute(packet *Packet) {
	e.queue.Push(packet)
	prometheusExecutorQueueLength.Set(float64(e.queue.Len()))
}

// Pending returns the number of packets waiting to be applied.
func (e *Executor) Pending() int {
	return e.queue.Len()
}

// Start applies queued packets until ctx is done.
func (e *Executor) Start(ctx context.Context) error {
	for {
		for {
			packet, ok := e.queue.Pop()
			if !ok {
				break
			}

			prometheusExecutorQueueLength.Set(float64(e.queue.Len()))
			e.dispatch(ctx, packet)

			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-e.queue.Ready():
		}
	}
}

func (e *Executor) dispatch(ctx context.Context, packet *Packet) {
	ctx, _, deferFn := tracing.StartTracing(ctx, "Executor:"+string(packet.Kind),
		tracing.WithParentStat(e.stats),
		tracing.WithHistogram(prometheusExecutorDuration),
		tracing.WithTag("request", packet.Key()),
	)
	defer deferFn()

	e.logger.Debugf("[Executor] executing %s packet %s", packet.Kind, packet.Key())

	switch packet.Kind {
	case KindTransaction:
		e.handler.ProcessTransactionLocally(ctx, packet.Transaction, packet.IdempotencyKey, packet.OrigServerID, packet.PendingRequestID)
	case KindAtomicList:
		e.handler.ProcessAtomicTxListLocally(ctx, packet.Transactions, packet.IdempotencyKey, packet.OrigServerID, packet.PendingRequestID)
	case KindHistory:
		e.handler.ProcessListEntireHistoryLocally(ctx, packet.Limit, packet.OrigShardID, packet.OrigServerID, packet.PendingRequestID)
	default:
		e.logger.Errorf("[Executor] dropping packet %s of unknown kind %q", packet.Key(), packet.Kind)
		return
	}

	prometheusExecutorExecuted.WithLabelValues(string(packet.Kind)).Inc()
}
