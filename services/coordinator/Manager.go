package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/services/broadcast"
	"github.com/bsv-blockchain/shardledger/services/coordination"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/stores/ledger"
	"github.com/bsv-blockchain/shardledger/tracing"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/ordishs/gocore"
	"github.com/puzpuzpuz/xsync/v2"
	"go.uber.org/atomic"
)

// Manager is the coordinator of one replica. Handle* methods are the entry points of client
// requests; Process*Locally methods are called by the replica's executor in shard order.
type Manager struct {
	logger       ulogger.Logger
	settings     *settings.Settings
	ledger       ledger.Store
	coordination coordination.Coordination
	proposer     Proposer
	dialPeer     PeerDialer
	peers        *xsync.MapOf[string, PeerClientI]
	pending      *xsync.MapOf[uint64, *PendingRequest]
	done         *xsync.MapOf[string, *model.Response]
	nextID       *atomic.Uint64
	shardID      string
	serverID     string
	stats        *gocore.Stat
}

func New(logger ulogger.Logger, tSettings *settings.Settings, store ledger.Store, coord coordination.Coordination,
	proposer Proposer, dialPeer PeerDialer) *Manager {
	initPrometheusMetrics()

	return &Manager{
		logger:       logger,
		settings:     tSettings,
		ledger:       store,
		coordination: coord,
		proposer:     proposer,
		dialPeer:     dialPeer,
		peers:        xsync.NewMapOf[PeerClientI](),
		pending:      xsync.NewIntegerMapOf[uint64, *PendingRequest](),
		done:         xsync.NewMapOf[*model.Response](),
		nextID:       atomic.NewUint64(0),
		shardID:      tSettings.Cluster.MyShardID(),
		serverID:     tSettings.Cluster.ServerID,
		stats:        gocore.NewStat("coordinator"),
	}
}

// SetProposer sets the proposer when it is created after the manager.
func (m *Manager) SetProposer(proposer Proposer) {
	m.proposer = proposer
}

func (m *Manager) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	status, details, err := m.ledger.Health(ctx, checkLiveness)
	if err != nil || status != http.StatusOK {
		return status, details, err
	}

	return http.StatusOK, fmt.Sprintf("Coordinator %s in %s: %d pending, %d done; %s", m.serverID, m.shardID, m.pending.Size(), m.done.Size(), details), nil
}

// Owns reports whether the local shard is responsible for address.
func (m *Manager) Owns(address string) bool {
	return m.coordination.ResolveOwningShard(address) == m.shardID
}

func (m *Manager) HandleTransaction(ctx context.Context, req *model.TransactionRequest) *model.Response {
	ctx, _, deferFn := m.startTracing(ctx, "HandleTransaction")
	defer deferFn()

	if req == nil {
		return model.NewResponse(model.StatusBadRequest, "transaction request is empty")
	}

	source := req.SourceAddress()
	if source == "" {
		return model.NewResponse(model.StatusBadRequest, "transaction inputs must all belong to one source address")
	}

	if owner := m.coordination.ResolveOwningShard(source); owner != m.shardID {
		return m.forward(ctx, owner, func(ctx context.Context, c PeerClientI) (*model.Response, error) {
			return c.DelegateHandleTransaction(ctx, req)
		})
	}

	tx := req.ToTransaction()

	return m.submit(ctx, []string{m.shardID}, &broadcast.Packet{
		Kind:           broadcast.KindTransaction,
		IdempotencyKey: model.TransactionIdempotencyKey(tx.TransactionID),
		Transaction:    tx,
	})
}

func (m *Manager) HandleCoinTransfer(ctx context.Context, req *model.CoinTransferRequest) *model.Response {
	ctx, _, deferFn := m.startTracing(ctx, "HandleCoinTransfer")
	defer deferFn()

	if req == nil || req.SourceAddress == "" || req.TargetAddress == "" {
		return model.NewResponse(model.StatusBadRequest, "coin transfer needs a source and a target address")
	}

	if req.Coins < 0 {
		return model.NewResponse(model.StatusBadRequest, fmt.Sprintf("cannot transfer a negative amount of coins (%d)", req.Coins))
	}

	if req.SourceAddress == req.TargetAddress {
		return model.NewResponse(model.StatusBadRequest, fmt.Sprintf("cannot transfer coins from %s to itself", req.SourceAddress))
	}

	if owner := m.coordination.ResolveOwningShard(req.SourceAddress); owner != m.shardID {
		return m.forward(ctx, owner, func(ctx context.Context, c PeerClientI) (*model.Response, error) {
			return c.DelegateHandleCoinTransfer(ctx, req)
		})
	}

	key := req.IdempotencyKey()

	// the funds a processed transfer spent are gone, so replay before building a new transaction
	if resp, ok := m.done.Load(key); ok {
		return resp.AsConflict()
	}

	tx, err := m.ledger.CreateTransactionForCoinTransfer(req.SourceAddress, req.TargetAddress, req.Coins)
	if err != nil {
		return model.NewErrorResponse(err)
	}

	return m.submit(ctx, []string{m.shardID}, &broadcast.Packet{
		Kind:           broadcast.KindTransaction,
		IdempotencyKey: key,
		Transaction:    tx,
	})
}

func (m *Manager) HandleAtomicTxList(ctx context.Context, reqs []model.TransactionRequest) *model.Response {
	ctx, _, deferFn := m.startTracing(ctx, "HandleAtomicTxList")
	defer deferFn()

	if len(reqs) == 0 {
		return model.NewResponse(model.StatusBadRequest, "atomic list is empty")
	}

	txs := make([]*model.Transaction, 0, len(reqs))

	for i := range reqs {
		tx := reqs[i].ToTransaction()
		if tx.SourceAddress == "" {
			return model.NewResponse(model.StatusBadRequest, fmt.Sprintf("inputs of transaction %d must all belong to one source address", i))
		}

		txs = append(txs, tx)
	}

	touched := m.touchedShards(txs)

	if !contains(touched, m.shardID) {
		owner := m.coordination.ResolveOwningShard(txs[0].SourceAddress)

		return m.forward(ctx, owner, func(ctx context.Context, c PeerClientI) (*model.Response, error) {
			return c.DelegateHandleAtomicTxList(ctx, reqs)
		})
	}

	return m.submit(ctx, touched, &broadcast.Packet{
		Kind:           broadcast.KindAtomicList,
		IdempotencyKey: model.AtomicListIdempotencyKey(txs),
		Transactions:   txs,
	})
}

func (m *Manager) HandleListAddrUTXOs(ctx context.Context, address string) *model.Response {
	ctx, _, deferFn := m.startTracing(ctx, "HandleListAddrUTXOs")
	defer deferFn()

	if address == "" {
		return model.NewResponse(model.StatusBadRequest, "address is required")
	}

	if owner := m.coordination.ResolveOwningShard(address); owner != m.shardID {
		return m.forward(ctx, owner, func(ctx context.Context, c PeerClientI) (*model.Response, error) {
			return c.DelegateHandleListAddrUTXOs(ctx, address)
		})
	}

	return model.NewUTXOListResponse(model.StatusOK, "", m.ledger.ListUTXOs(address))
}

func (m *Manager) HandleListAddrTransactions(ctx context.Context, address string, limit int) *model.Response {
	ctx, _, deferFn := m.startTracing(ctx, "HandleListAddrTransactions")
	defer deferFn()

	if address == "" {
		return model.NewResponse(model.StatusBadRequest, "address is required")
	}

	if owner := m.coordination.ResolveOwningShard(address); owner != m.shardID {
		return m.forward(ctx, owner, func(ctx context.Context, c PeerClientI) (*model.Response, error) {
			return c.DelegateHandleListAddrTransactions(ctx, address, limit)
		})
	}

	return model.NewTransactionListResponse(model.StatusOK, "", m.ledger.ListTransactions(address, limit))
}

// HandleListEntireHistory orders a history marker on every shard; the local executor gathers
// the history once every shard has reached it.
func (m *Manager) HandleListEntireHistory(ctx context.Context, limit int) *model.Response {
	ctx, _, deferFn := m.startTracing(ctx, "HandleListEntireHistory")
	defer deferFn()

	return m.submit(ctx, m.settings.Cluster.ShardIDs, &broadcast.Packet{
		Kind:  broadcast.KindHistory,
		Limit: limit,
	})
}

// RecordSubmittedTransaction absorbs a transaction another shard committed with outputs owned
// here.
func (m *Manager) RecordSubmittedTransaction(_ context.Context, tx *model.Transaction) error {
	start := gocore.CurrentTime()
	defer m.stats.NewStat("RecordSubmittedTransaction").AddTime(start)

	prometheusCoordinatorRecorded.Inc()

	return m.ledger.RecordTransaction(tx)
}

func (m *Manager) GetEntireHistory(_ context.Context, limit int) ([]*model.Transaction, error) {
	return m.ledger.GetEntireHistory(limit), nil
}

func (m *Manager) startTracing(ctx context.Context, name string) (context.Context, *gocore.Stat, func(...error)) {
	prometheusCoordinatorRequests.WithLabelValues(name).Inc()

	return tracing.StartTracing(ctx, "Coordinator:"+name,
		tracing.WithParentStat(m.stats),
		tracing.WithHistogram(prometheusCoordinatorRequestDuration),
	)
}

// submit proposes packet to shardIDs on behalf of a new pending request and waits for the
// local executor to resolve it.
func (m *Manager) submit(ctx context.Context, shardIDs []string, packet *broadcast.Packet) *model.Response {
	pr := NewPendingRequest(m.nextID.Inc())

	m.pending.Store(pr.ID, pr)
	prometheusCoordinatorPending.Set(float64(m.pending.Size()))

	defer func() {
		m.pending.Delete(pr.ID)
		prometheusCoordinatorPending.Set(float64(m.pending.Size()))
	}()

	packet.OrigShardID = m.shardID
	packet.OrigServerID = m.serverID
	packet.PendingRequestID = pr.ID

	if err := m.proposer.ProposeAll(ctx, shardIDs, packet); err != nil {
		m.logger.Errorf("[Coordinator] failed to broadcast request %s: %v", packet.Key(), err)

		return model.NewErrorResponse(err)
	}

	resp, err := pr.Wait(ctx, m.settings.Coordinator.RequestTimeout)
	if err != nil {
		m.logger.Errorf("[Coordinator] request %s: %v", packet.Key(), err)

		return model.NewResponse(model.StatusInternalError, err.Error())
	}

	return resp
}

// resolve answers the pending request id if this replica is still waiting for it.
func (m *Manager) resolve(id uint64, resp *model.Response) {
	if pr, ok := m.pending.Load(id); ok {
		pr.Resolve(resp)
		return
	}

	m.logger.Warnf("[Coordinator] no pending request %d for response %s", id, resp.Status)
}

// forward sends a request to the replicas of shardID in turn. The first replica that answers
// wins; a shard with no reachable replica yields an unavailable response.
func (m *Manager) forward(ctx context.Context, shardID string, call func(ctx context.Context, c PeerClientI) (*model.Response, error)) *model.Response {
	prometheusCoordinatorForwarded.Inc()

	for _, replica := range m.settings.Cluster.ReplicasOf(shardID) {
		var resp *model.Response

		err := m.callPeer(ctx, replica, func(ctx context.Context, c PeerClientI) error {
			var err error

			resp, err = call(ctx, c)

			return err
		})
		if err == nil && resp != nil {
			return resp
		}

		// the caller gave up, the next replica would fail the same way
		if ctx.Err() != nil && errors.IsContextError(err) {
			return model.NewErrorResponse(errors.FromContext(ctx, "forwarding to shard %s abandoned", shardID))
		}

		m.logger.Warnf("[Coordinator] forwarding to %s of %s failed: %v", replica.ServerID, shardID, err)
	}

	prometheusCoordinatorForwardFailed.Inc()

	return model.NewResponse(model.StatusUnavailable, fmt.Sprintf("no replica of shard %s is reachable", shardID))
}

// callPeer runs call against replica with the configured call timeout.
func (m *Manager) callPeer(ctx context.Context, replica settings.Replica, call func(ctx context.Context, c PeerClientI) error) error {
	client, err := m.peer(ctx, replica)
	if err != nil {
		return err
	}

	if m.settings.GRPC.CallTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, m.settings.GRPC.CallTimeout)
		defer cancel()
	}

	return call(ctx, client)
}

func (m *Manager) peer(ctx context.Context, replica settings.Replica) (PeerClientI, error) {
	if client, ok := m.peers.Load(replica.ServerID); ok {
		return client, nil
	}

	client, err := m.dialPeer(ctx, replica)
	if err != nil {
		return nil, errors.NewServiceUnavailableError("cannot reach %s", replica.ServerID, err)
	}

	actual, _ := m.peers.LoadOrStore(replica.ServerID, client)

	return actual, nil
}

// touchedShards returns the shards owning a source or an output of txs, sorted.
func (m *Manager) touchedShards(txs []*model.Transaction) []string {
	set := make(map[string]struct{})

	for _, tx := range txs {
		set[m.coordination.ResolveOwningShard(tx.SourceAddress)] = struct{}{}

		for _, out := range tx.Outputs {
			set[m.coordination.ResolveOwningShard(out.Address)] = struct{}{}
		}
	}

	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}
