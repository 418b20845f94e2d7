package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/ordishs/gocore"
	"golang.org/x/sync/errgroup"
)

// ProcessTransactionLocally applies a sequenced transaction. Every replica of the shard runs it
// in the same order; only the originating replica answers the client.
func (m *Manager) ProcessTransactionLocally(ctx context.Context, tx *model.Transaction, idempotencyKey, origServerID string, pendingRequestID uint64) {
	start := gocore.CurrentTime()
	defer m.stats.NewStat("ProcessTransactionLocally").AddTime(start)

	isOrigin := origServerID == m.serverID

	if resp, ok := m.done.Load(idempotencyKey); ok {
		if isOrigin {
			m.resolve(pendingRequestID, resp.AsConflict())
		}

		return
	}

	if err := m.ledger.CanProcessTransaction(tx, true); err != nil {
		m.logger.Debugf("[Coordinator] transaction %s rejected: %v", tx.TransactionID, err)

		if isOrigin {
			m.resolve(pendingRequestID, rejection(tx, err))
		}

		return
	}

	if err := m.ledger.PerformTransaction(tx); err != nil {
		m.logger.Errorf("[Coordinator] transaction %s failed after validation: %v", tx.TransactionID, err)

		if isOrigin {
			m.resolve(pendingRequestID, rejection(tx, err))
		}

		return
	}

	resp := model.NewTransactionResponse(model.StatusCreated, "", tx)
	m.done.Store(idempotencyKey, resp)

	// the originator answers only once the recipients know about their outputs; the other
	// replicas repeat the propagation in the background in case the originator fails
	if isOrigin {
		m.propagate(ctx, tx)
		m.resolve(pendingRequestID, resp)
	} else {
		go m.propagate(ctx, tx)
	}
}

func rejection(tx *model.Transaction, err error) *model.Response {
	if errors.Is(err, errors.ErrTxAlreadyExists) {
		err = errors.NewTxConflictError("transaction %s was already processed", tx.TransactionID, err)
	}

	resp := model.NewErrorResponse(err)
	if resp.Status == model.StatusConflict {
		resp.Transaction = tx
	}

	return resp
}

// propagate records tx on every replica of every other shard owning one of its outputs.
// Failures are logged and not retried.
func (m *Manager) propagate(ctx context.Context, tx *model.Transaction) {
	set := make(map[string]struct{})

	for _, out := range tx.Outputs {
		if shardID := m.coordination.ResolveOwningShard(out.Address); shardID != m.shardID {
			set[shardID] = struct{}{}
		}
	}

	if len(set) == 0 {
		return
	}

	g, gCtx := errgroup.WithContext(context.WithoutCancel(ctx))

	for _, shardID := range sortedKeys(set) {
		for _, replica := range m.settings.Cluster.ReplicasOf(shardID) {
			replica := replica

			g.Go(func() error {
				err := m.callPeer(gCtx, replica, func(ctx context.Context, c PeerClientI) error {
					return c.RecordSubmittedTransaction(ctx, tx)
				})
				if err != nil {
					prometheusCoordinatorPropagationFailed.Inc()
					m.logger.Warnf("[Coordinator] failed to record transaction %s on %s: %v", tx.TransactionID, replica.ServerID, err)
				}

				return nil
			})
		}
	}

	_ = g.Wait()
}

// ProcessAtomicTxListLocally runs this shard's part of the commit of an atomic list: a pre-vote
// on the members it owns, a vote shared with every touched shard and, on commit, the apply of
// the members it owns or receives outputs from.
func (m *Manager) ProcessAtomicTxListLocally(ctx context.Context, txs []*model.Transaction, idempotencyKey, origServerID string, pendingRequestID uint64) {
	start := gocore.CurrentTime()
	defer m.stats.NewStat("ProcessAtomicTxListLocally").AddTime(start)

	isOrigin := origServerID == m.serverID

	if resp, ok := m.done.Load(idempotencyKey); ok {
		if isOrigin {
			m.resolve(pendingRequestID, resp.AsConflict())
		}

		return
	}

	reason := m.preVote(txs)
	touched := m.touchedShards(txs)
	commitID := fmt.Sprintf("%s-%s-%d", idempotencyKey, origServerID, pendingRequestID)

	voteCtx, cancel := context.WithTimeout(ctx, m.settings.Coordination.Timeout)
	defer cancel()

	voteStart := time.Now()

	decision, err := m.coordination.CastVoteAndAwaitDecision(voteCtx, commitID, m.shardID, reason == "", touched)

	prometheusCoordinatorVoteDuration.Observe(time.Since(voteStart).Seconds())
	if err != nil {
		m.logger.Errorf("[Coordinator] vote on atomic list %s failed: %v", commitID, err)

		if isOrigin {
			m.resolve(pendingRequestID, model.NewErrorResponse(errors.NewCoordinationError("vote on atomic list failed", err)))
		}

		return
	}

	if !decision.Commit {
		prometheusCoordinatorVotes.WithLabelValues("abort").Inc()

		if reason == "" {
			reason = "atomic list was rejected by another shard"
		}

		m.logger.Debugf("[Coordinator] atomic list %s aborted: %s", commitID, reason)

		if isOrigin {
			m.resolve(pendingRequestID, model.NewResponse(model.StatusBadRequest, reason))
		}

		return
	}

	prometheusCoordinatorVotes.WithLabelValues("commit").Inc()

	stamped := make([]*model.Transaction, 0, len(txs))

	for _, tx := range txs {
		tx = tx.WithTimestamp(decision.Timestamp)
		stamped = append(stamped, tx)

		switch {
		case m.Owns(tx.SourceAddress):
			if err := m.ledger.PerformTransaction(tx); err != nil {
				m.logger.Fatalf("[Coordinator] %v", errors.NewInvariantViolationError("committed atomic list %s member %s cannot be applied", commitID, tx.TransactionID, err))
				return
			}
		case m.ownsAnyOutput(tx):
			if err := m.ledger.RecordTransaction(tx); err != nil {
				m.logger.Fatalf("[Coordinator] %v", errors.NewInvariantViolationError("committed atomic list %s member %s cannot be recorded", commitID, tx.TransactionID, err))
				return
			}
		}
	}

	resp := model.NewTransactionListResponse(model.StatusCreated, "", stamped)
	m.done.Store(idempotencyKey, resp)

	if isOrigin {
		m.resolve(pendingRequestID, resp)
	}
}

// preVote returns why the list cannot commit on this shard, or "" when it can. Timestamps are
// not compared since the list has none yet.
func (m *Manager) preVote(txs []*model.Transaction) string {
	ids := make(map[string]struct{}, len(txs))
	inputs := make(map[model.UTXO]struct{})

	for _, tx := range txs {
		if tx.SourceAddress == "" {
			return fmt.Sprintf("transaction %s has no single source address", tx.TransactionID)
		}

		if _, dup := ids[tx.TransactionID]; dup {
			return fmt.Sprintf("transaction %s appears more than once in the atomic list", tx.TransactionID)
		}

		ids[tx.TransactionID] = struct{}{}

		for _, in := range tx.Inputs {
			if _, dup := inputs[in]; dup {
				return fmt.Sprintf("input %s/%s is spent by more than one transaction of the atomic list", in.Address, in.TransactionID)
			}

			inputs[in] = struct{}{}
		}
	}

	for _, tx := range txs {
		if !m.Owns(tx.SourceAddress) {
			continue
		}

		if err := m.ledger.CanProcessTransaction(tx, false); err != nil {
			return model.NewErrorResponse(err).Reason
		}
	}

	return ""
}

func (m *Manager) ownsAnyOutput(tx *model.Transaction) bool {
	for _, out := range tx.Outputs {
		if m.Owns(out.Address) {
			return true
		}
	}

	return false
}

// ProcessListEntireHistoryLocally takes part in the history barrier. Every shard holds its
// executor in the barrier while the originator gathers the history, so the result reflects one
// point of every shard's order. The originator's siblings do not take part.
func (m *Manager) ProcessListEntireHistoryLocally(ctx context.Context, limit int, origShardID, origServerID string, pendingRequestID uint64) {
	start := gocore.CurrentTime()
	defer m.stats.NewStat("ProcessListEntireHistoryLocally").AddTime(start)

	isOrigin := origServerID == m.serverID
	if !isOrigin && origShardID == m.shardID {
		return
	}

	barrierID := fmt.Sprintf("history-%s-%d", origServerID, pendingRequestID)
	expected := len(m.settings.Cluster.ShardIDs)

	barrierCtx, cancel := context.WithTimeout(ctx, m.settings.Coordination.Timeout)
	defer cancel()

	if err := m.coordination.EnterBarrier(barrierCtx, barrierID, m.shardID, expected); err != nil {
		m.logger.Errorf("[Coordinator] history barrier %s: %v", barrierID, err)

		if isOrigin {
			m.resolve(pendingRequestID, model.NewErrorResponse(errors.NewCoordinationError("history barrier failed", err)))
		}

		return
	}

	var resp *model.Response

	if isOrigin {
		txs, err := m.collectHistory(barrierCtx, limit)
		if err != nil {
			resp = model.NewErrorResponse(err)
		} else {
			resp = model.NewTransactionListResponse(model.StatusOK, "", txs)
		}
	}

	if err := m.coordination.LeaveBarrier(barrierCtx, barrierID, m.shardID, expected); err != nil {
		m.logger.Warnf("[Coordinator] leaving history barrier %s: %v", barrierID, err)
	}

	if isOrigin {
		m.resolve(pendingRequestID, resp)
	}
}

// collectHistory merges the history of every shard. Other shards are asked replica by replica
// until one answers.
func (m *Manager) collectHistory(ctx context.Context, limit int) ([]*model.Transaction, error) {
	var (
		mu     sync.Mutex
		merged = make(map[string]*model.Transaction)
	)

	add := func(txs []*model.Transaction) {
		mu.Lock()
		defer mu.Unlock()

		for _, tx := range txs {
			merged[tx.TransactionID] = tx
		}
	}

	add(m.ledger.GetEntireHistory(limit))

	g, gCtx := errgroup.WithContext(ctx)

	for _, shardID := range m.settings.Cluster.ShardIDs {
		if shardID == m.shardID {
			continue
		}

		shardID := shardID

		g.Go(func() error {
			for _, replica := range m.settings.Cluster.ReplicasOf(shardID) {
				var txs []*model.Transaction

				err := m.callPeer(gCtx, replica, func(ctx context.Context, c PeerClientI) error {
					var err error

					txs, err = c.GetEntireHistory(ctx, limit)

					return err
				})
				if err == nil {
					add(txs)
					return nil
				}

				m.logger.Warnf("[Coordinator] history of %s from %s: %v", shardID, replica.ServerID, err)
			}

			return errors.NewShardUnavailableError("no replica of shard %s returned its history", shardID)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	txs := make([]*model.Transaction, 0, len(merged))
	for _, tx := range merged {
		txs = append(txs, tx)
	}

	model.SortByTimestamp(txs)

	return model.Truncate(txs, limit), nil
}
