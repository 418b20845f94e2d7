// Package memory is an in-process coordination backend. All replicas sharing one instance see
// the same clock, barriers, votes and membership, which makes it suitable for single process
// clusters and tests.
package memory

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/services/coordination"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/puzpuzpuz/xsync/v2"
	"go.uber.org/atomic"
)

// signal is a broadcast condition: waiters grab the current channel, notify closes it and
// installs a fresh one.
type signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ch
}

func (s *signal) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.ch)
	s.ch = make(chan struct{})
}

// retention keeps completed barriers and decided rounds around so that lagging replicas reaching
// them later still pass straight through.
const retention = 10 * time.Minute

type barrier struct {
	expire  sync.Once
	mu      sync.Mutex
	entered map[string]struct{}
	left    map[string]struct{}
	changed *signal
}

type round struct {
	mu       sync.Mutex
	votes    map[string]bool
	decision *model.Decision
	decided  chan struct{}
}

type Memory struct {
	logger    ulogger.Logger
	resolver  *coordination.Resolver
	clock     *atomic.Int64
	barriers  *xsync.MapOf[string, *barrier]
	rounds    *xsync.MapOf[string, *round]
	mu        sync.Mutex
	alive     map[string]map[string]int
	sequencer map[string]string
	watchers  map[string][]coordination.SequencerChangeFunc
}

func New(logger ulogger.Logger, shardIDs []string) *Memory {
	return &Memory{
		logger:    logger,
		resolver:  coordination.NewResolver(shardIDs),
		clock:     atomic.NewInt64(0),
		barriers:  xsync.NewMapOf[*barrier](),
		rounds:    xsync.NewMapOf[*round](),
		alive:     make(map[string]map[string]int),
		sequencer: make(map[string]string),
		watchers:  make(map[string][]coordination.SequencerChangeFunc),
	}
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, fmt.Sprintf("Memory coordination: clock at %d", m.clock.Load()), nil
}

func (m *Memory) ResolveOwningShard(address string) string {
	return m.resolver.ResolveOwningShard(address)
}

func (m *Memory) NewGlobalTimestamp(_ context.Context) (int64, error) {
	return m.clock.Inc(), nil
}

func (m *Memory) barrier(barrierID string) *barrier {
	b, _ := m.barriers.LoadOrCompute(barrierID, func() *barrier {
		return &barrier{
			entered: make(map[string]struct{}),
			left:    make(map[string]struct{}),
			changed: newSignal(),
		}
	})

	return b
}

func (m *Memory) EnterBarrier(ctx context.Context, barrierID, participant string, expected int) error {
	b := m.barrier(barrierID)

	return b.join(ctx, barrierID, func() map[string]struct{} { return b.entered }, participant, expected)
}

func (m *Memory) LeaveBarrier(ctx context.Context, barrierID, participant string, expected int) error {
	b := m.barrier(barrierID)

	err := b.join(ctx, barrierID, func() map[string]struct{} { return b.left }, participant, expected)
	if err == nil {
		b.expire.Do(func() {
			time.AfterFunc(retention, func() { m.barriers.Delete(barrierID) })
		})
	}

	return err
}

func (b *barrier) join(ctx context.Context, barrierID string, set func() map[string]struct{}, participant string, expected int) error {
	b.mu.Lock()
	set()[participant] = struct{}{}
	b.mu.Unlock()

	b.changed.notify()

	for {
		wait := b.changed.wait()

		b.mu.Lock()
		n := len(set())
		b.mu.Unlock()

		if n >= expected {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.FromContext(ctx, "barrier %s has %d of %d participants", barrierID, n, expected)
		case <-wait:
		}
	}
}

func (m *Memory) CastVoteAndAwaitDecision(ctx context.Context, commitID, shardID string, vote bool, expectedShards []string) (model.Decision, error) {
	r, _ := m.rounds.LoadOrCompute(commitID, func() *round {
		return &round{
			votes:   make(map[string]bool),
			decided: make(chan struct{}),
		}
	})

	r.mu.Lock()

	if _, voted := r.votes[shardID]; !voted {
		r.votes[shardID] = vote
	}

	complete := true
	commit := true

	for _, shard := range expectedShards {
		v, ok := r.votes[shard]
		if !ok {
			complete = false
			break
		}

		commit = commit && v
	}

	if complete && r.decision == nil {
		decision := model.Decision{Commit: commit, Timestamp: model.UnassignedTimestamp}
		if commit {
			decision.Timestamp = m.clock.Inc()
		}

		r.publish(decision)
		m.expireRound(commitID)
	}

	r.mu.Unlock()

	select {
	case <-r.decided:
	case <-ctx.Done():
		r.mu.Lock()
		if r.decision == nil {
			m.logger.Warnf("[Coordination] commit %s aborted while waiting for votes: %v", commitID, ctx.Err())
			r.publish(model.Decision{Commit: false, Timestamp: model.UnassignedTimestamp})
			m.expireRound(commitID)
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return *r.decision, nil
}

func (m *Memory) expireRound(commitID string) {
	time.AfterFunc(retention, func() { m.rounds.Delete(commitID) })
}

// publish must be called with r.mu held.
func (r *round) publish(decision model.Decision) {
	r.decision = &decision
	close(r.decided)
}

// Register marks the replica alive until ctx is done. Registering the same replica twice keeps
// it alive until both registrations end.
func (m *Memory) Register(ctx context.Context, replica settings.Replica) error {
	m.mu.Lock()

	members, ok := m.alive[replica.ShardID]
	if !ok {
		members = make(map[string]int)
		m.alive[replica.ShardID] = members
	}

	members[replica.ServerID]++
	notify := m.refreshLocked(replica.ShardID)

	m.mu.Unlock()

	notify()

	go func() {
		<-ctx.Done()

		m.mu.Lock()

		members[replica.ServerID]--
		if members[replica.ServerID] <= 0 {
			delete(members, replica.ServerID)
		}

		notify := m.refreshLocked(replica.ShardID)

		m.mu.Unlock()

		notify()
	}()

	return nil
}

// refreshLocked recomputes the sequencer of shardID and returns a function that notifies the
// watchers if it changed. It must be called with m.mu held; the returned function must not.
func (m *Memory) refreshLocked(shardID string) func() {
	ids := make([]string, 0, len(m.alive[shardID]))
	for id := range m.alive[shardID] {
		ids = append(ids, id)
	}

	current := coordination.MinServerID(ids)
	if current == m.sequencer[shardID] {
		return func() {}
	}

	m.sequencer[shardID] = current
	watchers := append([]coordination.SequencerChangeFunc{}, m.watchers[shardID]...)

	return func() {
		for _, w := range watchers {
			w(shardID, current)
		}
	}
}

func (m *Memory) WatchCurrentSequencer(ctx context.Context, shardID string, onChange coordination.SequencerChangeFunc) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.watchers[shardID])
	m.watchers[shardID] = append(m.watchers[shardID], onChange)

	go func() {
		<-ctx.Done()

		m.mu.Lock()
		defer m.mu.Unlock()

		watchers := m.watchers[shardID]
		if idx < len(watchers) {
			watchers[idx] = func(string, string) {}
		}
	}()

	return m.sequencer[shardID], nil
}

// LiveServers returns the registered servers of shardID in order.
func (m *Memory) LiveServers(shardID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.alive[shardID]))
	for id := range m.alive[shardID] {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
