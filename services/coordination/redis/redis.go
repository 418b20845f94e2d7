// Package redis is a coordination backend shared through a Redis server. The clock is an INCR
// counter, barriers are sets, votes are hash fields written with HSETNX and the Decision is a
// key written once with SETNX. Replica liveness is a heartbeat key with a TTL.
package redis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/services/coordination"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/ordishs/gocore"
	"github.com/redis/go-redis/v9"
)

// keys of finished rounds and barriers are kept this long so late participants still see them
const roundTTL = 10 * time.Minute

var stat = gocore.NewStat("coordination_redis")

type Redis struct {
	logger       ulogger.Logger
	rdb          redis.UniversalClient
	resolver     *coordination.Resolver
	prefix       string
	pollInterval time.Duration
	heartbeatTTL time.Duration
}

// NewClient builds a redis client from a redis://[:password@]host:port[/db] url.
func NewClient(u *url.URL) (*redis.Client, error) {
	if u == nil {
		return nil, errors.NewConfigurationError("redis url is not set")
	}

	o := &redis.Options{
		Addr: u.Host,
	}

	if u.Path != "" && u.Path != "/" {
		db, err := strconv.Atoi(strings.TrimPrefix(u.Path, "/"))
		if err != nil {
			return nil, errors.NewConfigurationError("redis url path must be a database number", err)
		}

		o.DB = db
	}

	if u.User != nil {
		if u.User.Username() != "" {
			o.Username = u.User.Username()
		}

		if p, ok := u.User.Password(); ok && p != "" {
			o.Password = p
		}
	}

	return redis.NewClient(o), nil
}

func New(logger ulogger.Logger, rdb redis.UniversalClient, shardIDs []string, tSettings settings.CoordinationSettings) *Redis {
	pollInterval := tSettings.PollInterval
	if pollInterval <= 0 {
		pollInterval = 20 * time.Millisecond
	}

	heartbeatTTL := tSettings.HeartbeatTTL
	if heartbeatTTL <= 0 {
		heartbeatTTL = 3 * time.Second
	}

	return &Redis{
		logger:       logger,
		rdb:          rdb,
		resolver:     coordination.NewResolver(shardIDs),
		prefix:       tSettings.KeyPrefix,
		pollInterval: pollInterval,
		heartbeatTTL: heartbeatTTL,
	}
}

func (r *Redis) key(parts ...string) string {
	return r.prefix + ":" + strings.Join(parts, ":")
}

func (r *Redis) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "Redis coordination", nil
	}

	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return http.StatusServiceUnavailable, "Redis coordination: ping failed", errors.NewCoordinationError("redis ping failed", err)
	}

	return http.StatusOK, "Redis coordination", nil
}

func (r *Redis) ResolveOwningShard(address string) string {
	return r.resolver.ResolveOwningShard(address)
}

func (r *Redis) NewGlobalTimestamp(ctx context.Context) (int64, error) {
	ts, err := r.rdb.Incr(ctx, r.key("timestamp")).Result()
	if err != nil {
		return 0, errors.NewCoordinationError("failed to increment global timestamp", err)
	}

	return ts, nil
}

func (r *Redis) EnterBarrier(ctx context.Context, barrierID, participant string, expected int) error {
	return r.join(ctx, r.key("barrier", barrierID, "enter"), participant, expected)
}

func (r *Redis) LeaveBarrier(ctx context.Context, barrierID, participant string, expected int) error {
	return r.join(ctx, r.key("barrier", barrierID, "leave"), participant, expected)
}

func (r *Redis) join(ctx context.Context, key, participant string, expected int) error {
	start := gocore.CurrentTime()
	defer stat.NewStat("barrier").AddTime(start)

	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, key, participant)
	pipe.Expire(ctx, key, roundTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewCoordinationError("failed to join barrier %s", key, err)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		n, err := r.rdb.SCard(ctx, key).Result()
		if err != nil && ctx.Err() == nil {
			return errors.NewCoordinationError("failed to read barrier %s", key, err)
		}

		if err == nil && n >= int64(expected) {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.FromContext(ctx, "barrier %s has %d of %d participants", key, n, expected)
		case <-ticker.C:
		}
	}
}

func (r *Redis) CastVoteAndAwaitDecision(ctx context.Context, commitID, shardID string, vote bool, expectedShards []string) (model.Decision, error) {
	start := gocore.CurrentTime()
	defer stat.NewStat("CastVoteAndAwaitDecision").AddTime(start)

	votesKey := r.key("vote", commitID)
	decisionKey := r.key("decision", commitID)

	pipe := r.rdb.TxPipeline()
	pipe.HSetNX(ctx, votesKey, shardID, strconv.FormatBool(vote))
	pipe.Expire(ctx, votesKey, roundTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return model.Decision{}, errors.NewCoordinationError("failed to cast vote for %s", commitID, err)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		decision, found, err := r.readDecision(ctx, decisionKey)
		if err != nil && ctx.Err() == nil {
			return model.Decision{}, err
		}

		if found {
			return decision, nil
		}

		if ctx.Err() == nil {
			votes, err := r.rdb.HGetAll(ctx, votesKey).Result()
			if err != nil && ctx.Err() == nil {
				return model.Decision{}, errors.NewCoordinationError("failed to read votes for %s", commitID, err)
			}

			if complete, commit := tally(votes, expectedShards); complete {
				proposed := model.Decision{Commit: commit, Timestamp: model.UnassignedTimestamp}

				if commit {
					if proposed.Timestamp, err = r.NewGlobalTimestamp(ctx); err != nil {
						return model.Decision{}, err
					}
				}

				return r.publish(ctx, decisionKey, proposed)
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Warnf("[Coordination] commit %s aborted while waiting for votes: %v", commitID, ctx.Err())

			// ctx is done, the abort is published on a fresh context
			abortCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return r.publish(abortCtx, decisionKey, model.Decision{Commit: false, Timestamp: model.UnassignedTimestamp})
		case <-ticker.C:
		}
	}
}

// tally reports whether every expected shard voted and the AND of their votes.
func tally(votes map[string]string, expectedShards []string) (bool, bool) {
	commit := true

	for _, shard := range expectedShards {
		v, ok := votes[shard]
		if !ok {
			return false, false
		}

		commit = commit && v == "true"
	}

	return true, commit
}

// publish writes proposed unless a Decision already exists, and returns whichever Decision won.
func (r *Redis) publish(ctx context.Context, decisionKey string, proposed model.Decision) (model.Decision, error) {
	if err := r.rdb.SetNX(ctx, decisionKey, encodeDecision(proposed), roundTTL).Err(); err != nil {
		return model.Decision{}, errors.NewCoordinationError("failed to publish decision %s", decisionKey, err)
	}

	decision, found, err := r.readDecision(ctx, decisionKey)
	if err != nil {
		return model.Decision{}, err
	}

	if !found {
		return model.Decision{}, errors.NewCoordinationError("decision %s vanished after publishing", decisionKey)
	}

	return decision, nil
}

func (r *Redis) readDecision(ctx context.Context, decisionKey string) (model.Decision, bool, error) {
	value, err := r.rdb.Get(ctx, decisionKey).Result()
	if errors.Is(err, redis.Nil) {
		return model.Decision{}, false, nil
	}

	if err != nil {
		return model.Decision{}, false, errors.NewCoordinationError("failed to read decision %s", decisionKey, err)
	}

	decision, err := decodeDecision(value)
	if err != nil {
		return model.Decision{}, false, err
	}

	return decision, true, nil
}

func encodeDecision(d model.Decision) string {
	return fmt.Sprintf("%t:%d", d.Commit, d.Timestamp)
}

func decodeDecision(value string) (model.Decision, error) {
	commit, ts, ok := strings.Cut(value, ":")
	if !ok {
		return model.Decision{}, errors.NewCoordinationError("malformed decision %q", value)
	}

	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return model.Decision{}, errors.NewCoordinationError("malformed decision timestamp %q", value, err)
	}

	return model.Decision{Commit: commit == "true", Timestamp: timestamp}, nil
}

// Register keeps a heartbeat key for replica alive until ctx is done, then removes it.
func (r *Redis) Register(ctx context.Context, replica settings.Replica) error {
	membersKey := r.key("replicas", replica.ShardID)
	heartbeatKey := r.key("alive", replica.ShardID, replica.ServerID)

	if err := r.rdb.SAdd(ctx, membersKey, replica.ServerID).Err(); err != nil {
		return errors.NewCoordinationError("failed to register %s/%s", replica.ShardID, replica.ServerID, err)
	}

	if err := r.rdb.Set(ctx, heartbeatKey, time.Now().UnixMilli(), r.heartbeatTTL).Err(); err != nil {
		return errors.NewCoordinationError("failed to write heartbeat for %s/%s", replica.ShardID, replica.ServerID, err)
	}

	go func() {
		ticker := time.NewTicker(r.heartbeatTTL / 3)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				_ = r.rdb.Del(cleanupCtx, heartbeatKey).Err()

				cancel()

				return
			case <-ticker.C:
				if err := r.rdb.Set(ctx, heartbeatKey, time.Now().UnixMilli(), r.heartbeatTTL).Err(); err != nil && ctx.Err() == nil {
					r.logger.Warnf("[Coordination] failed to refresh heartbeat of %s/%s: %v", replica.ShardID, replica.ServerID, err)
				}
			}
		}
	}()

	return nil
}

// LiveServers returns the servers of shardID with a live heartbeat, in order.
func (r *Redis) LiveServers(ctx context.Context, shardID string) ([]string, error) {
	members, err := r.rdb.SMembers(ctx, r.key("replicas", shardID)).Result()
	if err != nil {
		return nil, errors.NewCoordinationError("failed to list replicas of %s", shardID, err)
	}

	sort.Strings(members)

	alive := make([]string, 0, len(members))

	for _, serverID := range members {
		n, err := r.rdb.Exists(ctx, r.key("alive", shardID, serverID)).Result()
		if err != nil {
			return nil, errors.NewCoordinationError("failed to read heartbeat of %s/%s", shardID, serverID, err)
		}

		if n > 0 {
			alive = append(alive, serverID)
		}
	}

	return alive, nil
}

func (r *Redis) WatchCurrentSequencer(ctx context.Context, shardID string, onChange coordination.SequencerChangeFunc) (string, error) {
	alive, err := r.LiveServers(ctx, shardID)
	if err != nil {
		return "", err
	}

	current := coordination.MinServerID(alive)

	go func() {
		ticker := time.NewTicker(r.pollInterval * 5)
		defer ticker.Stop()

		last := current

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				alive, err := r.LiveServers(ctx, shardID)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.Warnf("[Coordination] failed to poll sequencer of %s: %v", shardID, err)
					}

					continue
				}

				if next := coordination.MinServerID(alive); next != last {
					r.logger.Infof("[Coordination] sequencer of %s changed from %q to %q", shardID, last, next)
					last = next
					onChange(shardID, next)
				}
			}
		}
	}()

	return current, nil
}
