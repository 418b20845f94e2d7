package coordination

import (
	"context"

	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/stretchr/testify/mock"
)

// MockCoordination is a testify mock of Coordination.
type MockCoordination struct {
	mock.Mock
}

func (m *MockCoordination) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	args := m.Called(ctx, checkLiveness)
	return args.Int(0), args.String(1), args.Error(2)
}

func (m *MockCoordination) ResolveOwningShard(address string) string {
	args := m.Called(address)
	return args.String(0)
}

func (m *MockCoordination) NewGlobalTimestamp(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCoordination) EnterBarrier(ctx context.Context, barrierID, participant string, expected int) error {
	args := m.Called(ctx, barrierID, participant, expected)
	return args.Error(0)
}

func (m *MockCoordination) LeaveBarrier(ctx context.Context, barrierID, participant string, expected int) error {
	args := m.Called(ctx, barrierID, participant, expected)
	return args.Error(0)
}

func (m *MockCoordination) CastVoteAndAwaitDecision(ctx context.Context, commitID, shardID string, vote bool, expectedShards []string) (model.Decision, error) {
	args := m.Called(ctx, commitID, shardID, vote, expectedShards)
	return args.Get(0).(model.Decision), args.Error(1)
}

func (m *MockCoordination) Register(ctx context.Context, replica settings.Replica) error {
	args := m.Called(ctx, replica)
	return args.Error(0)
}

func (m *MockCoordination) WatchCurrentSequencer(ctx context.Context, shardID string, onChange SequencerChangeFunc) (string, error) {
	args := m.Called(ctx, shardID, onChange)
	return args.String(0), args.Error(1)
}
