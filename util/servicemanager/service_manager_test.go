package servicemanager

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name     string
	mu       *sync.Mutex
	events   *[]string
	startErr error
	health   int
}

func (s *recordingService) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	*s.events = append(*s.events, s.name+":"+event)
}

func (s *recordingService) Health(context.Context, bool) (int, string, error) {
	return s.health, s.name + " health", nil
}

func (s *recordingService) Init(context.Context) error {
	s.record("init")
	return nil
}

func (s *recordingService) Start(ctx context.Context, readyCh chan<- struct{}) error {
	s.record("start")
	close(readyCh)

	if s.startErr != nil {
		return s.startErr
	}

	<-ctx.Done()

	return nil
}

func (s *recordingService) Stop(context.Context) error {
	s.record("stop")
	return nil
}

func newServices(names ...string) ([]*recordingService, *[]string) {
	mu := &sync.Mutex{}
	events := &[]string{}
	services := make([]*recordingService, 0, len(names))

	for _, name := range names {
		services = append(services, &recordingService{name: name, mu: mu, events: events, health: http.StatusOK})
	}

	return services, events
}

func TestServiceManagerLifecycle(t *testing.T) {
	sm := NewServiceManager(context.Background(), &ulogger.TestLogger{})
	services, events := newServices("a", "b")

	for _, s := range services {
		require.NoError(t, sm.AddService(s.name, s))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, sm.WaitForServiceToBeReady(ctx))

	sm.ForceShutdown()
	require.NoError(t, sm.Wait())

	services[0].mu.Lock()
	defer services[0].mu.Unlock()

	assert.Equal(t, "a:init", (*events)[0])
	assert.Equal(t, "b:init", (*events)[1])
	assert.Contains(t, *events, "a:start")
	assert.Contains(t, *events, "b:start")
	assert.Equal(t, []string{"b:stop", "a:stop"}, (*events)[len(*events)-2:])
}

func TestServiceManagerStartError(t *testing.T) {
	sm := NewServiceManager(context.Background(), &ulogger.TestLogger{})
	services, _ := newServices("a", "b")
	services[1].startErr = errors.NewServiceError("cannot start")

	for _, s := range services {
		require.NoError(t, sm.AddService(s.name, s))
	}

	err := sm.Wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServiceError))
}

func TestChecks(t *testing.T) {
	sm := NewServiceManager(context.Background(), &ulogger.TestLogger{})
	defer sm.ForceShutdown()

	services, _ := newServices("a", "b")

	for _, s := range services {
		require.NoError(t, sm.AddService(s.name, s))
	}

	checks := sm.Checks()
	require.Len(t, checks, 2)
	assert.Equal(t, "a", checks[0].Name)
	assert.Equal(t, "b", checks[1].Name)

	services[1].health = http.StatusServiceUnavailable

	status, msg, err := checks[1].Check(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "b health", msg)
}

func TestPreviousServiceStartTimeout(t *testing.T) {
	sm := NewServiceManager(context.Background(), &ulogger.TestLogger{})
	sm.startTimeout = 10 * time.Millisecond

	err := sm.waitForPreviousServiceToStart("b", make(chan struct{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServiceError))

	sm.ForceShutdown()
}
