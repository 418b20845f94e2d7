// Package servicemanager runs the services of one replica: it initialises them in order, starts
// each once its predecessor has started, and stops them in reverse order.
package servicemanager

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/bsv-blockchain/shardledger/util/health"
	"golang.org/x/sync/errgroup"
)

type serviceWrapper struct {
	name     string
	instance Service
	started  chan struct{}
	readyCh  chan struct{}
}

type ServiceManager struct {
	mu           sync.Mutex
	services     []serviceWrapper
	logger       ulogger.Logger
	Ctx          context.Context
	cancelFunc   context.CancelFunc
	g            *errgroup.Group
	startTimeout time.Duration
}

// NewServiceManager creates a manager whose context is cancelled on SIGINT or SIGTERM.
func NewServiceManager(ctx context.Context, logger ulogger.Logger) *ServiceManager {
	ctx, cancelFunc := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	sm := &ServiceManager{
		logger:       logger,
		Ctx:          ctx,
		cancelFunc:   cancelFunc,
		g:            g,
		startTimeout: 5 * time.Second,
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigs:
			sm.logger.Infof("🟠 Received shutdown signal. Stopping services...")
			sm.cancelFunc()
		case <-ctx.Done():
		}

		signal.Stop(sigs)
	}()

	return sm
}

// AddService initialises service and starts it in the background once the previously added
// service has started.
func (sm *ServiceManager) AddService(name string, service Service) error {
	sw := serviceWrapper{
		name:     name,
		instance: service,
		started:  make(chan struct{}),
		readyCh:  make(chan struct{}),
	}

	sm.mu.Lock()

	var previousStarted <-chan struct{}
	if n := len(sm.services); n > 0 {
		previousStarted = sm.services[n-1].started
	}

	sm.services = append(sm.services, sw)
	sm.mu.Unlock()

	sm.logger.Infof("⚪️ Initializing service %s...", name)

	if err := service.Init(sm.Ctx); err != nil {
		return err
	}

	sm.logger.Infof("🟢 Starting service %s...", name)

	sm.g.Go(func() error {
		if previousStarted != nil {
			if err := sm.waitForPreviousServiceToStart(sw.name, previousStarted); err != nil {
				return err
			}
		}

		close(sw.started)

		if err := service.Start(sm.Ctx, sw.readyCh); err != nil {
			sm.logger.Errorf("Error from service start %s: %v", name, err)
			return err
		}

		return nil
	})

	return nil
}

// WaitForServiceToBeReady blocks until every service closed its ready channel or ctx is done.
func (sm *ServiceManager) WaitForServiceToBeReady(ctx context.Context) error {
	for _, service := range sm.services {
		select {
		case <-service.readyCh:
			sm.logger.Infof("🟢 Service %s is ready", service.name)
		case <-ctx.Done():
			return errors.FromContext(ctx, "service %s is not ready", service.name)
		}
	}

	return nil
}

func (sm *ServiceManager) waitForPreviousServiceToStart(name string, previousStarted <-chan struct{}) error {
	timer := time.NewTimer(sm.startTimeout)
	defer timer.Stop()

	select {
	case <-previousStarted:
		return nil
	case <-timer.C:
		return errors.NewServiceError("%s timed out waiting for previous service to start", name)
	}
}

// ForceShutdown cancels the context of every service.
func (sm *ServiceManager) ForceShutdown() {
	sm.cancelFunc()
}

// Wait blocks until all services return, then stops them in reverse order. A shutdown caused
// by context cancellation is not an error.
func (sm *ServiceManager) Wait() error {
	err := sm.g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		sm.logger.Errorf("Received error: %v", err)
	}

	for i := len(sm.services) - 1; i >= 0; i-- {
		service := sm.services[i]

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)

		sm.logger.Infof("🟠 Stopping service %s...", service.name)

		if stopErr := service.instance.Stop(stopCtx); stopErr != nil {
			sm.logger.Warnf("[%s] Failed to stop service: %v", service.name, stopErr)
		} else {
			sm.logger.Infof("[%s] Service stopped gracefully", service.name)
		}

		stopCancel()
	}

	sm.logger.Infof("🛑 All services stopped.")

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Checks returns a health check for every service added so far.
func (sm *ServiceManager) Checks() []health.Check {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	checks := make([]health.Check, 0, len(sm.services))
	for _, service := range sm.services {
		checks = append(checks, health.Check{Name: service.name, Check: service.instance.Health})
	}

	return checks
}
