// Package daemon runs one or more replicas of the ledger in a single process.
package daemon

import (
	"context"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/services/coordination"
	"github.com/bsv-blockchain/shardledger/services/rest"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/tracing"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/bsv-blockchain/shardledger/util/health"
	"github.com/bsv-blockchain/shardledger/util/servicemanager"
)

// Option is a functional option type for configuring the Daemon.
type Option func(*Daemon)

// WithLoggerFactory provides a custom logger factory for the Daemon and its services.
func WithLoggerFactory(factory func(serviceName string) ulogger.Logger) Option {
	return func(d *Daemon) {
		d.loggerFactory = factory
	}
}

func WithContext(ctx context.Context) Option {
	return func(d *Daemon) {
		d.Ctx = ctx
	}
}

type Daemon struct {
	Ctx            context.Context
	ServiceManager *servicemanager.ServiceManager
	loggerFactory  func(serviceName string) ulogger.Logger
	mu             sync.RWMutex
	replicas       map[string]*replica
	rest           *rest.HTTP
	connections    *connections
}

func New(opts ...Option) *Daemon {
	d := &Daemon{
		Ctx: context.Background(),
		loggerFactory: func(serviceName string) ulogger.Logger {
			return ulogger.New(serviceName)
		},
		replicas: make(map[string]*replica),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.ServiceManager = servicemanager.NewServiceManager(d.Ctx, d.loggerFactory("ServiceManager"))

	return d
}

// Start runs the replicas named by serverIDs, or the configured server when none are named, and
// blocks until the services stop. The REST front door is served by the configured server.
func (d *Daemon) Start(logger ulogger.Logger, tSettings *settings.Settings, serverIDs []string, readyCh ...chan struct{}) error {
	if err := tSettings.Validate(); err != nil {
		return err
	}

	if len(serverIDs) == 0 {
		serverIDs = []string{tSettings.Cluster.ServerID}
	}

	sm := d.ServiceManager

	if tSettings.Tracing.Enabled {
		if err := tracing.InitTracer(tSettings, tSettings.ClientName); err != nil {
			logger.Warnf("failed to initialise tracing: %v", err)
		} else {
			defer func() {
				_ = tracing.ShutdownTracer(context.Background())
			}()
		}
	}

	coord, closeCoordination, err := newCoordination(d.loggerFactory("Coordination"), tSettings)
	if err != nil {
		return err
	}

	defer closeCoordination()

	d.connections = newConnections(tSettings)
	defer d.connections.Close()

	if err := d.startServices(logger, tSettings, sm, coord, serverIDs); err != nil {
		logger.Errorf("error starting services: %v", err)
		sm.ForceShutdown()

		_ = sm.Wait()

		return err
	}

	if len(readyCh) > 0 && readyCh[0] != nil {
		go func() {
			if err := sm.WaitForServiceToBeReady(sm.Ctx); err == nil {
				close(readyCh[0])
			}
		}()
	}

	return sm.Wait()
}

func (d *Daemon) startServices(logger ulogger.Logger, tSettings *settings.Settings, sm *servicemanager.ServiceManager,
	coord coordination.Coordination, serverIDs []string) error {
	hostsMany := len(serverIDs) > 1

	d.mu.Lock()

	for _, serverID := range serverIDs {
		if _, ok := tSettings.Cluster.ShardOf(serverID); !ok {
			d.mu.Unlock()
			return errors.NewConfigurationError("server %s is not in the replica map", serverID)
		}

		d.replicas[serverID] = d.newReplica(tSettings, serverID, hostsMany, coord)
	}

	d.mu.Unlock()

	for _, serverID := range serverIDs {
		r := d.replicas[serverID]

		services := []struct {
			name    string
			service servicemanager.Service
		}{
			{"GRPC " + serverID, r.grpc},
			{"Coordinator " + serverID, r.coordinator},
			{"Broadcast " + serverID, r.broadcast},
		}

		for _, s := range services {
			if err := sm.AddService(s.name, s.service); err != nil {
				return errors.NewServiceError("failed to add service %s", s.name, err)
			}
		}
	}

	primary, ok := d.replicas[tSettings.Cluster.ServerID]
	if !ok {
		logger.Infof("no REST front door: %s is not hosted here", tSettings.Cluster.ServerID)
		return nil
	}

	// every service added so far; REST itself is added last so it never checks itself
	checks := append(sm.Checks(), health.Check{Name: "Coordination", Check: coord.Health})

	d.rest = rest.New(d.loggerFactory("REST"), primary.settings, primary.manager, checks...)

	return sm.AddService("REST", d.rest)
}

// RESTHandler returns the REST front door once Start has built it.
func (d *Daemon) RESTHandler() http.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.rest == nil {
		return nil
	}

	return d.rest
}

// Stop cancels every service; Start returns once they have stopped.
func (d *Daemon) Stop() {
	d.ServiceManager.ForceShutdown()
}
