package servicemanager

import "context"

// Service is a long running component of a replica.
type Service interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Init(ctx context.Context) error
	// Start runs the service until ctx is done. readyCh is closed once the service accepts work.
	Start(ctx context.Context, readyCh chan<- struct{}) error
	Stop(ctx context.Context) error
}
