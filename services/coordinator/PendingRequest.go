package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
)

// PendingRequest is resolved once, by the executor of the originating replica.
type PendingRequest struct {
	ID   uint64
	ch   chan *model.Response
	once sync.Once
}

func NewPendingRequest(id uint64) *PendingRequest {
	return &PendingRequest{
		ID: id,
		ch: make(chan *model.Response, 1),
	}
}

// Resolve delivers resp. Later calls are ignored.
func (p *PendingRequest) Resolve(resp *model.Response) {
	p.once.Do(func() {
		p.ch <- resp
	})
}

// Wait blocks until the request is resolved, ctx is done or timeout elapses.
func (p *PendingRequest) Wait(ctx context.Context, timeout time.Duration) (*model.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case resp := <-p.ch:
		return resp, nil
	case <-ctx.Done():
		return nil, errors.FromContext(ctx, "request %d was not answered", p.ID)
	}
}
