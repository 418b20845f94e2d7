package broadcast

import (
	"fmt"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
)

// Kind selects the executor entry point a packet is dispatched to.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindAtomicList  Kind = "atomic_list"
	KindHistory     Kind = "history"
)

// Packet is the unit ordered by a shard's sequencer. OrigServerID and PendingRequestID identify
// the request that produced it and let the originator resolve its pending request.
type Packet struct {
	Kind             Kind                 `json:"kind"`
	OrigShardID      string               `json:"orig_shard_id"`
	OrigServerID     string               `json:"orig_server_id"`
	PendingRequestID uint64               `json:"pending_request_id"`
	IdempotencyKey   string               `json:"idempotency_key,omitempty"`
	Transaction      *model.Transaction   `json:"transaction,omitempty"`
	Transactions     []*model.Transaction `json:"transactions,omitempty"`
	Limit            int                  `json:"limit,omitempty"`
}

// Key identifies the request a packet belongs to. The sequencer schedules each key once.
func (p *Packet) Key() string {
	return fmt.Sprintf("%s/%d", p.OrigServerID, p.PendingRequestID)
}

// Validate checks that the packet carries the payload its kind requires.
func (p *Packet) Validate() error {
	if p == nil {
		return errors.NewInvalidArgumentError("packet is nil")
	}

	if p.OrigServerID == "" {
		return errors.NewInvalidArgumentError("packet has no originating server")
	}

	switch p.Kind {
	case KindTransaction:
		if p.Transaction == nil {
			return errors.NewInvalidArgumentError("transaction packet %s has no transaction", p.Key())
		}
	case KindAtomicList:
		if len(p.Transactions) == 0 {
			return errors.NewInvalidArgumentError("atomic list packet %s has no transactions", p.Key())
		}

		for _, tx := range p.Transactions {
			if tx == nil {
				return errors.NewInvalidArgumentError("atomic list packet %s has a nil transaction", p.Key())
			}
		}
	case KindHistory:
	default:
		return errors.NewInvalidArgumentError("packet %s has unknown kind %q", p.Key(), p.Kind)
	}

	return nil
}

// stamped returns a copy of p whose transaction carries timestamp.
func (p *Packet) stamped(timestamp int64) *Packet {
	c := *p
	c.Transaction = p.Transaction.WithTimestamp(timestamp)

	return &c
}
