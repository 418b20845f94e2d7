package model

import (
	"fmt"
	"strings"
)

// TransactionRequest is a client supplied transaction before its id is derived.
type TransactionRequest struct {
	Inputs  []UTXO     `json:"inputs"`
	Outputs []Transfer `json:"outputs"`
}

// ToTransaction builds the unordered transaction described by the request.
func (r *TransactionRequest) ToTransaction() *Transaction {
	return NewTransaction(append([]UTXO{}, r.Inputs...), append([]Transfer{}, r.Outputs...))
}

// SourceAddress is the address owning every input, or "" when there is none.
func (r *TransactionRequest) SourceAddress() string {
	return ComputeSourceAddress(r.Inputs)
}

// CoinTransferRequest asks the ledger to build and submit a transfer of Coins.
type CoinTransferRequest struct {
	SourceAddress string `json:"source_address"`
	TargetAddress string `json:"target_address"`
	Coins         int64  `json:"coins"`
	RequestID     string `json:"request_id"`
}

func (r *CoinTransferRequest) IdempotencyKey() string {
	return fmt.Sprintf("CoinTransfer-%s-%s-%s-%d", r.RequestID, r.SourceAddress, r.TargetAddress, r.Coins)
}

func TransactionIdempotencyKey(txID string) string {
	return "Transaction-" + txID
}

func AtomicListIdempotencyKey(txs []*Transaction) string {
	var sb strings.Builder

	sb.WriteString("AtomicList-")

	for _, tx := range txs {
		sb.WriteString(tx.TransactionID)
		sb.WriteString("-")
	}

	return sb.String()
}
