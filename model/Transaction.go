package model

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/big"
	"sort"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// UnassignedTimestamp marks a transaction that has not been ordered yet.
const UnassignedTimestamp int64 = -1

// UTXO references the output to Address of transaction TransactionID.
type UTXO struct {
	Address       string `json:"address"`
	TransactionID string `json:"transaction_id"`
}

// Transfer sends Coins to Address.
type Transfer struct {
	Address string `json:"address"`
	Coins   int64  `json:"coins"`
}

// Transaction is immutable once created, apart from the timestamp assigned when it is ordered.
type Transaction struct {
	TransactionID string     `json:"transaction_id"`
	Timestamp     int64      `json:"timestamp"`
	SourceAddress string     `json:"source_address"`
	Inputs        []UTXO     `json:"inputs"`
	Outputs       []Transfer `json:"outputs"`
}

// NewTransaction derives the source address and the id from the inputs and outputs.
func NewTransaction(inputs []UTXO, outputs []Transfer) *Transaction {
	if inputs == nil {
		inputs = []UTXO{}
	}

	if outputs == nil {
		outputs = []Transfer{}
	}

	source := ComputeSourceAddress(inputs)

	return &Transaction{
		TransactionID: ComputeTransactionID(source, inputs, outputs),
		Timestamp:     UnassignedTimestamp,
		SourceAddress: source,
		Inputs:        inputs,
		Outputs:       outputs,
	}
}

// ComputeSourceAddress returns the address shared by all inputs, or "" when there are no
// inputs or they belong to more than one address.
func ComputeSourceAddress(inputs []UTXO) string {
	source := ""

	for i, in := range inputs {
		if i == 0 {
			source = in.Address
			continue
		}

		if in.Address != source {
			return ""
		}
	}

	return source
}

// ComputeTransactionID hashes the source address, inputs and outputs. Every field is length
// prefixed so distinct transactions cannot collide by concatenation.
func ComputeTransactionID(source string, inputs []UTXO, outputs []Transfer) string {
	var buf bytes.Buffer

	writeString(&buf, source)

	writeLength(&buf, len(inputs))
	for _, in := range inputs {
		writeString(&buf, in.Address)
		writeString(&buf, in.TransactionID)
	}

	writeLength(&buf, len(outputs))
	for _, out := range outputs {
		writeString(&buf, out.Address)
		_ = binary.Write(&buf, binary.LittleEndian, out.Coins)
	}

	return chainhash.DoubleHashH(buf.Bytes()).String()
}

func writeString(buf *bytes.Buffer, s string) {
	writeLength(buf, len(s))
	buf.WriteString(s)
}

// writeLength writes n as a uint32. A length that does not fit is written as MaxUint32
// followed by the full 64 bit length.
func writeLength(buf *bytes.Buffer, n int) {
	if l, err := safeconversion.IntToUint32(n); err == nil && l != math.MaxUint32 {
		_ = binary.Write(buf, binary.LittleEndian, l)
		return
	}

	l64, _ := safeconversion.IntToUint64(n)

	_ = binary.Write(buf, binary.LittleEndian, uint32(math.MaxUint32))
	_ = binary.Write(buf, binary.LittleEndian, l64)
}

// WithTimestamp returns a copy of tx stamped with timestamp.
func (tx *Transaction) WithTimestamp(timestamp int64) *Transaction {
	c := tx.Clone()
	c.Timestamp = timestamp

	return c
}

// Clone returns a deep copy of tx.
func (tx *Transaction) Clone() *Transaction {
	if tx == nil {
		return nil
	}

	c := *tx
	c.Inputs = append([]UTXO{}, tx.Inputs...)
	c.Outputs = append([]Transfer{}, tx.Outputs...)

	return &c
}

// OutputCoins sums the outputs without overflowing.
func (tx *Transaction) OutputCoins() *big.Int {
	sum := new(big.Int)
	for _, out := range tx.Outputs {
		sum.Add(sum, big.NewInt(out.Coins))
	}

	return sum
}

// OutputTo returns the output to address, if any.
func (tx *Transaction) OutputTo(address string) (Transfer, bool) {
	for _, out := range tx.Outputs {
		if out.Address == address {
			return out, true
		}
	}

	return Transfer{}, false
}

// Involves reports whether address is the source or a recipient of tx.
func (tx *Transaction) Involves(address string) bool {
	if tx.SourceAddress == address {
		return true
	}

	_, ok := tx.OutputTo(address)

	return ok
}

// SortByTimestamp orders transactions ascending by timestamp, ties broken by id so the order
// is deterministic.
func SortByTimestamp(txs []*Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Timestamp != txs[j].Timestamp {
			return txs[i].Timestamp < txs[j].Timestamp
		}

		return txs[i].TransactionID < txs[j].TransactionID
	})
}

// Truncate keeps the first limit transactions; a negative limit keeps all of them.
func Truncate(txs []*Transaction, limit int) []*Transaction {
	if limit < 0 || limit >= len(txs) {
		return txs
	}

	return txs[:limit]
}
