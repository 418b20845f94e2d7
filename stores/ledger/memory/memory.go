// Package memory implements the ledger store in process memory.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"sync"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/stores/ledger"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/dolthub/swiss"
	"github.com/ordishs/gocore"
)

var stat = gocore.NewStat("ledger")

type utxoSet = *swiss.Map[model.UTXO, struct{}]

// Memory keeps history and balances in swiss maps guarded by one RWMutex, giving a single
// writer with concurrent readers.
type Memory struct {
	mu       sync.RWMutex
	logger   ulogger.Logger
	owns     ledger.OwnershipFunc
	genesis  settings.GenesisSettings
	history  *swiss.Map[string, *model.Transaction]
	balances *swiss.Map[string, utxoSet]
}

func New(logger ulogger.Logger, genesis settings.GenesisSettings, owns ledger.OwnershipFunc) *Memory {
	return &Memory{
		logger:   logger,
		owns:     owns,
		genesis:  genesis,
		history:  swiss.NewMap[string, *model.Transaction](1024),
		balances: swiss.NewMap[string, utxoSet](1024),
	}
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return http.StatusOK, fmt.Sprintf("Ledger memory store: %d transactions, %d addresses", m.history.Count(), m.balances.Count()), nil
}

func (m *Memory) HasTransaction(txID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.history.Has(txID)
}

func (m *Memory) CanProcessTransaction(tx *model.Transaction, checkTimestamps bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.validate(tx, checkTimestamps)
}

func (m *Memory) validate(tx *model.Transaction, checkTimestamps bool) error {
	if tx == nil {
		return errors.NewTxInvalidError("transaction is nil")
	}

	if m.history.Has(tx.TransactionID) {
		return errors.NewTxAlreadyExistsError("transaction %s already exists", tx.TransactionID)
	}

	source := tx.SourceAddress
	if source == "" || source != model.ComputeSourceAddress(tx.Inputs) {
		return errors.NewTxInvalidError("source address of transaction %s cannot be resolved from its inputs", tx.TransactionID)
	}

	seenInputs := make(map[model.UTXO]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, dup := seenInputs[in]; dup {
			return errors.NewTxInvalidError("input %s/%s is used more than once", in.Address, in.TransactionID)
		}

		seenInputs[in] = struct{}{}
	}

	seenOutputs := make(map[model.Transfer]struct{}, len(tx.Outputs))
	for _, out := range tx.Outputs {
		if _, dup := seenOutputs[out]; dup {
			return errors.NewTxInvalidError("output %s:%d appears more than once", out.Address, out.Coins)
		}

		if out.Coins < 0 {
			return errors.NewTxInvalidError("output to %s has negative coins", out.Address)
		}

		seenOutputs[out] = struct{}{}
	}

	seenAddresses := make(map[string]struct{}, len(tx.Outputs))
	for _, out := range tx.Outputs {
		if _, dup := seenAddresses[out.Address]; dup {
			return errors.NewTxInvalidError("address %s receives more than one output", out.Address)
		}

		seenAddresses[out.Address] = struct{}{}
	}

	balance, ok := m.balances.Get(source)
	if !ok || balance.Count() == 0 {
		return errors.NewTxInvalidError("source address %s has no balance", source)
	}

	for _, in := range tx.Inputs {
		if balance.Has(in) {
			continue
		}

		if in.Address == source && m.history.Has(in.TransactionID) {
			return errors.NewSpentError("input %s/%s is already spent", in.Address, in.TransactionID)
		}

		return errors.NewTxInvalidError("input %s/%s is not an unspent output of %s", in.Address, in.TransactionID, source)
	}

	inputCoins := new(big.Int)

	for _, in := range tx.Inputs {
		producing, ok := m.history.Get(in.TransactionID)
		if !ok {
			return errors.NewTxInvalidError("input %s refers to an unknown transaction", in.TransactionID)
		}

		if checkTimestamps && producing.Timestamp >= tx.Timestamp {
			return errors.NewTxInvalidError("input %s belongs to a transaction with timestamp %d, not earlier than %d", in.TransactionID, producing.Timestamp, tx.Timestamp)
		}

		out, ok := producing.OutputTo(in.Address)
		if !ok {
			return errors.NewTxInvalidError("transaction %s has no output to %s", in.TransactionID, in.Address)
		}

		inputCoins.Add(inputCoins, big.NewInt(out.Coins))
	}

	outputCoins := tx.OutputCoins()
	if inputCoins.Cmp(outputCoins) != 0 {
		return errors.NewTxInvalidError("input coins (%s) do not match output coins (%s)", inputCoins.String(), outputCoins.String())
	}

	return nil
}

func (m *Memory) PerformTransaction(tx *model.Transaction) error {
	start := gocore.CurrentTime()
	defer stat.NewStat("PerformTransaction").AddTime(start)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.history.Has(tx.TransactionID) {
		return nil
	}

	if err := m.validate(tx, true); err != nil {
		return err
	}

	m.apply(tx)

	return nil
}

func (m *Memory) RecordTransaction(tx *model.Transaction) error {
	start := gocore.CurrentTime()
	defer stat.NewStat("RecordTransaction").AddTime(start)

	if tx == nil {
		return errors.NewInvalidArgumentError("transaction is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.history.Has(tx.TransactionID) {
		return nil
	}

	m.apply(tx)

	return nil
}

// apply must be called with the write lock held.
func (m *Memory) apply(tx *model.Transaction) {
	for _, in := range tx.Inputs {
		if balance, ok := m.balances.Get(in.Address); ok {
			balance.Delete(in)
		}
	}

	for _, out := range tx.Outputs {
		if !m.owns(out.Address) {
			continue
		}

		balance, ok := m.balances.Get(out.Address)
		if !ok {
			balance = swiss.NewMap[model.UTXO, struct{}](8)
			m.balances.Put(out.Address, balance)
		}

		balance.Put(model.UTXO{Address: out.Address, TransactionID: tx.TransactionID}, struct{}{})
	}

	m.history.Put(tx.TransactionID, tx.Clone())

	m.logger.Debugf("[Ledger] applied transaction %s at timestamp %d", tx.TransactionID, tx.Timestamp)
}

func (m *Memory) ListUTXOs(address string) []model.UTXO {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.utxosOf(address)
}

func (m *Memory) utxosOf(address string) []model.UTXO {
	utxos := make([]model.UTXO, 0)

	balance, ok := m.balances.Get(address)
	if !ok {
		return utxos
	}

	balance.Iter(func(u model.UTXO, _ struct{}) bool {
		utxos = append(utxos, u)
		return false
	})

	sort.Slice(utxos, func(i, j int) bool {
		return utxos[i].TransactionID < utxos[j].TransactionID
	})

	return utxos
}

func (m *Memory) ListTransactions(address string, limit int) []*model.Transaction {
	return m.collect(limit, func(tx *model.Transaction) bool {
		return tx.Involves(address)
	})
}

func (m *Memory) GetEntireHistory(limit int) []*model.Transaction {
	return m.collect(limit, func(tx *model.Transaction) bool {
		return tx.TransactionID == m.genesis.TxID || (tx.SourceAddress != "" && m.owns(tx.SourceAddress))
	})
}

func (m *Memory) collect(limit int, filter func(tx *model.Transaction) bool) []*model.Transaction {
	m.mu.RLock()

	txs := make([]*model.Transaction, 0)

	m.history.Iter(func(_ string, tx *model.Transaction) bool {
		if filter(tx) {
			txs = append(txs, tx.Clone())
		}

		return false
	})

	m.mu.RUnlock()

	model.SortByTimestamp(txs)

	return model.Truncate(txs, limit)
}

func (m *Memory) CreateTransactionForCoinTransfer(source, target string, coins int64) (*model.Transaction, error) {
	if coins < 0 {
		return nil, errors.NewInvalidArgumentError("cannot transfer a negative amount of coins (%d)", coins)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		inputs   = make([]model.UTXO, 0)
		selected = new(big.Int)
		required = big.NewInt(coins)
	)

	for _, u := range m.utxosOf(source) {
		if selected.Cmp(required) >= 0 {
			break
		}

		producing, ok := m.history.Get(u.TransactionID)
		if !ok {
			continue
		}

		out, ok := producing.OutputTo(u.Address)
		if !ok {
			continue
		}

		inputs = append(inputs, u)
		selected.Add(selected, big.NewInt(out.Coins))
	}

	if selected.Cmp(required) < 0 {
		return nil, errors.NewInsufficientFundsError("address %s holds %s coins, %d requested", source, selected.String(), coins)
	}

	outputs := []model.Transfer{{Address: target, Coins: coins}}

	if change := new(big.Int).Sub(selected, required); change.Sign() > 0 {
		outputs = append(outputs, model.Transfer{Address: source, Coins: change.Int64()})
	}

	return model.NewTransaction(inputs, outputs), nil
}

func (m *Memory) AddGenesisBlock(timestamp int64) *model.Transaction {
	genesisTx := &model.Transaction{
		TransactionID: m.genesis.TxID,
		Timestamp:     timestamp,
		SourceAddress: "",
		Inputs:        []model.UTXO{},
		Outputs:       []model.Transfer{{Address: m.genesis.Address, Coins: m.genesis.Coins}},
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.history.Has(genesisTx.TransactionID) {
		m.apply(genesisTx)
		m.logger.Infof("[Ledger] genesis transaction %s seeded with %d coins to %s", genesisTx.TransactionID, m.genesis.Coins, m.genesis.Address)
	}

	return genesisTx.Clone()
}

// Balances returns every owned address with its unspent outputs.
func (m *Memory) Balances() map[string][]model.UTXO {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]model.UTXO, m.balances.Count())

	m.balances.Iter(func(address string, _ utxoSet) bool {
		if utxos := m.utxosOf(address); len(utxos) > 0 {
			result[address] = utxos
		}

		return false
	})

	return result
}

// History returns every witnessed transaction in timestamp order.
func (m *Memory) History() []*model.Transaction {
	return m.collect(-1, func(*model.Transaction) bool { return true })
}
