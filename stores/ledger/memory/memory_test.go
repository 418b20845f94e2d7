package memory

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"testing"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGenesis = settings.GenesisSettings{
	Address: "GenesisAddress",
	TxID:    "GenesisTxId",
	Coins:   math.MaxInt64,
}

func ownsAll(string) bool { return true }

func newTestLedger(owns func(string) bool) *Memory {
	return New(&ulogger.TestLogger{}, testGenesis, owns)
}

// fund records a transaction that mints coins for address without validation.
func fund(t *testing.T, m *Memory, address string, coins int64, timestamp int64) model.UTXO {
	t.Helper()

	tx := model.NewTransaction(
		[]model.UTXO{{Address: "mint", TransactionID: fmt.Sprintf("mint-%s-%d-%d", address, coins, timestamp)}},
		[]model.Transfer{{Address: address, Coins: coins}},
	).WithTimestamp(timestamp)

	require.NoError(t, m.RecordTransaction(tx))

	return model.UTXO{Address: address, TransactionID: tx.TransactionID}
}

func TestScenarioSingleShardTransaction(t *testing.T) {
	m := newTestLedger(ownsAll)

	u1 := fund(t, m, "alice", 70, 1)
	u2 := fund(t, m, "alice", 30, 2)

	tx := model.NewTransaction(
		[]model.UTXO{u1, u2},
		[]model.Transfer{{Address: "bob", Coins: 60}, {Address: "carol", Coins: 40}},
	).WithTimestamp(10)

	require.NoError(t, m.CanProcessTransaction(tx, true))
	require.NoError(t, m.PerformTransaction(tx))

	assert.Empty(t, m.ListUTXOs("alice"))
	assert.Equal(t, []model.UTXO{{Address: "bob", TransactionID: tx.TransactionID}}, m.ListUTXOs("bob"))
	assert.Equal(t, []model.UTXO{{Address: "carol", TransactionID: tx.TransactionID}}, m.ListUTXOs("carol"))
	assert.True(t, m.HasTransaction(tx.TransactionID))
}

func TestScenarioCoinTransferWithChange(t *testing.T) {
	m := newTestLedger(ownsAll)

	u := fund(t, m, "alice", 50, 1)

	tx, err := m.CreateTransactionForCoinTransfer("alice", "bob", 30)
	require.NoError(t, err)

	assert.Equal(t, []model.UTXO{u}, tx.Inputs)
	assert.Equal(t, []model.Transfer{{Address: "bob", Coins: 30}, {Address: "alice", Coins: 20}}, tx.Outputs)
	assert.Equal(t, "alice", tx.SourceAddress)
	assert.Equal(t, model.UnassignedTimestamp, tx.Timestamp)

	require.NoError(t, m.PerformTransaction(tx.WithTimestamp(5)))
	assert.Len(t, m.ListUTXOs("alice"), 1)
	assert.Len(t, m.ListUTXOs("bob"), 1)
}

func TestScenarioCoinMismatch(t *testing.T) {
	m := newTestLedger(ownsAll)

	u1 := fund(t, m, "alice", 60, 1)
	u2 := fund(t, m, "alice", 40, 2)

	tx := model.NewTransaction(
		[]model.UTXO{u1, u2},
		[]model.Transfer{{Address: "bob", Coins: 50}, {Address: "carol", Coins: 40}},
	).WithTimestamp(10)

	err := m.CanProcessTransaction(tx, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTxInvalid))
	assert.Contains(t, err.Error(), "coins")
	assert.Equal(t, model.StatusBadRequest, model.StatusFromError(err))

	require.Error(t, m.PerformTransaction(tx))
	assert.Len(t, m.ListUTXOs("alice"), 2)
	assert.False(t, m.HasTransaction(tx.TransactionID))
}

func TestValidationRules(t *testing.T) {
	m := newTestLedger(ownsAll)

	u1 := fund(t, m, "alice", 60, 1)
	u2 := fund(t, m, "alice", 40, 2)
	ub := fund(t, m, "bob", 10, 3)

	applied := model.NewTransaction([]model.UTXO{ub}, []model.Transfer{{Address: "carol", Coins: 10}}).WithTimestamp(4)
	require.NoError(t, m.PerformTransaction(applied))

	fund(t, m, "bob", 5, 5)

	tests := []struct {
		name    string
		tx      *model.Transaction
		wantErr *errors.Error
		reason  string
	}{
		{
			name:    "already exists",
			tx:      applied,
			wantErr: errors.ErrTxAlreadyExists,
		},
		{
			name: "source not resolvable",
			tx: model.NewTransaction([]model.UTXO{u1, ub}, []model.Transfer{{Address: "dave", Coins: 70}}).
				WithTimestamp(10),
			wantErr: errors.ErrTxInvalid,
			reason:  "source address",
		},
		{
			name: "no inputs",
			tx: model.NewTransaction(nil, []model.Transfer{{Address: "dave", Coins: 0}}).
				WithTimestamp(10),
			wantErr: errors.ErrTxInvalid,
			reason:  "source address",
		},
		{
			name: "duplicate inputs",
			tx: model.NewTransaction([]model.UTXO{u1, u1}, []model.Transfer{{Address: "dave", Coins: 120}}).
				WithTimestamp(10),
			wantErr: errors.ErrTxInvalid,
			reason:  "more than once",
		},
		{
			name: "duplicate outputs",
			tx: model.NewTransaction([]model.UTXO{u1, u2}, []model.Transfer{{Address: "dave", Coins: 50}, {Address: "dave", Coins: 50}}).
				WithTimestamp(10),
			wantErr: errors.ErrTxInvalid,
			reason:  "appears more than once",
		},
		{
			name: "duplicate output addresses",
			tx: model.NewTransaction([]model.UTXO{u1, u2}, []model.Transfer{{Address: "dave", Coins: 60}, {Address: "dave", Coins: 40}}).
				WithTimestamp(10),
			wantErr: errors.ErrTxInvalid,
			reason:  "more than one output",
		},
		{
			name: "negative output",
			tx: model.NewTransaction([]model.UTXO{u1}, []model.Transfer{{Address: "dave", Coins: 70}, {Address: "erin", Coins: -10}}).
				WithTimestamp(10),
			wantErr: errors.ErrTxInvalid,
			reason:  "negative",
		},
		{
			name: "source without balance",
			tx: model.NewTransaction([]model.UTXO{{Address: "zoe", TransactionID: u1.TransactionID}}, []model.Transfer{{Address: "dave", Coins: 60}}).
				WithTimestamp(10),
			wantErr: errors.ErrTxInvalid,
			reason:  "no balance",
		},
		{
			name: "spent input",
			tx: model.NewTransaction([]model.UTXO{ub}, []model.Transfer{{Address: "dave", Coins: 10}}).
				WithTimestamp(10),
			wantErr: errors.ErrSpent,
			reason:  "already spent",
		},
		{
			name: "unknown input",
			tx: model.NewTransaction([]model.UTXO{{Address: "alice", TransactionID: "nope"}}, []model.Transfer{{Address: "dave", Coins: 60}}).
				WithTimestamp(10),
			wantErr: errors.ErrTxInvalid,
			reason:  "not an unspent output",
		},
		{
			name: "stale timestamp",
			tx: model.NewTransaction([]model.UTXO{u2}, []model.Transfer{{Address: "dave", Coins: 40}}).
				WithTimestamp(2),
			wantErr: errors.ErrTxInvalid,
			reason:  "not earlier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.CanProcessTransaction(tt.tx, true)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), err.Error())

			if tt.reason != "" {
				assert.Contains(t, err.Error(), tt.reason)
			}
		})
	}
}

func TestTimestampCheckSkippedForPreVote(t *testing.T) {
	m := newTestLedger(ownsAll)

	u := fund(t, m, "alice", 10, 5)

	unordered := model.NewTransaction([]model.UTXO{u}, []model.Transfer{{Address: "bob", Coins: 10}})
	require.Equal(t, model.UnassignedTimestamp, unordered.Timestamp)

	require.Error(t, m.CanProcessTransaction(unordered, true))
	require.NoError(t, m.CanProcessTransaction(unordered, false))
}

func TestPerformTransactionIdempotent(t *testing.T) {
	m := newTestLedger(ownsAll)

	u := fund(t, m, "alice", 10, 1)
	tx := model.NewTransaction([]model.UTXO{u}, []model.Transfer{{Address: "bob", Coins: 10}}).WithTimestamp(2)

	require.NoError(t, m.PerformTransaction(tx))
	require.NoError(t, m.PerformTransaction(tx))
	require.NoError(t, m.RecordTransaction(tx))

	assert.Len(t, m.ListUTXOs("bob"), 1)
	assert.Len(t, m.History(), 2)
}

func TestRecordTransactionOnlyAddsOwnedOutputs(t *testing.T) {
	owns := func(address string) bool { return address == "bob" }
	m := newTestLedger(owns)

	tx := model.NewTransaction(
		[]model.UTXO{{Address: "alice", TransactionID: "t0"}},
		[]model.Transfer{{Address: "bob", Coins: 6}, {Address: "carol", Coins: 4}},
	).WithTimestamp(3)

	require.NoError(t, m.RecordTransaction(tx))

	assert.Len(t, m.ListUTXOs("bob"), 1)
	assert.Empty(t, m.ListUTXOs("carol"))
	assert.True(t, m.HasTransaction(tx.TransactionID))

	// recorded, not originated here
	assert.Empty(t, m.GetEntireHistory(-1))
	assert.Len(t, m.ListTransactions("bob", -1), 1)
}

func TestCreateTransactionForCoinTransfer(t *testing.T) {
	m := newTestLedger(ownsAll)

	fund(t, m, "alice", 10, 1)
	fund(t, m, "alice", 20, 2)
	fund(t, m, "alice", 30, 3)

	t.Run("negative", func(t *testing.T) {
		_, err := m.CreateTransactionForCoinTransfer("alice", "bob", -1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
	})

	t.Run("insufficient", func(t *testing.T) {
		_, err := m.CreateTransactionForCoinTransfer("alice", "bob", 61)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))
	})

	t.Run("exact", func(t *testing.T) {
		tx, err := m.CreateTransactionForCoinTransfer("alice", "bob", 60)
		require.NoError(t, err)
		assert.Len(t, tx.Inputs, 3)
		assert.Equal(t, []model.Transfer{{Address: "bob", Coins: 60}}, tx.Outputs)
		require.NoError(t, m.CanProcessTransaction(tx.WithTimestamp(10), true))
	})

	t.Run("partial selection balances", func(t *testing.T) {
		tx, err := m.CreateTransactionForCoinTransfer("alice", "bob", 15)
		require.NoError(t, err)

		// selection order is not specified, only conservation is
		require.NoError(t, m.CanProcessTransaction(tx.WithTimestamp(10), true))
		assert.Equal(t, "bob", tx.Outputs[0].Address)
		assert.Equal(t, int64(15), tx.Outputs[0].Coins)
	})

	t.Run("zero coins", func(t *testing.T) {
		tx, err := m.CreateTransactionForCoinTransfer("alice", "bob", 0)
		require.NoError(t, err)
		assert.Empty(t, tx.Inputs)
		assert.Error(t, m.CanProcessTransaction(tx.WithTimestamp(10), true))
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := m.CreateTransactionForCoinTransfer("nobody", "bob", 1)
		require.Error(t, err)
	})
}

func TestListTransactionsAndHistory(t *testing.T) {
	owns := func(address string) bool { return address != "remote" }
	m := newTestLedger(owns)

	genesis := m.AddGenesisBlock(0)
	assert.Equal(t, testGenesis.TxID, genesis.TransactionID)
	assert.Equal(t, []model.UTXO{{Address: testGenesis.Address, TransactionID: testGenesis.TxID}}, m.ListUTXOs(testGenesis.Address))

	// seeding twice is a no-op
	m.AddGenesisBlock(99)
	assert.Len(t, m.History(), 1)

	g := model.UTXO{Address: testGenesis.Address, TransactionID: testGenesis.TxID}
	tx1 := model.NewTransaction([]model.UTXO{g}, []model.Transfer{
		{Address: "alice", Coins: 100},
		{Address: testGenesis.Address, Coins: testGenesis.Coins - 100},
	}).WithTimestamp(1)
	require.NoError(t, m.PerformTransaction(tx1))

	a := model.UTXO{Address: "alice", TransactionID: tx1.TransactionID}
	tx2 := model.NewTransaction([]model.UTXO{a}, []model.Transfer{{Address: "bob", Coins: 40}, {Address: "alice", Coins: 60}}).WithTimestamp(2)
	require.NoError(t, m.PerformTransaction(tx2))

	remote := model.NewTransaction([]model.UTXO{{Address: "remote", TransactionID: "x"}}, []model.Transfer{{Address: "alice", Coins: 1}}).WithTimestamp(3)
	require.NoError(t, m.RecordTransaction(remote))

	aliceTxs := m.ListTransactions("alice", -1)
	require.Len(t, aliceTxs, 3)
	assert.Equal(t, tx1.TransactionID, aliceTxs[0].TransactionID)
	assert.Equal(t, tx2.TransactionID, aliceTxs[1].TransactionID)
	assert.Equal(t, remote.TransactionID, aliceTxs[2].TransactionID)

	assert.Len(t, m.ListTransactions("alice", 1), 1)
	assert.Len(t, m.ListTransactions("bob", -1), 1)
	assert.Empty(t, m.ListTransactions("nobody", -1))

	history := m.GetEntireHistory(-1)
	require.Len(t, history, 3)
	assert.Equal(t, testGenesis.TxID, history[0].TransactionID)
	assert.Len(t, m.GetEntireHistory(2), 2)

	assert.Len(t, m.ListUTXOs("alice"), 2)
}

// generated transactions either conserve coins and commit, or do not and are rejected
func TestConservationProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		m := newTestLedger(ownsAll)

		numInputs := 1 + rng.Intn(4)
		inputs := make([]model.UTXO, 0, numInputs)
		total := int64(0)

		for j := 0; j < numInputs; j++ {
			coins := int64(rng.Intn(1000))
			inputs = append(inputs, fund(t, m, "alice", coins, int64(j+1)))
			total += coins
		}

		numOutputs := 1 + rng.Intn(4)
		outputs := make([]model.Transfer, 0, numOutputs)
		remaining := total

		for j := 0; j < numOutputs-1; j++ {
			coins := int64(0)
			if remaining > 0 {
				coins = rng.Int63n(remaining + 1)
			}

			outputs = append(outputs, model.Transfer{Address: fmt.Sprintf("out-%d", j), Coins: coins})
			remaining -= coins
		}

		outputs = append(outputs, model.Transfer{Address: "last", Coins: remaining})

		conserving := rng.Intn(2) == 0
		if !conserving {
			outputs[0].Coins += 1 + int64(rng.Intn(10))
		}

		tx := model.NewTransaction(inputs, outputs).WithTimestamp(100)
		err := m.PerformTransaction(tx)

		if conserving {
			require.NoError(t, err)
			assert.Equal(t, total, tx.OutputCoins().Int64())
			assert.Empty(t, m.ListUTXOs("alice"))
		} else {
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrTxInvalid))
		}
	}
}

func TestOverflowSafeSums(t *testing.T) {
	m := newTestLedger(ownsAll)

	u1 := fund(t, m, "alice", math.MaxInt64, 1)
	u2 := fund(t, m, "alice", math.MaxInt64, 2)

	// int64 addition would wrap both sides to -2
	tx := model.NewTransaction([]model.UTXO{u1, u2}, []model.Transfer{{Address: "bob", Coins: -2}}).WithTimestamp(3)
	require.Error(t, m.CanProcessTransaction(tx, true))

	tx = model.NewTransaction([]model.UTXO{u1, u2}, []model.Transfer{
		{Address: "bob", Coins: math.MaxInt64},
		{Address: "carol", Coins: math.MaxInt64},
	}).WithTimestamp(3)
	require.NoError(t, m.CanProcessTransaction(tx, true))
}

func TestNoDoubleSpend(t *testing.T) {
	m := newTestLedger(ownsAll)

	u := fund(t, m, "alice", 10, 1)

	first := model.NewTransaction([]model.UTXO{u}, []model.Transfer{{Address: "bob", Coins: 10}}).WithTimestamp(2)
	second := model.NewTransaction([]model.UTXO{u}, []model.Transfer{{Address: "carol", Coins: 10}}).WithTimestamp(3)

	require.NoError(t, m.PerformTransaction(first))
	require.Error(t, m.PerformTransaction(second))

	for address, utxos := range m.Balances() {
		for _, utxo := range utxos {
			assert.NotEqual(t, u, utxo, "address %s still holds a spent output", address)
		}
	}
}

func TestTotalOrderDeterminism(t *testing.T) {
	build := func() []*model.Transaction {
		src := newTestLedger(ownsAll)
		g := src.AddGenesisBlock(0)

		txs := []*model.Transaction{}
		prev := model.UTXO{Address: testGenesis.Address, TransactionID: g.TransactionID}
		remaining := testGenesis.Coins

		for i := 1; i <= 20; i++ {
			remaining -= int64(i)
			tx := model.NewTransaction([]model.UTXO{prev}, []model.Transfer{
				{Address: fmt.Sprintf("user-%d", i%3), Coins: int64(i)},
				{Address: testGenesis.Address, Coins: remaining},
			}).WithTimestamp(int64(i))
			txs = append(txs, tx)
			prev = model.UTXO{Address: testGenesis.Address, TransactionID: tx.TransactionID}
		}

		return txs
	}

	packets := build()

	a := newTestLedger(ownsAll)
	b := newTestLedger(ownsAll)
	a.AddGenesisBlock(0)
	b.AddGenesisBlock(0)

	for _, tx := range packets {
		require.NoError(t, a.PerformTransaction(tx))
		require.NoError(t, b.PerformTransaction(tx))
	}

	assert.Equal(t, a.History(), b.History())
	assert.Equal(t, a.Balances(), b.Balances())
}

func TestHealth(t *testing.T) {
	m := newTestLedger(ownsAll)

	status, msg, err := m.Health(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, msg, "0 transactions")
}
