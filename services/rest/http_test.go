package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/services/coordinator"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testTx  = model.NewTransaction([]model.UTXO{{Address: "alice", TransactionID: "t0"}}, []model.Transfer{{Address: "bob", Coins: 5}})
	testTx2 = model.NewTransaction([]model.UTXO{{Address: "carol", TransactionID: "t0"}}, []model.Transfer{{Address: "dave", Coins: 7}})
)

func newTestHTTP(t *testing.T) (*HTTP, *coordinator.Mock) {
	t.Helper()

	tSettings := settings.NewSettings()
	tSettings.HTTP.APIPrefix = "/"

	m := &coordinator.Mock{}

	return New(&ulogger.TestLogger{}, tSettings, m), m
}

func do(h *HTTP, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestSubmitTransactions(t *testing.T) {
	t.Run("single transaction", func(t *testing.T) {
		h, m := newTestHTTP(t)

		m.On("HandleTransaction", mock.Anything, mock.MatchedBy(func(req *model.TransactionRequest) bool {
			return len(req.Inputs) == 1 && req.Inputs[0].Address == "alice"
		})).Return(model.NewTransactionResponse(model.StatusCreated, "", testTx))

		rec := do(h, http.MethodPost, "/transactions", `[{"inputs":[{"address":"alice","transaction_id":"t0"}],"outputs":[{"address":"bob","coins":5}]}]`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var tx model.Transaction
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
		assert.Equal(t, testTx.TransactionID, tx.TransactionID)

		m.AssertExpectations(t)
	})

	t.Run("atomic list", func(t *testing.T) {
		h, m := newTestHTTP(t)

		m.On("HandleAtomicTxList", mock.Anything, mock.MatchedBy(func(reqs []model.TransactionRequest) bool {
			return len(reqs) == 2
		})).Return(model.NewTransactionListResponse(model.StatusCreated, "", []*model.Transaction{testTx, testTx2}))

		rec := do(h, http.MethodPost, "/transactions", `[{"inputs":[],"outputs":[]},{"inputs":[],"outputs":[]}]`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var txs []*model.Transaction
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
		assert.Len(t, txs, 2)
	})

	t.Run("conflict keeps the payload", func(t *testing.T) {
		h, m := newTestHTTP(t)

		m.On("HandleTransaction", mock.Anything, mock.Anything).
			Return(model.NewTransactionResponse(model.StatusCreated, "", testTx).AsConflict())

		rec := do(h, http.MethodPost, "/transactions", `[{"inputs":[],"outputs":[]}]`)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), testTx.TransactionID)
	})

	t.Run("rejection", func(t *testing.T) {
		h, m := newTestHTTP(t)

		m.On("HandleTransaction", mock.Anything, mock.Anything).
			Return(model.NewErrorResponse(errors.NewTxInvalidError("input coins (90) do not match output coins (100)")))

		rec := do(h, http.MethodPost, "/transactions", `[{"inputs":[],"outputs":[]}]`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decodeError(t, rec)
		assert.Equal(t, http.StatusBadRequest, body.Status)
		assert.Equal(t, int32(errors.ERR_TX_INVALID), body.Code)
		assert.Contains(t, body.Err, "coins")
	})

	t.Run("invalid bodies", func(t *testing.T) {
		h, m := newTestHTTP(t)

		for _, body := range []string{`[]`, `{"inputs":`, `"x"`} {
			rec := do(h, http.MethodPost, "/transactions", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Equal(t, int32(errors.ERR_INVALID_ARGUMENT), decodeError(t, rec).Code, body)
		}

		m.AssertNotCalled(t, "HandleTransaction", mock.Anything, mock.Anything)
	})
}

func TestSendCoins(t *testing.T) {
	h, m := newTestHTTP(t)

	m.On("HandleCoinTransfer", mock.Anything, &model.CoinTransferRequest{
		SourceAddress: "alice",
		TargetAddress: "bob",
		Coins:         5,
		RequestID:     "r1",
	}).Return(model.NewTransactionResponse(model.StatusCreated, "", testTx))

	rec := do(h, http.MethodPost, "/send_coins", `{"source_address":"alice","target_address":"bob","coins":5,"request_id":"r1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), testTx.TransactionID)
}

func TestQueries(t *testing.T) {
	tests := []struct {
		name   string
		target string
		method string
		args   []interface{}
		resp   *model.Response
		status int
	}{
		{
			name:   "history without limit",
			target: "/transactions",
			method: "HandleListEntireHistory",
			args:   []interface{}{-1},
			resp:   model.NewTransactionListResponse(model.StatusOK, "", []*model.Transaction{testTx}),
			status: http.StatusOK,
		},
		{
			name:   "history with limit",
			target: "/transactions?limit=3",
			method: "HandleListEntireHistory",
			args:   []interface{}{3},
			resp:   model.NewTransactionListResponse(model.StatusOK, "", nil),
			status: http.StatusOK,
		},
		{
			name:   "address transactions",
			target: "/users/bob/transactions?limit=1",
			method: "HandleListAddrTransactions",
			args:   []interface{}{"bob", 1},
			resp:   model.NewTransactionListResponse(model.StatusOK, "", []*model.Transaction{testTx}),
			status: http.StatusOK,
		},
		{
			name:   "address utxos",
			target: "/users/bob/utxos",
			method: "HandleListAddrUTXOs",
			args:   []interface{}{"bob"},
			resp:   model.NewUTXOListResponse(model.StatusOK, "", []model.UTXO{{Address: "bob", TransactionID: testTx.TransactionID}}),
			status: http.StatusOK,
		},
		{
			name:   "owner unreachable",
			target: "/users/bob/utxos",
			method: "HandleListAddrUTXOs",
			args:   []interface{}{"bob"},
			resp:   model.NewResponse(model.StatusUnavailable, "no replica of shard shard-1 is reachable"),
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m := newTestHTTP(t)

			m.On(tt.method, append([]interface{}{mock.Anything}, tt.args...)...).Return(tt.resp)

			rec := do(h, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)

			m.AssertExpectations(t)
		})
	}
}

func TestBadLimit(t *testing.T) {
	h, _ := newTestHTTP(t)

	rec := do(h, http.MethodGet, "/transactions?limit=many", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h, m := newTestHTTP(t)

	m.On("Health", mock.Anything, false).Return(http.StatusOK, "ok", nil)

	rec := do(h, http.MethodGet, "/alive", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Coordinator")

	status, _, err := h.Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestUnhealthyCoordinator(t *testing.T) {
	h, m := newTestHTTP(t)

	m.On("Health", mock.Anything, false).Return(http.StatusServiceUnavailable, "no sequencer", nil)

	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"/", "/"},
		{"", "/"},
		{"/api", "/api/"},
		{"api/v1/", "/api/v1/"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, apiPrefix(tt.prefix), tt.prefix)
	}

	tSettings := settings.NewSettings()
	tSettings.HTTP.APIPrefix = "/api"

	m := &coordinator.Mock{}
	m.On("HandleListEntireHistory", mock.Anything, -1).Return(model.NewTransactionListResponse(model.StatusOK, "", nil))

	h := New(&ulogger.TestLogger{}, tSettings, m)

	rec := do(h, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
