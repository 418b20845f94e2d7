package model

import (
	"github.com/bsv-blockchain/shardledger/errors"
)

// Status mirrors the HTTP status the front door answers with.
type Status int

const (
	StatusOK            Status = 200
	StatusCreated       Status = 201
	StatusBadRequest    Status = 400
	StatusNotFound      Status = 404
	StatusConflict      Status = 409
	StatusInternalError Status = 500
	StatusUnavailable   Status = 503
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusCreated:
		return "CREATED"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusConflict:
		return "CONFLICT"
	case StatusUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// Response is the uniform answer of every ledger operation. Only the payload matching the
// operation is set.
type Response struct {
	Status       Status         `json:"status"`
	Reason       string         `json:"reason,omitempty"`
	Transaction  *Transaction   `json:"transaction,omitempty"`
	Transactions []*Transaction `json:"transactions,omitempty"`
	UTXOs        []UTXO         `json:"utxos,omitempty"`
}

func NewResponse(status Status, reason string) *Response {
	return &Response{Status: status, Reason: reason}
}

func NewTransactionResponse(status Status, reason string, tx *Transaction) *Response {
	return &Response{Status: status, Reason: reason, Transaction: tx}
}

func NewTransactionListResponse(status Status, reason string, txs []*Transaction) *Response {
	if txs == nil {
		txs = []*Transaction{}
	}

	return &Response{Status: status, Reason: reason, Transactions: txs}
}

func NewUTXOListResponse(status Status, reason string, utxos []UTXO) *Response {
	if utxos == nil {
		utxos = []UTXO{}
	}

	return &Response{Status: status, Reason: reason, UTXOs: utxos}
}

// NewErrorResponse converts err into a response, keeping the error text as the reason.
func NewErrorResponse(err error) *Response {
	return &Response{Status: StatusFromError(err), Reason: reasonFromError(err)}
}

// OK reports whether the response is a success.
func (r *Response) OK() bool {
	return r != nil && (r.Status == StatusOK || r.Status == StatusCreated)
}

// AsConflict returns a copy of r carrying StatusConflict, used to replay already processed
// requests.
func (r *Response) AsConflict() *Response {
	c := *r
	c.Status = StatusConflict

	if c.Reason == "" {
		c.Reason = "request already processed"
	}

	return &c
}

// StatusFromError maps an error code to a response status.
func StatusFromError(err error) Status {
	if err == nil {
		return StatusOK
	}

	var tErr *errors.Error
	if !errors.As(err, &tErr) {
		return StatusInternalError
	}

	switch tErr.Code() {
	case errors.ERR_INVALID_ARGUMENT, errors.ERR_TX_INVALID, errors.ERR_INSUFFICIENT_FUNDS, errors.ERR_SPENT:
		return StatusBadRequest
	case errors.ERR_TX_ALREADY_EXISTS, errors.ERR_TX_CONFLICT:
		return StatusConflict
	case errors.ERR_NOT_FOUND, errors.ERR_TX_NOT_FOUND:
		return StatusNotFound
	case errors.ERR_SERVICE_UNAVAILABLE, errors.ERR_SHARD_UNAVAILABLE:
		return StatusUnavailable
	default:
		return StatusInternalError
	}
}

func reasonFromError(err error) string {
	var tErr *errors.Error
	if errors.As(err, &tErr) {
		return tErr.Message()
	}

	return err.Error()
}
