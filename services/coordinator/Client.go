package coordinator

import (
	"context"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/util"
	"google.golang.org/grpc"
)

// Client calls the request handler of a remote replica.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) DelegateHandleTransaction(ctx context.Context, req *model.TransactionRequest) (*model.Response, error) {
	return c.respond(ctx, "HandleTransaction", req)
}

func (c *Client) DelegateHandleCoinTransfer(ctx context.Context, req *model.CoinTransferRequest) (*model.Response, error) {
	return c.respond(ctx, "HandleCoinTransfer", req)
}

func (c *Client) DelegateHandleAtomicTxList(ctx context.Context, reqs []model.TransactionRequest) (*model.Response, error) {
	return c.respond(ctx, "HandleAtomicTxList", &AtomicTxListMsg{Requests: reqs})
}

func (c *Client) DelegateHandleListAddrUTXOs(ctx context.Context, address string) (*model.Response, error) {
	return c.respond(ctx, "HandleListAddrUTXOs", &AddressMsg{Address: address})
}

func (c *Client) DelegateHandleListAddrTransactions(ctx context.Context, address string, limit int) (*model.Response, error) {
	return c.respond(ctx, "HandleListAddrTransactions", &AddressMsg{Address: address, Limit: limit})
}

func (c *Client) DelegateHandleListEntireHistory(ctx context.Context, limit int) (*model.Response, error) {
	return c.respond(ctx, "HandleListEntireHistory", &HistoryMsg{Limit: limit})
}

func (c *Client) RecordSubmittedTransaction(ctx context.Context, tx *model.Transaction) error {
	return c.invoke(ctx, "RecordSubmittedTransaction", tx, &Ack{})
}

func (c *Client) GetEntireHistory(ctx context.Context, limit int) ([]*model.Transaction, error) {
	out := &TransactionListMsg{}
	if err := c.invoke(ctx, "GetEntireHistory", &HistoryMsg{Limit: limit}, out); err != nil {
		return nil, err
	}

	return out.Transactions, nil
}

func (c *Client) respond(ctx context.Context, method string, in interface{}) (*model.Response, error) {
	out := &model.Response{}
	if err := c.invoke(ctx, method, in, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	if err := c.conn.Invoke(ctx, util.FullMethodName(ServiceName, method), in, out); err != nil {
		return errors.UnwrapGRPC(err)
	}

	return nil
}

// LocalClient calls a manager in the same process.
type LocalClient struct {
	manager *Manager
}

func NewLocalClient(manager *Manager) *LocalClient {
	return &LocalClient{manager: manager}
}

func (c *LocalClient) DelegateHandleTransaction(ctx context.Context, req *model.TransactionRequest) (*model.Response, error) {
	return c.manager.HandleTransaction(ctx, req), nil
}

func (c *LocalClient) DelegateHandleCoinTransfer(ctx context.Context, req *model.CoinTransferRequest) (*model.Response, error) {
	return c.manager.HandleCoinTransfer(ctx, req), nil
}

func (c *LocalClient) DelegateHandleAtomicTxList(ctx context.Context, reqs []model.TransactionRequest) (*model.Response, error) {
	return c.manager.HandleAtomicTxList(ctx, reqs), nil
}

func (c *LocalClient) DelegateHandleListAddrUTXOs(ctx context.Context, address string) (*model.Response, error) {
	return c.manager.HandleListAddrUTXOs(ctx, address), nil
}

func (c *LocalClient) DelegateHandleListAddrTransactions(ctx context.Context, address string, limit int) (*model.Response, error) {
	return c.manager.HandleListAddrTransactions(ctx, address, limit), nil
}

func (c *LocalClient) DelegateHandleListEntireHistory(ctx context.Context, limit int) (*model.Response, error) {
	return c.manager.HandleListEntireHistory(ctx, limit), nil
}

func (c *LocalClient) RecordSubmittedTransaction(ctx context.Context, tx *model.Transaction) error {
	return c.manager.RecordSubmittedTransaction(ctx, tx)
}

func (c *LocalClient) GetEntireHistory(ctx context.Context, limit int) ([]*model.Transaction, error) {
	return c.manager.GetEntireHistory(ctx, limit)
}
