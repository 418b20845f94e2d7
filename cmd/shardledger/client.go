package shardledger

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/bsv-blockchain/shardledger/util"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// restClient calls the REST API of a node and writes each response body to out.
type restClient struct {
	baseURL string
	out     io.Writer
}

func newRESTClient(c *cli.Context) *restClient {
	return &restClient{
		baseURL: strings.TrimSuffix(c.String("url"), "/"),
		out:     c.App.Writer,
	}
}

func (r *restClient) call(ctx context.Context, path string, body interface{}) error {
	var payload []byte

	if body != nil {
		var err error

		if payload, err = json.Marshal(body); err != nil {
			return errors.NewInvalidArgumentError("failed to encode request", err)
		}
	}

	resp, err := util.DoHTTPRequest(ctx, r.baseURL+path, payload)
	if err != nil {
		return err
	}

	if len(resp.Body) > 0 {
		_, _ = fmt.Fprintln(r.out, strings.TrimSpace(string(resp.Body)))
	}

	if !resp.OK() {
		return errors.NewServiceError("request failed with status %d", resp.StatusCode)
	}

	return nil
}

func clientCommand() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "send requests to a running node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "base URL of the node's REST API",
				Value:   "http://localhost:8080",
				EnvVars: []string{"SHARDLEDGER_URL"},
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:      "submit",
				Usage:     "submit a transaction, or several as one atomic list",
				ArgsUsage: "<file|->",
				Action:    submit,
			},
			{
				Name:  "send",
				Usage: "transfer coins between two addresses",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
					&cli.Int64Flag{Name: "coins", Required: true},
					&cli.StringFlag{Name: "request-id", Usage: "reuse to retry a transfer safely, generated when empty"},
				},
				Action: send,
			},
			{
				Name:   "history",
				Usage:  "list every transaction in the ledger",
				Flags:  []cli.Flag{limitFlag()},
				Action: history,
			},
			{
				Name:      "transactions",
				Usage:     "list the transactions involving an address",
				ArgsUsage: "<address>",
				Flags:     []cli.Flag{limitFlag()},
				Action:    addressTransactions,
			},
			{
				Name:      "utxos",
				Usage:     "list the unspent outputs of an address",
				ArgsUsage: "<address>",
				Action:    addressUTXOs,
			},
		},
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "limit",
		Usage: "most recent transactions to return, -1 for all",
		Value: -1,
	}
}

func submit(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.NewInvalidArgumentError("submit takes one file argument")
	}

	var (
		b   []byte
		err error
	)

	if name := c.Args().First(); name == "-" {
		b, err = io.ReadAll(c.App.Reader)
	} else {
		b, err = os.ReadFile(name)
	}

	if err != nil {
		return errors.NewInvalidArgumentError("failed to read transactions", err)
	}

	requests, err := decodeTransactionRequests(b)
	if err != nil {
		return err
	}

	return newRESTClient(c).call(c.Context, "/transactions", requests)
}

// decodeTransactionRequests accepts a single transaction object or an array of them.
func decodeTransactionRequests(b []byte) ([]model.TransactionRequest, error) {
	trimmed := strings.TrimSpace(string(b))

	if strings.HasPrefix(trimmed, "{") {
		var single model.TransactionRequest
		if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
			return nil, errors.NewInvalidArgumentError("invalid transaction", err)
		}

		return []model.TransactionRequest{single}, nil
	}

	var list []model.TransactionRequest
	if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
		return nil, errors.NewInvalidArgumentError("invalid transaction list", err)
	}

	if len(list) == 0 {
		return nil, errors.NewInvalidArgumentError("no transactions to submit")
	}

	return list, nil
}

func send(c *cli.Context) error {
	requestID := c.String("request-id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	return newRESTClient(c).call(c.Context, "/send_coins", &model.CoinTransferRequest{
		SourceAddress: c.String("from"),
		TargetAddress: c.String("to"),
		Coins:         c.Int64("coins"),
		RequestID:     requestID,
	})
}

func history(c *cli.Context) error {
	return newRESTClient(c).call(c.Context, "/transactions"+limitQuery(c), nil)
}

func addressTransactions(c *cli.Context) error {
	address, err := addressArg(c)
	if err != nil {
		return err
	}

	return newRESTClient(c).call(c.Context, "/users/"+url.PathEscape(address)+"/transactions"+limitQuery(c), nil)
}

func addressUTXOs(c *cli.Context) error {
	address, err := addressArg(c)
	if err != nil {
		return err
	}

	return newRESTClient(c).call(c.Context, "/users/"+url.PathEscape(address)+"/utxos", nil)
}

func addressArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 || c.Args().First() == "" {
		return "", errors.NewInvalidArgumentError("an address is required")
	}

	return c.Args().First(), nil
}

func limitQuery(c *cli.Context) string {
	return "?limit=" + strconv.Itoa(c.Int("limit"))
}
