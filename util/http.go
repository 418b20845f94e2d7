package util

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/ordishs/gocore"
)

var (
	// httpRequestTimeout is the request timeout in seconds used when the context has no deadline.
	httpRequestTimeout, _ = gocore.Config().GetInt("http_timeout", 60)
)

// HTTPResponse is the status code and body of a completed request. Ledger responses carry a
// payload on error statuses too, so a non 2xx status is not an error.
type HTTPResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the request succeeded with a 2xx status.
func (r *HTTPResponse) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// DoHTTPRequest performs a GET, or a JSON POST when requestBody is not nil, and reads the
// whole response body.
func DoHTTPRequest(ctx context.Context, url string, requestBody []byte) (*HTTPResponse, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(httpRequestTimeout)*time.Second)
		defer cancel()
	}

	method := http.MethodGet

	var body io.Reader

	if requestBody != nil {
		method = http.MethodPost
		body = bytes.NewReader(requestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.NewServiceError("failed to create http request", err)
	}

	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewTimeoutError("http request [%s] timed out", url, err)
		}

		return nil, errors.NewServiceUnavailableError("http request [%s] failed", url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.Header.Get("Content-Type") == "text/html" {
		return nil, errors.NewServiceError("http request [%s] returned HTML - assume bad URL", url)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewServiceError("http request [%s] failed to read body", url, err)
	}

	return &HTTPResponse{StatusCode: resp.StatusCode, Body: b}, nil
}
