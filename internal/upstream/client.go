// Package upstream executes outbound provider HTTP calls.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sentinel errors for transport-level failures.
var (
	ErrUnreachable = errors.New("upstream unreachable")
	ErrTimeout     = errors.New("upstream timeout")
	ErrCanceled    = errors.New("upstream call canceled")
)

// errRetryableStatus marks a response whose status is worth retrying.
var errRetryableStatus = errors.New("retryable upstream status")

const maxResponseBytes = 4 << 20

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RetryPolicy controls retries of a single call. MaxRetries of zero disables them.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
}

// Client issues requests through a shared *http.Client.
type Client struct {
	client *http.Client
	retry  RetryPolicy
}

// NewClient creates a new upstream Client. A nil hc uses a plain http.Client;
// deadlines come from the request context.
func NewClient(hc *http.Client, retry RetryPolicy) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = 500 * time.Millisecond
	}
	return &Client{client: hc, retry: retry}
}

// Do executes req and reads the body. Non-2xx statuses are not errors; callers
// inspect Response.StatusCode. Transport errors, 429 and 5xx are retried per
// the RetryPolicy, rewinding the body through req.GetBody.
func (c *Client) Do(req *http.Request) (*Response, error) {
	ctx := req.Context()

	var (
		resp  *Response
		tries int
	)
	op := func() error {
		r := req
		if tries > 0 {
			var err error
			if r, err = rewind(req); err != nil {
				return backoff.Permanent(err)
			}
		}
		tries++

		out, err := c.do(r)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = out
		if retryableStatus(out.StatusCode) {
			return fmt.Errorf("%w: %d", errRetryableStatus, out.StatusCode)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.retry.MaxRetries, 0))), ctx)

	err := backoff.Retry(op, policy)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, errRetryableStatus) && resp != nil:
		// Out of retries; the caller still gets the final status and body.
		return resp, nil
	case ctx.Err() != nil && !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrUnreachable) && !errors.Is(err, ErrCanceled):
		return nil, classifyError(ctx.Err())
	default:
		return nil, err
	}
}

func (c *Client) do(req *http.Request) (*Response, error) {
	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyError(fmt.Errorf("reading body: %w", err))
	}
	return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.GetBody == nil {
		return r, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewinding request body: %w", err)
	}
	r.Body = body
	return r, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// classifyError maps transport-level errors to sentinel errors. Cancellation
// keeps context.Canceled in the chain.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
