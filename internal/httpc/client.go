// Package httpc builds HTTP clients with bounded timeouts and retries calls
// that fail with rate limits or server errors.
package httpc

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Default timeouts for outbound calls.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// NewClient creates a client with the given overall timeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// Retry describes how many extra attempts to make and the base back-off.
// Attempt n waits n*Delay.
type Retry struct {
	Max   int
	Delay time.Duration
}

// Retryable reports whether a response status warrants another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Do sends the request built by newReq, retrying transport errors and
// retryable statuses. newReq is called once per attempt so bodies can be
// rebuilt. The last retryable response is returned unread if attempts run
// out, so callers can parse the error body.
func Do(ctx context.Context, c *http.Client, r Retry, newReq func(context.Context) (*http.Request, error), onRetry func(attempt int, status int, err error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.Max; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.Delay * time.Duration(attempt)):
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.Do(req)
		if err != nil {
			lastErr = err
			if onRetry != nil && attempt < r.Max {
				onRetry(attempt+1, 0, err)
			}
			continue
		}
		if !Retryable(resp.StatusCode) || attempt == r.Max {
			return resp, nil
		}
		resp.Body.Close()
		if onRetry != nil {
			onRetry(attempt+1, resp.StatusCode, nil)
		}
	}
	return nil, lastErr
}
