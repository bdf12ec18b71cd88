package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// HTTPClient sends exactly one request per call, bounded by Timeout.
type HTTPClient struct {
	Client  *http.Client
	Timeout time.Duration
}

// Do executes req once. Any response, including 5xx, is returned to the
// caller with its body intact. The timeout context lives until the response
// body is closed.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if cl.Timeout <= 0 {
		return cl.Client.Do(req.WithContext(ctx))
	}
	callCtx, cancel := context.WithTimeout(ctx, cl.Timeout)
	resp, err := cl.Client.Do(req.WithContext(callCtx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
