// Sender delivers packed bytes to a Remote target's HTTP(S) endpoint.
// Its retry-with-backoff shape follows the teacher's blockchain action
// worker (blockchain_worker.go: an attempt counter capped at
// maxActionRetries, the failure recorded before the next attempt is
// scheduled) generalized from a blockchain transaction retry to an
// HTTP delivery retry.
package node

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender delivers data to endpoint and reports the response status.
type Sender interface {
	Send(ctx context.Context, endpoint, contentType string, data []byte) (statusCode int, body []byte, err error)
}

// HTTPSender is the default Sender: a plain HTTP POST with a bounded
// timeout and capped exponential-backoff retries on transport-level
// failures and 5xx responses, following spec.md §4.6's "caller-configurable"
// backoff.
type HTTPSender struct {
	Client     *http.Client
	MaxRetries int
	BaseDelay  time.Duration
}

// NewHTTPSender builds a Sender with the given outbound timeout and the
// teacher-style retry defaults (3 attempts, 250ms base delay doubling
// each retry).
func NewHTTPSender(timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		Client:     &http.Client{Timeout: timeout},
		MaxRetries: 3,
		BaseDelay:  250 * time.Millisecond,
	}
}

func (s *HTTPSender) Send(ctx context.Context, endpoint, contentType string, data []byte) (int, []byte, error) {
	var lastErr error
	var lastStatus int
	var lastBody []byte

	attempts := s.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := s.BaseDelay << uint(attempt-1)
			select {
			case <-ctx.Done():
				return lastStatus, lastBody, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return 0, nil, fmt.Errorf("node: build request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := s.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastStatus, lastBody, lastErr = resp.StatusCode, body, nil

		if resp.StatusCode < 500 {
			return lastStatus, lastBody, nil
		}
		lastErr = fmt.Errorf("node: recipient returned %d", resp.StatusCode)
	}
	return lastStatus, lastBody, lastErr
}
