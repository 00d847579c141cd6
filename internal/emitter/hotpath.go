package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hoangpro267200/omen/internal/domain"
	"github.com/hoangpro267200/omen/internal/errkind"
	"github.com/hoangpro267200/omen/internal/resilience"
)

// HotPathClient pushes one ledgered signal event downstream, idempotently.
// Grounded on the same outbound-call shape as internal/sources' adapters
// (http.Client plus resilience.Do for retry), generalized from polling a
// source to pushing a signal.
type HotPathClient interface {
	Push(ctx context.Context, event domain.SignalEvent) (ackID string, err error)
}

// statusError carries an HTTP status code that wasn't 200/409, so the retry
// predicate can consult resilience.RetryConfig's retryable-status set.
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("hot path: unexpected status %d", e.code) }

type ackResponse struct {
	AckID string `json:"ack_id"`
}

// HTTPHotPathClient posts the event JSON to a fixed endpoint with an
// Idempotency-Key header set to the signal_id, as spec.md §4.9 requires.
type HTTPHotPathClient struct {
	client   *http.Client
	endpoint string
	header   string
	retry    resilience.RetryConfig
}

// NewHTTPHotPathClient builds a hot-path client posting to endpoint.
// header is the idempotency header name (spec.md names it
// "Idempotency-Key"); retry controls the 408/429/5xx-and-network-error
// backoff policy.
func NewHTTPHotPathClient(endpoint, header string, timeout time.Duration, retry resilience.RetryConfig) *HTTPHotPathClient {
	if header == "" {
		header = "Idempotency-Key"
	}
	return &HTTPHotPathClient{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		header:   header,
		retry:    retry,
	}
}

// Push implements HotPathClient.
func (c *HTTPHotPathClient) Push(ctx context.Context, event domain.SignalEvent) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("%w: marshal signal event: %v", errkind.ErrPublish, err)
	}

	var ackID string
	shouldRetry := func(err error) bool {
		var se *statusError
		if errors.As(err, &se) {
			return c.retry.IsRetryableStatus(se.code)
		}
		return resilience.IsRetryableErr(err)
	}

	err = resilience.Do(ctx, c.retry, shouldRetry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(c.header, event.SignalID())

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		switch resp.StatusCode {
		case http.StatusOK:
			var ack ackResponse
			_ = json.Unmarshal(body, &ack)
			ackID = ack.AckID
			return nil
		case http.StatusConflict:
			return errkind.ErrDuplicateSignal
		default:
			return &statusError{code: resp.StatusCode}
		}
	})

	if errors.Is(err, errkind.ErrDuplicateSignal) {
		return "", errkind.ErrDuplicateSignal
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errkind.ErrPublish, err)
	}
	return ackID, nil
}
