package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of an error response is kept in the returned error.
const maxErrorBody = 4 << 10

// WebhookRequest is one JSON POST with linear-backoff retries.
type WebhookRequest struct {
	Client     *http.Client
	URL        string
	Body       []byte
	RetryLimit int
	// Service names the destination in error messages.
	Service string
}

// PostJSON delivers req, retrying up to RetryLimit times with a 200ms linear backoff.
func PostJSON(ctx context.Context, req WebhookRequest) error {
	attempts := max(req.RetryLimit, 0) + 1
	var lastErr error
	for attempt := range attempts {
		lastErr = postOnce(ctx, req)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func postOnce(ctx context.Context, req WebhookRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.Service, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := req.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", req.Service, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, drainErr := io.Copy(io.Discard, resp.Body)
		return errors.Join(drainErr, resp.Body.Close())
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	closeErr := resp.Body.Close()
	if readErr != nil || closeErr != nil {
		return errors.Join(fmt.Errorf("%s %s", req.Service, resp.Status), readErr, closeErr)
	}
	return fmt.Errorf("%s %s: %s", req.Service, resp.Status, strings.TrimSpace(string(body)))
}
