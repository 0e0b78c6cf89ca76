// Package classifier provides HTTP clients for the external text and image moderation APIs.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultMaxResponseBytes = 1 << 20
)

// HTTPOptions holds the transport settings shared by both classifiers.
type HTTPOptions struct {
	URL   string
	Token string
	// Client is the base client; it is wrapped with bearer auth when Token is set.
	Client           *http.Client
	Timeout          time.Duration
	MaxResponseBytes int64
	Logger           *slog.Logger
}

type endpoint struct {
	url      string
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

func newEndpoint(opts HTTPOptions, component string) (*endpoint, error) {
	if opts.URL == "" {
		return nil, errors.New("classifier url is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := opts.Client
	if base == nil {
		base = &http.Client{Timeout: timeout}
	}
	client := base
	if opts.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}))
		client.Timeout = timeout
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &endpoint{
		url:      opts.URL,
		client:   client,
		maxBytes: maxBytes,
		logger:   logger.With("component", component),
	}, nil
}

// postJSON sends body and decodes the JSON response into a generic document for JMESPath.
func (e *endpoint) postJSON(ctx context.Context, op string, body any) (any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &PermanentError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &PermanentError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, &TransientError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	e.logger.DebugContext(ctx, "classifier call finished",
		"op", op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, resp.StatusCode, raw)
	}
	if int64(len(raw)) > e.maxBytes {
		return nil, &TransientError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("response exceeds %d bytes", e.maxBytes)}
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &TransientError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return doc, nil
}
