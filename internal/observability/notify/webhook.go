package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 5 * time.Second
	defaultBackoff = 200 * time.Millisecond
	// maxErrorBody bounds how much of a rejected response ends up in the error.
	maxErrorBody = 512
)

// StatusError is returned when an endpoint answers with a non-2xx status.
type StatusError struct {
	Sink       string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s", e.Sink, e.Status)
	}
	return fmt.Sprintf("%s: %s: %s", e.Sink, e.Status, e.Body)
}

// Retryable reports whether a later attempt could succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Webhook posts JSON documents to a single endpoint. Transport failures,
// 429 and 5xx answers are retried with a linear backoff; other answers are final.
type Webhook struct {
	Sink    string // names the integration in errors
	URL     string
	Client  *http.Client
	Retries int
	Backoff time.Duration
}

// NewWebhook fills in the HTTP client and backoff defaults.
func NewWebhook(sink, url string, timeout time.Duration, retries int, client *http.Client) Webhook {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return Webhook{
		Sink:    sink,
		URL:     url,
		Client:  client,
		Retries: max(retries, 0),
		Backoff: defaultBackoff,
	}
}

// PostJSON encodes doc once and delivers it, retrying as described on Webhook.
func (w Webhook) PostJSON(ctx context.Context, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", w.Sink, err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*w.Backoff); err != nil {
				return errors.Join(lastErr, err)
			}
		}

		lastErr = w.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && !statusErr.Retryable() {
			return lastErr
		}
	}
	return lastErr
}

func (w Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", w.Sink, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", w.Sink, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("drain %s response: %w", w.Sink, err)
		}
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("read %s error response: %w", w.Sink, err)
	}
	return &StatusError{
		Sink:       w.Sink,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(raw)),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
