// Package pagerduty raises incidents for failed jobs through the Events API v2.
package pagerduty

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/imgforge/imgforge-api/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// maxSummaryDetail keeps the summary well under the 1024 character API limit.
const maxSummaryDetail = 256

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint.
	Endpoint string
}

// Client publishes trigger events.
type Client struct {
	hook       notify.Webhook
	routingKey string
	source     string
	component  string
}

type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key,omitempty"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details"`
}

// NewClient constructs a client. A routing key is required.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	return &Client{
		hook:       notify.NewWebhook("pagerduty api", orDefault(cfg.Endpoint, APIEndpoint), cfg.Timeout, cfg.RetryLimit, cfg.Client),
		routingKey: key,
		source:     orDefault(cfg.Source, "imgforge"),
		component:  orDefault(cfg.Component, "imgforge"),
	}, nil
}

// SendJobFailure submits a trigger event.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	return c.hook.PostJSON(ctx, c.buildEvent(payload))
}

func (c *Client) buildEvent(payload notify.JobFailurePayload) event {
	at := payload.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	details := make(map[string]any, len(payload.Metadata)+5)
	for k, v := range payload.Metadata {
		details[k] = v
	}
	// Job fields win over metadata with the same key.
	details["job_id"] = payload.JobID
	details["kind"] = payload.Kind
	details["error"] = payload.Error
	details["error_class"] = payload.ErrorClass
	if payload.Duration > 0 {
		details["duration_seconds"] = int64(payload.Duration.Seconds())
	}

	summary := fmt.Sprintf("imgforge %s job %s failed: %s",
		orDefault(payload.Kind, "unknown"),
		orDefault(payload.JobID, "unknown"),
		truncate(orDefault(payload.Error, "no detail"), maxSummaryDetail),
	)

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    dedupKey(payload),
		Payload: eventPayload{
			Summary:       summary,
			Severity:      orDefault(strings.ToLower(payload.Severity), notify.SeverityCritical),
			Source:        c.source,
			Component:     c.component,
			Timestamp:     at.UTC().Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}

// dedupKey yields one incident per job even when delivery is retried.
func dedupKey(payload notify.JobFailurePayload) string {
	parts := []string{"imgforge"}
	for _, p := range []string{payload.Kind, payload.JobID} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "…"
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
