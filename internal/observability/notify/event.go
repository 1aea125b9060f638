// Package notify carries job failure notices to external alerting systems.
// The slack and pagerduty subpackages implement Sink on top of Webhook.
package notify

import (
	"context"
	"time"
)

const (
	SeverityCritical = "critical"
	SeverityError    = "error"
)

// JobFailurePayload describes one failed build or flash job.
type JobFailurePayload struct {
	JobID      string
	Kind       string // build or flash
	Error      string
	ErrorClass string // coarse category, see failurenotifier
	Severity   string // empty means SeverityCritical
	Duration   time.Duration
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink delivers a failure notice. Implementations retry on their own.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc lets a plain function act as a Sink. A nil SinkFunc drops notices.
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
