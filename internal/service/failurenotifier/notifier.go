// Package failurenotifier fans failed jobs out to the configured alert sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
	"github.com/imgforge/imgforge-api/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Metadata is attached to every payload, e.g. the host name.
	Metadata map[string]string
}

// Service dispatches failure events to all registered sinks.
type Service struct {
	logger   *slog.Logger
	sinks    []SinkRegistration
	metadata map[string]string
}

var _ core.FailureNotifier = (*Service)(nil)

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "failure_notifier")

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger:   logger,
		sinks:    sinks,
		metadata: opts.Metadata,
	}
}

// NotifyJobFailure fans the failed job out to all sinks and waits for every
// delivery attempt to finish. Delivery errors are logged, never returned.
func (s *Service) NotifyJobFailure(ctx context.Context, job model.Job) {
	if len(s.sinks) == 0 {
		return
	}

	payload := buildPayload(job, s.metadata)

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendJobFailure(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"kind", payload.Kind,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

func buildPayload(job model.Job, metadata map[string]string) notify.JobFailurePayload {
	payload := notify.JobFailurePayload{
		JobID:    job.ID,
		Kind:     string(job.Kind),
		Error:    job.Error,
		Severity: notify.SeverityCritical,
		Duration: job.Duration(),
	}
	if job.FinishedAt != nil {
		payload.OccurredAt = *job.FinishedAt
	} else {
		payload.OccurredAt = time.Now().UTC()
	}
	if job.Error != "" {
		payload.ErrorClass = classifyDetail(job.Error)
	}
	if len(metadata) > 0 {
		payload.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			payload.Metadata[k] = v
		}
	}
	return payload
}

// classifyDetail recovers a coarse class from the stored error text. Only
// the string survives the transition, so the prefixes written by the
// orchestrator are matched directly.
func classifyDetail(detail string) string {
	switch {
	case strings.HasPrefix(detail, "timed out after"):
		return "timeout"
	case strings.HasPrefix(detail, "exit status"), strings.HasPrefix(detail, "terminated by signal"):
		return "exit_status"
	case strings.HasPrefix(detail, "prepare:"):
		return "prepare"
	case strings.HasPrefix(detail, "internal error:"):
		return "panic"
	default:
		return "process"
	}
}
