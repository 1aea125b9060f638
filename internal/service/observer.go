package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
)

const publishTimeout = 5 * time.Second

// TransitionMirror copies every terminal job snapshot to the event bus.
// Its Observe method is meant to be installed as the registry transition hook.
type TransitionMirror struct {
	events core.EventPublisher
	logger *slog.Logger
}

// NewTransitionMirror constructs a TransitionMirror. A nil publisher yields
// a mirror that does nothing.
func NewTransitionMirror(events core.EventPublisher, logger *slog.Logger) *TransitionMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionMirror{
		events: events,
		logger: logger.With("component", "transition_mirror"),
	}
}

// Observe publishes job. Failures are logged and otherwise ignored.
func (m *TransitionMirror) Observe(job model.Job) {
	if m == nil || m.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := m.events.PublishTransition(ctx, job); err != nil {
		m.logger.Warn("publish job transition failed",
			"job_id", job.ID,
			"status", job.Status,
			"error", err,
		)
	}
}
