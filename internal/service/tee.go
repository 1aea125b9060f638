package service

import (
	"context"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
)

// teeLines drains both output streams of proc into the job log, the
// structured log and the event mirror while waiting for it to exit.
func (o *Orchestrator) teeLines(
	ctx context.Context,
	job model.Job,
	proc core.Process,
	logger *slog.Logger,
) model.ExitOutcome {
	var g errgroup.Group
	g.Go(func() error {
		o.drain(ctx, job, model.StreamStdout, proc.Stdout(), logger)
		return nil
	})
	g.Go(func() error {
		o.drain(ctx, job, model.StreamStderr, proc.Stderr(), logger)
		return nil
	})

	outcome := proc.Wait()
	_ = g.Wait()
	return outcome
}

func (o *Orchestrator) drain(
	ctx context.Context,
	job model.Job,
	stream model.Stream,
	lines iter.Seq[string],
	logger *slog.Logger,
) {
	level := lineLevel(job.Kind, stream)
	streamLogger := logger.With("stream", string(stream))
	publishCtx := context.WithoutCancel(ctx)

	var appendFailed, publishFailed bool
	for line := range lines {
		if err := o.logs.Append(job.ID, line); err != nil && !appendFailed {
			appendFailed = true
			streamLogger.Error("append to job log failed", "error", err)
		}

		streamLogger.Log(ctx, level, line)

		if o.events == nil {
			continue
		}
		if err := o.events.PublishLine(publishCtx, job.ID, stream, line); err != nil && !publishFailed {
			publishFailed = true
			streamLogger.Warn("publish log line failed", "error", err)
		}
	}
}

// lineLevel picks the log level for one output line. Build scripts report
// problems on stderr; dd writes its progress there.
func lineLevel(kind model.JobKind, stream model.Stream) slog.Level {
	if stream == model.StreamStderr && kind == model.JobKindBuild {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
