package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/imgforge/imgforge-api/config"
	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
	obserrors "github.com/imgforge/imgforge-api/internal/observability/errors"
	"github.com/imgforge/imgforge-api/internal/observability/metrics"
	"github.com/imgforge/imgforge-api/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Registry  core.JobRegistry    // Required: source of finished jobs
	Logs      core.LogSink        // Required: forgets reaped logs
	Workspace Workspace           // Required: scratch layout
	Config    config.ReaperConfig // Required: reaper configuration
	Now       func() time.Time    // Optional: clock, defaults to time.Now
	Logger    *slog.Logger        // Optional: structured logger
	Metrics   statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// ReaperService removes scratch files that finished jobs no longer need.
//
// It deletes:
// - the env, log, compose and script files of jobs that finished longer ago than the max age;
// - temporary files abandoned by interrupted atomic writes.
//
// Registry entries are never removed, so finished jobs stay visible.
type ReaperService struct {
	registry  core.JobRegistry
	logs      core.LogSink
	workspace Workspace
	config    config.ReaperConfig
	now       func() time.Time
	logger    *slog.Logger
	metrics   statsd.Sink

	mu     sync.Mutex
	reaped map[string]struct{}
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.Logs == nil {
		return nil, errors.New("LogSink is required")
	}
	if opts.Workspace.ScratchDir == "" {
		return nil, errors.New("scratch directory is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"scratch_max_age", opts.Config.ScratchMaxAge,
		)
	}

	return &ReaperService{
		registry:  opts.Registry,
		logs:      opts.Logs,
		workspace: opts.Workspace,
		config:    opts.Config,
		now:       now,
		logger:    logger,
		metrics:   opts.Metrics,
		reaped:    make(map[string]struct{}),
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.runCleanup(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runCleanup(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// runCleanup performs one reaping pass.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()
	var (
		errs []error
		m    cleanupMetrics
	)

	steps := []cleanupStep{
		{fn: s.reapJobScratch, label: "reap job scratch files", operation: "job_scratch"},
		{fn: s.reapAbandonedTemps, label: "reap abandoned temp files", operation: "abandoned_temp"},
	}

	for _, step := range steps {
		count, err := step.fn(ctx)
		m.operations = append(m.operations, cleanupOperation{name: step.operation, count: count, err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
		}
	}

	m.elapsed = time.Since(start)
	s.emitCleanupMetrics(m)

	if len(errs) > 0 {
		return fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
	}
	return nil
}

type cleanupStep struct {
	fn        func(context.Context) (int64, error)
	label     string
	operation string
}

// reapJobScratch deletes the scratch files of jobs that finished before the
// cutoff and drops their log entries.
func (s *ReaperService) reapJobScratch(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.ScratchMaxAge)
	var (
		total int64
		errs  []error
	)

	for _, job := range s.registry.List(model.JobFilter{}) {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if !s.expired(job, cutoff) {
			continue
		}

		files, err := s.workspace.ScratchFiles(job.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.logs.Forget(job.ID)
		removed, err := removeFiles(files)
		total += int64(removed)
		if err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}

		s.mu.Lock()
		s.reaped[job.ID] = struct{}{}
		s.mu.Unlock()
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "reaped job scratch files",
			"count", total,
			"max_age", s.config.ScratchMaxAge,
		)
	}
	return total, errors.Join(errs...)
}

func (s *ReaperService) expired(job model.Job, cutoff time.Time) bool {
	if !job.Status.IsTerminal() || job.FinishedAt == nil || !job.FinishedAt.Before(cutoff) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, done := s.reaped[job.ID]
	return !done
}

// reapAbandonedTemps removes temporary files left behind by atomic writes
// that never reached their rename.
func (s *ReaperService) reapAbandonedTemps(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.ScratchMaxAge)
	var (
		total int64
		errs  []error
	)

	dirs := []string{s.workspace.ScratchDir, s.workspace.ConfigsDir, s.workspace.ImagesDir, s.workspace.Workdir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}

		var stale []string
		for _, e := range entries {
			if !e.Type().IsRegular() || !isAtomicTemp(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			stale = append(stale, filepath.Join(dir, e.Name()))
		}

		removed, err := removeFiles(stale)
		total += int64(removed)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "reaped abandoned temp files", "count", total)
	}
	return total, errors.Join(errs...)
}

// isAtomicTemp matches the names WriteFileAtomic and CopyFileAtomic use.
func isAtomicTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, ".tmp-")
}

type cleanupOperation struct {
	name  string
	count int64
	err   error
}

type cleanupMetrics struct {
	operations []cleanupOperation
	elapsed    time.Duration
}

func (s *ReaperService) emitCleanupMetrics(m cleanupMetrics) {
	if s.metrics == nil {
		return
	}

	var (
		total    int64
		firstErr error
	)
	for _, op := range m.operations {
		total += op.count
		if firstErr == nil && op.err != nil && !isContextCancellation(op.err) {
			firstErr = op.err
		}
	}

	tags := map[string]string{"result": cleanupResult(total, firstErr)}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if m.elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", m.elapsed, metrics.CloneTags(tags))
	}

	for _, op := range m.operations {
		opTags := map[string]string{
			"operation": op.name,
			"result":    cleanupResult(op.count, op.err),
		}
		s.metrics.Count("reaper.cleanup_operation", 1, opTags)
		if op.count > 0 {
			s.metrics.Count("reaper.files_removed", op.count, metrics.CloneTags(opTags))
		}
	}

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func cleanupResult(count int64, err error) string {
	switch {
	case err != nil && !isContextCancellation(err):
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
