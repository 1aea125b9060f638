package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/imgforge/imgforge-api/config"
	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
	apperrors "github.com/imgforge/imgforge-api/internal/errors"
	"github.com/imgforge/imgforge-api/internal/observability/metrics"
	"github.com/imgforge/imgforge-api/internal/observability/statsd"
)

const (
	// cancelWait bounds how long Cancel waits for the leg to record the outcome.
	cancelWait = 2 * time.Second

	notifyTimeout = 30 * time.Second

	artifactTimeLayout = "20060102_150405"
)

var (
	errCancelRequested = errors.New("cancelled on request")
	errShutdown        = errors.New("server shutting down")
)

// OrchestratorOptions groups dependencies for Orchestrator.
type OrchestratorOptions struct {
	Registry  core.JobRegistry     // Required: job directory
	Logs      core.LogSink         // Required: per-job console log
	Processes core.ProcessStarter  // Required: launches build and flash commands
	Events    core.EventPublisher  // Optional: mirror of log lines and new jobs
	Failures  core.FailureNotifier // Optional: told about failed jobs
	Metrics   statsd.Sink          // Optional: metrics sink (StatsD-compatible)
	Workspace Workspace
	Config    config.JobsConfig
	Environ   func() []string  // Optional: base child environment, defaults to os.Environ
	Now       func() time.Time // Optional: clock used for artifact names
	Logger    *slog.Logger     // Optional: structured logger
}

// Orchestrator runs build and flash jobs in the background and records how
// they end.
type Orchestrator struct {
	registry  core.JobRegistry
	logs      core.LogSink
	processes core.ProcessStarter
	events    core.EventPublisher
	failures  core.FailureNotifier
	metrics   statsd.Sink
	workspace Workspace
	cfg       config.JobsConfig
	environ   func() []string
	now       func() time.Time
	logger    *slog.Logger

	slots      *semaphore.Weighted
	active     atomic.Int64
	baseCtx    context.Context
	baseCancel context.CancelCauseFunc

	mu      sync.Mutex
	closed  bool
	running map[string]*runningJob
	legs    sync.WaitGroup
}

type runningJob struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// legPlan describes the kind-specific parts of a job leg.
type legPlan struct {
	prepare func(jobID string) (model.Command, error)
	// after runs only when the process exited successfully.
	after func(ctx context.Context, jobID string, logger *slog.Logger) error
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.Logs == nil {
		return nil, errors.New("LogSink is required")
	}
	if opts.Processes == nil {
		return nil, errors.New("ProcessStarter is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, baseCancel := context.WithCancelCause(context.Background())
	return &Orchestrator{
		registry:   opts.Registry,
		logs:       opts.Logs,
		processes:  opts.Processes,
		events:     opts.Events,
		failures:   opts.Failures,
		metrics:    opts.Metrics,
		workspace:  opts.Workspace,
		cfg:        cfg,
		environ:    environ,
		now:        now,
		logger:     logger.With("component", "job_orchestrator"),
		slots:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		running:    make(map[string]*runningJob),
	}, nil
}

// SubmitBuild validates cfg, creates a running build job and starts it in
// the background.
func (o *Orchestrator) SubmitBuild(ctx context.Context, cfg model.BuildConfiguration) (model.Job, error) {
	if err := cfg.Validate(); err != nil {
		return model.Job{}, err
	}
	return o.submit(ctx, model.JobKindBuild, legPlan{
		prepare: func(jobID string) (model.Command, error) {
			return o.prepareBuild(jobID, cfg)
		},
		after: func(ctx context.Context, _ string, logger *slog.Logger) error {
			if cfg.Mode != model.BuildModeArtifact {
				return nil
			}
			return o.storeArtifact(ctx, strings.TrimSpace(cfg.Hostname), logger)
		},
	})
}

// SubmitFlash validates req, creates a running flash job and starts it in
// the background.
func (o *Orchestrator) SubmitFlash(ctx context.Context, req model.FlashRequest) (model.Job, error) {
	if err := req.Validate(); err != nil {
		return model.Job{}, err
	}
	return o.submit(ctx, model.JobKindFlash, legPlan{
		prepare: func(string) (model.Command, error) {
			return model.Command{
				Path: o.cfg.DDPath,
				Args: []string{
					"if=" + req.ImagePath,
					"of=" + req.Device,
					"bs=" + o.cfg.FlashBlockSize,
					"status=progress",
					"conv=fsync",
				},
				Env: o.environ(),
			}, nil
		},
	})
}

// Cancel stops a running job. It returns the job as recorded after the
// cancellation took effect, or the running snapshot if the leg has not
// finished within a short grace period.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) (model.Job, error) {
	job, err := o.registry.Get(jobID)
	if err != nil {
		return model.Job{}, err
	}
	if job.Status.IsTerminal() {
		return model.Job{}, apperrors.Conflictf("job %s is already %s", jobID, job.Status)
	}

	o.mu.Lock()
	run, ok := o.running[jobID]
	o.mu.Unlock()

	if ok {
		o.logger.InfoContext(ctx, "cancelling job", "job_id", jobID, "kind", job.Kind)
		run.cancel(errCancelRequested)

		timer := time.NewTimer(cancelWait)
		defer timer.Stop()
		select {
		case <-run.done:
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	return o.registry.Get(jobID)
}

// Shutdown cancels every running job and waits for their legs to record the
// outcome, bounded by ctx. New submissions are rejected afterwards.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	pending := len(o.running)
	o.mu.Unlock()

	if pending > 0 {
		o.logger.InfoContext(ctx, "cancelling running jobs", "count", pending)
	}
	o.baseCancel(errShutdown)

	done := make(chan struct{})
	go func() {
		o.legs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for job legs: %w", ctx.Err())
	}
}

// Running reports how many jobs have not finished yet, including those
// waiting for a worker slot.
func (o *Orchestrator) Running() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.running)
}

func (o *Orchestrator) submit(ctx context.Context, kind model.JobKind, plan legPlan) (model.Job, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return model.Job{}, apperrors.Conflict("server is shutting down")
	}
	job, err := o.registry.Create(kind)
	if err != nil {
		o.mu.Unlock()
		return model.Job{}, err
	}
	o.logs.Register(job.ID)

	legCtx, cancel := context.WithCancelCause(o.baseCtx)
	run := &runningJob{cancel: cancel, done: make(chan struct{})}
	o.running[job.ID] = run
	o.legs.Add(1)
	o.mu.Unlock()

	o.logger.InfoContext(ctx, "job submitted", "job_id", job.ID, "kind", job.Kind)
	metrics.EmitJobSubmitted(o.metrics, string(job.Kind))
	if o.events != nil {
		if err := o.events.PublishTransition(context.WithoutCancel(ctx), job); err != nil {
			o.logger.WarnContext(ctx, "publish job snapshot failed", "job_id", job.ID, "error", err)
		}
	}

	go o.runLeg(legCtx, job, plan, run)
	return job, nil
}

func (o *Orchestrator) runLeg(ctx context.Context, job model.Job, plan legPlan, run *runningJob) {
	defer o.legs.Done()
	defer close(run.done)
	defer func() {
		o.mu.Lock()
		delete(o.running, job.ID)
		o.mu.Unlock()
		run.cancel(nil)
	}()

	logger := o.logger.With("job_id", job.ID, "kind", job.Kind)
	status, err := o.execute(ctx, job, plan, logger)
	o.finalize(job, status, err, logger)
}

// execute runs one leg and decides its terminal status. It never panics.
func (o *Orchestrator) execute(
	ctx context.Context,
	job model.Job,
	plan legPlan,
	logger *slog.Logger,
) (status model.JobStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job leg panicked", "panic", r, "stack", string(debug.Stack()))
			status, err = model.JobStatusFailed, fmt.Errorf("internal error: %v", r)
		}
	}()

	if err := o.slots.Acquire(ctx, 1); err != nil {
		return model.JobStatusCancelled, context.Cause(ctx)
	}
	defer o.slots.Release(1)
	metrics.EmitRunning(o.metrics, int(o.active.Add(1)))
	defer func() { metrics.EmitRunning(o.metrics, int(o.active.Add(-1))) }()

	timeout := o.timeoutFor(job.Kind)
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd, err := plan.prepare(job.ID)
	if err != nil {
		return model.JobStatusFailed, fmt.Errorf("prepare: %w", err)
	}

	proc, err := o.processes.Launch(runCtx, cmd)
	if err != nil {
		if ctx.Err() != nil {
			return model.JobStatusCancelled, context.Cause(ctx)
		}
		return model.JobStatusFailed, err
	}
	logger.InfoContext(ctx, "process started", "pid", proc.PID(), "command", cmd.String())

	outcome := o.teeLines(runCtx, job, proc, logger)

	switch {
	case outcome.Success:
	case ctx.Err() != nil:
		return model.JobStatusCancelled, context.Cause(ctx)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return model.JobStatusFailed, fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
	default:
		return model.JobStatusFailed, outcomeError{outcome}
	}

	if plan.after != nil {
		if err := plan.after(ctx, job.ID, logger); err != nil {
			return model.JobStatusFailed, err
		}
	}
	return model.JobStatusSuccess, nil
}

func (o *Orchestrator) finalize(job model.Job, status model.JobStatus, cause error, logger *slog.Logger) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}

	done, err := o.registry.Transition(job.ID, status, detail)
	o.logs.Complete(job.ID)
	if err != nil {
		logger.Error("record job outcome failed", "status", status, "error", err)
		return
	}

	attrs := []any{"status", done.Status, "duration", done.Duration()}
	switch done.Status {
	case model.JobStatusFailed:
		logger.Error("job failed", append(attrs, "error", detail)...)
	case model.JobStatusCancelled:
		logger.Info("job cancelled", append(attrs, "reason", detail)...)
	default:
		logger.Info("job finished", attrs...)
	}

	metrics.EmitJobLifecycle(o.metrics, metrics.JobMetric{
		Kind:       string(done.Kind),
		Transition: string(done.Status),
		Result:     resultFor(done.Status),
		Duration:   done.Duration(),
		Err:        cause,
	})

	if done.Status == model.JobStatusFailed && o.failures != nil {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		o.failures.NotifyJobFailure(ctx, done)
	}
}

func (o *Orchestrator) timeoutFor(kind model.JobKind) time.Duration {
	if kind == model.JobKindFlash {
		return o.cfg.FlashTimeout
	}
	return o.cfg.BuildTimeout
}

// prepareBuild materializes everything the build script reads and returns
// the command that runs it.
func (o *Orchestrator) prepareBuild(jobID string, cfg model.BuildConfiguration) (model.Command, error) {
	ws := o.workspace
	paths := model.RenderPaths{
		ComposeFile: ws.ComposeFile(jobID),
		ScriptFile:  ws.ScriptFile(jobID),
	}
	env := cfg.Render(paths)

	if cfg.HasCompose() {
		if err := WriteFileAtomic(paths.ComposeFile, []byte(*cfg.DockerComposeContent), 0o644); err != nil {
			return model.Command{}, fmt.Errorf("write compose file: %w", err)
		}
	}
	if cfg.HasScriptFile() {
		if err := WriteFileAtomic(paths.ScriptFile, []byte(*cfg.CustomScriptContent), 0o755); err != nil {
			return model.Command{}, fmt.Errorf("write custom script: %w", err)
		}
	}

	doc, err := env.Marshal()
	if err != nil {
		return model.Command{}, err
	}

	envFile := ws.EnvFile(jobID)
	for _, path := range []string{envFile, ws.ConfigRecord(jobID), ws.LastRun()} {
		if err := WriteFileAtomic(path, []byte(doc), 0o600); err != nil {
			return model.Command{}, fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}

	// Rendered values override the inherited environment; exec keeps the last
	// duplicate.
	childEnv := env.With(model.Environment{
		"MODE":              cfg.Mode.EnvValue(),
		"IMGFORGE_ENV_FILE": envFile,
		"IMGFORGE_JOB_ID":   jobID,
	})
	return model.Command{
		Path: o.cfg.BuildScript,
		Dir:  ws.Workdir,
		Env:  append(o.environ(), childEnv.Pairs()...),
	}, nil
}

// storeArtifact copies the build output into the image store under a
// hostname and completion-time name. A missing artifact is not an error.
func (o *Orchestrator) storeArtifact(_ context.Context, hostname string, logger *slog.Logger) error {
	src := filepath.Join(o.workspace.Workdir, o.cfg.BuildArtifact)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("build artifact not found, nothing to store", "path", src)
			return nil
		}
		return fmt.Errorf("stat artifact: %w", err)
	}

	name := fmt.Sprintf("%s_%s.img", hostname, o.now().UTC().Format(artifactTimeLayout))
	dst := filepath.Join(o.workspace.ImagesDir, name)
	if err := os.MkdirAll(o.workspace.ImagesDir, 0o755); err != nil {
		return fmt.Errorf("create image store: %w", err)
	}
	if err := CopyFileAtomic(src, dst, 0o644); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	logger.Info("artifact stored", "path", dst)
	return nil
}

// outcomeError reports a process that ended unsuccessfully.
type outcomeError struct {
	outcome model.ExitOutcome
}

func (e outcomeError) Error() string { return e.outcome.String() }

func (e outcomeError) Unwrap() error { return e.outcome.Err }

func resultFor(status model.JobStatus) string {
	switch status {
	case model.JobStatusSuccess:
		return metrics.ResultSuccess
	case model.JobStatusCancelled:
		return metrics.ResultCancelled
	default:
		return metrics.ResultError
	}
}
