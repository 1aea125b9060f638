package core

import (
	"context"
	"iter"

	"github.com/imgforge/imgforge-api/internal/domain/model"
)

// These interfaces are the seams between the service layer and the adapters
// that own processes, files and external systems.

// JobRegistry is the in-memory directory of jobs created by this process.
type JobRegistry interface {
	Create(kind model.JobKind) (model.Job, error)
	Get(jobID string) (model.Job, error)
	List(filter model.JobFilter) []model.Job
	// Transition moves a running job to a terminal status exactly once.
	Transition(jobID string, status model.JobStatus, detail string) (model.Job, error)
}

// LogReader yields the lines of one job log in order.
type LogReader interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// LogSink stores the console output of jobs.
type LogSink interface {
	Append(jobID, line string) error
	Complete(jobID string)
	OpenReader(jobID string, follow bool) (LogReader, error)
	// Register records that jobID will produce a log, so readers can attach
	// before the first line is written.
	Register(jobID string)
	Path(jobID string) string
	Forget(jobID string)
}

// Process is a running external command.
type Process interface {
	Stdout() iter.Seq[string]
	Stderr() iter.Seq[string]
	Wait() model.ExitOutcome
	PID() int
}

// ProcessStarter launches external commands.
type ProcessStarter interface {
	Launch(ctx context.Context, cmd model.Command) (Process, error)
}

// EventPublisher mirrors job activity to an external bus.
type EventPublisher interface {
	PublishLine(ctx context.Context, jobID string, stream model.Stream, line string) error
	PublishTransition(ctx context.Context, job model.Job) error
}

// FailureNotifier is told about every job that ends in failure.
type FailureNotifier interface {
	NotifyJobFailure(ctx context.Context, job model.Job)
}

// DeviceLister enumerates removable block devices.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]model.Device, error)
}

// WifiLister enumerates saved Wi-Fi networks.
type WifiLister interface {
	ListNetworks(ctx context.Context) ([]string, error)
}
