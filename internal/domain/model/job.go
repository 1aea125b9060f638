// Package model defines the core data types shared by the imgforge job engine.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobKind identifies what a job does.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobKind string

// JobStatus represents the current status of a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobKindBuild runs the external image build script.
	JobKindBuild JobKind = "build"
	// JobKindFlash copies an image onto a block device.
	JobKindFlash JobKind = "flash"

	// JobStatusRunning is the initial status of every job.
	JobStatusRunning JobStatus = "running"
	// JobStatusSuccess indicates the process exited cleanly and post-processing succeeded.
	JobStatusSuccess JobStatus = "success"
	// JobStatusFailed indicates any step of the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was stopped on request.
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrInvalidTransition is returned when a status change would leave a terminal state
// or would not reach one.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Valid returns true if the JobKind is known.
func (k JobKind) Valid() bool {
	return k == JobKindBuild || k == JobKindFlash
}

// UnmarshalText implements encoding.TextUnmarshaler for JobKind.
func (k *JobKind) UnmarshalText(text []byte) error {
	v := JobKind(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobKind: %q", string(text))
	}
	*k = v
	return nil
}

// Valid returns true if the JobStatus is known.
func (s JobStatus) Valid() bool {
	return s == JobStatusRunning || s.IsTerminal()
}

// IsTerminal reports whether no further transition is permitted from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed || s == JobStatusCancelled
}

// UnmarshalText implements encoding.TextUnmarshaler for JobStatus.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", string(text))
	}
	*s = v
	return nil
}

// CanTransition reports whether a job in status from may move to status to.
// Only running jobs move, and only into a terminal status.
func CanTransition(from, to JobStatus) bool {
	return from == JobStatusRunning && to.IsTerminal()
}

// Job is the externally visible record of a build or flash run.
type Job struct {
	ID         string     `json:"id"`
	Kind       JobKind    `json:"kind"`
	Status     JobStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Duration returns how long the job ran, or zero while it is still running.
func (j Job) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(j.CreatedAt)
}

// JobFilter narrows a job listing. Zero values match everything.
type JobFilter struct {
	Status JobStatus
	Kind   JobKind
}

// Matches reports whether job satisfies the filter.
func (f JobFilter) Matches(job Job) bool {
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.Kind != "" && job.Kind != f.Kind {
		return false
	}
	return true
}
