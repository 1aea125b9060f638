package data

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

const maxIDAttempts = 8

// TransitionHook observes every terminal transition after it is committed.
type TransitionHook func(job model.Job)

// JobRegistryOptions configures a JobRegistry.
type JobRegistryOptions struct {
	Clock Clock
	// NewID overrides id generation; tests use it to force collisions.
	NewID        func() (string, error)
	OnTransition TransitionHook
}

// JobRegistry keeps every job created during the process lifetime in memory.
// Entries are never removed.
type JobRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	order []string

	clock        Clock
	newID        func() (string, error)
	onTransition TransitionHook
}

var _ core.JobRegistry = (*JobRegistry)(nil)

// NewJobRegistry constructs an empty registry.
func NewJobRegistry(opts JobRegistryOptions) *JobRegistry {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	newID := opts.NewID
	if newID == nil {
		newID = randomID
	}
	return &JobRegistry{
		jobs:         make(map[string]*model.Job),
		clock:        clock,
		newID:        newID,
		onTransition: opts.OnTransition,
	}
}

func randomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Create stores a new running job of the given kind.
func (r *JobRegistry) Create(kind model.JobKind) (model.Job, error) {
	if !kind.Valid() {
		return model.Job{}, apperrors.Validationf("unknown job kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for range maxIDAttempts {
		id, err := r.newID()
		if err != nil {
			return model.Job{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "generate job id")
		}
		if _, exists := r.jobs[id]; exists {
			continue
		}

		job := &model.Job{
			ID:        id,
			Kind:      kind,
			Status:    model.JobStatusRunning,
			CreatedAt: r.clock.Now(),
		}
		r.jobs[id] = job
		r.order = append(r.order, id)
		return *job, nil
	}
	return model.Job{}, apperrors.Internalf("could not allocate a unique job id after %d attempts", maxIDAttempts)
}

// Get returns a snapshot of the job.
func (r *JobRegistry) Get(jobID string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return model.Job{}, apperrors.NotFoundf("job %s not found", jobID)
	}
	return *job, nil
}

// List returns the jobs matching filter ordered by creation time, then id.
func (r *JobRegistry) List(filter model.JobFilter) []model.Job {
	r.mu.RLock()
	out := make([]model.Job, 0, len(r.order))
	for _, id := range r.order {
		if job := r.jobs[id]; filter.Matches(*job) {
			out = append(out, *job)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Transition moves a running job into a terminal status. detail is recorded
// as the job error when status is failed.
func (r *JobRegistry) Transition(jobID string, status model.JobStatus, detail string) (model.Job, error) {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return model.Job{}, apperrors.NotFoundf("job %s not found", jobID)
	}
	if !model.CanTransition(job.Status, status) {
		from := job.Status
		r.mu.Unlock()
		return model.Job{}, &apperrors.AppError{
			Code:    apperrors.ErrCodeConflict,
			Message: fmt.Sprintf("job %s cannot move from %s to %s", jobID, from, status),
			Cause:   model.ErrInvalidTransition,
		}
	}

	now := r.clock.Now()
	job.Status = status
	job.FinishedAt = &now
	if status == model.JobStatusFailed {
		job.Error = detail
	}
	snapshot := *job
	r.mu.Unlock()

	if r.onTransition != nil {
		r.onTransition(snapshot)
	}
	return snapshot, nil
}

// Len reports how many jobs have been created.
func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
