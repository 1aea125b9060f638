package data

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgforge/imgforge-api/internal/domain/model"
	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

func TestJobRegistry_CreateAndGet(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	reg := NewJobRegistry(JobRegistryOptions{Clock: clock})

	job, err := reg.Create(model.JobKindBuild)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.Equal(t, model.JobKindBuild, job.Kind)
	assert.Equal(t, clock.Now(), job.CreatedAt)
	assert.Nil(t, job.FinishedAt)

	got, err := reg.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job, got)

	_, err = reg.Get("missing")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = reg.Create(model.JobKind("deploy"))
	assert.True(t, apperrors.IsValidation(err))
}

func TestJobRegistry_CreateRetriesOnCollision(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	var i int
	reg := NewJobRegistry(JobRegistryOptions{NewID: func() (string, error) {
		id := ids[i]
		i++
		return id, nil
	}})

	first, err := reg.Create(model.JobKindFlash)
	require.NoError(t, err)
	second, err := reg.Create(model.JobKindFlash)
	require.NoError(t, err)

	assert.Equal(t, "dup", first.ID)
	assert.Equal(t, "fresh", second.ID)
	assert.Equal(t, 2, reg.Len())
}

func TestJobRegistry_CreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	reg := NewJobRegistry(JobRegistryOptions{NewID: func() (string, error) { return "same", nil }})

	_, err := reg.Create(model.JobKindBuild)
	require.NoError(t, err)

	_, err = reg.Create(model.JobKindBuild)
	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
	assert.Equal(t, 1, reg.Len())
}

func TestJobRegistry_CreatePropagatesIDError(t *testing.T) {
	boom := errors.New("entropy exhausted")
	reg := NewJobRegistry(JobRegistryOptions{NewID: func() (string, error) { return "", boom }})

	_, err := reg.Create(model.JobKindBuild)
	require.ErrorIs(t, err, boom)
}

func TestJobRegistry_TransitionHappensOnce(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	var seen []model.Job
	reg := NewJobRegistry(JobRegistryOptions{
		Clock:        clock,
		OnTransition: func(job model.Job) { seen = append(seen, job) },
	})

	job, err := reg.Create(model.JobKindBuild)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	done, err := reg.Transition(job.ID, model.JobStatusFailed, "exit status 2")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, done.Status)
	assert.Equal(t, "exit status 2", done.Error)
	require.NotNil(t, done.FinishedAt)
	assert.Equal(t, 5*time.Minute, done.Duration())

	_, err = reg.Transition(job.ID, model.JobStatusSuccess, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	got, err := reg.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.Len(t, seen, 1)
	assert.Equal(t, done, seen[0])
}

func TestJobRegistry_TransitionRejectsNonTerminalTarget(t *testing.T) {
	reg := NewJobRegistry(JobRegistryOptions{})
	job, err := reg.Create(model.JobKindFlash)
	require.NoError(t, err)

	_, err = reg.Transition(job.ID, model.JobStatusRunning, "")
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = reg.Transition("nope", model.JobStatusSuccess, "")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestJobRegistry_SuccessDoesNotRecordDetail(t *testing.T) {
	reg := NewJobRegistry(JobRegistryOptions{})
	job, err := reg.Create(model.JobKindFlash)
	require.NoError(t, err)

	done, err := reg.Transition(job.ID, model.JobStatusSuccess, "ignored")
	require.NoError(t, err)
	assert.Empty(t, done.Error)
}

func TestJobRegistry_ListOrderAndFilter(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	reg := NewJobRegistry(JobRegistryOptions{Clock: clock})

	var ids []string
	for _, kind := range []model.JobKind{model.JobKindBuild, model.JobKindFlash, model.JobKindBuild} {
		job, err := reg.Create(kind)
		require.NoError(t, err)
		ids = append(ids, job.ID)
		clock.Advance(time.Second)
	}
	_, err := reg.Transition(ids[2], model.JobStatusCancelled, "")
	require.NoError(t, err)

	all := reg.List(model.JobFilter{})
	require.Len(t, all, 3)
	for i, job := range all {
		assert.Equal(t, ids[i], job.ID)
	}

	builds := reg.List(model.JobFilter{Kind: model.JobKindBuild})
	assert.Len(t, builds, 2)

	cancelled := reg.List(model.JobFilter{Status: model.JobStatusCancelled})
	require.Len(t, cancelled, 1)
	assert.Equal(t, ids[2], cancelled[0].ID)
}

func TestJobRegistry_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	reg := NewJobRegistry(JobRegistryOptions{})
	job, err := reg.Create(model.JobKindBuild)
	require.NoError(t, err)

	statuses := []model.JobStatus{model.JobStatusSuccess, model.JobStatusFailed, model.JobStatusCancelled}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Transition(job.ID, statuses[i%len(statuses)], "x"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
