package httpx

import (
	"context"
	"sync"

	"github.com/imgforge/imgforge-api/internal/domain/model"
	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

var errNoRecord = apperrors.NotFound("config record not found")

// fakeJobService records submissions and answers with canned results.
type fakeJobService struct {
	mu      sync.Mutex
	builds  []model.BuildConfiguration
	flashes []model.FlashRequest
	cancels []string

	job model.Job
	err error
}

var _ JobService = (*fakeJobService)(nil)

func (f *fakeJobService) SubmitBuild(_ context.Context, cfg model.BuildConfiguration) (model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, cfg)
	return f.job, f.err
}

func (f *fakeJobService) SubmitFlash(_ context.Context, req model.FlashRequest) (model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flashes = append(f.flashes, req)
	return f.job, f.err
}

func (f *fakeJobService) Cancel(_ context.Context, jobID string) (model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, jobID)
	return f.job, f.err
}

type fakeRecords map[string]map[string]string

func (f fakeRecords) ReadConfigRecord(jobID string) (map[string]string, error) {
	rec, ok := f[jobID]
	if !ok {
		return nil, errNoRecord
	}
	return rec, nil
}

type fakeImages struct {
	listing model.ImageListing
	err     error
}

func (f fakeImages) List(context.Context) (model.ImageListing, error) {
	return f.listing, f.err
}
