package httpx

import (
	"net/http"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

// JobHandlers provides HTTP handlers for job submission and inspection.
type JobHandlers struct {
	Svc      JobService
	Registry core.JobRegistry
	Records  ConfigRecordReader
	// MaxBodyBytes caps build and flash request bodies; zero disables the cap.
	MaxBodyBytes int64
}

// Build handles POST /api/build.
func (h *JobHandlers) Build(w http.ResponseWriter, r *http.Request) {
	var cfg model.BuildConfiguration
	if !DecodeJSON(w, r, &cfg, h.MaxBodyBytes) {
		return
	}

	job, err := h.Svc.SubmitBuild(r.Context(), cfg)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Flash handles POST /api/flash.
func (h *JobHandlers) Flash(w http.ResponseWriter, r *http.Request) {
	var req model.FlashRequest
	if !DecodeJSON(w, r, &req, h.MaxBodyBytes) {
		return
	}

	job, err := h.Svc.SubmitFlash(r.Context(), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/jobs with optional status and kind filters.
func (h *JobHandlers) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseJobFilter(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.Registry.List(filter))
}

func parseJobFilter(r *http.Request) (model.JobFilter, error) {
	var filter model.JobFilter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		if err := filter.Status.UnmarshalText([]byte(v)); err != nil {
			return filter, apperrors.ValidationField("status", err.Error())
		}
	}
	if v := q.Get("kind"); v != "" {
		if err := filter.Kind.UnmarshalText([]byte(v)); err != nil {
			return filter, apperrors.ValidationField("kind", err.Error())
		}
	}
	return filter, nil
}

// Get handles GET /api/jobs/{id}.
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.Registry.Get(r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Cancel handles POST /api/jobs/{id}/cancel.
func (h *JobHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Config handles GET /api/jobs/{id}/config and returns the environment
// recorded when the build was prepared.
func (h *JobHandlers) Config(w http.ResponseWriter, r *http.Request) {
	job, err := h.Registry.Get(r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if job.Kind != model.JobKindBuild || h.Records == nil {
		WriteAppError(w, apperrors.NotFoundf("job %s has no build configuration", job.ID))
		return
	}

	record, err := h.Records.ReadConfigRecord(job.ID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}
