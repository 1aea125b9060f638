package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

// UploadHandlers stores multipart uploads, typically base images for flashing.
type UploadHandlers struct {
	Store    UploadSaver
	MaxBytes int64
	Logger   *slog.Logger
}

type uploadResponse struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Upload handles POST /api/upload. File parts are streamed to disk; when
// several are sent the last one is reported.
func (h *UploadHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		WriteAppError(w, apperrors.Internal("uploads are not configured"))
		return
	}
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		WriteAppError(w, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Failed to read field"))
		return
	}

	var saved string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			WriteAppError(w, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Failed to read field"))
			return
		}

		name := part.FileName()
		if name == "" {
			_ = part.Close()
			continue
		}

		path, err := h.Store.Save(name, part)
		_ = part.Close()
		if err != nil {
			if h.Logger != nil {
				h.Logger.ErrorContext(r.Context(), "store upload failed", "file", name, "error", err)
			}
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				WriteAppError(w, apperrors.Validationf("upload exceeds %d bytes", maxErr.Limit))
				return
			}
			WriteAppError(w, err)
			return
		}
		saved = path
	}

	if saved == "" {
		WriteAppError(w, apperrors.Validation("No file provided"))
		return
	}

	if h.Logger != nil {
		h.Logger.InfoContext(r.Context(), "file uploaded", "path", saved)
	}
	WriteJSON(w, http.StatusOK, uploadResponse{Path: saved, Message: "File uploaded successfully"})
}
