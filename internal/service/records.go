package service

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"

	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

// ReadConfigRecord loads the rendered environment stored for a build job.
func (w Workspace) ReadConfigRecord(jobID string) (map[string]string, error) {
	if jobID == "" || filepath.Base(jobID) != jobID {
		return nil, apperrors.Validationf("invalid job id %q", jobID)
	}

	env, err := godotenv.Read(w.ConfigRecord(jobID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NotFoundf("no configuration recorded for job %s", jobID)
		}
		return nil, fmt.Errorf("read config record: %w", err)
	}
	return env, nil
}
