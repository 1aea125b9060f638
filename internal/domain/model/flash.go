package model

import (
	"strings"

	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

// FlashRequest asks for an image to be written onto a block device.
type FlashRequest struct {
	ImagePath string `json:"image_path"`
	Device    string `json:"device"`
}

// Validate ensures both paths are present before a job exists for the request.
func (r *FlashRequest) Validate() error {
	r.ImagePath = strings.TrimSpace(r.ImagePath)
	r.Device = strings.TrimSpace(r.Device)
	if r.ImagePath == "" {
		return fieldError("image_path", "Missing image_path")
	}
	if r.Device == "" {
		return fieldError("device", "Missing device")
	}
	return nil
}

func fieldError(field, msg string) error {
	return apperrors.ValidationField(field, msg)
}
