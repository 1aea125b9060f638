package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/imgforge/imgforge-api/internal/domain/model"
)

var imageSuffixes = []string{".img", ".img.xz"}

// ImageStore lists the build artifacts kept in one directory.
type ImageStore struct {
	Dir string
}

// List returns the stored images, newest first. A missing directory is an
// empty store.
func (s ImageStore) List(ctx context.Context) (model.ImageListing, error) {
	listing := model.ImageListing{Images: []model.Image{}, StoragePath: s.Dir}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return listing, nil
		}
		return listing, fmt.Errorf("read image store: %w", err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return listing, err
		}
		if !e.Type().IsRegular() || !isImageName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		listing.Images = append(listing.Images, model.Image{
			Name:     e.Name(),
			Path:     filepath.Join(s.Dir, e.Name()),
			SizeMB:   info.Size() / (1024 * 1024),
			Modified: info.ModTime().Unix(),
		})
	}

	sort.SliceStable(listing.Images, func(i, j int) bool {
		a, b := listing.Images[i], listing.Images[j]
		if a.Modified != b.Modified {
			return a.Modified > b.Modified
		}
		return a.Name < b.Name
	})
	return listing, nil
}

func isImageName(name string) bool {
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
