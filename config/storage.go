package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultHomeDirName = ".imgforge"

// StorageConfig describes where imgforge keeps persistent and transient files.
type StorageConfig struct {
	// Home holds the persistent images/ and configs/ directories.
	// Defaults to $HOME/.imgforge when unset.
	Home string `env:"IMGFORGE_HOME"`

	// ScratchDir holds per-job transient files (env, log, compose, script).
	ScratchDir string `env:"SCRATCH_DIR" envDefault:"/tmp"`

	// UploadDir receives files posted to the upload endpoint.
	UploadDir string `env:"UPLOAD_DIR" envDefault:"/tmp/imgforge-uploads"`

	// Workdir is the build script's working directory; it also hosts last-run.env.
	Workdir string `env:"WORKDIR" envDefault:"/workdir"`

	// NetworkConnectionsDir is scanned for configured Wi-Fi networks.
	NetworkConnectionsDir string `env:"NETWORK_CONNECTIONS_DIR" envDefault:"/etc/NetworkManager/system-connections"`
}

// Sanitize resolves defaults that depend on the runtime environment.
func (s *StorageConfig) Sanitize() {
	s.Home = strings.TrimSpace(s.Home)
	if s.Home == "" {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			s.Home = filepath.Join(home, defaultHomeDirName)
		} else {
			s.Home = filepath.Join(os.TempDir(), defaultHomeDirName)
		}
	}
	s.Home = filepath.Clean(s.Home)

	if s.ScratchDir = strings.TrimSpace(s.ScratchDir); s.ScratchDir == "" {
		s.ScratchDir = os.TempDir()
	}
	if s.UploadDir = strings.TrimSpace(s.UploadDir); s.UploadDir == "" {
		s.UploadDir = filepath.Join(os.TempDir(), "imgforge-uploads")
	}
	if s.Workdir = strings.TrimSpace(s.Workdir); s.Workdir == "" {
		s.Workdir = "/workdir"
	}
}

// ImagesDir is the persistent image storage directory.
func (s *StorageConfig) ImagesDir() string {
	return filepath.Join(s.Home, "images")
}

// ConfigsDir holds one rendered environment record per build job.
func (s *StorageConfig) ConfigsDir() string {
	return filepath.Join(s.Home, "configs")
}
