package config

import (
	"strings"
	"time"
)

// JobsConfig controls how build and flash jobs are executed.
type JobsConfig struct {
	// BuildScript is the external build executable.
	BuildScript string `env:"BUILD_SCRIPT" envDefault:"/workdir/imgforge.sh"`

	// BuildArtifact is the file name, relative to the workdir, produced by artifact builds.
	BuildArtifact string `env:"BUILD_ARTIFACT" envDefault:"custom.img"`

	// DDPath is the byte-copy utility used for flashing.
	DDPath string `env:"DD_PATH" envDefault:"dd"`

	// FlashBlockSize is passed to dd as bs=.
	FlashBlockSize string `env:"FLASH_BLOCK_SIZE" envDefault:"4M"`

	// MaxConcurrent bounds how many job processes run at the same time.
	MaxConcurrent int `env:"MAX_CONCURRENT" envDefault:"2"`

	// BuildTimeout bounds a single build run. Zero disables the bound.
	BuildTimeout time.Duration `env:"BUILD_TIMEOUT" envDefault:"4h"`

	// FlashTimeout bounds a single flash run. Zero disables the bound.
	FlashTimeout time.Duration `env:"FLASH_TIMEOUT" envDefault:"2h"`

	// KillGrace is the delay between SIGTERM and SIGKILL when a job is stopped.
	KillGrace time.Duration `env:"KILL_GRACE" envDefault:"10s"`

	// OutputGrace is how long job output is still read after the process exits.
	// Background processes left holding stdout or stderr are cut off after it.
	OutputGrace time.Duration `env:"OUTPUT_GRACE" envDefault:"2s"`

	// MaxLineBytes bounds one log line. Longer output lines are split.
	MaxLineBytes int `env:"MAX_LINE_BYTES" envDefault:"1048576"`

	// ShutdownTimeout bounds how long shutdown waits for cancelled jobs to finalize.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to job execution values.
func (j *JobsConfig) Sanitize() {
	j.BuildScript = strings.TrimSpace(j.BuildScript)
	if j.BuildScript == "" {
		j.BuildScript = "/workdir/imgforge.sh"
	}
	j.BuildArtifact = strings.TrimSpace(j.BuildArtifact)
	if j.BuildArtifact == "" {
		j.BuildArtifact = "custom.img"
	}
	if j.DDPath = strings.TrimSpace(j.DDPath); j.DDPath == "" {
		j.DDPath = "dd"
	}
	if j.FlashBlockSize = strings.TrimSpace(j.FlashBlockSize); j.FlashBlockSize == "" {
		j.FlashBlockSize = "4M"
	}
	if j.MaxConcurrent < 1 {
		j.MaxConcurrent = 1
	}
	if j.BuildTimeout < 0 {
		j.BuildTimeout = 0
	}
	if j.FlashTimeout < 0 {
		j.FlashTimeout = 0
	}
	if j.KillGrace <= 0 {
		j.KillGrace = 10 * time.Second
	}
	if j.OutputGrace <= 0 {
		j.OutputGrace = 2 * time.Second
	}
	if j.MaxLineBytes < 1024 {
		j.MaxLineBytes = 1 << 20
	}
	if j.ShutdownTimeout <= 0 {
		j.ShutdownTimeout = 15 * time.Second
	}
}
