package testutil

import "github.com/imgforge/imgforge-api/internal/domain/model"

// BuildConfigBuilder provides a fluent interface for building BuildConfiguration values in tests.
type BuildConfigBuilder struct {
	cfg model.BuildConfiguration
}

// NewBuildConfig starts from a minimal valid artifact build.
func NewBuildConfig() *BuildConfigBuilder {
	return &BuildConfigBuilder{
		cfg: model.BuildConfiguration{
			Hostname:  "pi1",
			BoardType: model.BoardRaspberryPi,
			Mode:      model.BuildModeArtifact,
			EnableSSH: true,
		},
	}
}

// WithHostname sets the hostname.
func (b *BuildConfigBuilder) WithHostname(hostname string) *BuildConfigBuilder {
	b.cfg.Hostname = hostname
	return b
}

// WithMode sets the build mode.
func (b *BuildConfigBuilder) WithMode(mode model.BuildMode) *BuildConfigBuilder {
	b.cfg.Mode = mode
	return b
}

// WithBoard sets the board type.
func (b *BuildConfigBuilder) WithBoard(board model.BoardType) *BuildConfigBuilder {
	b.cfg.BoardType = board
	return b
}

// WithPreset selects a preset base image.
func (b *BuildConfigBuilder) WithPreset(p model.PresetImage) *BuildConfigBuilder {
	b.cfg.PresetImage = &p
	return b
}

// WithWifi sets both Wi-Fi credentials.
func (b *BuildConfigBuilder) WithWifi(ssid, password string) *BuildConfigBuilder {
	b.cfg.WifiSSID = ptr(ssid)
	b.cfg.WifiPassword = ptr(password)
	return b
}

// WithCompose sets the docker compose content.
func (b *BuildConfigBuilder) WithCompose(content string) *BuildConfigBuilder {
	b.cfg.DockerComposeContent = ptr(content)
	return b
}

// WithScript sets the custom script content.
func (b *BuildConfigBuilder) WithScript(content string) *BuildConfigBuilder {
	b.cfg.CustomScriptContent = ptr(content)
	return b
}

// WithInlineCommand sets the inline command.
func (b *BuildConfigBuilder) WithInlineCommand(cmd string) *BuildConfigBuilder {
	b.cfg.InlineCommand = ptr(cmd)
	return b
}

// Build returns the configured value.
func (b *BuildConfigBuilder) Build() model.BuildConfiguration {
	return b.cfg
}

func ptr[T any](v T) *T { return &v }
