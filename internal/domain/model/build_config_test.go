package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

func strPtr(s string) *string { return &s }

func presetPtr(p PresetImage) *PresetImage { return &p }

var testPaths = RenderPaths{
	ComposeFile: "/tmp/imgforge-j1-compose.yml",
	ScriptFile:  "/tmp/imgforge-j1-script.sh",
}

func TestRender_PresetImageArtifact(t *testing.T) {
	cfg := BuildConfiguration{
		Hostname:    "pi1",
		BoardType:   BoardRaspberryPi,
		Mode:        BuildModeArtifact,
		PresetImage: presetPtr(PresetRaspberryPiLite),
	}

	env := cfg.Render(testPaths)

	assert.Equal(t, "1", env["BOARD"])
	assert.Equal(t, "n", env["HAVE_IMG"])
	assert.Equal(t, "1", env["IMG_CHOICE"])
	assert.Equal(t, "y", env["SKIP_WIZARD"])
	assert.Equal(t, "pi1", env["HOSTNAME"])
	assert.Equal(t, "3", env["WIFI_CHOICE"])
	assert.Equal(t, "n", env["HAVE_COMPOSE"])
	assert.Equal(t, "n", env["HAVE_SCRIPT"])
	assert.NotContains(t, env, "BASE_IMG")
	assert.NotContains(t, env, "NEW_USERNAME")
	assert.Equal(t, "2", cfg.Mode.EnvValue())
}

func TestRender_IsDeterministic(t *testing.T) {
	cfg := BuildConfiguration{
		Hostname:        "edge-7",
		ChangeUsername:  true,
		NewUsername:     strPtr("ops"),
		SetRootPassword: true,
		RootPassword:    strPtr("s3cr3t \"pw\""),
		WifiSSID:        strPtr("lab"),
		WifiPassword:    strPtr("hunter2"),
		BoardType:       BoardJetson,
		Mode:            BuildModeFlash,
		InlineCommand:   strPtr("apt-get install -y htop"),
	}

	first, err := cfg.Render(testPaths).Marshal()
	require.NoError(t, err)
	second, err := cfg.Render(testPaths).Marshal()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	parsed, err := godotenv.Unmarshal(first)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t \"pw\"", parsed["ROOTPW"])
	assert.Equal(t, "apt-get install -y htop", parsed["INLINE_COMMAND"])
	assert.Equal(t, "2", parsed["BOARD"])
	assert.Equal(t, "1", parsed["WIFI_CHOICE"])
	assert.Equal(t, "lab", parsed["WIFI_SSID"])
	assert.Equal(t, "hunter2", parsed["WIFI_PASS"])
	assert.Equal(t, "2", parsed["SCRIPT_TYPE"])
}

func TestRender_ExclusiveBranches(t *testing.T) {
	tests := []struct {
		name  string
		cfg   BuildConfiguration
		check func(t *testing.T, env Environment)
	}{
		{
			name: "preset wins over base url",
			cfg: BuildConfiguration{
				PresetImage:  presetPtr(PresetRadxaServer),
				BaseImageURL: strPtr("https://example.test/base.img.xz"),
			},
			check: func(t *testing.T, env Environment) {
				assert.Equal(t, "n", env["HAVE_IMG"])
				assert.Equal(t, "3", env["IMG_CHOICE"])
				assert.NotContains(t, env, "BASE_IMG")
			},
		},
		{
			name: "base url when no preset",
			cfg:  BuildConfiguration{BaseImageURL: strPtr("https://example.test/base.img.xz")},
			check: func(t *testing.T, env Environment) {
				assert.Equal(t, "y", env["HAVE_IMG"])
				assert.Equal(t, "https://example.test/base.img.xz", env["BASE_IMG"])
				assert.NotContains(t, env, "IMG_CHOICE")
			},
		},
		{
			name: "blank base url records none",
			cfg:  BuildConfiguration{BaseImageURL: strPtr("  ")},
			check: func(t *testing.T, env Environment) {
				assert.Equal(t, HaveImageNone, env["HAVE_IMG"])
			},
		},
		{
			name: "script file wins over inline command",
			cfg: BuildConfiguration{
				CustomScriptContent: strPtr("#!/bin/sh\necho hi\n"),
				InlineCommand:       strPtr("echo inline"),
			},
			check: func(t *testing.T, env Environment) {
				assert.Equal(t, "y", env["HAVE_SCRIPT"])
				assert.Equal(t, "1", env["SCRIPT_TYPE"])
				assert.Equal(t, testPaths.ScriptFile, env["CUSTOM_SCRIPT"])
				assert.NotContains(t, env, "INLINE_COMMAND")
			},
		},
		{
			name: "wifi needs both ssid and password",
			cfg:  BuildConfiguration{WifiSSID: strPtr("lab")},
			check: func(t *testing.T, env Environment) {
				assert.Equal(t, "3", env["WIFI_CHOICE"])
				assert.NotContains(t, env, "WIFI_SSID")
			},
		},
		{
			name: "compose content references compose path",
			cfg:  BuildConfiguration{DockerComposeContent: strPtr("services: {}\n")},
			check: func(t *testing.T, env Environment) {
				assert.Equal(t, "y", env["HAVE_COMPOSE"])
				assert.Equal(t, testPaths.ComposeFile, env["COMPOSE_FILE"])
			},
		},
		{
			name: "expand with extra size",
			cfg:  BuildConfiguration{ExpandImage: true, ExtraSize: strPtr("2G")},
			check: func(t *testing.T, env Environment) {
				assert.Equal(t, "y", env["EXPAND_IMG"])
				assert.Equal(t, "2G", env["EXTRA_SIZE"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Hostname = "host"
			tt.cfg.BoardType = BoardRaspberryPi
			tt.cfg.Mode = BuildModeArtifact
			tt.check(t, tt.cfg.Render(testPaths))
		})
	}
}

func TestBuildConfiguration_Validate(t *testing.T) {
	valid := func() BuildConfiguration {
		return BuildConfiguration{Hostname: "pi1", BoardType: BoardRaspberryPi, Mode: BuildModeArtifact}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(c *BuildConfiguration)
		field  string
	}{
		{"missing hostname", func(c *BuildConfiguration) { c.Hostname = " " }, "hostname"},
		{"path in hostname", func(c *BuildConfiguration) { c.Hostname = "../etc" }, "hostname"},
		{"missing board", func(c *BuildConfiguration) { c.BoardType = "" }, "board_type"},
		{"missing mode", func(c *BuildConfiguration) { c.Mode = "" }, "mode"},
		{"bad compose", func(c *BuildConfiguration) { c.DockerComposeContent = strPtr("services: [unclosed") }, "docker_compose_content"},
		{"scalar compose", func(c *BuildConfiguration) { c.DockerComposeContent = strPtr("just text") }, "docker_compose_content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.field, apperrors.GetField(err))
		})
	}
}

func TestBuildConfiguration_DecodeJSON(t *testing.T) {
	body := `{
		"hostname": "pi1",
		"change_username": false,
		"set_root_password": false,
		"enable_ssh": true,
		"board_type": "raspberrypi",
		"mode": "artifact",
		"expand_image": false,
		"preset_image": "RadxaDesktop"
	}`

	var cfg BuildConfiguration
	require.NoError(t, json.NewDecoder(strings.NewReader(body)).Decode(&cfg))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, PresetRadxaDesktop, *cfg.PresetImage)
	assert.Equal(t, "2", cfg.Render(RenderPaths{})["IMG_CHOICE"])

	var bad BuildConfiguration
	err := json.Unmarshal([]byte(`{"hostname":"x","board_type":"arduino","mode":"flash"}`), &bad)
	require.Error(t, err)
}

func TestFlashRequest_Validate(t *testing.T) {
	req := FlashRequest{ImagePath: " /tmp/x.img ", Device: "/dev/sdz"}
	require.NoError(t, req.Validate())
	assert.Equal(t, "/tmp/x.img", req.ImagePath)

	missing := FlashRequest{ImagePath: "/tmp/x.img"}
	err := missing.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "device", apperrors.GetField(err))
}

func TestEnvironment_PairsAndWith(t *testing.T) {
	env := Environment{"B": "2", "A": "1"}
	merged := env.With(Environment{"MODE": "2", "A": "x"})

	assert.Equal(t, []string{"A=1", "B=2"}, env.Pairs())
	assert.Equal(t, []string{"A=x", "B=2", "MODE=2"}, merged.Pairs())
}
