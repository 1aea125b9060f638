package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BoardType is the target hardware family.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type BoardType string

// BuildMode selects whether the build flashes directly or produces an artifact.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type BuildMode string

// PresetImage names a base image the build script knows how to fetch.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type PresetImage string

const (
	BoardRaspberryPi BoardType = "raspberrypi"
	BoardJetson      BoardType = "jetson"

	BuildModeFlash    BuildMode = "flash"
	BuildModeArtifact BuildMode = "artifact"

	PresetRaspberryPiLite PresetImage = "RaspberryPiLite"
	PresetRadxaDesktop    PresetImage = "RadxaDesktop"
	PresetRadxaServer     PresetImage = "RadxaServer"
)

// Valid returns true if the BoardType is known.
func (b BoardType) Valid() bool {
	return b == BoardRaspberryPi || b == BoardJetson
}

// UnmarshalText implements encoding.TextUnmarshaler for BoardType.
func (b *BoardType) UnmarshalText(text []byte) error {
	v := BoardType(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid board_type: %q", string(text))
	}
	*b = v
	return nil
}

func (b BoardType) envValue() string {
	if b == BoardJetson {
		return "2"
	}
	return "1"
}

// Valid returns true if the BuildMode is known.
func (m BuildMode) Valid() bool {
	return m == BuildModeFlash || m == BuildModeArtifact
}

// UnmarshalText implements encoding.TextUnmarshaler for BuildMode.
func (m *BuildMode) UnmarshalText(text []byte) error {
	v := BuildMode(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid mode: %q", string(text))
	}
	*m = v
	return nil
}

// EnvValue is the MODE value handed to the build script.
func (m BuildMode) EnvValue() string {
	if m == BuildModeFlash {
		return "1"
	}
	return "2"
}

// Valid returns true if the PresetImage is known.
func (p PresetImage) Valid() bool {
	return p == PresetRaspberryPiLite || p == PresetRadxaDesktop || p == PresetRadxaServer
}

// UnmarshalText implements encoding.TextUnmarshaler for PresetImage.
func (p *PresetImage) UnmarshalText(text []byte) error {
	v := PresetImage(strings.TrimSpace(string(text)))
	if !v.Valid() {
		return fmt.Errorf("invalid preset_image: %q", string(text))
	}
	*p = v
	return nil
}

func (p PresetImage) envValue() string {
	switch p {
	case PresetRadxaDesktop:
		return "2"
	case PresetRadxaServer:
		return "3"
	default:
		return "1"
	}
}

// BuildConfiguration is the client-supplied description of an image build.
type BuildConfiguration struct {
	Hostname             string       `json:"hostname"`
	ChangeUsername       bool         `json:"change_username"`
	NewUsername          *string      `json:"new_username,omitempty"`
	SetRootPassword      bool         `json:"set_root_password"`
	RootPassword         *string      `json:"root_password,omitempty"`
	EnableSSH            bool         `json:"enable_ssh"`
	WifiSSID             *string      `json:"wifi_ssid,omitempty"`
	WifiPassword         *string      `json:"wifi_password,omitempty"`
	BoardType            BoardType    `json:"board_type"`
	Mode                 BuildMode    `json:"mode"`
	ExpandImage          bool         `json:"expand_image"`
	ExtraSize            *string      `json:"extra_size,omitempty"`
	BaseImageURL         *string      `json:"base_image_url,omitempty"`
	PresetImage          *PresetImage `json:"preset_image,omitempty"`
	DockerComposeContent *string      `json:"docker_compose_content,omitempty"`
	CustomScriptContent  *string      `json:"custom_script_content,omitempty"`
	InlineCommand        *string      `json:"inline_command,omitempty"`
}

var hostnameLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// Validate checks the configuration before a job is created for it.
func (c *BuildConfiguration) Validate() error {
	host := strings.TrimSpace(c.Hostname)
	if host == "" {
		return fieldError("hostname", "hostname is required")
	}
	if !hostnameLabel.MatchString(host) {
		return fieldError("hostname", "hostname must be a single DNS label (letters, digits, hyphens)")
	}
	if !c.BoardType.Valid() {
		return fieldError("board_type", "board_type must be raspberrypi or jetson")
	}
	if !c.Mode.Valid() {
		return fieldError("mode", "mode must be flash or artifact")
	}
	if c.PresetImage != nil && !c.PresetImage.Valid() {
		return fieldError("preset_image", "unknown preset_image")
	}
	if compose, ok := present(c.DockerComposeContent); ok {
		var doc map[string]any
		if err := yaml.Unmarshal([]byte(compose), &doc); err != nil {
			return fieldError("docker_compose_content", "docker_compose_content is not valid YAML: "+err.Error())
		}
	}
	return nil
}

// HasCompose reports whether a compose definition should be materialized.
func (c *BuildConfiguration) HasCompose() bool {
	_, ok := present(c.DockerComposeContent)
	return ok
}

// HasScriptFile reports whether a script body should be materialized.
func (c *BuildConfiguration) HasScriptFile() bool {
	_, ok := present(c.CustomScriptContent)
	return ok
}

// RenderPaths carries the job-specific locations referenced from a rendered environment.
type RenderPaths struct {
	ComposeFile string
	ScriptFile  string
}

// HaveImageNone is recorded when neither a preset nor a base image URL was chosen.
const HaveImageNone = "none"

// Render derives the build script environment from the configuration.
// It is a pure function of its inputs.
func (c *BuildConfiguration) Render(paths RenderPaths) Environment {
	env := Environment{
		"HOSTNAME":        strings.TrimSpace(c.Hostname),
		"CHANGE_USERNAME": yesNo(c.ChangeUsername),
		"SET_ROOTPW":      yesNo(c.SetRootPassword),
		"ENABLE_SSH":      yesNo(c.EnableSSH),
		"BOARD":           c.BoardType.envValue(),
		"EXPAND_IMG":      yesNo(c.ExpandImage),
		"SKIP_WIZARD":     "y",
	}

	env.setIfPresent("NEW_USERNAME", c.NewUsername)
	env.setIfPresent("ROOTPW", c.RootPassword)
	env.setIfPresent("EXTRA_SIZE", c.ExtraSize)

	ssid, hasSSID := present(c.WifiSSID)
	pass, hasPass := present(c.WifiPassword)
	if hasSSID && hasPass {
		env["WIFI_CHOICE"] = "1"
		env["WIFI_SSID"] = ssid
		env["WIFI_PASS"] = pass
	} else {
		env["WIFI_CHOICE"] = "3"
	}

	baseURL, hasURL := present(c.BaseImageURL)
	switch {
	case c.PresetImage != nil && c.PresetImage.Valid():
		env["HAVE_IMG"] = "n"
		env["IMG_CHOICE"] = c.PresetImage.envValue()
	case hasURL:
		env["HAVE_IMG"] = "y"
		env["BASE_IMG"] = baseURL
	default:
		env["HAVE_IMG"] = HaveImageNone
	}

	if c.HasCompose() {
		env["HAVE_COMPOSE"] = "y"
		env["COMPOSE_FILE"] = paths.ComposeFile
	} else {
		env["HAVE_COMPOSE"] = "n"
	}

	inline, hasInline := present(c.InlineCommand)
	switch {
	case c.HasScriptFile():
		env["HAVE_SCRIPT"] = "y"
		env["SCRIPT_TYPE"] = "1"
		env["CUSTOM_SCRIPT"] = paths.ScriptFile
	case hasInline:
		env["HAVE_SCRIPT"] = "y"
		env["SCRIPT_TYPE"] = "2"
		env["INLINE_COMMAND"] = inline
	default:
		env["HAVE_SCRIPT"] = "n"
	}

	return env
}

// Environment is a flat key/value set consumed by an external process.
type Environment map[string]string

// Marshal renders the environment as a dotenv document with sorted keys.
func (e Environment) Marshal() (string, error) {
	out, err := godotenv.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal environment: %w", err)
	}
	return out + "\n", nil
}

// Pairs returns KEY=value entries in key order, suitable for exec.Cmd.Env.
func (e Environment) Pairs() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+e[k])
	}
	return pairs
}

// With returns a copy of e with extra merged over it.
func (e Environment) With(extra Environment) Environment {
	out := make(Environment, len(e)+len(extra))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (e Environment) setIfPresent(key string, value *string) {
	if v, ok := present(value); ok {
		e[key] = v
	}
}

func present(s *string) (string, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "", false
	}
	return *s, true
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
