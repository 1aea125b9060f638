// Package blockdev enumerates removable disks through lsblk.
package blockdev

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
)

// RemovableDisks selects whole disks flagged as hot-pluggable. lsblk reports
// the flag as a JSON boolean on recent versions and as "1" on older ones.
const RemovableDisks = "blockdevices[?type=='disk' && (hotplug==`true` || hotplug=='1')]"

// Exec runs lsblk and returns its standard output.
type Exec func(ctx context.Context, path string, args ...string) ([]byte, error)

// Options configures a Lister.
type Options struct {
	LsblkPath string // Optional: defaults to "lsblk"
	Filter    string // Optional: JMESPath expression, defaults to RemovableDisks
	Exec      Exec   // Optional: defaults to os/exec
	Logger    *slog.Logger
}

// Lister reports removable block devices.
type Lister struct {
	path   string
	filter jmespath.JMESPath
	exec   Exec
	logger *slog.Logger
}

var _ core.DeviceLister = (*Lister)(nil)

// NewLister compiles the device filter and returns a Lister.
func NewLister(opts Options) (*Lister, error) {
	expr := opts.Filter
	if expr == "" {
		expr = RemovableDisks
	}
	filter, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile device filter: %w", err)
	}

	path := opts.LsblkPath
	if path == "" {
		path = "lsblk"
	}
	run := opts.Exec
	if run == nil {
		run = execOutput
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Lister{
		path:   path,
		filter: filter,
		exec:   run,
		logger: logger.With("component", "blockdev"),
	}, nil
}

func execOutput(ctx context.Context, path string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, path, args...).Output()
}

// ListDevices runs lsblk and returns the devices matching the filter.
func (l *Lister) ListDevices(ctx context.Context) ([]model.Device, error) {
	out, err := l.exec(ctx, l.path, "--json", "-d", "-o", "NAME,SIZE,TYPE,HOTPLUG")
	if err != nil {
		return nil, fmt.Errorf("list block devices: %w", err)
	}
	return l.Parse(out)
}

// Parse applies the filter to lsblk JSON output.
func (l *Lister) Parse(raw []byte) ([]model.Device, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode lsblk output: %w", err)
	}

	result, err := l.filter.Search(doc)
	if err != nil {
		return nil, fmt.Errorf("filter block devices: %w", err)
	}

	entries, _ := result.([]any)
	devices := make([]model.Device, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := stringField(fields, "name")
		if name == "" {
			continue
		}
		devices = append(devices, model.Device{
			Name:      name,
			Path:      "/dev/" + name,
			Size:      stringField(fields, "size"),
			Removable: true,
		})
	}
	l.logger.Debug("block devices listed", "count", len(devices))
	return devices, nil
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
