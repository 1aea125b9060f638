package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ServiceMode names a long-running component the binary can host.
type ServiceMode string

const (
	ServiceModeHTTP   ServiceMode = "http"   // REST and log stream API
	ServiceModeReaper ServiceMode = "reaper" // scratch file cleanup loop
)

var serviceModes = []ServiceMode{ServiceModeHTTP, ServiceModeReaper}

// ValidServiceModes lists every mode SERVICES accepts, in start order.
func ValidServiceModes() []ServiceMode {
	return slices.Clone(serviceModes)
}

// ServiceSet is the set of modes enabled for this process.
type ServiceSet map[ServiceMode]bool

// Has reports whether mode is enabled.
func (s ServiceSet) Has(mode ServiceMode) bool { return s[mode] }

// ParseServices reads a comma separated SERVICES value. Blank entries are
// ignored; an unknown name or an empty result is an error.
func ParseServices(raw string) (ServiceSet, error) {
	if strings.TrimSpace(raw) == "" {
		return ServiceSet{}, errors.New("at least one service must be specified")
	}

	set := ServiceSet{}
	for name := range strings.SplitSeq(raw, ",") {
		mode := ServiceMode(strings.TrimSpace(name))
		if mode == "" {
			continue
		}
		if !slices.Contains(serviceModes, mode) {
			return nil, fmt.Errorf("invalid service name: %q (valid options: %s)", mode, joinModes(serviceModes))
		}
		set[mode] = true
	}

	if len(set) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	return set, nil
}

func joinModes(modes []ServiceMode) string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// ReaperConfig tunes the scratch reaper.
type ReaperConfig struct {
	Interval      time.Duration `env:"REAPER_INTERVAL"        envDefault:"10m"`
	ScratchMaxAge time.Duration `env:"REAPER_SCRATCH_MAX_AGE" envDefault:"168h"`
}

// Sanitize clamps the interval to at least a minute and the max age to at
// least an hour.
func (r *ReaperConfig) Sanitize() {
	r.Interval = max(r.Interval, time.Minute)
	r.ScratchMaxAge = max(r.ScratchMaxAge, time.Hour)
}
