// Package netconf reads saved network profiles from NetworkManager keyfiles.
package netconf

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/imgforge/imgforge-api/internal/core"
)

// DefaultConnectionsDir is where NetworkManager stores keyfile profiles.
const DefaultConnectionsDir = "/etc/NetworkManager/system-connections"

// WifiLister lists the SSIDs of saved Wi-Fi profiles.
type WifiLister struct {
	dir string
}

var _ core.WifiLister = (*WifiLister)(nil)

// NewWifiLister reads profiles from dir.
func NewWifiLister(dir string) *WifiLister {
	if dir == "" {
		dir = DefaultConnectionsDir
	}
	return &WifiLister{dir: dir}
}

// ListNetworks returns "N: ssid" entries numbered from 1 in file order.
// A missing or unreadable directory yields an empty list.
func (w *WifiLister) ListNetworks(ctx context.Context) ([]string, error) {
	ssids, err := w.SSIDs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(ssids))
	for i, ssid := range ssids {
		out[i] = strconv.Itoa(i+1) + ": " + ssid
	}
	return out, nil
}

// SSIDs walks the profile directory and collects every ssid= value.
func (w *WifiLister) SSIDs(ctx context.Context) ([]string, error) {
	var ssids []string
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		found, readErr := readSSIDs(path)
		if readErr != nil {
			// Unreadable profiles are skipped, as grep -s would.
			return nil //nolint:nilerr // skip unreadable files
		}
		ssids = append(ssids, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read network profiles: %w", err)
	}
	return ssids, nil
}

func readSSIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, "ssid="); ok {
			out = append(out, v)
		}
	}
	return out, sc.Err()
}
