package service

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const scratchPrefix = "imgforge-"

// Workspace names every file a job reads or writes.
type Workspace struct {
	ScratchDir string // per-job transient files
	ConfigsDir string // one rendered environment record per build
	ImagesDir  string // stored build artifacts
	Workdir    string // build script working directory
}

// Ensure creates the directories the workspace writes into.
func (w Workspace) Ensure() error {
	for _, dir := range []string{w.ScratchDir, w.ConfigsDir, w.ImagesDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// EnvFile is the per-job copy of the rendered environment.
func (w Workspace) EnvFile(jobID string) string {
	return filepath.Join(w.ScratchDir, scratchPrefix+jobID+".env")
}

// ComposeFile is where the compose definition of a build is materialized.
func (w Workspace) ComposeFile(jobID string) string {
	return filepath.Join(w.ScratchDir, scratchPrefix+jobID+"-compose.yml")
}

// ScriptFile is where the custom script of a build is materialized.
func (w Workspace) ScriptFile(jobID string) string {
	return filepath.Join(w.ScratchDir, scratchPrefix+jobID+"-script.sh")
}

// ConfigRecord is the persistent rendered environment of a build.
func (w Workspace) ConfigRecord(jobID string) string {
	return filepath.Join(w.ConfigsDir, jobID+".env")
}

// LastRun is the shared record the build script reads.
func (w Workspace) LastRun() string {
	return filepath.Join(w.Workdir, "last-run.env")
}

// ScratchFiles lists every scratch file that belongs to jobID.
func (w Workspace) ScratchFiles(jobID string) ([]string, error) {
	entries, err := os.ReadDir(w.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("read scratch dir: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		rest, ok := strings.CutPrefix(name, scratchPrefix+jobID)
		if !ok {
			continue
		}
		// Exact suffixes only, so "imgforge-1" never claims "imgforge-10.log".
		if rest == ".env" || rest == ".log" || rest == "-compose.yml" || rest == "-script.sh" {
			out = append(out, filepath.Join(w.ScratchDir, name))
		}
	}
	return out, nil
}

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it over path, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = finishTemp(tmp, perm); err != nil {
		return err
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// CopyFileAtomic copies src to dst through a temporary file in dst's directory.
func CopyFileAtomic(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err = finishTemp(tmp, perm); err != nil {
		return err
	}
	if err = os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func finishTemp(tmp *os.File, perm fs.FileMode) error {
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	return tmp.Close()
}

// removeFiles deletes paths, ignoring ones that are already gone.
func removeFiles(paths []string) (int, error) {
	var (
		removed int
		errs    []error
	)
	for _, p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
		default:
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}
