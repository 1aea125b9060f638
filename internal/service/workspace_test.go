package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgforge/imgforge-api/internal/domain/model"
	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

func TestWorkspace_ScratchFilesMatchExactJob(t *testing.T) {
	ws := newTestWorkspace(t)
	for _, name := range []string{
		"imgforge-1.env",
		"imgforge-1.log",
		"imgforge-1-compose.yml",
		"imgforge-1-script.sh",
		"imgforge-10.log",
		"imgforge-1.env.bak",
		"other.log",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(ws.ScratchDir, name), nil, 0o644))
	}

	files, err := ws.ScratchFiles("1")
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.ElementsMatch(t, []string{
		"imgforge-1.env",
		"imgforge-1.log",
		"imgforge-1-compose.yml",
		"imgforge-1-script.sh",
	}, names)
}

func TestWriteFileAtomic_ReplacesContentAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "last-run.env")

	require.NoError(t, WriteFileAtomic(path, []byte("A=1\n"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte("A=2\n"), 0o600))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A=2\n", string(raw))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomic_MissingDirectory(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "nope", "x.env"), []byte("x"), 0o600)
	require.Error(t, err)
}

func TestCopyFileAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "custom.img")
	require.NoError(t, os.WriteFile(src, []byte("disk image"), 0o600))

	dst := filepath.Join(dir, "pi1.img")
	require.NoError(t, CopyFileAtomic(src, dst, 0o644))

	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "disk image", string(raw))

	require.Error(t, CopyFileAtomic(filepath.Join(dir, "missing.img"), dst, 0o644))
}

func TestWorkspace_ReadConfigRecord(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(ws.ConfigRecord("job-1"), []byte("BOARD=1\nHOSTNAME=\"pi1\"\n"), 0o600))

	env, err := ws.ReadConfigRecord("job-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"BOARD": "1", "HOSTNAME": "pi1"}, env)

	_, err = ws.ReadConfigRecord("job-2")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = ws.ReadConfigRecord("../etc/passwd")
	assert.True(t, apperrors.IsValidation(err))
}

func TestImageStore_ListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	files := map[string]time.Duration{
		"old.img":    -2 * time.Hour,
		"new.img.xz": 0,
		"mid.img":    -time.Hour,
		"notes.txt":  0,
	}
	for name, age := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 10)), 0o644))
		require.NoError(t, os.Chtimes(path, now.Add(age), now.Add(age)))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.img"), 0o755))

	listing, err := ImageStore{Dir: dir}.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir, listing.StoragePath)

	var names []string
	for _, img := range listing.Images {
		names = append(names, img.Name)
		assert.Equal(t, filepath.Join(dir, img.Name), img.Path)
		assert.Zero(t, img.SizeMB)
	}
	assert.Equal(t, []string{"new.img.xz", "mid.img", "old.img"}, names)
}

func TestImageStore_MissingDirIsEmpty(t *testing.T) {
	listing, err := ImageStore{Dir: filepath.Join(t.TempDir(), "absent")}.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Image{}, listing.Images)
}

func TestUploadStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := UploadStore{Dir: dir}

	path, err := store.Save("../../etc/pi.img", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pi.img"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(raw))

	_, err = store.Save("", strings.NewReader("x"))
	assert.True(t, apperrors.IsValidation(err))
}
