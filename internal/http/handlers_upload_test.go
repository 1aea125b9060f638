package httpx

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgforge/imgforge-api/internal/service"
)

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField(field, string(content)))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload_StoresFile(t *testing.T) {
	dir := t.TempDir()
	h := &UploadHandlers{Store: service.UploadStore{Dir: dir}}

	body, ct := multipartBody(t, "file", "../../etc/base.img", []byte("image-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got uploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, filepath.Join(dir, "base.img"), got.Path)
	assert.Equal(t, "File uploaded successfully", got.Message)

	data, err := os.ReadFile(got.Path)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestUpload_NoFile(t *testing.T) {
	h := &UploadHandlers{Store: service.UploadStore{Dir: t.TempDir()}}

	body, ct := multipartBody(t, "note", "", []byte("just a field"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeError(t, rec)["message"])
}

func TestUpload_NotMultipart(t *testing.T) {
	h := &UploadHandlers{Store: service.UploadStore{Dir: t.TempDir()}}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString("raw"))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	dir := t.TempDir()
	h := &UploadHandlers{Store: service.UploadStore{Dir: dir}, MaxBytes: 512}

	body, ct := multipartBody(t, "file", "big.img", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, err := os.Stat(filepath.Join(dir, "big.img"))
	assert.True(t, os.IsNotExist(err))
}
