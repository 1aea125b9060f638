package httpx

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/imgforge/imgforge-api/internal/data"
)

func newStreamServer(t *testing.T, origins []string) (*httptest.Server, *data.LogSink) {
	t.Helper()
	sink, err := data.NewLogSink(data.LogSinkOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	mux := http.NewServeMux()
	mux.Handle("GET /api/ws/{job_id}", NewLogStreamHandler(LogStreamOptions{
		Logs:           sink,
		AllowedOrigins: origins,
		WriteTimeout:   time.Second,
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, sink
}

func dialStream(t *testing.T, srv *httptest.Server, path, origin string) (*websocket.Conn, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	return websocket.Dial(url, "", origin)
}

func receiveAll(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	var lines []string
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg string
		err := websocket.Message.Receive(conn, &msg)
		if errors.Is(err, io.EOF) {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, msg)
	}
}

func TestLogStream_FollowsUntilComplete(t *testing.T) {
	srv, sink := newStreamServer(t, nil)
	require.NoError(t, sink.Append("job-1", "first"))

	conn, err := dialStream(t, srv, "/api/ws/job-1", "http://localhost/")
	require.NoError(t, err)
	defer conn.Close()

	var msg string
	require.NoError(t, websocket.Message.Receive(conn, &msg))
	assert.Equal(t, "first", msg)

	require.NoError(t, sink.Append("job-1", "second"))
	require.NoError(t, sink.Append("job-1", "third"))
	sink.Complete("job-1")

	assert.Equal(t, []string{"second", "third"}, receiveAll(t, conn))
}

func TestLogStream_ReplayOnlyStopsAtTail(t *testing.T) {
	srv, sink := newStreamServer(t, nil)
	require.NoError(t, sink.Append("job-2", "a"))
	require.NoError(t, sink.Append("job-2", "b"))

	conn, err := dialStream(t, srv, "/api/ws/job-2?follow=false", "http://localhost/")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, []string{"a", "b"}, receiveAll(t, conn))
}

func TestLogStream_UnknownJobIs404(t *testing.T) {
	srv, _ := newStreamServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/ws/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = dialStream(t, srv, "/api/ws/nope", "http://localhost/")
	assert.Error(t, err)
}

func TestLogStream_OriginAllowList(t *testing.T) {
	srv, sink := newStreamServer(t, []string{"http://ui.local"})
	require.NoError(t, sink.Append("job-3", "line"))
	sink.Complete("job-3")

	_, err := dialStream(t, srv, "/api/ws/job-3", "http://evil.local/")
	require.Error(t, err)

	conn, err := dialStream(t, srv, "/api/ws/job-3", "http://ui.local/")
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, []string{"line"}, receiveAll(t, conn))
}

func TestLogStream_ClientDisconnectEndsSession(t *testing.T) {
	srv, sink := newStreamServer(t, nil)
	sink.Register("job-4")

	conn, err := dialStream(t, srv, "/api/ws/job-4", "http://localhost/")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// The relay notices the close and the sink keeps accepting appends.
	require.NoError(t, sink.Append("job-4", "after"))
	sink.Complete("job-4")
}

func TestParseFollow(t *testing.T) {
	tcs := map[string]bool{
		"":            true,
		"?follow=1":   true,
		"?follow=no":  true,
		"?follow=0":   false,
		"?follow=false": false,
	}
	for query, want := range tcs {
		req := httptest.NewRequest(http.MethodGet, "/api/ws/x"+query, nil)
		assert.Equal(t, want, parseFollow(req), query)
	}
}
