package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"golang.org/x/net/websocket"

	"github.com/imgforge/imgforge-api/internal/core"
)

const defaultWSWriteTimeout = 10 * time.Second

// LogStreamOptions groups dependencies for LogStreamHandler.
type LogStreamOptions struct {
	Logs           core.LogSink // Required: source of job logs
	AllowedOrigins []string     // Optional: empty or "*" accepts any origin
	WriteTimeout   time.Duration
	Logger         *slog.Logger
}

// LogStreamHandler relays a job's log over a websocket, one text message per line.
//
// By default the session follows the log until the job finishes. With
// ?follow=false it stops at the tail present when the session started.
type LogStreamHandler struct {
	logs         core.LogSink
	origins      []string
	anyOrigin    bool
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewLogStreamHandler constructs a LogStreamHandler.
func NewLogStreamHandler(opts LogStreamOptions) *LogStreamHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWSWriteTimeout
	}
	return &LogStreamHandler{
		logs:         opts.Logs,
		origins:      opts.AllowedOrigins,
		anyOrigin:    len(opts.AllowedOrigins) == 0 || slices.Contains(opts.AllowedOrigins, "*"),
		writeTimeout: timeout,
		logger:       logger.With("component", "log_stream"),
	}
}

func (h *LogStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	follow := parseFollow(r)

	// The reader is opened before the upgrade so unknown jobs get a plain 404.
	reader, err := h.logs.OpenReader(jobID, follow)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	defer reader.Close()

	srv := websocket.Server{
		Handshake: h.checkOrigin,
		Handler: func(conn *websocket.Conn) {
			h.relay(conn, jobID, reader)
		},
	}
	srv.ServeHTTP(w, r)
}

func parseFollow(r *http.Request) bool {
	v := r.URL.Query().Get("follow")
	if v == "" {
		return true
	}
	follow, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return follow
}

func (h *LogStreamHandler) checkOrigin(cfg *websocket.Config, req *http.Request) error {
	origin, err := websocket.Origin(cfg, req)
	if err != nil {
		return err
	}
	cfg.Origin = origin
	if h.anyOrigin {
		return nil
	}
	if origin == nil {
		return errors.New("missing origin")
	}
	o := origin.Scheme + "://" + origin.Host
	if !slices.Contains(h.origins, o) {
		return fmt.Errorf("origin %s not allowed", o)
	}
	return nil
}

func (h *LogStreamHandler) relay(conn *websocket.Conn, jobID string, reader core.LogReader) {
	logger := h.logger.With("job_id", jobID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A hijacked connection has no request context, so a read loop notices
	// the client going away.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	logger.Debug("log stream connected")
	sent := 0
	defer func() {
		_ = conn.Close()
		<-readerDone
		logger.Debug("log stream closed", "lines", sent)
	}()

	for {
		line, err := reader.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Warn("read job log failed", "error", err)
			}
			return
		}

		if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			logger.Debug("set write deadline failed", "error", err)
			return
		}
		if err := websocket.Message.Send(conn, line); err != nil {
			logger.Debug("send log line failed", "error", err)
			return
		}
		sent++
	}
}
