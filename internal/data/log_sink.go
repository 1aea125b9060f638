package data

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/job"
	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

// LogFilePrefix starts the name of every per-job file in the scratch directory.
const LogFilePrefix = "imgforge-"

var ErrJobIDRequired = errors.New("job_id is required")

// LogSinkOptions configures a LogSink.
type LogSinkOptions struct {
	Dir      string       // Required: directory holding the log files
	Notifier job.Notifier // Optional: defaults to a private notifier
	Logger   *slog.Logger // Optional
	FileMode fs.FileMode  // Optional: defaults to 0o644
}

// LogSink is an append-only, file-backed log per job. Any number of readers
// can replay a log from the start and follow it while it grows.
type LogSink struct {
	dir      string
	notifier job.Notifier
	logger   *slog.Logger
	mode     fs.FileMode

	mu   sync.Mutex
	logs map[string]*jobLog
}

type jobLog struct {
	mu       sync.Mutex
	file     *os.File
	complete atomic.Bool
}

var _ core.LogSink = (*LogSink)(nil)

// NewLogSink constructs a LogSink rooted at opts.Dir.
func NewLogSink(opts LogSinkOptions) (*LogSink, error) {
	if opts.Dir == "" {
		return nil, errors.New("log directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = job.NewNotifier()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mode := opts.FileMode
	if mode == 0 {
		mode = 0o644
	}

	return &LogSink{
		dir:      opts.Dir,
		notifier: notifier,
		logger:   logger.With("component", "log_sink"),
		mode:     mode,
		logs:     make(map[string]*jobLog),
	}, nil
}

// Path returns the file that stores the log of jobID.
func (s *LogSink) Path(jobID string) string {
	return filepath.Join(s.dir, LogFilePrefix+jobID+".log")
}

// Register creates the in-memory entry for jobID without touching the disk.
func (s *LogSink) Register(jobID string) {
	if jobID == "" {
		return
	}
	s.entry(jobID, true)
}

func (s *LogSink) entry(jobID string, create bool) *jobLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[jobID]
	if !ok && create {
		l = &jobLog{}
		s.logs[jobID] = l
	}
	return l
}

// Append writes one line to the log of jobID, creating the file on first use.
func (s *LogSink) Append(jobID, line string) error {
	if jobID == "" {
		return ErrJobIDRequired
	}
	l := s.entry(jobID, true)

	l.mu.Lock()
	if l.file == nil {
		f, err := os.OpenFile(s.Path(jobID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, s.mode)
		if err != nil {
			l.mu.Unlock()
			return fmt.Errorf("open log for job %s: %w", jobID, err)
		}
		l.file = f
	}
	_, err := l.file.WriteString(line + "\n")
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("append log for job %s: %w", jobID, err)
	}

	s.notifier.Broadcast(jobID)
	return nil
}

// Complete marks the log of jobID finished and wakes followers. Later
// appends are still accepted.
func (s *LogSink) Complete(jobID string) {
	l := s.entry(jobID, true)

	l.mu.Lock()
	l.complete.Store(true)
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			s.logger.Warn("close job log", "job_id", jobID, "error", err)
		}
		l.file = nil
	}
	l.mu.Unlock()

	s.notifier.Broadcast(jobID)
}

// IsComplete reports whether no more lines are expected for jobID. A log on
// disk without an in-memory entry belongs to an earlier process and is
// complete by definition.
func (s *LogSink) IsComplete(jobID string) bool {
	l := s.entry(jobID, false)
	return l == nil || l.complete.Load()
}

// OpenReader opens an independent reader positioned at the start of the log.
func (s *LogSink) OpenReader(jobID string, follow bool) (core.LogReader, error) {
	if jobID == "" {
		return nil, apperrors.Validation("job id is required")
	}

	path := s.Path(jobID)
	file, err := os.Open(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		if s.entry(jobID, false) == nil {
			return nil, apperrors.NotFoundf("no log for job %s", jobID)
		}
		file = nil
	default:
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "open log for job %s", jobID)
	}

	r := &LogReader{
		sink:   s,
		jobID:  jobID,
		path:   path,
		file:   file,
		follow: follow,
		chunk:  make([]byte, readChunkSize),
	}
	if follow {
		r.unsub, r.notify = s.notifier.Subscribe(jobID)
	}
	return r, nil
}

// Forget drops the in-memory entry for jobID, closing its file if open.
func (s *LogSink) Forget(jobID string) {
	s.mu.Lock()
	l, ok := s.logs[jobID]
	delete(s.logs, jobID)
	s.mu.Unlock()
	if !ok {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

// Close releases every open file and ends all follow subscriptions.
func (s *LogSink) Close() error {
	s.mu.Lock()
	logs := make([]*jobLog, 0, len(s.logs))
	for _, l := range s.logs {
		logs = append(logs, l)
	}
	s.mu.Unlock()

	var errs []error
	for _, l := range logs {
		l.mu.Lock()
		if l.file != nil {
			errs = append(errs, l.file.Close())
			l.file = nil
		}
		l.mu.Unlock()
	}
	s.notifier.StopAll()
	return errors.Join(errs...)
}
