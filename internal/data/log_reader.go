package data

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

const readChunkSize = 32 * 1024

// ErrLogClosed is returned by Next after Close.
var ErrLogClosed = errors.New("log reader closed")

// LogReader reads one job log from the start. It owns its file handle and is
// not safe for concurrent use.
type LogReader struct {
	sink   *LogSink
	jobID  string
	path   string
	file   *os.File
	follow bool

	notify <-chan struct{}
	unsub  func()

	chunk   []byte
	pending []byte
	closed  bool
}

// Next returns the next complete line. It returns io.EOF at the current end
// of the log unless following, in which case it waits for more lines until
// the log is complete or ctx is done.
func (r *LogReader) Next(ctx context.Context) (string, error) {
	if r.closed {
		return "", ErrLogClosed
	}

	for {
		if line, ok := r.popLine(); ok {
			return line, nil
		}

		n, err := r.fill()
		if err != nil {
			return "", err
		}
		if n > 0 {
			continue
		}

		if !r.follow {
			return r.finish()
		}
		if r.sink.IsComplete(r.jobID) {
			// Lines appended between the last read and completion.
			if n, err = r.fill(); err != nil {
				return "", err
			}
			if n > 0 {
				continue
			}
			return r.finish()
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case _, ok := <-r.notify:
			if !ok {
				return r.finish()
			}
		}
	}
}

// finish flushes an unterminated trailing line before reporting io.EOF.
func (r *LogReader) finish() (string, error) {
	if len(r.pending) > 0 && r.sink.IsComplete(r.jobID) {
		line := trimCR(r.pending)
		r.pending = nil
		return line, nil
	}
	return "", io.EOF
}

func (r *LogReader) popLine() (string, bool) {
	idx := bytes.IndexByte(r.pending, '\n')
	if idx < 0 {
		return "", false
	}
	line := trimCR(r.pending[:idx])
	r.pending = r.pending[idx+1:]
	return line, true
}

func (r *LogReader) fill() (int, error) {
	if r.file == nil {
		f, err := os.Open(r.path)
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("open log for job %s: %w", r.jobID, err)
		}
		r.file = f
	}

	total := 0
	for {
		n, err := r.file.Read(r.chunk)
		if n > 0 {
			r.pending = append(r.pending, r.chunk[:n]...)
			total += n
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("read log for job %s: %w", r.jobID, err)
		}
		if n < len(r.chunk) {
			return total, nil
		}
	}
}

// Close releases the reader's file handle and subscription.
func (r *LogReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.unsub != nil {
		r.unsub()
	}
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

func trimCR(b []byte) string {
	return string(bytes.TrimRight(b, "\r"))
}
