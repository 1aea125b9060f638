// Package process launches external commands and exposes their output as
// line sequences.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
)

const (
	// DefaultKillGrace is how long a cancelled process has between SIGTERM and SIGKILL.
	DefaultKillGrace = 10 * time.Second
	// DefaultOutputGrace is how long output is still read after the process
	// exits. Descendants that inherited stdout or stderr are cut off after it.
	DefaultOutputGrace = 2 * time.Second
	// DefaultMaxLineBytes bounds one line. Longer lines are split into chunks.
	DefaultMaxLineBytes = 1 << 20
)

// SpawnError reports that an executable could not be launched at all.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Options configures a Runner.
type Options struct {
	KillGrace    time.Duration
	OutputGrace  time.Duration
	MaxLineBytes int
	Logger       *slog.Logger
}

// Runner starts external commands.
type Runner struct {
	killGrace   time.Duration
	outputGrace time.Duration
	maxLine     int
	logger      *slog.Logger
}

var _ core.ProcessStarter = (*Runner)(nil)

// NewRunner constructs a Runner.
func NewRunner(opts Options) *Runner {
	grace := opts.KillGrace
	if grace <= 0 {
		grace = DefaultKillGrace
	}
	outputGrace := opts.OutputGrace
	if outputGrace <= 0 {
		outputGrace = DefaultOutputGrace
	}
	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		killGrace:   grace,
		outputGrace: outputGrace,
		maxLine:     maxLine,
		logger:      logger.With("component", "process_runner"),
	}
}

// Start launches cmd. Cancelling ctx sends SIGTERM to the process group and,
// after the kill grace, SIGKILL. Stdin is the null device.
//
// The runner owns both output pipes, so Wait returns once the process itself
// has exited even if a backgrounded descendant still holds them open.
func (r *Runner) Start(ctx context.Context, cmd model.Command) (*Process, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.WaitDelay = r.killGrace
	configureTermination(c)

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		closeAll(outR, outW)
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}
	c.Stdout = outW
	c.Stderr = errW

	startErr := c.Start()
	// The child has its own copies; ours must go so EOF can arrive.
	closeAll(outW, errW)
	if startErr != nil {
		closeAll(outR, errR)
		return nil, &SpawnError{Path: cmd.Path, Err: startErr}
	}

	p := &Process{
		ctx:         ctx,
		cmd:         c,
		logger:      r.logger.With("pid", c.Process.Pid, "path", cmd.Path),
		outputGrace: r.outputGrace,
		maxLine:     r.maxLine,
		drained:     make(chan struct{}),
	}
	p.stdout = newStream(outR, &p.pending)
	p.stderr = newStream(errR, &p.pending)
	p.pending.Add(2)
	go func() {
		p.pending.Wait()
		close(p.drained)
	}()

	r.logger.DebugContext(ctx, "process started", "pid", c.Process.Pid, "command", cmd.String(), "dir", cmd.Dir)
	return p, nil
}

// Launch implements core.ProcessStarter.
func (r *Runner) Launch(ctx context.Context, cmd model.Command) (core.Process, error) {
	p, err := r.Start(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Process is a started command. Both output sequences must be consumed,
// concurrently with Wait, for the process to be reaped.
type Process struct {
	ctx         context.Context
	cmd         *exec.Cmd
	logger      *slog.Logger
	outputGrace time.Duration
	maxLine     int

	stdout  *stream
	stderr  *stream
	pending sync.WaitGroup
	drained chan struct{}

	waitOnce sync.Once
	outcome  model.ExitOutcome
}

var _ core.Process = (*Process)(nil)

// PID returns the operating system process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Stdout returns the standard output as a single-use line sequence.
func (p *Process) Stdout() iter.Seq[string] { return p.lines(p.stdout, "stdout") }

// Stderr returns the standard error as a single-use line sequence.
func (p *Process) Stderr() iter.Seq[string] { return p.lines(p.stderr, "stderr") }

// Wait blocks until the process has exited and both sequences are drained.
// Output still buffered at exit is delivered; a descendant holding the pipes
// open is cut off after the output grace. It is safe to call more than once.
func (p *Process) Wait() model.ExitOutcome {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()

		deadline := time.Now().Add(p.outputGrace)
		p.stdout.expire(deadline)
		p.stderr.expire(deadline)
		select {
		case <-p.drained:
		case <-p.ctx.Done():
		}
		p.stdout.close()
		p.stderr.close()

		p.outcome = outcomeOf(err, p.cmd)
		p.logger.Debug("process exited", "outcome", p.outcome.String())
	})
	return p.outcome
}

type stream struct {
	f      *os.File
	used   atomic.Bool
	once   sync.Once
	closer sync.Once
	wg     *sync.WaitGroup
}

func newStream(f *os.File, wg *sync.WaitGroup) *stream {
	return &stream{f: f, wg: wg}
}

func (s *stream) done() {
	s.once.Do(s.wg.Done)
}

// expire stops reads at deadline. Pipes without deadline support are closed
// instead.
func (s *stream) expire(deadline time.Time) {
	if err := s.f.SetReadDeadline(deadline); err != nil {
		time.AfterFunc(time.Until(deadline), s.close)
	}
}

func (s *stream) close() {
	s.closer.Do(func() { _ = s.f.Close() })
}

func (p *Process) lines(s *stream, name string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !s.used.CompareAndSwap(false, true) {
			return
		}

		sc := bufio.NewScanner(s.f)
		sc.Buffer(make([]byte, 0, min(64*1024, p.maxLine)), p.maxLine)
		sc.Split(boundedLines(p.maxLine))
		for sc.Scan() {
			if !yield(sc.Text()) {
				// Keep the pipe flowing so the child never blocks on a full buffer.
				go func() {
					_, _ = io.Copy(io.Discard, s.f)
					s.done()
				}()
				return
			}
		}
		switch err := sc.Err(); {
		case err == nil || isClosedPipe(err):
		case errors.Is(err, os.ErrDeadlineExceeded):
			p.logger.Debug("output cut off after exit, a descendant still holds the pipe", "stream", name)
		default:
			p.logger.Warn("output stream ended early", "stream", name, "error", err)
			_, _ = io.Copy(io.Discard, s.f)
		}
		s.done()
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func isClosedPipe(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}
