package process

import (
	"bufio"
	"context"
	"errors"
	"iter"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/imgforge/imgforge-api/internal/domain/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

type collected struct {
	stdout  []string
	stderr  []string
	outcome model.ExitOutcome
}

func runToCompletion(p *Process) collected {
	var (
		wg  sync.WaitGroup
		out collected
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.stdout = slices.Collect(p.Stdout())
	}()
	go func() {
		defer wg.Done()
		out.stderr = slices.Collect(p.Stderr())
	}()
	out.outcome = p.Wait()
	wg.Wait()
	return out
}

func TestRunner_CapturesBothStreams(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Options{})

	p, err := r.Start(context.Background(), model.Command{
		Path: sh,
		Args: []string{"-c", "echo one; echo two; echo oops >&2"},
	})
	require.NoError(t, err)

	res := runToCompletion(p)
	assert.Equal(t, []string{"one", "two"}, res.stdout)
	assert.Equal(t, []string{"oops"}, res.stderr)
	assert.True(t, res.outcome.Success)
	assert.Equal(t, 0, res.outcome.Code)
	assert.Equal(t, "exit status 0", res.outcome.String())
}

func TestRunner_NonZeroExit(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Options{})

	p, err := r.Start(context.Background(), model.Command{Path: sh, Args: []string{"-c", "echo partial; exit 3"}})
	require.NoError(t, err)

	res := runToCompletion(p)
	assert.Equal(t, []string{"partial"}, res.stdout)
	assert.False(t, res.outcome.Success)
	assert.Equal(t, 3, res.outcome.Code)
	assert.Equal(t, "exit status 3", res.outcome.String())
}

func TestRunner_EnvAndDir(t *testing.T) {
	sh := requireShell(t)
	dir := t.TempDir()
	r := NewRunner(Options{})

	p, err := r.Start(context.Background(), model.Command{
		Path: sh,
		Args: []string{"-c", `echo "$GREETING"; pwd`},
		Dir:  dir,
		Env:  []string{"GREETING=hello world", "PATH=" + os.Getenv("PATH")},
	})
	require.NoError(t, err)

	res := runToCompletion(p)
	require.Len(t, res.stdout, 2)
	assert.Equal(t, "hello world", res.stdout[0])
	assert.True(t, strings.HasSuffix(res.stdout[1], strings.TrimPrefix(dir, "/private")))
}

func TestRunner_StdinIsEmpty(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Options{})

	p, err := r.Start(context.Background(), model.Command{Path: sh, Args: []string{"-c", "cat; echo done"}})
	require.NoError(t, err)

	res := runToCompletion(p)
	assert.Equal(t, []string{"done"}, res.stdout)
}

func TestRunner_SpawnFailure(t *testing.T) {
	r := NewRunner(Options{})

	p, err := r.Start(context.Background(), model.Command{Path: "/definitely/not/here"})
	require.Error(t, err)
	assert.Nil(t, p)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "/definitely/not/here", spawnErr.Path)

	launched, err := r.Launch(context.Background(), model.Command{Path: "/definitely/not/here"})
	require.Error(t, err)
	assert.Nil(t, launched)
}

func TestRunner_CancelTerminatesProcess(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Options{KillGrace: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := r.Start(ctx, model.Command{Path: sh, Args: []string{"-c", "echo started; sleep 30"}})
	require.NoError(t, err)

	started := make(chan struct{})
	var res collected
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for line := range p.Stdout() {
			res.stdout = append(res.stdout, line)
			if line == "started" {
				close(started)
			}
		}
	}()
	go func() {
		defer wg.Done()
		res.stderr = slices.Collect(p.Stderr())
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not start")
	}

	begin := time.Now()
	cancel()
	outcome := p.Wait()
	wg.Wait()

	assert.False(t, outcome.Success)
	assert.True(t, outcome.Signal != "" || outcome.Code != 0, "unexpected outcome %s", outcome)
	assert.Less(t, time.Since(begin), 5*time.Second)
}

func TestRunner_BreakingOutOfSequenceStillReaps(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Options{})

	p, err := r.Start(context.Background(), model.Command{
		Path: sh,
		Args: []string{"-c", "i=0; while [ $i -lt 5000 ]; do echo line $i; i=$((i+1)); done"},
	})
	require.NoError(t, err)

	var first string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		next, stop := iter.Pull(p.Stdout())
		first, _ = next()
		stop()
	}()
	go func() {
		defer wg.Done()
		for range p.Stderr() {
		}
	}()

	outcome := p.Wait()
	wg.Wait()
	assert.Equal(t, "line 0", first)
	assert.True(t, outcome.Success)
}

func TestRunner_ExitWithBackgroundChildDoesNotWaitForIt(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Options{OutputGrace: 100 * time.Millisecond})

	begin := time.Now()
	p, err := r.Start(context.Background(), model.Command{
		Path: sh,
		Args: []string{"-c", "echo started; sleep 3 & exit 0"},
	})
	require.NoError(t, err)

	res := runToCompletion(p)
	assert.True(t, res.outcome.Success, "unexpected outcome %s", res.outcome)
	assert.Equal(t, []string{"started"}, res.stdout)
	assert.Less(t, time.Since(begin), 2*time.Second)
}

func TestRunner_LongLinesAreChunked(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Options{MaxLineBytes: 16})

	p, err := r.Start(context.Background(), model.Command{
		Path: sh,
		Args: []string{"-c", "printf '%040d\\nafter\\n' 0"},
	})
	require.NoError(t, err)

	res := runToCompletion(p)
	assert.True(t, res.outcome.Success)
	assert.Equal(t, []string{
		strings.Repeat("0", 16),
		strings.Repeat("0", 16),
		strings.Repeat("0", 8),
		"after",
	}, res.stdout)
}

func TestRunner_SequenceIsSingleUse(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Options{})

	p, err := r.Start(context.Background(), model.Command{Path: sh, Args: []string{"-c", "echo x"}})
	require.NoError(t, err)

	res := runToCompletion(p)
	assert.Equal(t, []string{"x"}, res.stdout)
	assert.Empty(t, slices.Collect(p.Stdout()))
	assert.Equal(t, res.outcome, p.Wait())
}

func TestScanLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"newlines", "a\nb\n", []string{"a", "b"}},
		{"carriage returns", "10%\r20%\r30%\n", []string{"10%", "20%", "30%"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"unterminated tail", "a\nrest", []string{"a", "rest"}},
		{"trailing cr", "a\r", []string{"a"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := bufio.NewScanner(strings.NewReader(tt.input))
			sc.Split(ScanLines)
			var got []string
			for sc.Scan() {
				got = append(got, sc.Text())
			}
			require.NoError(t, sc.Err())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoundedLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"short lines untouched", "abc\ndef\n", []string{"abc", "def"}},
		{"long line split", "abcdefghij\nk\n", []string{"abcd", "efgh", "ij", "k"}},
		{"crlf on chunk edge", "abc\r\nd\n", []string{"abc", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := bufio.NewScanner(strings.NewReader(tt.input))
			sc.Buffer(make([]byte, 0, 4), 4)
			sc.Split(boundedLines(4))
			var got []string
			for sc.Scan() {
				got = append(got, sc.Text())
			}
			require.NoError(t, sc.Err())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExitOutcome_String(t *testing.T) {
	assert.Equal(t, "terminated by signal killed", model.ExitOutcome{Code: -1, Signal: "killed"}.String())
	assert.Equal(t, "wait failed: boom", model.ExitOutcome{Code: -1, Err: errors.New("boom")}.String())
}
