package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/imgforge/imgforge-api/config"
	"github.com/imgforge/imgforge-api/internal/adapters/process"
	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/data"
	"github.com/imgforge/imgforge-api/internal/domain/model"
	apperrors "github.com/imgforge/imgforge-api/internal/errors"
	"github.com/imgforge/imgforge-api/internal/mocks"
	"github.com/imgforge/imgforge-api/internal/testutil"
)

type orchestratorFixture struct {
	orch      *Orchestrator
	registry  *data.JobRegistry
	logs      *data.LogSink
	workspace Workspace
	clock     *data.ManualClock
}

func newTestWorkspace(t *testing.T) Workspace {
	t.Helper()
	root := t.TempDir()
	ws := Workspace{
		ScratchDir: filepath.Join(root, "scratch"),
		ConfigsDir: filepath.Join(root, "home", "configs"),
		ImagesDir:  filepath.Join(root, "home", "images"),
		Workdir:    filepath.Join(root, "workdir"),
	}
	require.NoError(t, ws.Ensure())
	require.NoError(t, os.MkdirAll(ws.Workdir, 0o755))
	return ws
}

func newOrchestratorFixture(t *testing.T, jobs config.JobsConfig, customize func(*OrchestratorOptions)) *orchestratorFixture {
	t.Helper()

	ws := newTestWorkspace(t)
	clock := data.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	registry := data.NewJobRegistry(data.JobRegistryOptions{Clock: clock})
	logs, err := data.NewLogSink(data.LogSinkOptions{Dir: ws.ScratchDir})
	require.NoError(t, err)

	opts := OrchestratorOptions{
		Registry:  registry,
		Logs:      logs,
		Processes: process.NewRunner(process.Options{KillGrace: time.Second}),
		Workspace: ws,
		Config:    jobs,
		Environ:   func() []string { return []string{"PATH=" + os.Getenv("PATH")} },
		Now:       clock.Now,
	}
	if customize != nil {
		customize(&opts)
	}

	orch, err := NewOrchestrator(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, orch.Shutdown(ctx))
		_ = logs.Close()
	})

	return &orchestratorFixture{
		orch:      orch,
		registry:  registry,
		logs:      logs,
		workspace: ws,
		clock:     clock,
	}
}

func jobsConfig(buildScript string) config.JobsConfig {
	return config.JobsConfig{
		BuildScript:   buildScript,
		BuildArtifact: "custom.img",
		DDPath:        "dd",
		MaxConcurrent: 2,
	}
}

func waitTerminal(t *testing.T, reg core.JobRegistry, jobID string) model.Job {
	t.Helper()
	var job model.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = reg.Get(jobID)
		return err == nil && job.Status.IsTerminal()
	}, 10*time.Second, 10*time.Millisecond, "job %s never finished", jobID)
	return job
}

func jobLog(t *testing.T, logs core.LogSink, jobID string) []string {
	t.Helper()
	r, err := logs.OpenReader(jobID, false)
	require.NoError(t, err)
	defer r.Close()

	var lines []string
	for {
		line, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}
}

func TestOrchestrator_BuildArtifactSuccess(t *testing.T) {
	scripts := t.TempDir()
	script := testutil.WriteScript(t, scripts, "imgforge.sh", `. "$IMGFORGE_ENV_FILE"
echo "host=$HOSTNAME mode=$MODE board=$BOARD compose=$HAVE_COMPOSE"
echo "careful" >&2
echo image > custom.img`)
	f := newOrchestratorFixture(t, jobsConfig(script), nil)

	cfg := testutil.NewBuildConfig().
		WithCompose("services:\n  app:\n    image: nginx\n").
		Build()

	job, err := f.orch.SubmitBuild(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.Equal(t, model.JobKindBuild, job.Kind)

	done := waitTerminal(t, f.registry, job.ID)
	require.Equal(t, model.JobStatusSuccess, done.Status, "error: %s", done.Error)
	assert.Empty(t, done.Error)
	assert.NotNil(t, done.FinishedAt)

	assert.ElementsMatch(t, []string{"host=pi1 mode=2 board=1 compose=y", "careful"}, jobLog(t, f.logs, job.ID))

	stored := filepath.Join(f.workspace.ImagesDir, "pi1_20250301_120000.img")
	raw, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "image\n", string(raw))

	record, err := os.ReadFile(f.workspace.ConfigRecord(job.ID))
	require.NoError(t, err)
	assert.Contains(t, string(record), `HOSTNAME="pi1"`)

	lastRun, err := os.ReadFile(f.workspace.LastRun())
	require.NoError(t, err)
	assert.Equal(t, record, lastRun)

	compose, err := os.ReadFile(f.workspace.ComposeFile(job.ID))
	require.NoError(t, err)
	assert.Contains(t, string(compose), "image: nginx")
}

func TestOrchestrator_BuildMaterializesExecutableScript(t *testing.T) {
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh", `. "$IMGFORGE_ENV_FILE"
"$CUSTOM_SCRIPT"`)
	f := newOrchestratorFixture(t, jobsConfig(script), nil)

	cfg := testutil.NewBuildConfig().
		WithMode(model.BuildModeFlash).
		WithScript("#!/bin/sh\necho from custom script\n").
		Build()

	job, err := f.orch.SubmitBuild(context.Background(), cfg)
	require.NoError(t, err)

	done := waitTerminal(t, f.registry, job.ID)
	require.Equal(t, model.JobStatusSuccess, done.Status, "error: %s", done.Error)
	assert.Equal(t, []string{"from custom script"}, jobLog(t, f.logs, job.ID))

	info, err := os.Stat(f.workspace.ScriptFile(job.ID))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestOrchestrator_RenderedValuesReachProcessEnvironment(t *testing.T) {
	// No env file is sourced: the values must come from the process environment.
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh",
		`echo "host=$HOSTNAME mode=$MODE job=$IMGFORGE_JOB_ID compose=$HAVE_COMPOSE"`)
	f := newOrchestratorFixture(t, jobsConfig(script), func(o *OrchestratorOptions) {
		o.Environ = func() []string {
			return []string{"PATH=" + os.Getenv("PATH"), "HOSTNAME=inherited"}
		}
	})

	job, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().WithHostname("pi7").Build())
	require.NoError(t, err)

	done := waitTerminal(t, f.registry, job.ID)
	require.Equal(t, model.JobStatusSuccess, done.Status, "error: %s", done.Error)
	assert.Equal(t, []string{"host=pi7 mode=2 job=" + job.ID + " compose=n"}, jobLog(t, f.logs, job.ID))
}

func TestOrchestrator_ConcurrentBuildsLeaveOneWholeLastRun(t *testing.T) {
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh", "echo ok")
	f := newOrchestratorFixture(t, jobsConfig(script), nil)

	hosts := []string{"pi-a", "pi-b"}
	ids := make([]string, len(hosts))
	var wg sync.WaitGroup
	for i, host := range hosts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().WithHostname(host).Build())
			assert.NoError(t, err)
			ids[i] = job.ID
		}()
	}
	wg.Wait()

	records := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		require.NotEmpty(t, id)
		done := waitTerminal(t, f.registry, id)
		require.Equal(t, model.JobStatusSuccess, done.Status, "error: %s", done.Error)

		record, err := f.workspace.ReadConfigRecord(id)
		require.NoError(t, err)
		records = append(records, record)
	}
	require.NotEqual(t, records[0]["HOSTNAME"], records[1]["HOSTNAME"])

	lastRun, err := godotenv.Read(f.workspace.LastRun())
	require.NoError(t, err)
	assert.Contains(t, records, lastRun)

	leftovers, err := filepath.Glob(filepath.Join(f.workspace.Workdir, ".last-run.env.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestOrchestrator_MissingArtifactStillSucceeds(t *testing.T) {
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh", "echo built nothing")
	f := newOrchestratorFixture(t, jobsConfig(script), nil)

	job, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().Build())
	require.NoError(t, err)

	done := waitTerminal(t, f.registry, job.ID)
	assert.Equal(t, model.JobStatusSuccess, done.Status)

	entries, err := os.ReadDir(f.workspace.ImagesDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOrchestrator_NonZeroExitFailsAndNotifies(t *testing.T) {
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh", "echo partial; exit 3")

	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockFailureNotifier(ctrl)
	notified := make(chan model.Job, 1)
	notifier.EXPECT().
		NotifyJobFailure(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, job model.Job) { notified <- job }).
		Times(1)

	f := newOrchestratorFixture(t, jobsConfig(script), func(o *OrchestratorOptions) {
		o.Failures = notifier
	})

	job, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().Build())
	require.NoError(t, err)

	done := waitTerminal(t, f.registry, job.ID)
	assert.Equal(t, model.JobStatusFailed, done.Status)
	assert.Equal(t, "exit status 3", done.Error)
	assert.Equal(t, []string{"partial"}, jobLog(t, f.logs, job.ID))

	select {
	case got := <-notified:
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, model.JobStatusFailed, got.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("failure notifier was not called")
	}
}

func TestOrchestrator_SpawnFailureFailsJob(t *testing.T) {
	f := newOrchestratorFixture(t, jobsConfig(filepath.Join(t.TempDir(), "missing.sh")), nil)

	job, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().Build())
	require.NoError(t, err)

	done := waitTerminal(t, f.registry, job.ID)
	assert.Equal(t, model.JobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "spawn")
}

func TestOrchestrator_InvalidRequestsCreateNoJob(t *testing.T) {
	f := newOrchestratorFixture(t, jobsConfig("/bin/true"), nil)

	_, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().WithCompose("key: [unterminated").Build())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().WithHostname("").Build())
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.orch.SubmitFlash(context.Background(), model.FlashRequest{ImagePath: "/images/a.img"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "device", apperrors.GetField(err))

	assert.Equal(t, 0, f.registry.Len())
}

func TestOrchestrator_FlashRunsDD(t *testing.T) {
	dd := testutil.WriteScript(t, t.TempDir(), "dd", `echo "$@"
printf '1048576 bytes copied\r2097152 bytes copied\n' >&2`)
	jobs := jobsConfig("/bin/true")
	jobs.DDPath = dd
	f := newOrchestratorFixture(t, jobs, nil)

	job, err := f.orch.SubmitFlash(context.Background(), model.FlashRequest{
		ImagePath: "/images/pi1.img",
		Device:    "/dev/sdz",
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobKindFlash, job.Kind)

	done := waitTerminal(t, f.registry, job.ID)
	require.Equal(t, model.JobStatusSuccess, done.Status, "error: %s", done.Error)
	assert.ElementsMatch(t, []string{
		"if=/images/pi1.img of=/dev/sdz bs=4M status=progress conv=fsync",
		"1048576 bytes copied",
		"2097152 bytes copied",
	}, jobLog(t, f.logs, job.ID))
}

func TestOrchestrator_CancelRunningJob(t *testing.T) {
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh", "echo started; sleep 30")
	f := newOrchestratorFixture(t, jobsConfig(script), nil)

	job, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().Build())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		raw, err := os.ReadFile(f.logs.Path(job.ID))
		return err == nil && strings.Contains(string(raw), "started")
	}, 5*time.Second, 10*time.Millisecond)

	begin := time.Now()
	cancelled, err := f.orch.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, cancelled.Status)
	assert.Empty(t, cancelled.Error)
	assert.Less(t, time.Since(begin), 5*time.Second)

	_, err = f.orch.Cancel(context.Background(), job.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	_, err = f.orch.Cancel(context.Background(), "no-such-job")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestOrchestrator_CancelWhileWaitingForSlot(t *testing.T) {
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh", `touch "ran-$IMGFORGE_JOB_ID"; sleep 30`)
	jobs := jobsConfig(script)
	jobs.MaxConcurrent = 1
	f := newOrchestratorFixture(t, jobs, nil)

	first, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().Build())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(f.workspace.Workdir, "ran-"+first.ID))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	second, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().Build())
	require.NoError(t, err)
	assert.Equal(t, 2, f.orch.Running())

	got, err := f.orch.Cancel(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)

	_, err = os.Stat(filepath.Join(f.workspace.Workdir, "ran-"+second.ID))
	assert.True(t, os.IsNotExist(err), "queued job must not have started")

	got, err = f.orch.Cancel(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
}

func TestOrchestrator_TimeoutFailsJob(t *testing.T) {
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh", "sleep 30")
	jobs := jobsConfig(script)
	jobs.BuildTimeout = 200 * time.Millisecond
	f := newOrchestratorFixture(t, jobs, nil)

	job, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().Build())
	require.NoError(t, err)

	done := waitTerminal(t, f.registry, job.ID)
	assert.Equal(t, model.JobStatusFailed, done.Status)
	assert.Equal(t, "timed out after 200ms: context deadline exceeded", done.Error)
}

func TestOrchestrator_PanicInLegIsRecorded(t *testing.T) {
	ctrl := gomock.NewController(t)
	starter := mocks.NewMockProcessStarter(ctrl)
	starter.EXPECT().
		Launch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, model.Command) (core.Process, error) {
			panic("boom")
		})

	f := newOrchestratorFixture(t, jobsConfig("/bin/true"), func(o *OrchestratorOptions) {
		o.Processes = starter
	})

	job, err := f.orch.SubmitFlash(context.Background(), model.FlashRequest{ImagePath: "a.img", Device: "/dev/sdz"})
	require.NoError(t, err)

	done := waitTerminal(t, f.registry, job.ID)
	assert.Equal(t, model.JobStatusFailed, done.Status)
	assert.Equal(t, "internal error: boom", done.Error)
}

func TestOrchestrator_PublishesLinesAndSnapshot(t *testing.T) {
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh", "echo one; echo two")

	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventPublisher(ctrl)
	events.EXPECT().
		PublishTransition(gomock.Any(), gomock.Cond(func(job model.Job) bool {
			return job.Status == model.JobStatusRunning
		})).
		Return(nil)
	lines := make(chan string, 2)
	events.EXPECT().
		PublishLine(gomock.Any(), gomock.Any(), model.StreamStdout, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ model.Stream, line string) error {
			lines <- line
			return nil
		}).
		Times(2)

	f := newOrchestratorFixture(t, jobsConfig(script), func(o *OrchestratorOptions) {
		o.Events = events
	})

	job, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().WithMode(model.BuildModeFlash).Build())
	require.NoError(t, err)
	waitTerminal(t, f.registry, job.ID)

	assert.Equal(t, "one", <-lines)
	assert.Equal(t, "two", <-lines)
}

func TestOrchestrator_ShutdownCancelsAndRejects(t *testing.T) {
	script := testutil.WriteScript(t, t.TempDir(), "imgforge.sh", "echo started; sleep 30")
	f := newOrchestratorFixture(t, jobsConfig(script), nil)

	job, err := f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().Build())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, f.orch.Shutdown(ctx))

	got, err := f.registry.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
	assert.Equal(t, 0, f.orch.Running())

	_, err = f.orch.SubmitBuild(context.Background(), testutil.NewBuildConfig().Build())
	assert.True(t, apperrors.IsConflict(err))
}

func TestNewOrchestrator_RequiresDependencies(t *testing.T) {
	_, err := NewOrchestrator(OrchestratorOptions{})
	require.Error(t, err)
}
