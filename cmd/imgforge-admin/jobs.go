package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	redisadapter "github.com/imgforge/imgforge-api/internal/adapters/redis"
	"github.com/imgforge/imgforge-api/internal/domain/model"
)

const listTimeout = 30 * time.Second

type listJobsOptions struct {
	Filter model.JobFilter
}

type tailOptions struct {
	JobID   string
	Timeout time.Duration
}

func runListJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseListJobsFlags(args)
	if err != nil {
		return err
	}

	events, closeFn, err := openJobEvents(cmdCtx)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, listTimeout)
	defer cancel()

	jobs, err := events.List(ctx)
	if err != nil {
		return err
	}
	return renderJobs(cmdCtx.Out, jobs, opts.Filter)
}

func parseListJobsFlags(args []string) (listJobsOptions, error) {
	fs := flag.NewFlagSet("list-jobs", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var status, kind string
	fs.StringVar(&status, "status", "", "only show jobs in this status")
	fs.StringVar(&kind, "kind", "", "only show jobs of this kind (build, flash)")
	if err := fs.Parse(args); err != nil {
		return listJobsOptions{}, err
	}

	var opts listJobsOptions
	if status != "" {
		if err := opts.Filter.Status.UnmarshalText([]byte(status)); err != nil {
			return opts, err
		}
	}
	if kind != "" {
		if err := opts.Filter.Kind.UnmarshalText([]byte(kind)); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func renderJobs(w io.Writer, jobs []model.Job, filter model.JobFilter) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "ID\tKIND\tSTATUS\tCREATED\tDURATION\tERROR\n"); err != nil {
		return err
	}

	shown := 0
	for _, job := range jobs {
		if !filter.Matches(job) {
			continue
		}
		duration := "-"
		if job.FinishedAt != nil {
			duration = job.Duration().Round(time.Second).String()
		}
		errText := job.Error
		if errText == "" {
			errText = "-"
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.Kind, job.Status, job.CreatedAt.UTC().Format(time.RFC3339), duration, errText); err != nil {
			return err
		}
		shown++
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(w, "\n%d job(s)\n", shown)
}

func runTail(cmdCtx *commandContext, args []string) error {
	opts, err := parseTailFlags(args)
	if err != nil {
		return err
	}

	events, closeFn, err := openJobEvents(cmdCtx)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if job, getErr := events.Get(ctx, opts.JobID); getErr == nil && job.Status.IsTerminal() {
		return writef(cmdCtx.Out, "job %s already finished: %s\n", job.ID, job.Status)
	} else if getErr != nil && !errors.Is(getErr, redisadapter.ErrNotFound) {
		return getErr
	}

	err = events.FollowLog(ctx, opts.JobID, func(msg redisadapter.LogMessage) bool {
		return writeLogMessage(cmdCtx.Out, msg) == nil
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func writeLogMessage(w io.Writer, msg redisadapter.LogMessage) error {
	if msg.Stream == model.StreamStderr {
		return writef(w, "[stderr] %s\n", msg.Line)
	}
	return writeln(w, msg.Line)
}

func parseTailFlags(args []string) (tailOptions, error) {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := tailOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", 0, "stop following after this long (0 follows until interrupted)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		return opts, errors.New("usage: tail [-timeout d] <job-id>")
	}
	opts.JobID = fs.Arg(0)
	if opts.Timeout < 0 {
		return opts, fmt.Errorf("invalid timeout %v", opts.Timeout)
	}
	return opts, nil
}
