// Package redis mirrors job activity into Redis so other processes can follow it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
)

// ErrNotFound is returned when no snapshot exists for a job.
var ErrNotFound = errors.New("not found")

const defaultSnapshotTTL = 7 * 24 * time.Hour

// LogMessage is published on a job's log channel for every output line.
type LogMessage struct {
	JobID  string       `json:"job_id"`
	Stream model.Stream `json:"stream"`
	Line   string       `json:"line"`
}

// JobEventsOptions configures JobEvents.
type JobEventsOptions struct {
	Prefix      string        // Optional: key prefix, defaults to "imgforge:"
	SnapshotTTL time.Duration // Optional: lifetime of job snapshots
}

// JobEvents publishes log lines and status transitions and keeps a short-lived
// snapshot of every job.
type JobEvents struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ core.EventPublisher = (*JobEvents)(nil)

// NewJobEvents creates a Redis-backed event mirror.
func NewJobEvents(client redis.UniversalClient, opts JobEventsOptions) *JobEvents {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "imgforge:"
	}
	ttl := opts.SnapshotTTL
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &JobEvents{client: client, prefix: prefix, ttl: ttl}
}

// LogChannel is the pub/sub channel carrying the output of jobID.
func (e *JobEvents) LogChannel(jobID string) string {
	return e.prefix + "jobs:" + jobID + ":log"
}

// EventsChannel carries every job snapshot after a transition.
func (e *JobEvents) EventsChannel() string {
	return e.prefix + "jobs:events"
}

func (e *JobEvents) snapshotKey(jobID string) string {
	return e.prefix + "jobs:" + jobID
}

func (e *JobEvents) indexKey() string {
	return e.prefix + "jobs:index"
}

// PublishLine announces one line of job output.
func (e *JobEvents) PublishLine(ctx context.Context, jobID string, stream model.Stream, line string) error {
	data, err := json.Marshal(LogMessage{JobID: jobID, Stream: stream, Line: line})
	if err != nil {
		return fmt.Errorf("marshal log message: %w", err)
	}
	if err := e.client.Publish(ctx, e.LogChannel(jobID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// PublishTransition stores the job snapshot and announces it.
func (e *JobEvents) PublishTransition(ctx context.Context, job model.Job) error {
	if job.ID == "" {
		return errors.New("job ID cannot be empty")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, e.snapshotKey(job.ID), data, e.ttl)
		pipe.ZAdd(ctx, e.indexKey(), redis.Z{Score: float64(job.CreatedAt.UnixMilli()), Member: job.ID})
		pipe.ZRemRangeByScore(ctx, e.indexKey(), "-inf", fmt.Sprintf("(%d", time.Now().Add(-e.ttl).UnixMilli()))
		pipe.Publish(ctx, e.EventsChannel(), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish transition: %w", err)
	}
	return nil
}

// Get returns the stored snapshot of jobID.
func (e *JobEvents) Get(ctx context.Context, jobID string) (model.Job, error) {
	if jobID == "" {
		return model.Job{}, ErrNotFound
	}

	data, err := e.client.Get(ctx, e.snapshotKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Job{}, ErrNotFound
		}
		return model.Job{}, fmt.Errorf("redis get: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return model.Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}

// List returns the stored snapshots, oldest first. Expired snapshots are skipped.
func (e *JobEvents) List(ctx context.Context) ([]model.Job, error) {
	ids, err := e.client.ZRange(ctx, e.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = e.snapshotKey(id)
	}
	values, err := e.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	jobs := make([]model.Job, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var job model.Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// FollowLog delivers each published line of jobID to fn until ctx is done
// or fn returns false.
func (e *JobEvents) FollowLog(ctx context.Context, jobID string, fn func(LogMessage) bool) error {
	sub := e.client.Subscribe(ctx, e.LogChannel(jobID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var lm LogMessage
			if err := json.Unmarshal([]byte(msg.Payload), &lm); err != nil {
				return fmt.Errorf("unmarshal log message: %w", err)
			}
			if !fn(lm) {
				return nil
			}
		}
	}
}
