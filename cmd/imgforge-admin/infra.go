package main

import (
	"errors"

	redisadapter "github.com/imgforge/imgforge-api/internal/adapters/redis"
	"github.com/imgforge/imgforge-api/internal/bootstrap"
)

var errRedisNotConfigured = errors.New("redis event mirror is not enabled (set REDIS_ENABLED=true)")

// openJobEvents connects to the Redis event mirror the server publishes to.
func openJobEvents(cmdCtx *commandContext) (*redisadapter.JobEvents, func(), error) {
	cfg := cmdCtx.Config.Redis
	if !cfg.Enabled {
		return nil, nil, errRedisNotConfigured
	}

	client, err := bootstrap.ConnectRedis(bootstrap.RedisConnConfig{
		Redis:  cfg,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return nil, nil, err
	}

	events := redisadapter.NewJobEvents(client, redisadapter.JobEventsOptions{
		Prefix:      cfg.KeyPrefix,
		SnapshotTTL: cfg.SnapshotTTL,
	})
	closeFn := func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}
	return events, closeFn, nil
}
