package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates are probed in order when REDIS_ADDR is unset.
var redisCandidates = []string{"redis:6379", "localhost:6379", "localhost:56379"}

// SetupTestRedis returns a client bound to a flushed database reserved for
// this test. Without a reachable server the test is skipped, or failed when
// TEST_REQUIRE_REDIS is set.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()

	addr, ok := findRedis()
	if !ok {
		skipOrFail(t, "TEST_REQUIRE_REDIS", "redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveDB(t, addr)})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		skipOrFail(t, "TEST_REQUIRE_REDIS", "flush redis test db at %s: %v", addr, err)
	}
	return client
}

func findRedis() (string, bool) {
	candidates := redisCandidates
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}
	for _, addr := range candidates {
		if ping(addr) == nil {
			return addr, true
		}
	}
	return "", false
}

func ping(addr string) error {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.Ping(ctx).Err()
}

// reserveDB picks a DB index in [1,15] so packages running in parallel never
// flush each other. TEST_REDIS_DB pins the index. Reservations are lock keys
// in DB 0 released on cleanup.
func reserveDB(t testing.TB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil && db >= 0 {
			return db
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	defer meta.Close()

	owner := fmt.Sprintf("%d:%s", os.Getpid(), t.Name())
	for db := 1; db <= 15; db++ {
		key := fmt.Sprintf("imgforge:testutil:db_lock:%d", db)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		won, err := meta.SetNX(ctx, key, owner, 30*time.Minute).Result()
		cancel()
		if err != nil || !won {
			continue
		}
		t.Cleanup(func() { release(addr, key) })
		return db
	}

	t.Logf("all redis test dbs reserved, sharing db 1")
	return 1
}

func release(addr, key string) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = c.Del(ctx, key).Err()
}
