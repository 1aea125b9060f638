package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imgforge/imgforge-api/config"
)

const redisPingTimeout = 5 * time.Second

// RedisConnConfig contains configuration for the Redis event mirror connection.
type RedisConnConfig struct {
	Redis  config.RedisConfig
	Logger *slog.Logger
}

type redisTopology string

const (
	topologyDirect   redisTopology = "direct"
	topologySentinel redisTopology = "sentinel"
	topologyCluster  redisTopology = "cluster"
)

// redisTarget is a resolved connection plan. desc never carries credentials.
type redisTarget struct {
	topology redisTopology
	addrs    []string
	username string
	password string
	tls      *tls.Config

	masterName       string
	sentinelPassword string

	// direct is set when the URI was a redis:// or rediss:// URL.
	direct *redis.Options
}

func (t redisTarget) desc() string {
	switch t.topology {
	case topologyCluster:
		return "cluster:" + strings.Join(t.addrs, ",")
	case topologySentinel:
		return "sentinel:" + t.masterName
	default:
		return strings.Join(t.addrs, ",")
	}
}

//nolint:ireturn // the topology decides the concrete client type
func (t redisTarget) client() redis.UniversalClient {
	switch t.topology {
	case topologyCluster:
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:     t.addrs,
			Username:  t.username,
			Password:  t.password,
			TLSConfig: t.tls,
		})
	case topologySentinel:
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       t.masterName,
			SentinelAddrs:    t.addrs,
			Password:         t.password,
			SentinelPassword: t.sentinelPassword,
		})
	default:
		if t.direct != nil {
			return redis.NewClient(t.direct)
		}
		return redis.NewClient(&redis.Options{Addr: t.addrs[0], Password: t.password})
	}
}

// resolveRedisTarget turns the flat env configuration into a connection plan.
// Cluster mode wins over sentinel mode.
func resolveRedisTarget(cfg config.RedisConfig) (redisTarget, error) {
	switch {
	case cfg.UseCluster:
		return resolveCluster(cfg)
	case cfg.UseSentinel:
		nodes := normalizeAddrs(cfg.SentinelNodes)
		if len(nodes) == 0 {
			return redisTarget{}, errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		return redisTarget{
			topology:         topologySentinel,
			addrs:            nodes,
			password:         cfg.Password,
			masterName:       cfg.SentinelMasterName,
			sentinelPassword: cfg.SentinelPassword,
		}, nil
	default:
		return resolveDirect(cfg)
	}
}

func resolveDirect(cfg config.RedisConfig) (redisTarget, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return redisTarget{}, errors.New("redis direct configuration requires a URI")
	}
	target := redisTarget{topology: topologyDirect, addrs: []string{uri}, password: cfg.Password}
	if !isRedisURL(uri) {
		return target, nil
	}

	opt, err := redis.ParseURL(uri)
	if err != nil {
		return redisTarget{}, fmt.Errorf("parse redis url: %w", err)
	}
	target.addrs = []string{opt.Addr}
	target.direct = opt
	return target, nil
}

// resolveCluster uses the explicit node list, falling back to the URI as a
// single seed node. Credentials embedded in a seed URL override REDIS_PASSWORD.
func resolveCluster(cfg config.RedisConfig) (redisTarget, error) {
	target := redisTarget{
		topology: topologyCluster,
		addrs:    normalizeAddrs(cfg.ClusterNodes),
		password: cfg.Password,
	}
	if len(target.addrs) > 0 {
		return target, nil
	}

	seed := strings.TrimSpace(cfg.URI)
	switch {
	case seed == "":
	case isRedisURL(seed):
		opt, err := redis.ParseURL(seed)
		if err != nil {
			return redisTarget{}, fmt.Errorf("parse redis cluster url: %w", err)
		}
		target.addrs = []string{opt.Addr}
		target.username = opt.Username
		target.tls = opt.TLSConfig
		if opt.Password != "" {
			target.password = opt.Password
		}
	default:
		target.addrs = []string{seed}
	}

	if len(target.addrs) == 0 {
		return redisTarget{}, errors.New("redis cluster configuration requires at least one address")
	}
	return target, nil
}

// ConnectRedis resolves the configured topology, connects and pings.
//
//nolint:ireturn // the topology decides the concrete client type
func ConnectRedis(cfg RedisConnConfig) (redis.UniversalClient, error) {
	target, err := resolveRedisTarget(cfg.Redis)
	if err != nil {
		return nil, err
	}
	client := target.client()

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(
			fmt.Errorf("ping redis %s: %w", target.desc(), err),
			client.Close(),
		)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "topology", target.topology, "addr", target.desc())
	}
	return client, nil
}

func normalizeAddrs(raw []string) []string {
	result := make([]string, 0, len(raw))
	for _, addr := range raw {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}
