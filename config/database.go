package config

import (
	"strings"
	"time"
)

// RedisConfig contains configuration for the optional Redis job event mirror.
type RedisConfig struct {
	// Enabled turns on publishing of job lines and transitions to Redis.
	Enabled            bool     `env:"ENABLED"              envDefault:"false"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`

	// KeyPrefix namespaces every key and channel written by the mirror.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"imgforge:"`

	// SnapshotTTL is how long a job snapshot is retained after its last update.
	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL" envDefault:"168h"`
}

// Sanitize applies guardrails to Redis configuration values.
func (r *RedisConfig) Sanitize() {
	r.URI = strings.TrimSpace(r.URI)
	r.KeyPrefix = strings.TrimSpace(r.KeyPrefix)
	if r.KeyPrefix == "" {
		r.KeyPrefix = "imgforge:"
	}
	if r.SnapshotTTL < time.Minute {
		r.SnapshotTTL = time.Minute
	}
}
