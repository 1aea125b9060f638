// Package statsd emits job and reaper metrics over UDP in the DogStatsD line format.
package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imgforge/imgforge-api/config"
)

// Sink describes the minimal interface required to emit StatsD-style metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

const (
	defaultQueueSize   = 512
	defaultDialTimeout = 5 * time.Second
)

// Config describes how to connect to a StatsD-compatible sink.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string
	Logger     *slog.Logger
	GlobalTags map[string]string
	// QueueSize bounds the number of lines buffered for the sender goroutine.
	// Lines beyond it are dropped.
	QueueSize int
}

// Client emits metrics over UDP using the StatsD line protocol.
// Writes never block the caller; a single goroutine owns the socket.
type Client struct {
	prefix     string
	globalTags map[string]string
	logger     *slog.Logger

	queue chan string
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

var _ Sink = (*Client)(nil)

// FromConfig builds a client from the application metrics settings.
func FromConfig(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*Client, error) {
	return NewClient(Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  "imgforge",
		Logger:  logger,
	})
}

// NewClient dials the configured StatsD endpoint unless disabled. A disabled
// client is valid and discards everything.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		prefix:     sanitizePrefix(cfg.Prefix),
		globalTags: cloneTags(cfg.GlobalTags),
		logger:     logger.With("component", "statsd"),
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	client.queue = make(chan string, size)
	client.done = make(chan struct{})
	go client.send(conn)

	return client, nil
}

// Enabled reports whether the client actively emits metrics.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue != nil && !c.closed
}

// Count increments a counter metric.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.enqueue(name, strconv.FormatInt(value, 10)+"|c", tags)
}

// Gauge records the current value for a gauge metric.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.enqueue(name, formatFloat(value)+"|g", tags)
}

// Timing records a timing metric in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	ms := float64(value) / float64(time.Millisecond)
	c.enqueue(name, formatFloat(ms)+"|ms", tags)
}

// Close flushes queued lines and releases the UDP socket. Lines dropped on a
// full queue are reported once here. It is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.closed || c.queue == nil {
		c.closed = true
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	<-c.done
	if n := c.dropped.Load(); n > 0 {
		c.logger.Warn("statsd queue overflowed, lines dropped", "dropped", n)
	}
	return nil
}

func (c *Client) enqueue(name, payload string, tags map[string]string) {
	if c == nil {
		return
	}
	metric := c.metricName(name)
	if metric == "" {
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.queue == nil {
		return
	}

	select {
	case c.queue <- metric + ":" + payload + formatTags(c.globalTags, tags):
	default:
		c.dropped.Add(1)
	}
}

func (c *Client) send(conn net.Conn) {
	defer close(c.done)
	defer func() {
		if err := conn.Close(); err != nil {
			c.logger.Debug("statsd close failed", "error", err)
		}
	}()

	for line := range c.queue {
		if _, err := conn.Write([]byte(line)); err != nil {
			c.logger.Debug("statsd write failed", "error", err)
		}
	}
}

func (c *Client) metricName(name string) string {
	normalized := normalizeMetricName(name)
	switch {
	case normalized == "":
		return ""
	case c.prefix == "":
		return normalized
	default:
		return c.prefix + "." + normalized
	}
}

func sanitizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), ".")
}

// normalizeMetricName maps spaces and slashes to underscores and collapses
// empty path segments.
func normalizeMetricName(name string) string {
	n := strings.NewReplacer(" ", "_", "/", "_").Replace(strings.TrimSpace(name))
	parts := strings.FieldsFunc(n, func(r rune) bool { return r == '.' })
	return strings.Join(parts, ".")
}

func formatTags(global, local map[string]string) string {
	merged := cloneTags(global)
	maps.Copy(merged, cloneTags(local))
	if len(merged) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("|#")
	for i, k := range slices.Sorted(maps.Keys(merged)) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(merged[k])
	}
	return b.String()
}

func cloneTags(tags map[string]string) map[string]string {
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := strings.TrimSpace(k); key != "" {
			cp[key] = strings.TrimSpace(v)
		}
	}
	return cp
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
