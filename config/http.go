package config

import (
	"strconv"
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Port is the listening port used when Addr is not set explicitly.
	Port int `env:"PORT" envDefault:"3001"`

	// Addr is the address to bind the HTTP server to. Defaults to ":" + PORT.
	Addr string `env:"HTTP_ADDR"`

	// ReadHeaderTimeout bounds how long the server waits for request headers.
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`

	// IdleTimeout bounds keep-alive connections.
	IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// CompressionEnabled enables gzip compression for JSON responses.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip compression level (1-9).
	// Default is 6 (standard gzip default).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`

	// AllowedOrigins lists origins accepted for CORS and websocket upgrades.
	// "*" accepts any origin.
	AllowedOrigins []string `env:"HTTP_ALLOWED_ORIGINS" envDefault:"*"`

	// WSWriteTimeout bounds a single websocket message write.
	WSWriteTimeout time.Duration `env:"HTTP_WS_WRITE_TIMEOUT" envDefault:"10s"`

	// MaxUploadBytes caps the size of a multipart upload. Zero disables the cap.
	MaxUploadBytes int64 `env:"HTTP_MAX_UPLOAD_BYTES" envDefault:"17179869184"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Port <= 0 || h.Port > 65535 {
		h.Port = 3001
	}
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":" + strconv.Itoa(h.Port)
	}

	// Clamp compression level to valid gzip range (1-9)
	if h.CompressionLevel < 1 {
		h.CompressionLevel = 1
	}
	if h.CompressionLevel > 9 {
		h.CompressionLevel = 9
	}

	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.WSWriteTimeout <= 0 {
		h.WSWriteTimeout = 10 * time.Second
	}
	if h.MaxUploadBytes < 0 {
		h.MaxUploadBytes = 0
	}

	origins := make([]string, 0, len(h.AllowedOrigins))
	for _, o := range h.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	h.AllowedOrigins = origins
}

// AllowsAnyOrigin reports whether the origin allow-list is open.
func (h *HTTPConfig) AllowsAnyOrigin() bool {
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}
