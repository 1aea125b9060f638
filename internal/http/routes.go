// Package httpx exposes the imgforge job engine over HTTP and websockets.
package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
)

// JobService is the orchestration surface the job handlers drive.
type JobService interface {
	SubmitBuild(ctx context.Context, cfg model.BuildConfiguration) (model.Job, error)
	SubmitFlash(ctx context.Context, req model.FlashRequest) (model.Job, error)
	Cancel(ctx context.Context, jobID string) (model.Job, error)
}

// ImageLister lists stored build artifacts.
type ImageLister interface {
	List(ctx context.Context) (model.ImageListing, error)
}

// UploadSaver stores an uploaded file and returns its final path.
type UploadSaver interface {
	Save(filename string, r io.Reader) (string, error)
}

// ConfigRecordReader loads the rendered environment recorded for a build.
type ConfigRecordReader interface {
	ReadConfigRecord(jobID string) (map[string]string, error)
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     JobService        // Required
	Registry core.JobRegistry  // Required
	Logs     core.LogSink      // Required
	Devices  core.DeviceLister // Optional: /api/devices answers 500 when nil
	Wifi     core.WifiLister   // Optional
	Images   ImageLister       // Optional
	Uploads  UploadSaver       // Optional
	Records  ConfigRecordReader

	// AllowedOrigins restricts websocket upgrades; empty or "*" allows any.
	AllowedOrigins []string
	// WSWriteTimeout bounds each websocket message write.
	WSWriteTimeout time.Duration
	// MaxUploadBytes caps upload, build and flash bodies; zero disables the cap.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewRouter creates and configures a new HTTP router. Middleware is applied by the caller.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{
		Svc:          services.Jobs,
		Registry:     services.Registry,
		Records:      services.Records,
		MaxBodyBytes: services.MaxUploadBytes,
	}
	inventory := &InventoryHandlers{
		Devices: services.Devices,
		Wifi:    services.Wifi,
		Images:  services.Images,
		Logger:  logger.With("component", "inventory_handlers"),
	}
	uploads := &UploadHandlers{
		Store:    services.Uploads,
		MaxBytes: services.MaxUploadBytes,
		Logger:   logger.With("component", "upload_handlers"),
	}
	stream := NewLogStreamHandler(LogStreamOptions{
		Logs:           services.Logs,
		AllowedOrigins: services.AllowedOrigins,
		WriteTimeout:   services.WSWriteTimeout,
		Logger:         logger,
	})

	registerJobRoutes(mux, jobHandlers)
	registerInventoryRoutes(mux, inventory)
	mux.HandleFunc("POST /api/upload", uploads.Upload)
	mux.Handle("GET /api/ws/{job_id}", stream)

	for _, path := range []string{"/api/health", "/health"} {
		mux.HandleFunc("GET "+path, healthHandler)
		mux.HandleFunc("HEAD "+path, healthHandler)
	}

	return mux
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /api/build", h.Build)
	mux.HandleFunc("POST /api/flash", h.Flash)
	mux.HandleFunc("GET /api/jobs", h.List)
	mux.HandleFunc("GET /api/jobs/{id}", h.Get)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", h.Cancel)
	mux.HandleFunc("GET /api/jobs/{id}/config", h.Config)
}

func registerInventoryRoutes(mux *http.ServeMux, h *InventoryHandlers) {
	mux.HandleFunc("GET /api/devices", h.ListDevices)
	mux.HandleFunc("GET /api/images", h.ListImages)
	mux.HandleFunc("GET /api/wifi-devices", h.WifiNetworks)
}
