package httpx

import (
	"log/slog"
	"net/http"

	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/domain/model"
	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

// InventoryHandlers serves the device, image and Wi-Fi listings.
type InventoryHandlers struct {
	Devices core.DeviceLister
	Wifi    core.WifiLister
	Images  ImageLister
	Logger  *slog.Logger
}

// ListDevices handles GET /api/devices.
func (h *InventoryHandlers) ListDevices(w http.ResponseWriter, r *http.Request) {
	if h.Devices == nil {
		h.fail(w, r, apperrors.Internal("device listing is not configured"), "list devices")
		return
	}
	devices, err := h.Devices.ListDevices(r.Context())
	if err != nil {
		h.fail(w, r, err, "list devices")
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}
	WriteJSON(w, http.StatusOK, devices)
}

// ListImages handles GET /api/images.
func (h *InventoryHandlers) ListImages(w http.ResponseWriter, r *http.Request) {
	if h.Images == nil {
		WriteJSON(w, http.StatusOK, model.ImageListing{Images: []model.Image{}})
		return
	}
	listing, err := h.Images.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "list images")
		return
	}
	WriteJSON(w, http.StatusOK, listing)
}

// WifiNetworks handles GET /api/wifi-devices. Each entry is "<n>: <ssid>".
func (h *InventoryHandlers) WifiNetworks(w http.ResponseWriter, r *http.Request) {
	if h.Wifi == nil {
		WriteJSON(w, http.StatusOK, []string{})
		return
	}
	networks, err := h.Wifi.ListNetworks(r.Context())
	if err != nil {
		h.fail(w, r, err, "list wifi networks")
		return
	}
	if networks == nil {
		networks = []string{}
	}
	WriteJSON(w, http.StatusOK, networks)
}

func (h *InventoryHandlers) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	if h.Logger != nil {
		h.Logger.ErrorContext(r.Context(), op+" failed", "error", err)
	}
	WriteAppError(w, err)
}
