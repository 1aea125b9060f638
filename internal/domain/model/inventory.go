package model

// Device is a removable block device that can be flashed.
type Device struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      string `json:"size"`
	Removable bool   `json:"removable"`
}

// Image is a stored build artifact.
type Image struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SizeMB   int64  `json:"size_mb"`
	Modified int64  `json:"modified"`
}

// ImageListing is the response body for the image inventory.
type ImageListing struct {
	Images      []Image `json:"images"`
	StoragePath string  `json:"storage_path"`
}
