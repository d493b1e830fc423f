package domain

import (
	"path/filepath"
	"strings"
)

// AssetHandle is the engine-side filename assigned to an uploaded image.
type AssetHandle string

// InputImage is the face photo a persona is generated from.
type InputImage struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Ext returns the extension of the original filename as given, if any.
func (i InputImage) Ext() string {
	return filepath.Ext(strings.TrimSpace(i.Filename))
}

// Validate reports whether the image carries any bytes.
func (i InputImage) Validate() error {
	if len(i.Data) == 0 {
		return ErrInvalidImage
	}
	return nil
}

// Artifact is a generated image fetched back from the engine.
type Artifact struct {
	Filename    string
	Subfolder   string
	ContentType string
	Data        []byte
}
