package persona

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"persona/internal/domain"
)

// Defaults points at the bundled faces used when a caller sends no photo.
type Defaults struct {
	Male   string
	Female string
}

// Path selects the asset for gender: "female" picks the female face,
// anything else (including empty) the male one.
func (d Defaults) Path(gender string) string {
	if strings.EqualFold(strings.TrimSpace(gender), "female") {
		return d.Female
	}
	return d.Male
}

// Image loads the default face for gender.
func (d Defaults) Image(gender string) (domain.InputImage, error) {
	return LoadImage(d.Path(gender))
}

// LoadImage reads an image file from disk.
func LoadImage(path string) (domain.InputImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.InputImage{}, fmt.Errorf("persona: read image %s: %w", path, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return domain.InputImage{Data: data, Filename: filepath.Base(path), ContentType: contentType}, nil
}
