package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"persona/internal/domain"
)

// readImage pulls the "image" part out of a multipart request. found is false
// when the request has no such part.
func (a *App) readImage(w http.ResponseWriter, r *http.Request) (img domain.InputImage, found bool, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(a.maxUpload); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return domain.InputImage{}, false, nil
		}
		return domain.InputImage{}, false, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return domain.InputImage{}, false, nil
		}
		return domain.InputImage{}, false, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return domain.InputImage{}, false, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	img = domain.InputImage{Data: data, Filename: header.Filename, ContentType: contentType}
	if err := img.Validate(); err != nil {
		return domain.InputImage{}, true, err
	}
	return img, true, nil
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(encoded, filename string) (domain.InputImage, error) {
	encoded = strings.TrimSpace(encoded)
	contentType := ""
	if strings.HasPrefix(encoded, "data:") {
		meta, payload, ok := strings.Cut(encoded, ",")
		if !ok {
			return domain.InputImage{}, fmt.Errorf("%w: malformed data url", domain.ErrInvalidImage)
		}
		contentType, _, _ = strings.Cut(strings.TrimPrefix(meta, "data:"), ";")
		encoded = payload
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.InputImage{}, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if strings.TrimSpace(filename) == "" {
		filename = "upload" + extensionFor(contentType)
	}
	img := domain.InputImage{Data: data, Filename: filename, ContentType: contentType}
	if err := img.Validate(); err != nil {
		return domain.InputImage{}, err
	}
	return img, nil
}

var commonExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

func extensionFor(contentType string) string {
	if ext, ok := commonExtensions[contentType]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
