package persona

import (
	"context"
	"mime"
	"net/http"
	"path"
	"path/filepath"

	"persona/internal/comfy"
	"persona/internal/domain"
	"persona/internal/storage"
)

// ArtifactSource reads a produced image back from the engine.
type ArtifactSource interface {
	Fetch(ctx context.Context, ref comfy.ImageRef) (domain.Artifact, error)
}

// ViewSource downloads artifacts through the engine's /view endpoint, so
// the engine may run on another host.
type ViewSource struct {
	Client *comfy.Client
}

func (s ViewSource) Fetch(ctx context.Context, ref comfy.ImageRef) (domain.Artifact, error) {
	return s.Client.View(ctx, ref)
}

// DirSource reads artifacts from the engine's output directory on a shared
// filesystem.
type DirSource struct {
	Store *storage.FileStore
}

func (s DirSource) Fetch(ctx context.Context, ref comfy.ImageRef) (domain.Artifact, error) {
	key := path.Join(ref.Subfolder, ref.Filename)
	data, err := s.Store.Read(ctx, key)
	if err != nil {
		return domain.Artifact{}, err
	}
	contentType := mime.TypeByExtension(filepath.Ext(ref.Filename))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return domain.Artifact{
		Filename:    ref.Filename,
		Subfolder:   ref.Subfolder,
		ContentType: contentType,
		Data:        data,
	}, nil
}
