package domain

import "context"

// PersonaRepository persists generated persona image URLs keyed by user id.
// SaveImages merges: emotions missing from images keep their stored value.
type PersonaRepository interface {
	SaveImages(ctx context.Context, uid string, images map[Emotion]string) error
	Get(ctx context.Context, uid string) (*PersonaRecord, error)
}
