package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"persona/internal/domain"
)

// PersonaRepositoryMemory keeps persona records in process memory. It backs
// STORE_DRIVER=memory and tests.
type PersonaRepositoryMemory struct {
	mu      sync.RWMutex
	records map[string]domain.PersonaRecord
	now     func() time.Time
}

func NewPersonaRepositoryMemory() *PersonaRepositoryMemory {
	return &PersonaRepositoryMemory{records: map[string]domain.PersonaRecord{}, now: time.Now}
}

func (r *PersonaRepositoryMemory) SaveImages(ctx context.Context, uid string, images map[domain.Emotion]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return fmt.Errorf("repo: uid is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uid]
	if !ok {
		rec = domain.PersonaRecord{UID: uid, Images: map[domain.Emotion]string{}}
	}
	for e, url := range images {
		rec.Images[e] = url
	}
	rec.UpdatedAt = r.now().UTC()
	r.records[uid] = rec
	return nil
}

func (r *PersonaRepositoryMemory) Get(ctx context.Context, uid string) (*domain.PersonaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[strings.TrimSpace(uid)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := rec
	out.Images = make(map[domain.Emotion]string, len(rec.Images))
	for e, url := range rec.Images {
		out.Images[e] = url
	}
	return &out, nil
}

var _ domain.PersonaRepository = (*PersonaRepositoryMemory)(nil)
