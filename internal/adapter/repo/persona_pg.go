package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"persona/internal/domain"
	"persona/internal/infra"
	"persona/internal/sqlinline"
)

// PersonaRepositoryPG stores persona images as a jsonb object per uid.
type PersonaRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPersonaRepositoryPG creates a repository on top of the marked-query runner.
func NewPersonaRepositoryPG(sql infra.SQLExecutor) *PersonaRepositoryPG {
	return &PersonaRepositoryPG{sql: sql}
}

// EnsureSchema creates the personas table when missing.
func (r *PersonaRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QEnsurePersonasTable); err != nil {
		return fmt.Errorf("repo: ensure personas table: %w", err)
	}
	return nil
}

// SaveImages merges images into the stored object; other emotions are kept.
func (r *PersonaRepositoryPG) SaveImages(ctx context.Context, uid string, images map[domain.Emotion]string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return fmt.Errorf("repo: uid is required")
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("repo: encode images: %w", err)
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertPersonaImages, uid, string(payload)); err != nil {
		return fmt.Errorf("repo: upsert persona %s: %w", uid, err)
	}
	return nil
}

func (r *PersonaRepositoryPG) Get(ctx context.Context, uid string) (*domain.PersonaRecord, error) {
	var (
		rec     domain.PersonaRecord
		raw     []byte
		updated time.Time
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectPersona, strings.TrimSpace(uid)).Scan(&rec.UID, &raw, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: select persona %s: %w", uid, err)
	}
	rec.Images = map[domain.Emotion]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.Images); err != nil {
			return nil, fmt.Errorf("repo: decode images: %w", err)
		}
	}
	rec.UpdatedAt = updated
	return &rec, nil
}

var _ domain.PersonaRepository = (*PersonaRepositoryPG)(nil)
