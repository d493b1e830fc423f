package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"persona/internal/domain"
)

// PersonaCollection is the collection persona documents live in.
const PersonaCollection = "personas"

// PersonaRepositoryMongo writes one document per uid (the document _id) with
// one top-level field per emotion.
type PersonaRepositoryMongo struct {
	coll *mongo.Collection
}

func NewPersonaRepositoryMongo(db *mongo.Database) *PersonaRepositoryMongo {
	return &PersonaRepositoryMongo{coll: db.Collection(PersonaCollection)}
}

func (r *PersonaRepositoryMongo) SaveImages(ctx context.Context, uid string, images map[domain.Emotion]string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return fmt.Errorf("repo: uid is required")
	}
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": uid},
		imagesUpdate(images, time.Now().UTC()),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("repo: upsert persona %s: %w", uid, err)
	}
	return nil
}

func (r *PersonaRepositoryMongo) Get(ctx context.Context, uid string) (*domain.PersonaRecord, error) {
	var doc bson.M
	err := r.coll.FindOne(ctx, bson.M{"_id": strings.TrimSpace(uid)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: find persona %s: %w", uid, err)
	}
	return recordFromDoc(doc), nil
}

func imagesUpdate(images map[domain.Emotion]string, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	for e, url := range images {
		set[string(e)] = url
	}
	return bson.M{"$set": set}
}

func recordFromDoc(doc bson.M) *domain.PersonaRecord {
	rec := &domain.PersonaRecord{Images: map[domain.Emotion]string{}}
	if id, ok := doc["_id"].(string); ok {
		rec.UID = id
	}
	for _, e := range domain.Emotions {
		if url, ok := doc[string(e)].(string); ok && url != "" {
			rec.Images[e] = url
		}
	}
	switch ts := doc["updated_at"].(type) {
	case time.Time:
		rec.UpdatedAt = ts
	case interface{ Time() time.Time }:
		rec.UpdatedAt = ts.Time()
	}
	return rec
}

var _ domain.PersonaRepository = (*PersonaRepositoryMongo)(nil)
