package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"persona/internal/domain"
)

type personaRecordResponse struct {
	UID       string                    `json:"uid"`
	Images    map[domain.Emotion]string `json:"images"`
	UpdatedAt string                    `json:"updated_at"`
}

// GeneratePersona runs the full five-emotion batch for the uploaded face and
// stores the results under {uid}.
func (a *App) GeneratePersona(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	img, found, err := a.readImage(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !found {
		a.error(w, http.StatusBadRequest, "bad_request", "image file required")
		return
	}
	a.generate(w, r, uid, img)
}

// GenerateDefault behaves like GeneratePersona but falls back to a bundled
// face chosen by {gender} when no image is uploaded.
func (a *App) GenerateDefault(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	gender := chi.URLParam(r, "gender")
	img, found, err := a.readImage(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !found {
		img, err = a.defaults.Image(gender)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.logger.Debug().Str("uid", uid).Str("gender", gender).Str("image", img.Filename).Msg("using default image")
	}
	a.generate(w, r, uid, img)
}

func (a *App) generate(w http.ResponseWriter, r *http.Request, uid string, img domain.InputImage) {
	res, err := a.personas.Generate(r.Context(), uid, img, nil)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

// RegenerateImage reruns one emotion. With ?uid= the new URL replaces that
// emotion's stored value.
func (a *App) RegenerateImage(w http.ResponseWriter, r *http.Request) {
	emotion, err := domain.ParseEmotion(chi.URLParam(r, "emotion"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	img, found, err := a.readImage(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !found {
		a.error(w, http.StatusBadRequest, "bad_request", "image file required")
		return
	}
	res, err := a.personas.Regenerate(r.Context(), r.URL.Query().Get("uid"), emotion, img)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

// GetPersona returns the stored URLs for {uid}.
func (a *App) GetPersona(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		a.error(w, http.StatusNotImplemented, "not_implemented", "no persona store configured")
		return
	}
	rec, err := a.store.Get(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, personaRecordResponse{
		UID:       rec.UID,
		Images:    rec.Images,
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
