package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"persona/internal/domain"
	"persona/internal/infra"
	"persona/internal/locale"
	"persona/internal/middleware"
	"persona/internal/persona"
)

const defaultMaxUpload = 20 << 20

// PersonaService runs generation batches. *persona.Generator implements it.
type PersonaService interface {
	Generate(ctx context.Context, uid string, img domain.InputImage, observe persona.Observer) (domain.PersonaResult, error)
	Regenerate(ctx context.Context, uid string, emotion domain.Emotion, img domain.InputImage) (domain.GenerationResult, error)
}

// Options wires the handler container.
type Options struct {
	Personas       PersonaService
	Store          domain.PersonaRepository
	Defaults       persona.Defaults
	Logger         *infra.Logger
	MaxUploadBytes int64
	AllowedOrigins []string
}

type App struct {
	personas  PersonaService
	store     domain.PersonaRepository
	defaults  persona.Defaults
	logger    *infra.Logger
	maxUpload int64
	upgrader  websocket.Upgrader
}

func NewApp(opts Options) *App {
	a := &App{
		personas:  opts.Personas,
		store:     opts.Store,
		defaults:  opts.Defaults,
		logger:    opts.Logger,
		maxUpload: opts.MaxUploadBytes,
	}
	if a.logger == nil {
		a.logger = infra.NopLogger()
	}
	if a.maxUpload <= 0 {
		a.maxUpload = defaultMaxUpload
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return a
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, codeStr, msg string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: codeStr, Message: msg}})
}

// fail maps request-level errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	loc := middleware.LocaleFromContext(r.Context())
	switch {
	case errors.Is(err, domain.ErrInvalidImage):
		a.error(w, http.StatusBadRequest, "invalid_image", locale.T(loc, locale.InvalidImage))
	case errors.Is(err, domain.ErrUnknownEmotion):
		a.error(w, http.StatusBadRequest, "unknown_emotion", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", locale.T(loc, locale.PersonaNotFound))
	case errors.Is(err, domain.ErrTemplateNotFound):
		a.logger.Error().Err(err).Msg("workflow template missing")
		a.error(w, http.StatusInternalServerError, string(domain.KindTemplateNotFound), locale.T(loc, locale.ServerError))
	case errors.Is(err, domain.ErrMalformedTemplate):
		a.logger.Error().Err(err).Msg("workflow template malformed")
		a.error(w, http.StatusInternalServerError, string(domain.KindMalformedTemplate), locale.T(loc, locale.ServerError))
	default:
		a.logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", locale.T(loc, locale.ServerError))
	}
}
