package handlers

import (
	"net/http"

	"persona/internal/locale"
	"persona/internal/middleware"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NetworkCheck lets clients confirm they can reach the server.
func (a *App) NetworkCheck(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"message": locale.T(middleware.LocaleFromContext(r.Context()), locale.NetworkCheckOK),
	})
}
