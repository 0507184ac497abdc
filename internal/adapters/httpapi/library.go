package httpapi

import (
	"net/http"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/app"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

type LibraryHandler struct {
	library *app.LibraryService
}

func NewLibraryHandler(library *app.LibraryService) *LibraryHandler {
	return &LibraryHandler{library: library}
}

func (h *LibraryHandler) Routes(r chi.Router) {
	r.Get("/library", h.view)
	r.Get("/library/state", h.getState)
	r.Put("/library/state", h.putState)
	r.Get("/statuses", h.statuses)
}

// view : un paramètre absent conserve la valeur mémorisée, un paramètre
// présent (même vide) la remplace.
func (h *LibraryHandler) view(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var patch app.StatePatch
	if q.Has("status") {
		v := q.Get("status")
		patch.Status = &v
	}
	if q.Has("q") {
		v := q.Get("q")
		patch.Query = &v
	}
	view, err := h.library.View(r.Context(), session.UserID, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, view)
}

func (h *LibraryHandler) getState(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	state, err := h.library.State(r.Context(), session.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, state)
}

func (h *LibraryHandler) putState(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	var state domain.Filter
	if err := httpjson.Decode(r, &state); err != nil {
		writeBadJSON(w)
		return
	}
	updated, err := h.library.SetState(r.Context(), session.UserID, state)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, updated)
}

func (h *LibraryHandler) statuses(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, domain.DefaultStatuses())
}
