package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/app"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead s'ajoute à la taille max d'une affiche pour les autres champs.
const multipartOverhead = 1 << 20

type TitlesHandler struct {
	titles         *app.TitleService
	posterMaxBytes int64
}

func NewTitlesHandler(titles *app.TitleService, posterMaxBytes int64) *TitlesHandler {
	return &TitlesHandler{titles: titles, posterMaxBytes: posterMaxBytes}
}

func (h *TitlesHandler) Routes(r chi.Router) {
	r.Route("/titles", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/form/rows", h.formRows)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.update)
			r.Delete("/", h.delete)
			r.Get("/form", h.form)
			r.Post("/watched/toggle", h.toggleWatched)
			r.Post("/seasons", h.quickAddSeason)
			r.Post("/seasons/{seasonId}/increment", h.step(1))
			r.Post("/seasons/{seasonId}/decrement", h.step(-1))
		})
	})
}

// decodeTitleInput accepte du JSON, ou du multipart avec un champ "title"
// (JSON) et un fichier "poster".
func (h *TitlesHandler) decodeTitleInput(w http.ResponseWriter, r *http.Request) (app.TitleInput, bool) {
	var in app.TitleInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := httpjson.Decode(r, &in); err != nil {
			writeBadJSON(w)
			return in, false
		}
		return in, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.posterMaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.posterMaxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpjson.WriteCodedError(w, http.StatusRequestEntityTooLarge, app.CodeValidation, "request too large")
			return in, false
		}
		httpjson.WriteCodedError(w, http.StatusBadRequest, app.CodeValidation, "invalid multipart body")
		return in, false
	}
	if err := httpjson.DecodeFrom(strings.NewReader(r.FormValue("title")), &in); err != nil {
		writeBadJSON(w)
		return in, false
	}

	file, header, err := r.FormFile("poster")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, true
	case err != nil:
		httpjson.WriteCodedError(w, http.StatusBadRequest, app.CodeValidation, "invalid poster")
		return in, false
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.posterMaxBytes+1))
	if err != nil {
		httpjson.WriteCodedError(w, http.StatusBadRequest, app.CodeValidation, "invalid poster")
		return in, false
	}
	in.Poster = &app.PosterUpload{Filename: header.Filename, Data: data}
	return in, true
}

func (h *TitlesHandler) list(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	titles, err := h.titles.ListDTO(r.Context(), session.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, titles)
}

func (h *TitlesHandler) create(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeTitleInput(w, r)
	if !ok {
		return
	}
	title, err := h.titles.Create(r.Context(), session.UserID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, title)
}

func (h *TitlesHandler) get(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	title, err := h.titles.Get(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, title)
}

func (h *TitlesHandler) update(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeTitleInput(w, r)
	if !ok {
		return
	}
	title, err := h.titles.Update(r.Context(), session.UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, title)
}

func (h *TitlesHandler) delete(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	if err := h.titles.Delete(r.Context(), session.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TitlesHandler) toggleWatched(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	title, err := h.titles.ToggleWatched(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, title)
}

func (h *TitlesHandler) quickAddSeason(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	var req struct {
		TotalEpisodes domain.FormInt `json:"totalEpisodes"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	title, err := h.titles.QuickAddSeason(r.Context(), session.UserID, chi.URLParam(r, "id"), string(req.TotalEpisodes))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, title)
}

func (h *TitlesHandler) step(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := mustSession(w, r)
		if !ok {
			return
		}
		title, err := h.titles.StepEpisode(r.Context(), session.UserID, chi.URLParam(r, "id"), chi.URLParam(r, "seasonId"), delta)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpjson.Write(w, http.StatusOK, title)
	}
}

type formRowsResponse struct {
	Rows []domain.SeasonRow `json:"rows"`
}

func (h *TitlesHandler) form(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	rows, err := h.titles.Form(r.Context(), session.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, formRowsResponse{Rows: rows})
}

// formRows ajoute une ligne au formulaire, ou retire celle désignée par
// "remove". Sans lignes, renvoie le formulaire vierge d'un nouveau titre.
func (h *TitlesHandler) formRows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows   []domain.SeasonRow `json:"rows"`
		Remove string             `json:"remove,omitempty"`
	}
	if err := httpjson.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadJSON(w)
		return
	}
	var rows []domain.SeasonRow
	switch {
	case strings.TrimSpace(req.Remove) != "":
		rows = domain.RemoveRow(req.Rows, req.Remove)
	case len(req.Rows) == 0:
		rows = domain.EditForm(nil)
	default:
		rows = domain.AddRow(req.Rows)
	}
	httpjson.Write(w, http.StatusOK, formRowsResponse{Rows: rows})
}
