package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/app"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/buildinfo"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/httpjson"
	"github.com/rs/zerolog/hlog"
)

const defaultRequestTimeout = 30 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, buildinfo.Current())
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	logger := hlog.FromRequest(r)
	logger.Info().
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}

func statusForCode(code string) int {
	switch code {
	case app.CodeValidation:
		return http.StatusBadRequest
	case app.CodeNotFound:
		return http.StatusNotFound
	case app.CodeConflict, app.CodeBusy:
		return http.StatusConflict
	case app.CodeRateLimited:
		return http.StatusTooManyRequests
	case app.CodeUnavailable:
		return http.StatusServiceUnavailable
	case app.CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError traduit une erreur de service en réponse JSON. Le détail
// d'un échec interne ne part que dans les logs.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := app.Classify(err)
	status := statusForCode(code)
	msg := err.Error()

	var (
		verr  *domain.ValidationError
		coded *app.CodedError
	)
	switch {
	case status == http.StatusInternalServerError:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		msg = "operation failed"
	case errors.As(err, &verr):
		msg = verr.Error()
	case errors.As(err, &coded) && coded.Message != "":
		msg = coded.Message
	case code == app.CodeNotFound:
		msg = "not found"
	}
	httpjson.WriteCodedError(w, status, code, msg)
}

func writeBadJSON(w http.ResponseWriter) {
	httpjson.WriteCodedError(w, http.StatusBadRequest, app.CodeValidation, "invalid json")
}
