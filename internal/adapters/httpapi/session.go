package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/app"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type sessionKey struct{}

// bearerToken lit l'en-tête Authorization, ou access_token en query pour
// EventSource qui ne sait pas envoyer d'en-tête.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.accounts.CurrentSession(r.Context(), bearerToken(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", session.UserID)
		})
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func sessionFrom(r *http.Request) domain.Session {
	s, _ := r.Context().Value(sessionKey{}).(domain.Session)
	return s
}

// mustSession est utilisé derrière requireSession.
func mustSession(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	s := sessionFrom(r)
	if s.UserID == "" {
		writeServiceError(w, r, app.ErrNotAuthenticated)
		return domain.Session{}, false
	}
	return s, true
}
