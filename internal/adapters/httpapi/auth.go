package httpapi

import (
	"net/http"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/app"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/httpjson"
	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	accounts *app.AccountService
	auth     func(http.Handler) http.Handler
	limiter  *ipLimiter
}

func NewAuthHandler(accounts *app.AccountService, auth func(http.Handler) http.Handler, limiter *ipLimiter) *AuthHandler {
	return &AuthHandler{accounts: accounts, auth: auth, limiter: limiter}
}

func (h *AuthHandler) Routes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Use(h.limiter.Middleware)

		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
		r.Post("/confirm", h.confirm)
		r.Post("/password/reset", h.requestReset)
		r.Post("/password/reset/confirm", h.confirmReset)

		r.Group(func(r chi.Router) {
			r.Use(h.auth)
			r.Post("/logout", h.logout)
			r.Get("/session", h.session)
			r.Put("/password", h.changePassword)
		})
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token    string `json:"token"`
	Password string `json:"password,omitempty"`
}

type resetRequest struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpjson.Decode(r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	res, err := h.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.PendingConfirmation {
		status = http.StatusAccepted
	}
	httpjson.Write(w, status, res)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpjson.Decode(r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	session, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, session)
}

func (h *AuthHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httpjson.Decode(r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	session, err := h.accounts.ConfirmEmail(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, session)
}

func (h *AuthHandler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpjson.Decode(r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	if err := h.accounts.SendPasswordReset(r.Context(), req.Email, req.RedirectURL); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *AuthHandler) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httpjson.Decode(r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	if err := h.accounts.SignOut(r.Context(), session.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	httpjson.Write(w, http.StatusOK, session)
}

func (h *AuthHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), session, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
