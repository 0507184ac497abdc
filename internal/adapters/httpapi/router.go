package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/app"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

type Options struct {
	RequestTimeout time.Duration
	// TrustProxy fait confiance à X-Forwarded-For / X-Real-IP pour l'adresse
	// client. Sans proxy devant le serveur, ces en-têtes sont ignorés.
	TrustProxy bool
	// AuthRatePerMinute limite /auth par IP ; 0 désactive la limite.
	AuthRatePerMinute int
	PosterMaxBytes    int64
	// Storage sert les objets publics sous /storage ; optionnel.
	Storage http.Handler
}

type Server struct {
	logger   zerolog.Logger
	titles   *app.TitleService
	library  *app.LibraryService
	accounts *app.AccountService
	bus      ports.EventBus
	opts     Options
}

func NewServer(logger zerolog.Logger, titles *app.TitleService, library *app.LibraryService, accounts *app.AccountService, bus ports.EventBus, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.PosterMaxBytes <= 0 {
		opts.PosterMaxBytes = app.DefaultPosterMaxBytes
	}
	return &Server{logger: logger, titles: titles, library: library, accounts: accounts, bus: bus, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	if s.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))

	if s.opts.Storage != nil {
		r.Handle("/storage/*", http.StripPrefix("/storage", s.opts.Storage))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Le flux SSE échappe au timeout des requêtes.
		if s.accounts != nil {
			r.With(s.requireSession).Get("/events", s.handleEvents)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))

			r.Get("/health", s.handleHealth)
			r.Get("/version", s.handleVersion)
			r.Get("/openapi.json", s.handleOpenAPI)

			if s.accounts == nil {
				return
			}
			NewAuthHandler(s.accounts, s.requireSession, newIPLimiter(s.opts.AuthRatePerMinute)).Routes(r)

			r.Group(func(r chi.Router) {
				r.Use(s.requireSession)
				if s.titles != nil {
					NewTitlesHandler(s.titles, s.opts.PosterMaxBytes).Routes(r)
				}
				if s.library != nil {
					NewLibraryHandler(s.library).Routes(r)
				}
			})
		})
	})

	return r
}
