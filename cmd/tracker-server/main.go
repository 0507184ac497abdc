package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/adapters/httpapi"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/adapters/mailer"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/adapters/memorybus"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/adapters/objectstore"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/adapters/sqlite"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/app"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/buildinfo"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRACKER_CONFIG"), "Fichier de configuration TOML")
	initConfig := flag.String("init-config", "", "Écrit un fichier de configuration d'exemple puis quitte")
	addr := flag.String("addr", "", "Adresse d'écoute (ex: 127.0.0.1:8080)")
	dbPath := flag.String("db", "", "Chemin SQLite (ex: tracker.db)")
	postersDir := flag.String("posters-dir", "", "Répertoire de stockage des affiches")
	logLevel := flag.String("log-level", "", "Niveau de log (debug, info, warn, error)")
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateConfigFile(*initConfig); err != nil {
			fmt.Fprintln(os.Stderr, "Erreur:", err)
			os.Exit(1)
		}
		fmt.Println("config written to", *initConfig)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Erreur de configuration:", err)
		os.Exit(2)
	}
	// Les options explicites ont le dernier mot.
	overrideIfSet(&cfg.Server.Addr, *addr)
	overrideIfSet(&cfg.Database.Path, *dbPath)
	overrideIfSet(&cfg.Posters.Dir, *postersDir)
	overrideIfSet(&cfg.Log.Level, *logLevel)

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "tracker-server").Logger()
	if lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err == nil && lvl != zerolog.NoLevel {
		logger = logger.Level(lvl)
	}
	log.Logger = logger

	logger.Info().Interface("build", buildinfo.Current()).Str("db", cfg.Database.Path).Msg("starting")

	ctx := context.Background()
	db, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open db")
	}
	defer func() { _ = db.Close() }()

	store, err := objectstore.New(filepath.Clean(cfg.Posters.Dir), strings.TrimRight(cfg.Server.PublicURL, "/")+"/storage")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open poster storage")
	}

	bus := memorybus.New()
	defer bus.Close()

	posters := app.NewPosterService(store, cfg.Posters.Bucket, cfg.Posters.MaxBytes)
	titles := app.NewTitleService(
		logger.With().Str("component", "titles").Logger(),
		sqlite.NewTitlesRepository(db.SQL),
		posters,
		bus,
		app.NewBusyGate(),
	)
	library := app.NewLibraryService(titles, sqlite.NewViewStateRepository(db.SQL), cfg.Posters.PlaceholderURL)
	accounts := app.NewAccountService(
		logger.With().Str("component", "accounts").Logger(),
		sqlite.NewUsersRepository(db.SQL),
		sqlite.NewSessionsRepository(db.SQL),
		sqlite.NewTokensRepository(db.SQL),
		mailer.NewLog(logger),
		bus,
		app.AccountOptions{
			SessionTTL:          cfg.Auth.SessionTTL,
			TokenTTL:            cfg.Auth.ResetTTL,
			RequireConfirmation: cfg.Auth.RequireConfirmation,
			PublicURL:           cfg.Server.PublicURL,
			RedirectHosts:       cfg.Auth.RedirectHosts,
		},
	)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := app.NewSessionSweeper(logger.With().Str("component", "session-sweeper").Logger(), accounts, cfg.Auth.SweepInterval)
	go sweeper.Run(shutdownCtx)

	srv := httpapi.NewServer(logger, titles, library, accounts, bus, httpapi.Options{
		RequestTimeout:    cfg.Server.RequestTimeout,
		TrustProxy:        cfg.Server.TrustProxy,
		AuthRatePerMinute: cfg.Auth.RatePerMinute,
		PosterMaxBytes:    cfg.Posters.MaxBytes,
		Storage:           store.Handler(),
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	// Ferme les flux SSE avant d'attendre les requêtes en cours.
	bus.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	logger.Info().Msg("bye")
}

func overrideIfSet(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
