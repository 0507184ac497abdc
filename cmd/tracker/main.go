package main

import (
	"context"
	"os"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/buildinfo"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
}

func main() {
	logger := newLogger()
	runner := NewRunner(RunnerOpts{Logger: logger})

	cmd := &cli.Command{
		Name:     "tracker",
		Usage:    "Client en ligne de commande du suivi d'animes",
		Version:  buildinfo.Current().String(),
		Flags:    globalFlags(),
		Before:   runner.configure,
		Commands: runner.register(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("command failed", "err", err)
	}
}
