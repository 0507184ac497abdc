package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Usage:   "URL du serveur",
			Value:   "http://127.0.0.1:8080",
			Sources: cli.EnvVars("TRACKER_SERVER_URL"),
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Jeton de session (sinon lu depuis --token-file)",
			Sources: cli.EnvVars("TRACKER_TOKEN"),
		},
		&cli.StringFlag{
			Name:  "token-file",
			Usage: "Fichier où login enregistre le jeton",
			Value: defaultTokenFile(),
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout HTTP",
			Value: 10 * time.Second,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Affiche la réponse JSON brute",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Logs détaillés",
		},
	}
}

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Sources: cli.EnvVars("TRACKER_PASSWORD"), Required: true},
	}
}

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		{Name: "health", Usage: "Vérifie que le serveur répond", Action: r.Health},
		{Name: "version", Usage: "Version du serveur", Action: r.ServerVersion},
		{Name: "signup", Usage: "Crée un compte", Flags: credentialFlags(), Action: r.Signup},
		{Name: "login", Usage: "Ouvre une session et enregistre le jeton", Flags: credentialFlags(), Action: r.Login},
		{Name: "logout", Usage: "Ferme la session courante", Action: r.Logout},
		{
			Name:  "reset-password",
			Usage: "Demande un lien de réinitialisation",
			Flags: []cli.Flag{&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true}},
			Action: r.ResetPassword,
		},
		{
			Name:    "list",
			Aliases: []string{"ls"},
			Usage:   "Affiche la bibliothèque",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "status", Usage: `Filtre de statut ("all" pour tout)`},
				&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Recherche dans les noms"},
			},
			Action: r.List,
		},
		{
			Name:      "show",
			Usage:     "Détail d'un titre",
			Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
			Action:    r.Show,
		},
		{
			Name:  "add",
			Usage: "Ajoute un titre",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
				&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: "Series", Usage: "Series ou Movie"},
				&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Value: "Plan to Watch"},
				&cli.StringSliceFlag{Name: "season", Usage: "total[:vus], répétable, dans l'ordre des saisons"},
				&cli.BoolFlag{Name: "watched", Usage: "Film déjà vu"},
				&cli.StringFlag{Name: "poster", Usage: "Image d'affiche à envoyer"},
			},
			Action: r.Add,
		},
		{
			Name:      "step",
			Usage:     "Avance (ou recule avec --down) d'un épisode",
			Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "season", Usage: "Id de saison (défaut : saison courante)"},
				&cli.BoolFlag{Name: "down", Usage: "Décrémente au lieu d'incrémenter"},
			},
			Action: r.Step,
		},
		{
			Name:      "season-add",
			Usage:     "Ajoute la saison suivante",
			Arguments: []cli.Argument{&cli.StringArg{Name: "id"}, &cli.StringArg{Name: "total"}},
			Action:    r.SeasonAdd,
		},
		{
			Name:      "toggle",
			Usage:     "Bascule l'état vu d'un film",
			Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
			Action:    r.Toggle,
		},
		{
			Name:      "delete",
			Aliases:   []string{"rm"},
			Usage:     "Supprime un titre",
			Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
			Action:    r.Delete,
		},
	}
}
