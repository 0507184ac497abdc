package domain

import (
	"strings"
	"time"
)

type Kind string

const (
	KindSeries Kind = "Series"
	KindMovie  Kind = "Movie"
)

func (k Kind) Valid() bool {
	return k == KindSeries || k == KindMovie
}

// Statuts proposés par l'interface. La liste reste ouverte : tout libellé
// non vide est accepté et sert uniquement au filtrage.
const (
	StatusWatching    = "Watching"
	StatusCompleted   = "Completed"
	StatusPlanToWatch = "Plan to Watch"
	StatusDropped     = "Dropped"

	// StatusAll n'est pas un statut stockable : c'est la valeur "tous" du filtre.
	StatusAll = "all"
)

func DefaultStatuses() []string {
	return []string{StatusWatching, StatusCompleted, StatusPlanToWatch, StatusDropped}
}

type Title struct {
	ID      string
	OwnerID string

	Name      string
	Kind      Kind
	Status    string
	PosterURL string

	// Watched n'a de sens que pour un film.
	Watched bool

	// Seasons est toujours vide pour un film, triée par numéro pour une série.
	Seasons []Season

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t Title) IsSeries() bool { return t.Kind == KindSeries }

type Season struct {
	ID            string
	TitleID       string
	Number        int
	TotalEpisodes int
	LastWatched   int
}

// NormalizeName applique les règles communes aux noms de titres.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Invalid("name", "must not be empty")
	}
	return name, nil
}

func NormalizeStatus(status string) (string, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return "", Invalid("status", "must not be empty")
	}
	if strings.EqualFold(status, StatusAll) {
		return "", Invalid("status", `"all" is reserved for filtering`)
	}
	return status, nil
}
