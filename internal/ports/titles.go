package ports

import (
	"context"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
)

// TitleRepository persiste les titres et leurs saisons.
// Toutes les lectures renvoient les saisons triées par numéro.
type TitleRepository interface {
	// ListByOwner renvoie les titres du plus récent au plus ancien.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Title, error)
	Get(ctx context.Context, id string) (domain.Title, error)
	// Create insère le titre et ses saisons dans une même transaction.
	Create(ctx context.Context, title domain.Title) (domain.Title, error)
	// Update écrit les champs du titre. Si replaceSeasons est vrai, toutes les
	// saisons existantes sont supprimées puis title.Seasons insérées, dans la
	// même transaction.
	Update(ctx context.Context, title domain.Title, replaceSeasons bool) (domain.Title, error)
	// Delete supprime les saisons puis le titre.
	Delete(ctx context.Context, id string) error
	InsertSeason(ctx context.Context, season domain.Season) (domain.Season, error)
	// ApplySeasonProgress écrit lastWatched pour chaque saison, dans l'ordre
	// donné, de façon atomique.
	ApplySeasonProgress(ctx context.Context, titleID string, seasons []domain.Season) error
	SetWatched(ctx context.Context, id string, watched bool) (domain.Title, error)
}

// ViewStateRepository conserve l'état de la bibliothèque par utilisateur.
type ViewStateRepository interface {
	Get(ctx context.Context, userID string) (domain.Filter, error)
	Put(ctx context.Context, userID string, state domain.Filter) (domain.Filter, error)
}
