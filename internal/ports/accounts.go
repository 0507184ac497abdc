package ports

import (
	"context"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
	// TouchLastLogin ne modifie que la date de dernière connexion.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, token string) (domain.Session, error)
	Delete(ctx context.Context, token string) error
	// DeleteForUser révoque toutes les sessions d'un utilisateur sauf keepToken.
	DeleteForUser(ctx context.Context, userID string, keepToken string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type TokenRepository interface {
	Create(ctx context.Context, token domain.OneTimeToken) error
	// Consume renvoie le jeton et le supprime. Un jeton expiré est supprimé et
	// signalé comme ErrNotFound.
	Consume(ctx context.Context, hash string, purpose domain.TokenPurpose, now time.Time) (domain.OneTimeToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Mailer transmet un jeton à usage unique à son destinataire.
type Mailer interface {
	Send(ctx context.Context, to string, purpose domain.TokenPurpose, link string) error
}
