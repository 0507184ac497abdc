package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Événements de session publiés sur TopicSessionChanged.
const (
	SessionSignedIn        = "signed_in"
	SessionSignedOut       = "signed_out"
	SessionPasswordChanged = "password_changed"
)

type AccountOptions struct {
	SessionTTL time.Duration
	TokenTTL   time.Duration
	// RequireConfirmation : l'inscription attend la confirmation de l'adresse.
	RequireConfirmation bool
	// PublicURL sert à construire les liens envoyés par mail.
	PublicURL string
	// RedirectHosts autorise d'autres hôtes que celui de PublicURL pour les
	// liens de réinitialisation (ex. "app.example.com:8443").
	RedirectHosts []string
	BcryptCost    int
}

func DefaultAccountOptions() AccountOptions {
	return AccountOptions{
		SessionTTL: 7 * 24 * time.Hour,
		TokenTTL:   time.Hour,
		PublicURL:  "http://127.0.0.1:8080",
		BcryptCost: bcrypt.DefaultCost,
	}
}

type AccountService struct {
	logger   zerolog.Logger
	users    ports.UserRepository
	sessions ports.SessionRepository
	tokens   ports.TokenRepository
	mailer   ports.Mailer
	bus      ports.EventBus
	opts     AccountOptions
	now      func() time.Time
}

func NewAccountService(logger zerolog.Logger, users ports.UserRepository, sessions ports.SessionRepository, tokens ports.TokenRepository, mailer ports.Mailer, bus ports.EventBus, opts AccountOptions) *AccountService {
	def := DefaultAccountOptions()
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = def.SessionTTL
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = def.TokenTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = def.BcryptCost
	}
	if opts.PublicURL == "" {
		opts.PublicURL = def.PublicURL
	}
	return &AccountService{logger: logger, users: users, sessions: sessions, tokens: tokens, mailer: mailer, bus: bus, opts: opts, now: time.Now}
}

// SignUpResult contient soit une session, soit l'attente de confirmation.
type SignUpResult struct {
	Session             *domain.Session `json:"session,omitempty"`
	PendingConfirmation bool            `json:"pendingConfirmation"`
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AccountService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AccountService) Register(ctx context.Context, email, password string) (SignUpResult, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return SignUpResult{}, err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return SignUpResult{}, err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return SignUpResult{}, err
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:           xid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Confirmed:    !s.opts.RequireConfirmation,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return SignUpResult{}, err
	}

	if !user.Confirmed {
		if err := s.issueToken(ctx, user, domain.TokenConfirmEmail, s.opts.PublicURL+"/confirm"); err != nil {
			return SignUpResult{}, err
		}
		return SignUpResult{PendingConfirmation: true}, nil
	}
	session, err := s.openSession(ctx, user)
	if err != nil {
		return SignUpResult{}, err
	}
	return SignUpResult{Session: &session}, nil
}

func (s *AccountService) ConfirmEmail(ctx context.Context, token string) (domain.Session, error) {
	user, err := s.consumeToken(ctx, token, domain.TokenConfirmEmail)
	if err != nil {
		return domain.Session{}, err
	}
	user.Confirmed = true
	user, err = s.users.Update(ctx, user)
	if err != nil {
		return domain.Session{}, err
	}
	return s.openSession(ctx, user)
}

func (s *AccountService) Authenticate(ctx context.Context, email, password string) (domain.Session, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return domain.Session{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Session{}, ErrInvalidCredentials
		}
		return domain.Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil || !user.Confirmed {
		return domain.Session{}, ErrInvalidCredentials
	}
	return s.openSession(ctx, user)
}

func (s *AccountService) openSession(ctx context.Context, user domain.User) (domain.Session, error) {
	token, err := generateToken()
	if err != nil {
		return domain.Session{}, err
	}
	now := s.now().UTC()
	session := domain.Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.Session{}, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		// Ne fait pas échouer la connexion.
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}
	s.publishSession(user.ID, SessionSignedIn)
	return session, nil
}

// CurrentSession valide un jeton ; une session expirée est supprimée.
func (s *AccountService) CurrentSession(ctx context.Context, token string) (domain.Session, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Session{}, ErrNotAuthenticated
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Session{}, ErrNotAuthenticated
		}
		return domain.Session{}, err
	}
	if session.Expired(s.now()) {
		_ = s.sessions.Delete(ctx, token)
		return domain.Session{}, ErrNotAuthenticated
	}
	return session, nil
}

func (s *AccountService) SignOut(ctx context.Context, token string) error {
	session, err := s.CurrentSession(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return err
	}
	s.publishSession(session.UserID, SessionSignedOut)
	return nil
}

// SendPasswordReset acquitte toujours, que l'adresse existe ou non.
func (s *AccountService) SendPasswordReset(ctx context.Context, email, redirectURL string) error {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Info().Str("email", email).Msg("password reset requested for unknown account")
			return nil
		}
		return err
	}
	return s.issueToken(ctx, user, domain.TokenPasswordReset, s.resetLinkBase(redirectURL))
}

// resetLinkBase n'accepte qu'une redirection vers PublicURL ou un hôte
// autorisé ; sinon le lien par défaut est utilisé. Le jeton ne doit jamais
// partir vers un hôte choisi par l'appelant.
func (s *AccountService) resetLinkBase(redirectURL string) string {
	def := strings.TrimRight(s.opts.PublicURL, "/") + "/reset-password"
	raw := strings.TrimSpace(redirectURL)
	if raw == "" {
		return def
	}
	u, err := url.Parse(raw)
	if err != nil || !s.redirectAllowed(u) {
		s.logger.Warn().Str("redirect_url", raw).Msg("reset redirect refused, using default link")
		return def
	}
	return u.String()
}

func (s *AccountService) redirectAllowed(u *url.URL) bool {
	if !u.IsAbs() || u.User != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if public, err := url.Parse(s.opts.PublicURL); err == nil &&
		strings.EqualFold(public.Scheme, u.Scheme) && strings.EqualFold(public.Host, u.Host) {
		return true
	}
	for _, host := range s.opts.RedirectHosts {
		if strings.EqualFold(strings.TrimSpace(host), u.Host) {
			return true
		}
	}
	return false
}

func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.consumeToken(ctx, token, domain.TokenPasswordReset)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, user, newPassword, "")
}

// ChangePassword conserve la session courante et révoque les autres.
func (s *AccountService) ChangePassword(ctx context.Context, session domain.Session, newPassword string) error {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.users.Get(ctx, session.UserID)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, user, newPassword, session.Token)
}

func (s *AccountService) setPassword(ctx context.Context, user domain.User, password, keepToken string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if _, err := s.users.Update(ctx, user); err != nil {
		return err
	}
	if err := s.sessions.DeleteForUser(ctx, user.ID, keepToken); err != nil {
		return err
	}
	s.publishSession(user.ID, SessionPasswordChanged)
	return nil
}

func (s *AccountService) issueToken(ctx context.Context, user domain.User, purpose domain.TokenPurpose, baseURL string) error {
	token, err := generateToken()
	if err != nil {
		return err
	}
	err = s.tokens.Create(ctx, domain.OneTimeToken{
		Hash:      hashToken(token),
		UserID:    user.ID,
		Purpose:   purpose,
		ExpiresAt: s.now().UTC().Add(s.opts.TokenTTL),
	})
	if err != nil {
		return err
	}
	if s.mailer == nil {
		return nil
	}
	return s.mailer.Send(ctx, user.Email, purpose, withToken(baseURL, token))
}

func withToken(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *AccountService) consumeToken(ctx context.Context, token string, purpose domain.TokenPurpose) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, ErrInvalidToken
	}
	t, err := s.tokens.Consume(ctx, hashToken(token), purpose, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.User{}, ErrInvalidToken
		}
		return domain.User{}, err
	}
	return s.users.Get(ctx, t.UserID)
}

// SweepExpired supprime sessions et jetons expirés.
func (s *AccountService) SweepExpired(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	m, err := s.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return n, err
	}
	return n + m, nil
}

type SessionChange struct {
	Event  string `json:"event"`
	UserID string `json:"userId"`
}

func (s *AccountService) publishSession(userID, event string) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(SessionChange{Event: event, UserID: userID})
	if err != nil {
		return
	}
	s.bus.Publish(ports.Event{Topic: ports.TopicSessionChanged, UserID: userID, Payload: b})
}
