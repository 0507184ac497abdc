package app

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type accountFixture struct {
	svc      *AccountService
	users    *memUsers
	sessions *memSessions
	tokens   *memTokens
	mailer   *recordingMailer
	bus      *recordingBus
}

func newAccountFixture(requireConfirmation bool) accountFixture {
	f := accountFixture{
		users:    newMemUsers(),
		sessions: newMemSessions(),
		tokens:   newMemTokens(),
		mailer:   &recordingMailer{},
		bus:      &recordingBus{},
	}
	f.svc = NewAccountService(zerolog.Nop(), f.users, f.sessions, f.tokens, f.mailer, f.bus, AccountOptions{
		RequireConfirmation: requireConfirmation,
		PublicURL:           "http://tracker.test",
		BcryptCost:          bcrypt.MinCost,
	})
	return f
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)
	return tok
}

func TestAccountService_RegisterAndAuthenticate(t *testing.T) {
	f := newAccountFixture(false)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "  Alice@Example.com ", "secret1")
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.False(t, res.PendingConfirmation)
	assert.Equal(t, "alice@example.com", res.Session.Email)

	session, err := f.svc.Authenticate(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEqual(t, res.Session.Token, session.Token)

	current, err := f.svc.CurrentSession(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Session.UserID, current.UserID)
	assert.Contains(t, f.bus.topics(), ports.TopicSessionChanged)
}

func TestAccountService_LoginDoesNotRestoreOldPassword(t *testing.T) {
	f := newAccountFixture(false)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	userID := res.Session.UserID

	// un changement de mot de passe aboutit entre la lecture et la connexion
	f.users.afterRead = func() {
		f.users.afterRead = nil
		f.users.setPasswordHash(userID, "hash-of-new-password")
	}
	_, err = f.svc.Authenticate(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	stored, err := f.users.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "hash-of-new-password", stored.PasswordHash)
	assert.False(t, stored.LastLoginAt.IsZero())
}

func TestAccountService_RegisterRejectsBadInput(t *testing.T) {
	f := newAccountFixture(false)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Register(ctx, "bob@example.com", "123")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Register(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, "BOB@example.com", "secret2")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAccountService_AuthenticateFailures(t *testing.T) {
	f := newAccountFixture(false)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, "alice@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, CodeUnauthenticated, Classify(err))
}

func TestAccountService_ConfirmationFlow(t *testing.T) {
	f := newAccountFixture(true)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, res.PendingConfirmation)
	assert.Nil(t, res.Session)

	_, err = f.svc.Authenticate(ctx, "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	mail := f.mailer.last()
	assert.Equal(t, domain.TokenConfirmEmail, mail.Purpose)
	token := tokenFromLink(t, mail.Link)

	session, err := f.svc.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", session.Email)

	_, err = f.svc.ConfirmEmail(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccountService_PasswordResetFlow(t *testing.T) {
	f := newAccountFixture(false)
	ctx := context.Background()
	res, err := f.svc.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.SendPasswordReset(ctx, "nobody@example.com", ""))
	assert.Empty(t, f.mailer.sent)

	require.NoError(t, f.svc.SendPasswordReset(ctx, "alice@example.com", "http://tracker.test/reset?x=1"))
	mail := f.mailer.last()
	assert.Equal(t, domain.TokenPasswordReset, mail.Purpose)
	assert.True(t, strings.HasPrefix(mail.Link, "http://tracker.test/reset?"), mail.Link)
	assert.Contains(t, mail.Link, "x=1")
	token := tokenFromLink(t, mail.Link)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "abc"), ErrValidation)
	require.NoError(t, f.svc.ResetPassword(ctx, token, "newsecret"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "newsecret"), ErrInvalidToken)

	// toutes les sessions sont révoquées
	_, err = f.svc.CurrentSession(ctx, res.Session.Token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.svc.Authenticate(ctx, "alice@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestAccountService_ResetLinkNeverLeavesAllowedHosts(t *testing.T) {
	f := newAccountFixture(false)
	f.svc.opts.RedirectHosts = []string{"app.example.com"}
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "victim@example.com", "secret1")
	require.NoError(t, err)

	refused := []string{
		"https://attacker.example/collect",
		"https://tracker.test/reset",
		"http://tracker.test.attacker.example/",
		"http://user@tracker.test/reset",
		"//tracker.test/reset",
		"javascript:alert(1)",
		"http://%zz",
	}
	for _, redirect := range refused {
		require.NoError(t, f.svc.SendPasswordReset(ctx, "victim@example.com", redirect))
		link := f.mailer.last().Link
		assert.Truef(t, strings.HasPrefix(link, "http://tracker.test/reset-password?token="), "redirect %q produced %q", redirect, link)
	}

	require.NoError(t, f.svc.SendPasswordReset(ctx, "victim@example.com", "https://APP.example.com/reset"))
	assert.True(t, strings.HasPrefix(f.mailer.last().Link, "https://APP.example.com/reset?token="), f.mailer.last().Link)
}

func TestAccountService_ExpiredResetToken(t *testing.T) {
	f := newAccountFixture(false)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.svc.SendPasswordReset(ctx, "alice@example.com", ""))
	token := tokenFromLink(t, f.mailer.last().Link)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "newsecret"), ErrInvalidToken)
}

func TestAccountService_ChangePasswordKeepsCurrentSession(t *testing.T) {
	f := newAccountFixture(false)
	ctx := context.Background()
	res, err := f.svc.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	other, err := f.svc.Authenticate(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.ChangePassword(ctx, *res.Session, "changed!"))

	_, err = f.svc.CurrentSession(ctx, res.Session.Token)
	assert.NoError(t, err)
	_, err = f.svc.CurrentSession(ctx, other.Token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = f.svc.Authenticate(ctx, "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccountService_SignOutAndExpiry(t *testing.T) {
	f := newAccountFixture(false)
	ctx := context.Background()
	res, err := f.svc.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.SignOut(ctx, res.Session.Token))
	assert.ErrorIs(t, f.svc.SignOut(ctx, res.Session.Token), ErrNotAuthenticated)

	session, err := f.svc.Authenticate(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	f.svc.now = func() time.Time { return session.ExpiresAt.Add(time.Second) }
	_, err = f.svc.CurrentSession(ctx, session.Token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, 0, f.sessions.count())
}

func TestAccountService_SweepExpired(t *testing.T) {
	f := newAccountFixture(false)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.svc.SendPasswordReset(ctx, "alice@example.com", ""))

	n, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }
	n, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSessionSweeper_StopsOnCancel(t *testing.T) {
	f := newAccountFixture(false)
	sw := NewSessionSweeper(zerolog.Nop(), f.svc, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
