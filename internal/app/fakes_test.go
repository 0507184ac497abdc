package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

type memTitlesRepo struct {
	mu     sync.Mutex
	byID   map[string]domain.Title
	order  []string
	writes int

	// failCreate force l'échec de Create (après l'envoi de l'affiche).
	failCreate error
}

func newMemTitlesRepo() *memTitlesRepo {
	return &memTitlesRepo{byID: map[string]domain.Title{}}
}

func cloneTitle(t domain.Title) domain.Title {
	t.Seasons = domain.SortSeasons(t.Seasons)
	return t
}

func (r *memTitlesRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Title{}
	for i := len(r.order) - 1; i >= 0; i-- {
		t, ok := r.byID[r.order[i]]
		if ok && t.OwnerID == ownerID {
			out = append(out, cloneTitle(t))
		}
	}
	return out, nil
}

func (r *memTitlesRepo) Get(ctx context.Context, id string) (domain.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return domain.Title{}, ports.ErrNotFound
	}
	return cloneTitle(t), nil
}

func (r *memTitlesRepo) Create(ctx context.Context, title domain.Title) (domain.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return domain.Title{}, r.failCreate
	}
	if _, ok := r.byID[title.ID]; ok {
		return domain.Title{}, ports.ErrConflict
	}
	r.writes++
	r.byID[title.ID] = cloneTitle(title)
	r.order = append(r.order, title.ID)
	return cloneTitle(title), nil
}

func (r *memTitlesRepo) Update(ctx context.Context, title domain.Title, replaceSeasons bool) (domain.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.byID[title.ID]
	if !ok {
		return domain.Title{}, ports.ErrNotFound
	}
	if !replaceSeasons {
		title.Seasons = old.Seasons
	}
	r.writes++
	r.byID[title.ID] = cloneTitle(title)
	return cloneTitle(title), nil
}

func (r *memTitlesRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ports.ErrNotFound
	}
	r.writes++
	delete(r.byID, id)
	return nil
}

func (r *memTitlesRepo) InsertSeason(ctx context.Context, season domain.Season) (domain.Season, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[season.TitleID]
	if !ok {
		return domain.Season{}, ports.ErrNotFound
	}
	for _, s := range t.Seasons {
		if s.Number == season.Number {
			return domain.Season{}, ports.ErrConflict
		}
	}
	r.writes++
	t.Seasons = append(t.Seasons, season)
	r.byID[t.ID] = cloneTitle(t)
	return season, nil
}

func (r *memTitlesRepo) ApplySeasonProgress(ctx context.Context, titleID string, seasons []domain.Season) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[titleID]
	if !ok {
		return ports.ErrNotFound
	}
	next := append([]domain.Season(nil), t.Seasons...)
	for _, upd := range seasons {
		found := false
		for i := range next {
			if next[i].ID == upd.ID {
				next[i].LastWatched = upd.LastWatched
				found = true
			}
		}
		if !found {
			return ports.ErrNotFound
		}
	}
	r.writes++
	t.Seasons = next
	r.byID[titleID] = t
	return nil
}

func (r *memTitlesRepo) SetWatched(ctx context.Context, id string, watched bool) (domain.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return domain.Title{}, ports.ErrNotFound
	}
	r.writes++
	t.Watched = watched
	r.byID[id] = t
	return cloneTitle(t), nil
}

func (r *memTitlesRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type memViewState struct {
	mu   sync.Mutex
	byID map[string]domain.Filter
	puts int
}

func newMemViewState() *memViewState {
	return &memViewState{byID: map[string]domain.Filter{}}
}

func (r *memViewState) Get(ctx context.Context, userID string) (domain.Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byID[userID]
	if !ok {
		return domain.Filter{Status: domain.StatusAll}, nil
	}
	return f, nil
}

func (r *memViewState) Put(ctx context.Context, userID string, state domain.Filter) (domain.Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts++
	state = state.Normalized()
	r.byID[userID] = state
	return state, nil
}

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memObjectStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucket + "/" + path
	if _, ok := s.objects[key]; ok {
		return ports.ErrConflict
	}
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	return nil
}

func (s *memObjectStore) PublicURL(bucket, path string) string {
	return "http://test/storage/" + bucket + "/" + path
}

func (s *memObjectStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type memUsers struct {
	mu   sync.Mutex
	byID map[string]domain.User

	// afterRead s'exécute après chaque lecture, hors verrou.
	afterRead func()
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]domain.User{}} }

func (r *memUsers) Create(ctx context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return domain.User{}, ports.ErrConflict
		}
	}
	r.byID[user.ID] = user
	return user, nil
}

func (r *memUsers) Get(ctx context.Context, id string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, ports.ErrNotFound
	}
	return u, nil
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := r.findByEmail(email)
	if r.afterRead != nil {
		r.afterRead()
	}
	return u, err
}

func (r *memUsers) findByEmail(email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, ports.ErrNotFound
}

func (r *memUsers) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ports.ErrNotFound
	}
	u.LastLoginAt = at
	r.byID[id] = u
	return nil
}

func (r *memUsers) setPasswordHash(id, hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byID[id]
	u.PasswordHash = hash
	r.byID[id] = u
}

func (r *memUsers) Update(ctx context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return domain.User{}, ports.ErrNotFound
	}
	r.byID[user.ID] = user
	return user, nil
}

type memSessions struct {
	mu      sync.Mutex
	byToken map[string]domain.Session
}

func newMemSessions() *memSessions { return &memSessions{byToken: map[string]domain.Session{}} }

func (r *memSessions) Create(ctx context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[s.Token] = s
	return nil
}

func (r *memSessions) Get(ctx context.Context, token string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok {
		return domain.Session{}, ports.ErrNotFound
	}
	return s, nil
}

func (r *memSessions) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
	return nil
}

func (r *memSessions) DeleteForUser(ctx context.Context, userID, keepToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tok, s := range r.byToken {
		if s.UserID == userID && tok != keepToken {
			delete(r.byToken, tok)
		}
	}
	return nil
}

func (r *memSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for tok, s := range r.byToken {
		if s.Expired(now) {
			delete(r.byToken, tok)
			n++
		}
	}
	return n, nil
}

func (r *memSessions) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byToken)
}

type memTokens struct {
	mu     sync.Mutex
	byHash map[string]domain.OneTimeToken
}

func newMemTokens() *memTokens { return &memTokens{byHash: map[string]domain.OneTimeToken{}} }

func (r *memTokens) Create(ctx context.Context, t domain.OneTimeToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[t.Hash] = t
	return nil
}

func (r *memTokens) Consume(ctx context.Context, hash string, purpose domain.TokenPurpose, now time.Time) (domain.OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[hash]
	if !ok || t.Purpose != purpose {
		return domain.OneTimeToken{}, ports.ErrNotFound
	}
	delete(r.byHash, hash)
	if !now.Before(t.ExpiresAt) {
		return domain.OneTimeToken{}, ports.ErrNotFound
	}
	return t, nil
}

func (r *memTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, t := range r.byHash {
		if !now.Before(t.ExpiresAt) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

type sentMail struct {
	To      string
	Purpose domain.TokenPurpose
	Link    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(ctx context.Context, to string, purpose domain.TokenPurpose, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Purpose: purpose, Link: link})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type recordingBus struct {
	mu     sync.Mutex
	events []ports.Event
}

func (b *recordingBus) Publish(evt ports.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *recordingBus) Subscribe(match func(ports.Event) bool) (<-chan ports.Event, func()) {
	ch := make(chan ports.Event)
	close(ch)
	return ch, func() {}
}

func (b *recordingBus) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Topic)
	}
	return out
}
