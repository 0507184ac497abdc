package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

type TitleService struct {
	logger  zerolog.Logger
	repo    ports.TitleRepository
	posters *PosterService
	bus     ports.EventBus
	gate    *BusyGate
	now     func() time.Time
}

func NewTitleService(logger zerolog.Logger, repo ports.TitleRepository, posters *PosterService, bus ports.EventBus, gate *BusyGate) *TitleService {
	return &TitleService{logger: logger, repo: repo, posters: posters, bus: bus, gate: gate, now: time.Now}
}

type PosterUpload struct {
	Filename string
	Data     []byte
}

// TitleInput est la soumission complète du formulaire d'ajout/édition.
type TitleInput struct {
	Name    string      `json:"name"`
	Kind    domain.Kind `json:"kind"`
	Status  string      `json:"status"`
	Watched bool        `json:"watched"`

	// Seasons accepte les lignes du formulaire telles que renvoyées par
	// l'API (key, seasonId) ou de simples saisies.
	Seasons []domain.SeasonRow `json:"seasons"`

	Poster *PosterUpload `json:"-"`
}

type SeasonDTO struct {
	ID            string `json:"id"`
	Number        int    `json:"number"`
	TotalEpisodes int    `json:"totalEpisodes"`
	LastWatched   int    `json:"lastWatched"`
}

type TitleDTO struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      domain.Kind `json:"kind"`
	Status    string      `json:"status"`
	PosterURL string      `json:"posterUrl,omitempty"`
	Watched   bool        `json:"watched"`
	Seasons   []SeasonDTO `json:"seasons"`

	// Progress n'est renseigné que pour les séries.
	Progress *domain.Progress `json:"progress,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func ToTitleDTO(t domain.Title) TitleDTO {
	dto := TitleDTO{
		ID:        t.ID,
		Name:      t.Name,
		Kind:      t.Kind,
		Status:    t.Status,
		PosterURL: t.PosterURL,
		Watched:   t.Watched,
		Seasons:   make([]SeasonDTO, 0, len(t.Seasons)),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	for _, s := range domain.SortSeasons(t.Seasons) {
		dto.Seasons = append(dto.Seasons, SeasonDTO{ID: s.ID, Number: s.Number, TotalEpisodes: s.TotalEpisodes, LastWatched: s.LastWatched})
	}
	if t.IsSeries() {
		p := domain.DeriveProgress(t.Seasons)
		dto.Progress = &p
	}
	return dto
}

type validatedInput struct {
	name    string
	kind    domain.Kind
	status  string
	watched bool
	seasons []domain.Season
}

// validate vérifie toute la saisie avant la moindre écriture.
func validate(in TitleInput) (validatedInput, error) {
	name, err := domain.NormalizeName(in.Name)
	if err != nil {
		return validatedInput{}, err
	}
	if !in.Kind.Valid() {
		return validatedInput{}, domain.Invalid("kind", `must be "Series" or "Movie"`)
	}
	status, err := domain.NormalizeStatus(in.Status)
	if err != nil {
		return validatedInput{}, err
	}
	out := validatedInput{name: name, kind: in.Kind, status: status}
	if in.Kind == domain.KindMovie {
		out.watched = in.Watched
		return out, nil
	}
	out.seasons, err = domain.BuildReplacement(domain.RowInputs(in.Seasons))
	if err != nil {
		return validatedInput{}, err
	}
	return out, nil
}

func assignSeasonIDs(titleID string, seasons []domain.Season) []domain.Season {
	out := make([]domain.Season, 0, len(seasons))
	for _, s := range seasons {
		s.ID = xid.New().String()
		s.TitleID = titleID
		out = append(out, s)
	}
	return out
}

func (s *TitleService) List(ctx context.Context, ownerID string) ([]domain.Title, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *TitleService) ListDTO(ctx context.Context, ownerID string) ([]TitleDTO, error) {
	titles, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]TitleDTO, 0, len(titles))
	for _, t := range titles {
		out = append(out, ToTitleDTO(t))
	}
	return out, nil
}

// getOwned masque l'existence des titres d'autres utilisateurs.
func (s *TitleService) getOwned(ctx context.Context, ownerID, id string) (domain.Title, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Title{}, err
	}
	if t.OwnerID != ownerID {
		return domain.Title{}, ErrNotFound
	}
	return t, nil
}

func (s *TitleService) Get(ctx context.Context, ownerID, id string) (TitleDTO, error) {
	t, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return TitleDTO{}, err
	}
	return ToTitleDTO(t), nil
}

// Form renvoie les lignes de saisons du formulaire d'édition d'un titre.
func (s *TitleService) Form(ctx context.Context, ownerID, id string) ([]domain.SeasonRow, error) {
	t, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return domain.EditForm(&t), nil
}

func (s *TitleService) uploadPoster(ctx context.Context, name string, p *PosterUpload) (string, error) {
	if p == nil {
		return "", nil
	}
	if s.posters == nil {
		return "", domain.Invalid("poster", "poster storage is not configured")
	}
	return s.posters.Upload(ctx, name, p.Filename, p.Data)
}

func (s *TitleService) Create(ctx context.Context, ownerID string, in TitleInput) (TitleDTO, error) {
	var out TitleDTO
	err := s.gate.Do(ownerID, func() error {
		v, err := validate(in)
		if err != nil {
			return err
		}
		posterURL, err := s.uploadPoster(ctx, v.name, in.Poster)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		id := xid.New().String()
		title := domain.Title{
			ID:        id,
			OwnerID:   ownerID,
			Name:      v.name,
			Kind:      v.kind,
			Status:    v.status,
			PosterURL: posterURL,
			Watched:   v.watched,
			Seasons:   assignSeasonIDs(id, v.seasons),
			CreatedAt: now,
			UpdatedAt: now,
		}
		created, err := s.repo.Create(ctx, title)
		if err != nil {
			s.warnOrphan(posterURL, err)
			return err
		}
		s.publish(ports.TopicTitleCreated, created)
		out = ToTitleDTO(created)
		return nil
	})
	return out, err
}

// Update remplace entièrement le titre ; pour une série, toutes les saisons
// sont supprimées puis réinsérées.
func (s *TitleService) Update(ctx context.Context, ownerID, id string, in TitleInput) (TitleDTO, error) {
	var out TitleDTO
	err := s.gate.Do(ownerID, func() error {
		existing, err := s.getOwned(ctx, ownerID, id)
		if err != nil {
			return err
		}
		v, err := validate(in)
		if err != nil {
			return err
		}
		posterURL := existing.PosterURL
		if in.Poster != nil {
			posterURL, err = s.uploadPoster(ctx, v.name, in.Poster)
			if err != nil {
				return err
			}
		}

		existing.Name = v.name
		existing.Kind = v.kind
		existing.Status = v.status
		existing.PosterURL = posterURL
		existing.Watched = v.watched
		existing.Seasons = assignSeasonIDs(id, v.seasons)
		existing.UpdatedAt = s.now().UTC()

		updated, err := s.repo.Update(ctx, existing, true)
		if err != nil {
			if in.Poster != nil {
				s.warnOrphan(posterURL, err)
			}
			return err
		}
		s.publish(ports.TopicTitleUpdated, updated)
		out = ToTitleDTO(updated)
		return nil
	})
	return out, err
}

func (s *TitleService) Delete(ctx context.Context, ownerID, id string) error {
	return s.gate.Do(ownerID, func() error {
		if _, err := s.getOwned(ctx, ownerID, id); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		s.publishRaw(ports.TopicTitleDeleted, ownerID, map[string]any{"id": id})
		return nil
	})
}

// StepEpisode avance ou recule d'un épisode sur une saison, avec
// l'auto-démarrage éventuel de la saison suivante.
func (s *TitleService) StepEpisode(ctx context.Context, ownerID, titleID, seasonID string, delta int) (TitleDTO, error) {
	var out TitleDTO
	err := s.gate.Do(ownerID, func() error {
		title, err := s.getOwned(ctx, ownerID, titleID)
		if err != nil {
			return err
		}
		if !title.IsSeries() {
			return domain.Invalid("kind", "episode progress only applies to series")
		}
		res, err := domain.StepEpisode(title.Seasons, seasonID, delta)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownSeason) {
				return fmt.Errorf("season %s: %w", seasonID, ErrNotFound)
			}
			return err
		}
		if len(res.Updated) > 0 {
			if err := s.repo.ApplySeasonProgress(ctx, titleID, res.Updated); err != nil {
				return err
			}
		}
		updated, err := s.repo.Get(ctx, titleID)
		if err != nil {
			return err
		}
		if len(res.Updated) > 0 {
			s.publish(ports.TopicTitleProgress, updated)
		}
		out = ToTitleDTO(updated)
		return nil
	})
	return out, err
}

// QuickAddSeason ajoute la saison suivante. La saisie brute est validée
// avant tout accès en écriture.
func (s *TitleService) QuickAddSeason(ctx context.Context, ownerID, titleID, totalEpisodes string) (TitleDTO, error) {
	var out TitleDTO
	err := s.gate.Do(ownerID, func() error {
		title, err := s.getOwned(ctx, ownerID, titleID)
		if err != nil {
			return err
		}
		if !title.IsSeries() {
			return domain.Invalid("kind", "seasons only apply to series")
		}
		season, err := domain.NextSeason(title.Seasons, totalEpisodes)
		if err != nil {
			return err
		}
		season.ID = xid.New().String()
		season.TitleID = titleID
		if _, err := s.repo.InsertSeason(ctx, season); err != nil {
			return err
		}
		updated, err := s.repo.Get(ctx, titleID)
		if err != nil {
			return err
		}
		s.publish(ports.TopicTitleUpdated, updated)
		out = ToTitleDTO(updated)
		return nil
	})
	return out, err
}

func (s *TitleService) ToggleWatched(ctx context.Context, ownerID, id string) (TitleDTO, error) {
	var out TitleDTO
	err := s.gate.Do(ownerID, func() error {
		title, err := s.getOwned(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if title.Kind != domain.KindMovie {
			return domain.Invalid("kind", "watched flag only applies to movies")
		}
		updated, err := s.repo.SetWatched(ctx, id, !title.Watched)
		if err != nil {
			return err
		}
		s.publish(ports.TopicTitleUpdated, updated)
		out = ToTitleDTO(updated)
		return nil
	})
	return out, err
}

// warnOrphan trace une affiche envoyée dont l'enregistrement a échoué.
// Aucune compensation n'est tentée.
func (s *TitleService) warnOrphan(posterURL string, err error) {
	if posterURL == "" {
		return
	}
	s.logger.Warn().Err(err).Str("poster_url", posterURL).Msg("poster uploaded but title was not saved")
}

func (s *TitleService) publish(topic string, t domain.Title) {
	s.publishRaw(topic, t.OwnerID, ToTitleDTO(t))
}

func (s *TitleService) publishRaw(topic, ownerID string, v any) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.bus.Publish(ports.Event{Topic: topic, UserID: ownerID, Payload: b})
}
