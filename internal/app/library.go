package app

import (
	"context"
	"fmt"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/ports"
)

const DefaultPosterPlaceholder = "https://via.placeholder.com/280x380?text=No+Poster"

// TitleCard est la projection d'un titre pour l'affichage.
type TitleCard struct {
	TitleDTO
	Poster  string `json:"poster"`
	Summary string `json:"summary"`
}

type LibraryView struct {
	State      domain.Filter `json:"state"`
	Count      int           `json:"count"`
	Watching   []TitleCard   `json:"watching"`
	Collection []TitleCard   `json:"collection"`
}

// StatePatch modifie l'état courant ; un champ nil est conservé.
type StatePatch struct {
	Status *string
	Query  *string
}

func (p StatePatch) Apply(f domain.Filter) domain.Filter {
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Query != nil {
		f.Query = *p.Query
	}
	return f.Normalized()
}

func (p StatePatch) Empty() bool { return p.Status == nil && p.Query == nil }

func cardSummary(dto TitleDTO) string {
	if dto.Progress == nil {
		if dto.Watched {
			return "Watched"
		}
		return "Not watched"
	}
	p := dto.Progress
	number := p.CurrentSeason
	if number == 0 {
		number = 1
	}
	return fmt.Sprintf("S%d • Ep %d / %d", number, p.CurrentEpisode, p.CurrentSeasonTotal)
}

func ToTitleCard(t domain.Title, placeholder string) TitleCard {
	dto := ToTitleDTO(t)
	poster := dto.PosterURL
	if poster == "" {
		poster = placeholder
	}
	return TitleCard{TitleDTO: dto, Poster: poster, Summary: cardSummary(dto)}
}

// BuildLibraryView est une fonction pure : titres + état → vue.
func BuildLibraryView(titles []domain.Title, state domain.Filter, placeholder string) LibraryView {
	state = state.Normalized()
	watching, collection := domain.Partition(domain.FilterTitles(titles, state))
	view := LibraryView{
		State:      state,
		Count:      domain.CountForStatus(titles, state.Status),
		Watching:   make([]TitleCard, 0, len(watching)),
		Collection: make([]TitleCard, 0, len(collection)),
	}
	for _, t := range watching {
		view.Watching = append(view.Watching, ToTitleCard(t, placeholder))
	}
	for _, t := range collection {
		view.Collection = append(view.Collection, ToTitleCard(t, placeholder))
	}
	return view
}

type LibraryService struct {
	titles      *TitleService
	state       ports.ViewStateRepository
	placeholder string
}

func NewLibraryService(titles *TitleService, state ports.ViewStateRepository, placeholder string) *LibraryService {
	if placeholder == "" {
		placeholder = DefaultPosterPlaceholder
	}
	return &LibraryService{titles: titles, state: state, placeholder: placeholder}
}

func (s *LibraryService) State(ctx context.Context, ownerID string) (domain.Filter, error) {
	return s.state.Get(ctx, ownerID)
}

func (s *LibraryService) SetState(ctx context.Context, ownerID string, state domain.Filter) (domain.Filter, error) {
	return s.state.Put(ctx, ownerID, state)
}

// View applique patch à l'état mémorisé, le persiste s'il change, puis
// construit la vue.
func (s *LibraryService) View(ctx context.Context, ownerID string, patch StatePatch) (LibraryView, error) {
	state, err := s.state.Get(ctx, ownerID)
	if err != nil {
		return LibraryView{}, err
	}
	if next := patch.Apply(state); next != state {
		state, err = s.state.Put(ctx, ownerID, next)
		if err != nil {
			return LibraryView{}, err
		}
	}
	titles, err := s.titles.List(ctx, ownerID)
	if err != nil {
		return LibraryView{}, err
	}
	return BuildLibraryView(titles, state, s.placeholder), nil
}
