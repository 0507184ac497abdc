package app

import (
	"context"
	"testing"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func libraryTitles() []domain.Title {
	return []domain.Title{
		{ID: "a", Name: "Naruto", Kind: domain.KindSeries, Status: domain.StatusWatching,
			Seasons: []domain.Season{{ID: "a1", Number: 1, TotalEpisodes: 220, LastWatched: 40}}},
		{ID: "b", Name: "Akira", Kind: domain.KindMovie, Status: domain.StatusCompleted, Watched: true, PosterURL: "http://x/akira.png"},
		{ID: "c", Name: "Naruto Shippuden", Kind: domain.KindSeries, Status: domain.StatusPlanToWatch},
		{ID: "d", Name: "Bleach", Kind: domain.KindSeries, Status: domain.StatusWatching,
			Seasons: []domain.Season{{ID: "d1", Number: 1, TotalEpisodes: 12, LastWatched: 12}}},
	}
}

func cardIDs(cards []TitleCard) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

func TestBuildLibraryView_PartitionsAndCounts(t *testing.T) {
	view := BuildLibraryView(libraryTitles(), domain.Filter{Status: "all", Query: "naru"}, DefaultPosterPlaceholder)

	assert.Equal(t, 4, view.Count)
	assert.Equal(t, []string{"a"}, cardIDs(view.Watching))
	assert.Equal(t, []string{"c"}, cardIDs(view.Collection))
}

func TestBuildLibraryView_CountIgnoresSearch(t *testing.T) {
	view := BuildLibraryView(libraryTitles(), domain.Filter{Status: domain.StatusWatching, Query: "zzz"}, DefaultPosterPlaceholder)

	assert.Equal(t, 2, view.Count)
	assert.Empty(t, view.Watching)
	assert.NotNil(t, view.Watching)
	assert.Empty(t, view.Collection)
}

func TestBuildLibraryView_CardSummaries(t *testing.T) {
	view := BuildLibraryView(libraryTitles(), domain.Filter{}, "placeholder.png")

	require.Len(t, view.Watching, 2)
	assert.Equal(t, "S1 • Ep 41 / 220", view.Watching[0].Summary)
	assert.Equal(t, "placeholder.png", view.Watching[0].Poster)
	assert.Equal(t, "S1 • Ep 12 / 12", view.Watching[1].Summary)

	require.Len(t, view.Collection, 2)
	assert.Equal(t, "Watched", view.Collection[0].Summary)
	assert.Equal(t, "http://x/akira.png", view.Collection[0].Poster)
}

func TestLibraryService_ViewPersistsChangedState(t *testing.T) {
	f := newTitleFixture()
	state := newMemViewState()
	lib := NewLibraryService(f.svc, state, "")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "u1", seriesInput("Frieren", [3]string{"1", "12", "0"}))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "u1", TitleInput{Name: "Akira", Kind: domain.KindMovie, Status: domain.StatusCompleted})
	require.NoError(t, err)

	view, err := lib.View(ctx, "u1", StatePatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAll, view.State.Status)
	assert.Equal(t, 0, state.puts)
	assert.Len(t, view.Watching, 1)
	assert.Len(t, view.Collection, 1)

	view, err = lib.View(ctx, "u1", StatePatch{Status: strPtr(domain.StatusCompleted), Query: strPtr("  aki ")})
	require.NoError(t, err)
	assert.Equal(t, 1, state.puts)
	assert.Equal(t, "aki", view.State.Query)
	assert.Equal(t, 1, view.Count)

	// l'état est mémorisé pour la visite suivante
	view, err = lib.View(ctx, "u1", StatePatch{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.State.Status)
	assert.Equal(t, 1, state.puts)
	assert.Equal(t, DefaultPosterPlaceholder, view.Collection[0].Poster)
}
