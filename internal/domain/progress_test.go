package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoSeasons(firstWatched, secondWatched int) []Season {
	return []Season{
		{ID: "s2", Number: 2, TotalEpisodes: 10, LastWatched: secondWatched},
		{ID: "s1", Number: 1, TotalEpisodes: 12, LastWatched: firstWatched},
	}
}

func TestDeriveProgress_CurrentSeasonAfterFirstCompleted(t *testing.T) {
	p := DeriveProgress(twoSeasons(12, 0))

	assert.Equal(t, 22, p.TotalEpisodes)
	assert.Equal(t, 12, p.WatchedEpisodes)
	assert.InDelta(t, 54.5454, p.OverallPercent, 0.001)
	assert.Equal(t, 2, p.CurrentSeason)
	assert.Equal(t, "s2", p.CurrentSeasonID)
	assert.Equal(t, 1, p.CurrentEpisode)
	assert.Equal(t, 13, p.OverallEpisodeNumber)
	assert.False(t, p.IsCompleted)
	require.Len(t, p.Seasons, 2)
	assert.Equal(t, 1, p.Seasons[0].Number)
	assert.Equal(t, float64(100), p.Seasons[0].Percent)
}

func TestDeriveProgress_AllSeasonsWatchedReportsFinished(t *testing.T) {
	p := DeriveProgress(twoSeasons(12, 10))

	assert.True(t, p.IsCompleted)
	assert.Equal(t, 2, p.CurrentSeason)
	assert.Equal(t, 10, p.CurrentEpisode)
	assert.Equal(t, 22, p.OverallEpisodeNumber)
	assert.Equal(t, float64(100), p.OverallPercent)
}

func TestDeriveProgress_MidFirstSeason(t *testing.T) {
	p := DeriveProgress(twoSeasons(4, 0))

	assert.Equal(t, 1, p.CurrentSeason)
	assert.Equal(t, 5, p.CurrentEpisode)
	assert.Equal(t, 5, p.OverallEpisodeNumber)
}

func TestDeriveProgress_NoSeasonsIsVacuouslyCompleted(t *testing.T) {
	p := DeriveProgress(nil)

	assert.True(t, p.IsCompleted)
	assert.Zero(t, p.OverallPercent)
	assert.Zero(t, p.CurrentSeason)
	assert.Empty(t, p.Seasons)
}

func TestDeriveProgress_ClampsCorruptedRows(t *testing.T) {
	p := DeriveProgress([]Season{{ID: "a", Number: 1, TotalEpisodes: 5, LastWatched: 9}})

	assert.Equal(t, 5, p.WatchedEpisodes)
	assert.True(t, p.IsCompleted)
}

func TestStepEpisode_IncrementAutoAdvancesNextSeason(t *testing.T) {
	res, err := StepEpisode(twoSeasons(11, 0), "s1", 1)
	require.NoError(t, err)

	require.Len(t, res.Updated, 2)
	assert.True(t, res.Advanced)
	assert.Equal(t, "s1", res.Updated[0].ID)
	assert.Equal(t, 12, res.Updated[0].LastWatched)
	assert.Equal(t, "s2", res.Updated[1].ID)
	assert.Equal(t, 1, res.Updated[1].LastWatched)
}

func TestStepEpisode_NoAdvanceWhenNextSeasonStarted(t *testing.T) {
	res, err := StepEpisode(twoSeasons(11, 3), "s1", 1)
	require.NoError(t, err)

	require.Len(t, res.Updated, 1)
	assert.False(t, res.Advanced)
	assert.Equal(t, 12, res.Updated[0].LastWatched)
}

func TestStepEpisode_IncrementAtTotalIsNoop(t *testing.T) {
	res, err := StepEpisode(twoSeasons(12, 0), "s1", 1)
	require.NoError(t, err)

	assert.Empty(t, res.Updated)
	assert.False(t, res.Advanced)
}

func TestStepEpisode_DecrementAtZeroIsNoop(t *testing.T) {
	res, err := StepEpisode(twoSeasons(12, 0), "s2", -1)
	require.NoError(t, err)
	assert.Empty(t, res.Updated)
}

func TestStepEpisode_DecrementNeverAdvances(t *testing.T) {
	seasons := []Season{
		{ID: "s1", Number: 1, TotalEpisodes: 3, LastWatched: 3},
		{ID: "s2", Number: 2, TotalEpisodes: 3, LastWatched: 0},
	}
	res, err := StepEpisode(seasons, "s1", -1)
	require.NoError(t, err)

	require.Len(t, res.Updated, 1)
	assert.Equal(t, 2, res.Updated[0].LastWatched)
	assert.False(t, res.Advanced)
}

func TestStepEpisode_LastSeasonDoesNotAdvance(t *testing.T) {
	res, err := StepEpisode(twoSeasons(12, 9), "s2", 1)
	require.NoError(t, err)

	require.Len(t, res.Updated, 1)
	assert.Equal(t, 10, res.Updated[0].LastWatched)
}

func TestStepEpisode_AdvanceDoesNotCascade(t *testing.T) {
	seasons := []Season{
		{ID: "s1", Number: 1, TotalEpisodes: 2, LastWatched: 1},
		{ID: "s2", Number: 2, TotalEpisodes: 1, LastWatched: 0},
		{ID: "s3", Number: 3, TotalEpisodes: 4, LastWatched: 0},
	}
	res, err := StepEpisode(seasons, "s1", 1)
	require.NoError(t, err)

	require.Len(t, res.Updated, 2)
	assert.Equal(t, "s2", res.Updated[1].ID)
	assert.Equal(t, 1, res.Updated[1].LastWatched)
}

func TestStepEpisode_Errors(t *testing.T) {
	_, err := StepEpisode(twoSeasons(0, 0), "missing", 1)
	assert.True(t, errors.Is(err, ErrUnknownSeason))

	_, err = StepEpisode(twoSeasons(0, 0), "s1", 2)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestNextSeason(t *testing.T) {
	s, err := NextSeason(twoSeasons(0, 0), " 13 ")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Number)
	assert.Equal(t, 13, s.TotalEpisodes)
	assert.Zero(t, s.LastWatched)

	for _, raw := range []string{"", "abc", "0", "-2", "12.5"} {
		_, err := NextSeason(nil, raw)
		assert.Truef(t, errors.Is(err, ErrValidation), "input %q: %v", raw, err)
	}
}

func TestNextSeason_SkipsTakenNumber(t *testing.T) {
	seasons := []Season{{Number: 1, TotalEpisodes: 1}, {Number: 2, TotalEpisodes: 1}, {Number: 3, TotalEpisodes: 1}}
	seasons = append(seasons[:1], seasons[2:]...)

	s, err := NextSeason(seasons, "4")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Number)
}

func TestBuildReplacement_ClampsLastWatched(t *testing.T) {
	got, err := BuildReplacement([]SeasonInput{{Number: "1", TotalEpisodes: "10", LastWatched: "15"}})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].LastWatched)
}

func TestBuildReplacement_SortsAndDefaultsLastWatched(t *testing.T) {
	got, err := BuildReplacement([]SeasonInput{
		{Number: "2", TotalEpisodes: "8"},
		{Number: "1", TotalEpisodes: "12", LastWatched: "-4"},
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Zero(t, got[0].LastWatched)
	assert.Equal(t, 2, got[1].Number)
	assert.Zero(t, got[1].LastWatched)
}

func TestBuildReplacement_RejectsInvalidRows(t *testing.T) {
	cases := map[string][]SeasonInput{
		"empty":         nil,
		"bad number":    {{Number: "x", TotalEpisodes: "3"}},
		"bad total":     {{Number: "1", TotalEpisodes: ""}},
		"bad watched":   {{Number: "1", TotalEpisodes: "3", LastWatched: "two"}},
		"zero total":    {{Number: "1", TotalEpisodes: "0"}},
		"duplicate num": {{Number: "1", TotalEpisodes: "3"}, {Number: "1", TotalEpisodes: "4"}},
	}
	for name, rows := range cases {
		_, err := BuildReplacement(rows)
		var verr *ValidationError
		assert.Truef(t, errors.As(err, &verr), "%s: expected ValidationError, got %v", name, err)
	}
}

func TestSeasonInput_AcceptsNumbersAndStrings(t *testing.T) {
	var rows []SeasonInput
	err := json.Unmarshal([]byte(`[{"number":1,"totalEpisodes":"12","lastWatched":null}]`), &rows)
	require.NoError(t, err)

	got, err := BuildReplacement(rows)
	require.NoError(t, err)
	assert.Equal(t, Season{Number: 1, TotalEpisodes: 12}, got[0])
}
