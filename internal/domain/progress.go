package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SortSeasons renvoie une copie triée par numéro de saison.
func SortSeasons(seasons []Season) []Season {
	out := append([]Season(nil), seasons...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// ClampSeason garantit 0 <= LastWatched <= TotalEpisodes.
func ClampSeason(s Season) Season {
	s.LastWatched = clamp(s.LastWatched, 0, s.TotalEpisodes)
	return s
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type SeasonProgress struct {
	SeasonID      string  `json:"seasonId"`
	Number        int     `json:"number"`
	LastWatched   int     `json:"lastWatched"`
	TotalEpisodes int     `json:"totalEpisodes"`
	Percent       float64 `json:"percent"`
}

// Progress est la vue dérivée d'une série.
type Progress struct {
	TotalEpisodes   int     `json:"totalEpisodes"`
	WatchedEpisodes int     `json:"watchedEpisodes"`
	OverallPercent  float64 `json:"overallPercent"`

	// CurrentSeason vaut 0 quand la série n'a aucune saison.
	CurrentSeason        int    `json:"currentSeason"`
	CurrentSeasonID      string `json:"currentSeasonId,omitempty"`
	CurrentSeasonTotal   int    `json:"currentSeasonTotal"`
	CurrentEpisode       int    `json:"currentEpisode"`
	OverallEpisodeNumber int    `json:"overallEpisodeNumber"`
	IsCompleted          bool   `json:"isCompleted"`

	Seasons []SeasonProgress `json:"seasons"`
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// DeriveProgress calcule l'état d'avancement d'une série.
//
// La saison courante est la première non terminée. Si tout est vu, c'est la
// dernière saison, et l'épisode courant vaut son total (état "terminé").
// Une série sans épisode est considérée terminée (0 == 0).
func DeriveProgress(seasons []Season) Progress {
	ordered := SortSeasons(seasons)
	p := Progress{Seasons: make([]SeasonProgress, 0, len(ordered))}

	for i := range ordered {
		ordered[i] = ClampSeason(ordered[i])
		s := ordered[i]
		p.TotalEpisodes += s.TotalEpisodes
		p.WatchedEpisodes += s.LastWatched
		p.Seasons = append(p.Seasons, SeasonProgress{
			SeasonID:      s.ID,
			Number:        s.Number,
			LastWatched:   s.LastWatched,
			TotalEpisodes: s.TotalEpisodes,
			Percent:       percent(s.LastWatched, s.TotalEpisodes),
		})
	}
	p.OverallPercent = percent(p.WatchedEpisodes, p.TotalEpisodes)
	p.IsCompleted = p.WatchedEpisodes == p.TotalEpisodes

	before := 0
	for i, s := range ordered {
		if s.LastWatched < s.TotalEpisodes {
			p.setCurrent(s, s.LastWatched+1, before+s.LastWatched+1)
			return p
		}
		if i == len(ordered)-1 {
			p.setCurrent(s, s.TotalEpisodes, before+s.TotalEpisodes)
			return p
		}
		before += s.TotalEpisodes
	}
	return p
}

func (p *Progress) setCurrent(s Season, episode, overall int) {
	p.CurrentSeason = s.Number
	p.CurrentSeasonID = s.ID
	p.CurrentSeasonTotal = s.TotalEpisodes
	p.CurrentEpisode = episode
	p.OverallEpisodeNumber = overall
}

// StepResult liste les saisons à écrire, dans l'ordre d'application.
type StepResult struct {
	Updated  []Season
	Advanced bool
}

// StepEpisode applique +1 ou -1 épisode à une saison.
//
// Sur un incrément qui termine la saison, la saison suivante passe à
// l'épisode 1 si elle n'a pas encore été commencée. Pas de cascade au-delà.
// Une valeur déjà bornée ne produit aucune écriture.
func StepEpisode(seasons []Season, seasonID string, delta int) (StepResult, error) {
	if delta != 1 && delta != -1 {
		return StepResult{}, Invalid("delta", "must be +1 or -1")
	}
	ordered := SortSeasons(seasons)
	idx := -1
	for i, s := range ordered {
		if s.ID == seasonID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return StepResult{}, ErrUnknownSeason
	}

	current := ClampSeason(ordered[idx])
	next := clamp(current.LastWatched+delta, 0, current.TotalEpisodes)
	if next == current.LastWatched {
		return StepResult{}, nil
	}
	current.LastWatched = next
	res := StepResult{Updated: []Season{current}}

	if delta > 0 && next == current.TotalEpisodes && idx < len(ordered)-1 {
		following := ordered[idx+1]
		if following.LastWatched == 0 && following.TotalEpisodes > 0 {
			following.LastWatched = 1
			res.Updated = append(res.Updated, following)
			res.Advanced = true
		}
	}
	return res, nil
}

// NextSeason prépare l'ajout rapide d'une saison à partir d'une saisie brute.
func NextSeason(seasons []Season, totalInput string) (Season, error) {
	total, err := parsePositive("totalEpisodes", totalInput)
	if err != nil {
		return Season{}, err
	}
	number := len(seasons) + 1
	taken := map[int]bool{}
	maxNumber := 0
	for _, s := range seasons {
		taken[s.Number] = true
		if s.Number > maxNumber {
			maxNumber = s.Number
		}
	}
	if taken[number] {
		number = maxNumber + 1
	}
	return Season{Number: number, TotalEpisodes: total, LastWatched: 0}, nil
}

// SeasonInput est une ligne de saison telle que soumise par un formulaire.
type SeasonInput struct {
	Number        FormInt `json:"number"`
	TotalEpisodes FormInt `json:"totalEpisodes"`
	LastWatched   FormInt `json:"lastWatched"`
}

// BuildReplacement valide la liste complète des saisons d'une édition.
// Tout est vérifié avant de renvoyer quoi que ce soit : une erreur signifie
// qu'aucune écriture ne doit avoir lieu.
func BuildReplacement(rows []SeasonInput) ([]Season, error) {
	if len(rows) == 0 {
		return nil, Invalid("seasons", "a series needs at least one season")
	}
	out := make([]Season, 0, len(rows))
	seen := map[int]bool{}
	for i, row := range rows {
		field := fmt.Sprintf("seasons[%d]", i)
		number, err := parsePositive(field+".number", string(row.Number))
		if err != nil {
			return nil, err
		}
		if seen[number] {
			return nil, Invalid(field+".number", fmt.Sprintf("duplicate season %d", number))
		}
		seen[number] = true
		total, err := parsePositive(field+".totalEpisodes", string(row.TotalEpisodes))
		if err != nil {
			return nil, err
		}
		watched := 0
		if raw := strings.TrimSpace(string(row.LastWatched)); raw != "" {
			watched, err = strconv.Atoi(raw)
			if err != nil {
				return nil, Invalid(field+".lastWatched", "must be an integer")
			}
		}
		out = append(out, ClampSeason(Season{Number: number, TotalEpisodes: total, LastWatched: watched}))
	}
	return SortSeasons(out), nil
}

func parsePositive(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, Invalid(field, "is required")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, Invalid(field, "must be an integer")
	}
	if v <= 0 {
		return 0, Invalid(field, "must be positive")
	}
	return v, nil
}
