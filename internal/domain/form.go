package domain

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
)

// FormInt est un entier saisi tel quel. Il accepte un nombre ou une chaîne en
// JSON et n'est interprété qu'à la validation.
type FormInt string

func (v *FormInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = FormInt(s)
		return nil
	}
	*v = FormInt(b)
	return nil
}

func FormIntOf(n int) FormInt { return FormInt(strconv.Itoa(n)) }

const tempKeyPrefix = "tmp-"

// SeasonRow est le modèle de vue d'une ligne du formulaire d'édition.
// Key est stable : l'id de la saison existante, ou un id temporaire pour une
// ligne pas encore enregistrée.
type SeasonRow struct {
	Key      string `json:"key"`
	SeasonID string `json:"seasonId,omitempty"`
	SeasonInput
}

func (r SeasonRow) IsNew() bool { return r.SeasonID == "" }

func newTempKey() string { return tempKeyPrefix + uuid.NewString() }

// EditForm construit les lignes du formulaire pour un titre. Un nouveau titre
// démarre avec une saison 1 vide.
func EditForm(t *Title) []SeasonRow {
	if t == nil || !t.IsSeries() || len(t.Seasons) == 0 {
		return []SeasonRow{{
			Key:         newTempKey(),
			SeasonInput: SeasonInput{Number: FormIntOf(1), LastWatched: FormIntOf(0)},
		}}
	}
	rows := make([]SeasonRow, 0, len(t.Seasons))
	for _, s := range SortSeasons(t.Seasons) {
		rows = append(rows, SeasonRow{
			Key:      s.ID,
			SeasonID: s.ID,
			SeasonInput: SeasonInput{
				Number:        FormIntOf(s.Number),
				TotalEpisodes: FormIntOf(s.TotalEpisodes),
				LastWatched:   FormIntOf(s.LastWatched),
			},
		})
	}
	return rows
}

// AddRow ajoute une ligne numérotée à la suite.
func AddRow(rows []SeasonRow) []SeasonRow {
	out := append([]SeasonRow(nil), rows...)
	return append(out, SeasonRow{
		Key:         newTempKey(),
		SeasonInput: SeasonInput{Number: FormIntOf(len(rows) + 1), LastWatched: FormIntOf(0)},
	})
}

// RemoveRow retire une ligne par clé sans renuméroter les autres.
func RemoveRow(rows []SeasonRow, key string) []SeasonRow {
	out := make([]SeasonRow, 0, len(rows))
	for _, r := range rows {
		if r.Key != key {
			out = append(out, r)
		}
	}
	return out
}

func RowInputs(rows []SeasonRow) []SeasonInput {
	out := make([]SeasonInput, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.SeasonInput)
	}
	return out
}
