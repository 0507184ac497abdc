package domain

import "strings"

// Filter combine le filtre de statut et la recherche libre.
type Filter struct {
	Status string `json:"status"`
	Query  string `json:"query"`
}

func (f Filter) Normalized() Filter {
	f.Status = strings.TrimSpace(f.Status)
	if f.Status == "" || strings.EqualFold(f.Status, StatusAll) {
		f.Status = StatusAll
	}
	f.Query = strings.TrimSpace(f.Query)
	return f
}

func (f Filter) Match(t Title) bool {
	f = f.Normalized()
	if f.Status != StatusAll && t.Status != f.Status {
		return false
	}
	if f.Query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Name), strings.ToLower(f.Query))
}

// FilterTitles conserve l'ordre d'origine.
func FilterTitles(titles []Title, f Filter) []Title {
	out := make([]Title, 0, len(titles))
	for _, t := range titles {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Partition sépare les titres "en cours" (Watching) du reste de la collection.
func Partition(titles []Title) (watching, collection []Title) {
	watching = []Title{}
	collection = []Title{}
	for _, t := range titles {
		if t.Status == StatusWatching {
			watching = append(watching, t)
		} else {
			collection = append(collection, t)
		}
	}
	return watching, collection
}

// CountForStatus compte les titres du filtre de statut, recherche ignorée.
func CountForStatus(titles []Title, status string) int {
	status = Filter{Status: status}.Normalized().Status
	if status == StatusAll {
		return len(titles)
	}
	n := 0
	for _, t := range titles {
		if t.Status == status {
			n++
		}
	}
	return n
}
