package aggregate

import (
	"net/url"
	"slices"
	"strings"

	"github.com/1alexb/gaza-datasheet-server/internal/model"
)

// Filters narrows an aggregated view. All bounds are inclusive; blank or
// malformed values mean "no filter".
type Filters struct {
	Source string // exact, case-sensitive match on the event source
	From   string // YYYY-MM-DD
	To     string // YYYY-MM-DD
}

// ParseFilters reads source/from/to from query values.
func ParseFilters(q url.Values) Filters {
	return Filters{
		Source: strings.TrimSpace(q.Get("source")),
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
	}
}

func (f Filters) normalized() Filters {
	return Filters{
		Source: f.Source,
		From:   model.NormalizeDate(f.From),
		To:     model.NormalizeDate(f.To),
	}
}

func (f Filters) match(e model.CanonicalEvent) bool {
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.From != "" && (!e.HasDate() || e.Date < f.From) {
		return false
	}
	if f.To != "" && (!e.HasDate() || e.Date > f.To) {
		return false
	}
	return true
}

// Aggregate merges adapter output (already in registration order), applies f
// and orders the result newest first with undated events last. Ties keep
// their input order.
func Aggregate(results []model.SourceResult, f Filters) []model.CanonicalEvent {
	f = f.normalized()
	out := make([]model.CanonicalEvent, 0, len(results))
	for _, r := range results {
		if f.match(r.Event) {
			out = append(out, r.Event)
		}
	}
	slices.SortStableFunc(out, compare)
	return out
}

func compare(a, b model.CanonicalEvent) int {
	switch {
	case a.HasDate() && !b.HasDate():
		return -1
	case !a.HasDate() && b.HasDate():
		return 1
	}
	// descending; YYYY-MM-DD orders lexicographically
	return strings.Compare(b.Date, a.Date)
}
