package sheet

import (
	"strings"

	"github.com/1alexb/gaza-datasheet-server/internal/config"
)

// Association maps providers whose name contains Match onto a template
// association id.
type Association struct {
	Match    string
	Category string
}

// Associations is evaluated in order; the first match wins.
type Associations []Association

func NewAssociations(rules []config.AssociationRule) Associations {
	out := make(Associations, 0, len(rules))
	for _, r := range rules {
		m := strings.ToLower(strings.TrimSpace(r.Match))
		if m == "" {
			continue
		}
		out = append(out, Association{Match: m, Category: strings.TrimSpace(r.Category)})
	}
	return out
}

// Category returns the association for source, or "" when nothing matches.
func (a Associations) Category(source string) string {
	s := strings.ToLower(source)
	for _, r := range a {
		if strings.Contains(s, r.Match) {
			return r.Category
		}
	}
	return ""
}
