// Package identity derives stable row ids from event content.
//
// An id depends only on (source, date, location, latitude, longitude), so
// enriching titles or descriptions never changes it between syncs. The digest
// is truncated to 12 hex characters; collisions are possible and accepted.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/1alexb/gaza-datasheet-server/internal/model"
)

const digestLen = 12

// Unicode separators count as whitespace too, so a non-breaking space in a
// configured source name collapses like an ASCII one.
var whitespace = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)

// Assign returns "<source>_<hex12>" for e.
func Assign(e model.CanonicalEvent) string {
	raw := strings.Join([]string{
		e.Source,
		e.Date,
		e.Location,
		coord(e.Latitude),
		coord(e.Longitude),
	}, "|")
	sum := sha1.Sum([]byte(raw))
	return prefix(e.Source) + "_" + hex.EncodeToString(sum[:])[:digestLen]
}

func prefix(source string) string {
	if source == "" {
		return "unknown"
	}
	return whitespace.ReplaceAllString(source, "_")
}

// coord renders the shortest decimal that round-trips; nil is the empty string.
func coord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
