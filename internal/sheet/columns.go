package sheet

import "strings"

// Role is what a template column means to the writer.
type Role int

const (
	RoleNone Role = iota // unrecognized; always written empty
	RoleID
	RoleTitle
	RoleDescription
	RoleDate
	RoleTime
	RoleLocation
	RoleLatitude
	RoleLongitude
	RoleAssociation
	RoleSource
)

var roleNames = [...]string{
	RoleNone:        "none",
	RoleID:          "id",
	RoleTitle:       "title",
	RoleDescription: "description",
	RoleDate:        "date",
	RoleTime:        "time",
	RoleLocation:    "location",
	RoleLatitude:    "latitude",
	RoleLongitude:   "longitude",
	RoleAssociation: "association",
	RoleSource:      "source",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "none"
	}
	return roleNames[r]
}

// exactRoles is keyed by the trimmed, lower-cased header text.
var exactRoles = map[string]Role{
	"id":          RoleID,
	"title":       RoleTitle,
	"description": RoleDescription,
	"desc":        RoleDescription,
	"date":        RoleDate,
	"time":        RoleTime,
	"location":    RoleLocation,
	"place":       RoleLocation,
	"latitude":    RoleLatitude,
	"lat":         RoleLatitude,
	"longitude":   RoleLongitude,
	"lon":         RoleLongitude,
	"lng":         RoleLongitude,
}

// prefixRoles catch numbered template columns (association0, source1, ...).
var prefixRoles = []struct {
	prefix string
	role   Role
}{
	{"association", RoleAssociation},
	{"source", RoleSource},
}

// RoleOf resolves one header cell.
func RoleOf(header string) Role {
	h := strings.ToLower(strings.TrimSpace(header))
	if r, ok := exactRoles[h]; ok {
		return r
	}
	for _, p := range prefixRoles {
		if strings.HasPrefix(h, p.prefix) {
			return p.role
		}
	}
	return RoleNone
}

// Roles resolves a whole header row.
func Roles(headers []string) []Role {
	out := make([]Role, len(headers))
	for i, h := range headers {
		out[i] = RoleOf(h)
	}
	return out
}
