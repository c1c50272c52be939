package sheet

import (
	"fmt"
	"strconv"

	"github.com/1alexb/gaza-datasheet-server/internal/identity"
	"github.com/1alexb/gaza-datasheet-server/internal/model"
)

// Centroid is the documented placeholder written for events without
// coordinates. It is not a measured location.
type Centroid struct {
	Latitude  string
	Longitude string
}

var GazaCentroid = Centroid{Latitude: "31.3547", Longitude: "34.3088"}

// Projector turns events into rows for a given header.
type Projector struct {
	Associations Associations
	Centroid     Centroid
}

// Row projects e onto headers. Every cell is a string.
func (p Projector) Row(headers []string, e model.CanonicalEvent) []string {
	return p.row(Roles(headers), e)
}

func (p Projector) row(roles []Role, e model.CanonicalEvent) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = p.Value(r, e)
	}
	return out
}

// Value renders the cell for one column role.
func (p Projector) Value(r Role, e model.CanonicalEvent) string {
	switch r {
	case RoleID:
		return identity.Assign(e)
	case RoleTitle:
		if e.Title != "" {
			return e.Title
		}
		return fmt.Sprintf("%s - %s", e.Source, e.Location)
	case RoleDescription:
		return description(e)
	case RoleDate:
		return FormatDate(e.Date)
	case RoleTime:
		// the timemap validator rejects blank times
		return model.DefaultTime
	case RoleLocation:
		return e.Location
	case RoleLatitude:
		return coord(e.Latitude, p.Centroid.Latitude)
	case RoleLongitude:
		return coord(e.Longitude, p.Centroid.Longitude)
	case RoleAssociation:
		return p.Associations.Category(e.Source)
	case RoleSource:
		return e.Source
	default:
		return ""
	}
}

func description(e model.CanonicalEvent) string {
	d := e.Description
	if d == "" {
		if e.HasDate() {
			d = fmt.Sprintf("Imported event dated %s. Source: %s", e.Date, e.Source)
		} else {
			d = fmt.Sprintf("Imported undated event. Source: %s", e.Source)
		}
	}
	if e.URL != "" {
		d += "\nLink: " + e.URL
	}
	return d
}

// FormatDate converts YYYY-MM-DD to the MM/DD/YYYY text timemap expects.
// Anything else renders as an empty cell.
func FormatDate(d string) string {
	d = model.NormalizeDate(d)
	if d == "" {
		return ""
	}
	return d[5:7] + "/" + d[8:10] + "/" + d[0:4]
}

func coord(v *float64, fallback string) string {
	if v == nil {
		return fallback
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
