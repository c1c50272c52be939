package model

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	DefaultTime     = "12:00" // unknown time of day is treated as noon
	UnknownLocation = "Unknown Location"
	UnknownSource   = "Unknown Source"
)

// Event types emitted by the adapters.
const (
	TypeCasualtySummary    = "casualty_summary"
	TypeDailyCasualty      = "daily_casualty"
	TypeHumanitarianReport = "humanitarian_report"
	TypeConflictEvent      = "conflict_event"
)

// Casualties carries structured killed/injured counts.
type Casualties struct {
	Killed  int `json:"killed"`
	Injured int `json:"injured"`
}

// CanonicalEvent is the normalized representation for all sources.
// Build it with NewEvent so the defaults and the date invariant hold.
type CanonicalEvent struct {
	Date        string // YYYY-MM-DD, empty when unknown
	Time        string
	Location    string
	Latitude    *float64
	Longitude   *float64
	Source      string
	EventType   string
	Title       string
	Description string
	URL         string
	Casualties  *Casualties
}

// HasDate reports whether the event carries a (valid) date.
func (e CanonicalEvent) HasDate() bool { return e.Date != "" }

type eventJSON struct {
	Date        *string     `json:"date"`
	Time        string      `json:"time"`
	Location    string      `json:"location"`
	Latitude    *float64    `json:"latitude"`
	Longitude   *float64    `json:"longitude"`
	Source      string      `json:"source"`
	EventType   string      `json:"event_type,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty"`
	Casualties  *Casualties `json:"casualties,omitempty"`
}

// MarshalJSON keeps the wire contract of the timemap events: unknown date and
// coordinates are encoded as null.
func (e CanonicalEvent) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Time:        e.Time,
		Location:    e.Location,
		Latitude:    e.Latitude,
		Longitude:   e.Longitude,
		Source:      e.Source,
		EventType:   e.EventType,
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Casualties:  e.Casualties,
	}
	if e.Date != "" {
		d := e.Date
		out.Date = &d
	}
	return json.Marshal(out)
}

// Envelope holds the raw fields an adapter extracted from its provider.
type Envelope struct {
	Date        string
	Time        string
	Location    string
	Latitude    *float64
	Longitude   *float64
	Source      string
	EventType   string
	Title       string
	Description string
	URL         string
	Casualties  *Casualties
}

// NewEvent applies the contract defaults to an envelope.
func NewEvent(env Envelope) CanonicalEvent {
	e := CanonicalEvent{
		Date:        NormalizeDate(env.Date),
		Time:        strings.TrimSpace(env.Time),
		Location:    strings.TrimSpace(env.Location),
		Latitude:    env.Latitude,
		Longitude:   env.Longitude,
		Source:      strings.TrimSpace(env.Source),
		EventType:   env.EventType,
		Title:       env.Title,
		Description: env.Description,
		URL:         strings.TrimSpace(env.URL),
		Casualties:  env.Casualties,
	}
	if e.Time == "" {
		e.Time = DefaultTime
	}
	if e.Location == "" {
		e.Location = UnknownLocation
	}
	if e.Source == "" {
		e.Source = UnknownSource
	}
	return e
}

// NormalizeDate returns s when it is a valid YYYY-MM-DD date and "" otherwise.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return ""
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ""
	}
	return s
}

// Float returns a pointer to v; handy for optional coordinates.
func Float(v float64) *float64 { return &v }

// SourceResult pairs one event with the tag of the adapter that produced it.
type SourceResult struct {
	Source string         `json:"source"`
	Event  CanonicalEvent `json:"event"`
}
