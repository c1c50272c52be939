package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/1alexb/gaza-datasheet-server/internal/config"
	"github.com/1alexb/gaza-datasheet-server/internal/model"
	"github.com/1alexb/gaza-datasheet-server/internal/util"
)

const (
	techForPalestineBase = "https://data.techforpalestine.org"
	dailyWindow          = 45
)

// Provider-level points stack on fixed Gaza coordinates.
var (
	summaryLat = 31.4
	summaryLng = 34.38
	gazaLat    = 31.5
	gazaLng    = 34.466
)

type techForPalestineSource struct {
	cfg    config.TechForPalestineConfig
	client *http.Client
	now    func() time.Time
}

// NewTechForPalestine reads the casualty summary (v3/summary.json).
func NewTechForPalestine(cfg config.TechForPalestineConfig) *techForPalestineSource {
	return &techForPalestineSource{cfg: cfg, client: util.NewHTTPClient(cfg.HTTP.Timeout), now: time.Now}
}

func (s *techForPalestineSource) Name() string { return "TechForPalestine" }

type summaryResp struct {
	Gaza struct {
		Killed struct {
			Total    int `json:"total"`
			Children int `json:"children"`
			Women    int `json:"women"`
		} `json:"killed"`
	} `json:"gaza"`
}

func (s *techForPalestineSource) Fetch(ctx context.Context) ([]model.SourceResult, error) {
	url := baseURL(s.cfg.BaseURL, techForPalestineBase) + "/api/v3/summary.json"
	var data summaryResp
	if err := getJSON(ctx, s.client, s.Name(), url, userAgent(s.cfg.HTTP.UserAgent), &data); err != nil {
		return nil, err
	}
	today := s.now().UTC().Format(model.DateLayout)
	killed := data.Gaza.Killed

	var out []model.SourceResult
	push := func(title, desc string) {
		out = append(out, model.SourceResult{
			Source: s.Name(),
			Event: model.NewEvent(model.Envelope{
				Date:        today,
				Location:    "Gaza Strip",
				Latitude:    model.Float(summaryLat),
				Longitude:   model.Float(summaryLng),
				Source:      s.Name(),
				EventType:   model.TypeCasualtySummary,
				Title:       title,
				Description: desc,
			}),
		})
	}
	if killed.Total > 0 {
		push(fmt.Sprintf("Total Killed: %d", killed.Total), fmt.Sprintf("Total officially recorded deaths: %d", killed.Total))
	}
	if killed.Children > 0 {
		push(fmt.Sprintf("Children Killed: %d", killed.Children), fmt.Sprintf("Number of children killed: %d", killed.Children))
	}
	if killed.Women > 0 {
		push(fmt.Sprintf("Women Killed: %d", killed.Women), fmt.Sprintf("Number of women killed: %d", killed.Women))
	}
	return out, nil
}

type techForPalestineDailySource struct {
	cfg    config.TechForPalestineConfig
	client *http.Client
}

// NewTechForPalestineDaily reads the daily casualty series (v2/casualties_daily.json).
func NewTechForPalestineDaily(cfg config.TechForPalestineConfig) *techForPalestineDailySource {
	return &techForPalestineDailySource{cfg: cfg, client: util.NewHTTPClient(cfg.HTTP.Timeout)}
}

func (s *techForPalestineDailySource) Name() string { return "TechForPalestine-Daily" }

type dailyEntry struct {
	ReportDate string `json:"report_date"`
	Killed     *int   `json:"killed"`
	Injured    *int   `json:"injured"`
}

func (s *techForPalestineDailySource) Fetch(ctx context.Context) ([]model.SourceResult, error) {
	url := baseURL(s.cfg.BaseURL, techForPalestineBase) + "/api/v2/casualties_daily.json"
	var entries []dailyEntry
	if err := getJSON(ctx, s.client, s.Name(), url, userAgent(s.cfg.HTTP.UserAgent), &entries); err != nil {
		return nil, err
	}

	// keep payloads bounded: only the most recent window
	if w := defaultInt(s.cfg.Window, dailyWindow); len(entries) > w {
		entries = entries[len(entries)-w:]
	}

	out := make([]model.SourceResult, 0, len(entries))
	for _, entry := range entries {
		date := model.NormalizeDate(entry.ReportDate)
		if date == "" {
			continue
		}
		c := model.Casualties{}
		if entry.Killed != nil {
			c.Killed = *entry.Killed
		}
		if entry.Injured != nil {
			c.Injured = *entry.Injured
		}
		out = append(out, model.SourceResult{
			Source: s.Name(),
			Event: model.NewEvent(model.Envelope{
				Date:       date,
				Location:   "Gaza",
				Latitude:   model.Float(gazaLat),
				Longitude:  model.Float(gazaLng),
				Source:     s.Name(),
				EventType:  model.TypeDailyCasualty,
				Title:      fmt.Sprintf("Daily Casualties: %d Killed", c.Killed),
				Casualties: &c,
			}),
		})
	}
	return out, nil
}
