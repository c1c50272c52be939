package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/1alexb/gaza-datasheet-server/internal/config"
	"github.com/1alexb/gaza-datasheet-server/internal/model"
	"github.com/1alexb/gaza-datasheet-server/internal/util"
)

const reliefWebBase = "https://api.reliefweb.int"

type reliefWebSource struct {
	cfg    config.ReliefWebConfig
	client *http.Client
}

// NewReliefWeb reads the latest humanitarian reports for one country.
func NewReliefWeb(cfg config.ReliefWebConfig) *reliefWebSource {
	return &reliefWebSource{cfg: cfg, client: util.NewHTTPClient(cfg.HTTP.Timeout)}
}

func (s *reliefWebSource) Name() string { return "ReliefWeb" }

type reliefWebResp struct {
	Data []struct {
		Href   string `json:"href"`
		Fields struct {
			Title string `json:"title"`
			URL   string `json:"url"`
			Date  struct {
				Created  string `json:"created"`
				Original string `json:"original"`
			} `json:"date"`
		} `json:"fields"`
	} `json:"data"`
}

func (s *reliefWebSource) endpoint() string {
	q := url.Values{}
	q.Set("appname", defaultStr(s.cfg.AppName, "NCI-academia-Z4HHCq13Eb"))
	q.Set("limit", strconv.Itoa(defaultInt(s.cfg.Limit, 25)))
	q.Set("preset", "latest")
	q.Set("filter[field]", "country.iso3")
	q.Set("filter[value]", defaultStr(s.cfg.Country, "PSE"))
	for _, f := range []string{"date", "url", "title", "source"} {
		q.Add("fields[include][]", f)
	}
	return baseURL(s.cfg.BaseURL, reliefWebBase) + "/v2/reports?" + q.Encode()
}

func (s *reliefWebSource) Fetch(ctx context.Context) ([]model.SourceResult, error) {
	var data reliefWebResp
	if err := getJSON(ctx, s.client, s.Name(), s.endpoint(), userAgent(s.cfg.HTTP.UserAgent), &data); err != nil {
		return nil, err
	}

	out := make([]model.SourceResult, 0, len(data.Data))
	for _, item := range data.Data {
		raw := item.Fields.Date.Created
		if raw == "" {
			raw = item.Fields.Date.Original
		}
		if raw == "" {
			continue
		}
		ts, err := parseTimeFlexible(raw)
		if err != nil {
			continue
		}
		title := item.Fields.Title
		if title == "" {
			title = "Untitled Report"
		}
		link := item.Fields.URL
		if link == "" {
			link = item.Href
		}
		out = append(out, model.SourceResult{
			Source: s.Name(),
			Event: model.NewEvent(model.Envelope{
				Date:      ts.Format(model.DateLayout),
				Time:      model.DefaultTime,
				Location:  "Gaza / Palestine",
				Latitude:  model.Float(gazaLat),
				Longitude: model.Float(gazaLng),
				Source:    s.Name(),
				EventType: model.TypeHumanitarianReport,
				Title:     title,
				URL:       link,
			}),
		})
	}
	return out, nil
}
