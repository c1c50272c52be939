package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/1alexb/gaza-datasheet-server/internal/config"
	"github.com/1alexb/gaza-datasheet-server/internal/model"
	"github.com/1alexb/gaza-datasheet-server/internal/util"
)

const acledBase = "https://acleddata.com"

var errNoCredentials = errors.New("acled credentials not configured")

type acledSource struct {
	cfg    config.ACLEDConfig
	client *http.Client
}

// NewACLED reads conflict events. Every Fetch logs in first (OAuth password
// grant) and then reads the event list with the short-lived token.
func NewACLED(cfg config.ACLEDConfig) *acledSource {
	return &acledSource{cfg: cfg, client: util.NewHTTPClient(cfg.HTTP.Timeout)}
}

func (s *acledSource) Name() string { return "ACLED" }

type acledToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type acledResp struct {
	Success *bool            `json:"success"`
	Data    []map[string]any `json:"data"`
	Error   any              `json:"error"`
}

func (s *acledSource) login(ctx context.Context) (string, error) {
	if strings.TrimSpace(s.cfg.Username) == "" || s.cfg.Password == "" {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, s.Name(), errNoCredentials)
	}
	form := url.Values{}
	form.Set("username", s.cfg.Username)
	form.Set("password", s.cfg.Password)
	form.Set("grant_type", "password")
	form.Set("client_id", defaultStr(s.cfg.ClientID, "acled"))
	form.Set("scope", "authenticated")

	endpoint := baseURL(s.cfg.BaseURL, acledBase) + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, s.Name(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if ua := s.cfg.HTTP.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	var tok acledToken
	if err := doJSON(s.client, s.Name()+" login", req, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: %s login: empty access token", ErrUnavailable, s.Name())
	}
	return tok.AccessToken, nil
}

func (s *acledSource) Fetch(ctx context.Context) ([]model.SourceResult, error) {
	token, err := s.login(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("_format", "json")
	q.Set("country", defaultStr(s.cfg.Country, "Palestine"))
	q.Set("limit", strconv.Itoa(defaultInt(s.cfg.Limit, 500)))
	endpoint := baseURL(s.cfg.BaseURL, acledBase) + "/api/acled/read?" + q.Encode()

	h := userAgent(s.cfg.HTTP.UserAgent)
	h.Set("Authorization", "Bearer "+token)
	var data acledResp
	if err := getJSON(ctx, s.client, s.Name(), endpoint, h, &data); err != nil {
		return nil, err
	}
	if data.Success != nil && !*data.Success {
		return nil, fmt.Errorf("%w: %s: api error: %v", ErrUnavailable, s.Name(), data.Error)
	}

	out := make([]model.SourceResult, 0, len(data.Data))
	for _, m := range data.Data {
		date := model.NormalizeDate(pickStr(m, "event_date"))
		if date == "" {
			continue
		}
		location := pickStr(m, "location", "admin2", "admin1")
		kind := pickStr(m, "sub_event_type", "event_type")
		title := kind
		switch {
		case kind != "" && location != "":
			title = kind + ": " + location
		case kind == "":
			title = location
		}
		ev := model.Envelope{
			Date:        date,
			Location:    location,
			Latitude:    toFloat(m["latitude"]),
			Longitude:   toFloat(m["longitude"]),
			Source:      s.Name(),
			EventType:   model.TypeConflictEvent,
			Title:       title,
			Description: pickStr(m, "notes"),
		}
		if _, ok := m["fatalities"]; ok {
			ev.Casualties = &model.Casualties{Killed: toInt(m["fatalities"])}
		}
		out = append(out, model.SourceResult{Source: s.Name(), Event: model.NewEvent(ev)})
	}
	return out, nil
}
