package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/1alexb/gaza-datasheet-server/internal/config"
	"github.com/1alexb/gaza-datasheet-server/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for p, h := range routes {
		mux.HandleFunc(p, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", code)
	}
}

func TestTechForPalestineSummary(t *testing.T) {
	srv := serve(t, map[string]http.HandlerFunc{
		"/api/v3/summary.json": jsonBody(`{"gaza":{"killed":{"total":100,"children":40,"women":0}}}`),
	})
	s := NewTechForPalestine(config.TechForPalestineConfig{BaseURL: srv.URL})
	s.now = func() time.Time { return time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC) }

	res, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 events (zero women skipped), got %d", len(res))
	}
	e := res[0].Event
	if res[0].Source != "TechForPalestine" || e.Source != "TechForPalestine" {
		t.Fatalf("unexpected source %q/%q", res[0].Source, e.Source)
	}
	if e.Title != "Total Killed: 100" || e.Description != "Total officially recorded deaths: 100" {
		t.Fatalf("unexpected payload %q %q", e.Title, e.Description)
	}
	if e.Date != "2024-05-01" || e.Location != "Gaza Strip" || e.EventType != model.TypeCasualtySummary {
		t.Fatalf("unexpected envelope %+v", e)
	}
	if *e.Latitude != 31.4 || *e.Longitude != 34.38 {
		t.Fatalf("unexpected coordinates %v %v", *e.Latitude, *e.Longitude)
	}
	if res[1].Event.Title != "Children Killed: 40" {
		t.Fatalf("unexpected second title %q", res[1].Event.Title)
	}
}

func TestTechForPalestineDailyWindowAndMalformed(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	// 50 entries, the oldest five fall outside the window
	for i := 0; i < 50; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format(model.DateLayout)
		switch i {
		case 47:
			b.WriteString(`{"killed":5}`)
		case 48:
			b.WriteString(`{"report_date":"not-a-date","killed":5}`)
		case 49:
			b.WriteString(`{"report_date":"` + day + `"}`)
		default:
			b.WriteString(`{"report_date":"` + day + `","killed":7,"injured":9}`)
		}
	}
	b.WriteString("]")
	srv := serve(t, map[string]http.HandlerFunc{"/api/v2/casualties_daily.json": jsonBody(b.String())})

	res, err := NewTechForPalestineDaily(config.TechForPalestineConfig{BaseURL: srv.URL}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res) != 43 {
		t.Fatalf("expected 45 windowed minus 2 malformed = 43, got %d", len(res))
	}
	first := res[0].Event
	if first.Date != "2024-01-06" {
		t.Fatalf("window should start at the 6th entry, got %s", first.Date)
	}
	if first.Casualties == nil || first.Casualties.Killed != 7 || first.Casualties.Injured != 9 {
		t.Fatalf("unexpected casualties %+v", first.Casualties)
	}
	if first.Title != "Daily Casualties: 7 Killed" || first.Location != "Gaza" || first.EventType != model.TypeDailyCasualty {
		t.Fatalf("unexpected event %+v", first)
	}
	last := res[len(res)-1].Event
	if last.Casualties.Killed != 0 || last.Casualties.Injured != 0 {
		t.Fatalf("missing counts must default to 0, got %+v", last.Casualties)
	}
}

func TestTechForPalestineDailyRejectsObject(t *testing.T) {
	srv := serve(t, map[string]http.HandlerFunc{"/api/v2/casualties_daily.json": jsonBody(`{"oops":true}`)})
	_, err := NewTechForPalestineDaily(config.TechForPalestineConfig{BaseURL: srv.URL}).Fetch(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestReliefWebMapping(t *testing.T) {
	var query string
	srv := serve(t, map[string]http.HandlerFunc{
		"/v2/reports": func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			jsonBody(`{"data":[
				{"href":"https://api.reliefweb.int/v2/reports/1","fields":{"title":"Flash update","url":"https://reliefweb.int/report/1","date":{"created":"2024-05-02T22:30:00+00:00"}}},
				{"href":"https://api.reliefweb.int/v2/reports/2","fields":{"date":{"original":"2024-05-01T01:00:00+02:00"}}},
				{"fields":{"title":"no date"}},
				{"fields":{"title":"bad date","date":{"created":"sometime"}}}
			]}`)(w, r)
		},
	})
	res, err := NewReliefWeb(config.ReliefWebConfig{BaseURL: srv.URL, AppName: "unit"}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for _, want := range []string{"appname=unit", "limit=25", "preset=latest", "filter%5Bvalue%5D=PSE", "fields%5Binclude%5D%5B%5D=title"} {
		if !strings.Contains(query, want) {
			t.Fatalf("expected %s in query %s", want, query)
		}
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res))
	}
	a, b := res[0].Event, res[1].Event
	if a.Date != "2024-05-02" || a.Title != "Flash update" || a.URL != "https://reliefweb.int/report/1" {
		t.Fatalf("unexpected first event %+v", a)
	}
	// 01:00 at +02:00 is the previous day in UTC
	if b.Date != "2024-04-30" || b.Title != "Untitled Report" || b.URL != "https://api.reliefweb.int/v2/reports/2" {
		t.Fatalf("unexpected second event %+v", b)
	}
	if a.EventType != model.TypeHumanitarianReport || a.Location != "Gaza / Palestine" || a.Time != "12:00" {
		t.Fatalf("unexpected envelope %+v", a)
	}
}

func TestReliefWebMissingDataIsEmpty(t *testing.T) {
	srv := serve(t, map[string]http.HandlerFunc{"/v2/reports": jsonBody(`{"totalCount":0}`)})
	res, err := NewReliefWeb(config.ReliefWebConfig{BaseURL: srv.URL}).Fetch(context.Background())
	if err != nil || len(res) != 0 {
		t.Fatalf("expected empty success, got %d %v", len(res), err)
	}
}

func TestACLEDLoginThenRead(t *testing.T) {
	var auth string
	srv := serve(t, map[string]http.HandlerFunc{
		"/oauth/token": func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil || r.Method != http.MethodPost {
				http.Error(w, "bad", http.StatusBadRequest)
				return
			}
			if r.PostForm.Get("username") != "me@example.org" || r.PostForm.Get("grant_type") != "password" {
				http.Error(w, "denied", http.StatusUnauthorized)
				return
			}
			jsonBody(`{"access_token":"tok-123","token_type":"Bearer"}`)(w, r)
		},
		"/api/acled/read": func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			jsonBody(`{"success":true,"count":3,"data":[
				{"event_date":"2024-05-01","sub_event_type":"Air/drone strike","location":"Rafah","latitude":"31.2969","longitude":"34.2455","fatalities":"4","notes":"Strike reported."},
				{"event_date":"2024-05-02","event_type":"Battles","admin2":"Khan Yunis","latitude":"n/a","fatalities":0},
				{"sub_event_type":"no date"}
			]}`)(w, r)
		},
	})
	res, err := NewACLED(config.ACLEDConfig{BaseURL: srv.URL, Username: "me@example.org", Password: "secret"}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if auth != "Bearer tok-123" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res))
	}
	a := res[0].Event
	if a.Title != "Air/drone strike: Rafah" || a.Description != "Strike reported." || a.Casualties.Killed != 4 {
		t.Fatalf("unexpected first event %+v", a)
	}
	if a.Latitude == nil || *a.Latitude != 31.2969 || a.EventType != model.TypeConflictEvent {
		t.Fatalf("unexpected coordinates/type %+v", a)
	}
	b := res[1].Event
	if b.Title != "Battles: Khan Yunis" || b.Location != "Khan Yunis" || b.Latitude != nil || b.Longitude != nil {
		t.Fatalf("unexpected second event %+v", b)
	}
}

func TestACLEDLoginFailureIsUnavailable(t *testing.T) {
	srv := serve(t, map[string]http.HandlerFunc{"/oauth/token": status(http.StatusUnauthorized)})
	_, err := NewACLED(config.ACLEDConfig{BaseURL: srv.URL, Username: "x", Password: "y"}).Fetch(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	_, err = NewACLED(config.ACLEDConfig{BaseURL: srv.URL}).Fetch(context.Background())
	if !errors.Is(err, ErrUnavailable) || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNonSuccessStatusIsUnavailable(t *testing.T) {
	srv := serve(t, map[string]http.HandlerFunc{
		"/api/v3/summary.json": status(http.StatusBadGateway),
		"/v2/reports":          jsonBody(`{not json`),
	})
	if _, err := NewTechForPalestine(config.TechForPalestineConfig{BaseURL: srv.URL}).Fetch(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for 502, got %v", err)
	}
	if _, err := NewReliefWeb(config.ReliefWebConfig{BaseURL: srv.URL}).Fetch(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for bad json, got %v", err)
	}
}

type fakeSource struct {
	name string
	res  []model.SourceResult
	err  error
	boom bool
}

func (f fakeSource) Name() string { return f.name }
func (f fakeSource) Fetch(context.Context) ([]model.SourceResult, error) {
	if f.boom {
		panic("provider exploded")
	}
	return f.res, f.err
}

func TestCollectDistinguishesEmptyFromFailed(t *testing.T) {
	log := discardLogger()
	ctx := context.Background()

	empty := Collect(ctx, log, fakeSource{name: "empty"})
	if empty.Status != StatusOK || len(empty.Results) != 0 || empty.Err != nil {
		t.Fatalf("unexpected empty outcome %+v", empty)
	}
	failed := Collect(ctx, log, fakeSource{name: "down", err: ErrUnavailable})
	if failed.Status != StatusFailed || !errors.Is(failed.Err, ErrUnavailable) {
		t.Fatalf("unexpected failed outcome %+v", failed)
	}
	panicked := Collect(ctx, log, fakeSource{name: "boom", boom: true})
	if panicked.Status != StatusFailed || !errors.Is(panicked.Err, ErrUnavailable) || panicked.Source != "boom" {
		t.Fatalf("unexpected panic outcome %+v", panicked)
	}
}

func TestNewFromConfig(t *testing.T) {
	regs, err := Build(config.DefaultSources())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []string{"TechForPalestine", "TechForPalestine-Daily", "ReliefWeb", "ACLED"}
	for i, r := range regs {
		if r.Name() != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], r.Name())
		}
		if r.Unstable != (r.Name() == "ACLED") {
			t.Fatalf("%s: unexpected unstable=%v", r.Name(), r.Unstable)
		}
	}
	off := false
	r, err := NewFromConfig(config.SourceConfig{Type: "acled", Unstable: &off})
	if err != nil || r.Unstable {
		t.Fatalf("explicit annotation must win: %+v %v", r, err)
	}
	if _, err := NewFromConfig(config.SourceConfig{Type: "gdelt"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
