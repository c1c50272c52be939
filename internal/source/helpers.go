package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/1alexb/gaza-datasheet-server/internal/model"
)

const maxBody = 32 << 20

// getJSON performs one GET and decodes the JSON body into v.
func getJSON(ctx context.Context, client *http.Client, name, url string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	return doJSON(client, name, req, v)
}

func doJSON(client *http.Client, name string, req *http.Request, v any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %d: %s", ErrUnavailable, name, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, name, err)
	}
	return nil
}

func userAgent(ua string) http.Header {
	h := http.Header{}
	if strings.TrimSpace(ua) != "" {
		h.Set("User-Agent", ua)
	}
	return h
}

// Small helper used by multiple sources to pick the first non-empty string key
func pickStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				s2 := strings.TrimSpace(s)
				if s2 != "" {
					return s2
				}
			}
		}
	}
	return ""
}

// Parse timestamps in a few common formats (RFC3339, epoch seconds, common layouts)
func parseTimeFlexible(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	// naive epoch seconds
	if len(s) >= 10 {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC(), nil
		}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", model.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}

// toInt accepts JSON numbers and numeric strings; anything else is 0.
func toInt(v any) int {
	switch vv := v.(type) {
	case float64:
		return int(vv)
	case json.Number:
		if n, err := vv.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
			return n
		}
	}
	return 0
}

// toFloat is like toInt but keeps "unknown" distinct from zero.
func toFloat(v any) *float64 {
	switch vv := v.(type) {
	case float64:
		return &vv
	case json.Number:
		if f, err := vv.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(vv), 64); err == nil {
			return &f
		}
	}
	return nil
}

func baseURL(v, def string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if v == "" {
		return def
	}
	return v
}

func defaultStr(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
