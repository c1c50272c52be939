package reload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/1alexb/gaza-datasheet-server/internal/util"
)

type httpReloader struct {
	url    string
	method string
	client *http.Client
}

// NewHTTP calls the index's update endpoint (GET by default, like the
// datasheet server's /api/update).
func NewHTTP(url, method string, timeout time.Duration) Reloader {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	return &httpReloader{url: url, method: method, client: util.NewHTTPClient(timeout)}
}

func (h *httpReloader) Name() string { return "http" }

func (h *httpReloader) Reload(ctx context.Context, _ Notice) error {
	req, err := http.NewRequestWithContext(ctx, h.method, h.url, nil)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reload: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
