// Package reload signals the datasheet index that the store changed.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/1alexb/gaza-datasheet-server/internal/config"
)

// Notice describes the write that triggered a reload.
type Notice struct {
	RunID string    `json:"run_id"`
	Store string    `json:"store"`
	Sheet string    `json:"sheet"`
	Rows  int       `json:"count"`
	At    time.Time `json:"at"`
}

// Reloader asks the read index to reload from the store. An error fails the
// sync process that wrote the store.
type Reloader interface {
	Name() string
	Reload(ctx context.Context, n Notice) error
}

type noop struct{ log *slog.Logger }

// Noop only logs; used when no index is configured.
func Noop(log *slog.Logger) Reloader { return noop{log: log} }

func (noop) Name() string { return "none" }

func (n noop) Reload(_ context.Context, notice Notice) error {
	n.log.Info("reload skipped: no index configured", "store", notice.Store, "rows", notice.Rows)
	return nil
}

// NewFromConfig builds the configured reloader.
func NewFromConfig(c config.ReloadConfig, log *slog.Logger) (Reloader, error) {
	switch c.Type {
	case "", "none":
		return Noop(log), nil
	case "http":
		return NewHTTP(c.URL, c.Method, c.Timeout), nil
	case "kafka":
		return NewKafka(c.Brokers, c.Topic), nil
	default:
		return nil, fmt.Errorf("unknown reload type: %s", c.Type)
	}
}
