package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/1alexb/gaza-datasheet-server/internal/config"
	"github.com/1alexb/gaza-datasheet-server/internal/model"
)

// ErrUnavailable wraps every transport, status, auth or decode failure of a
// provider call.
var ErrUnavailable = errors.New("source unavailable")

// Source wraps one external provider. Fetch makes a single attempt; callers
// decide when to try again.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.SourceResult, error)
}

// Registered is a configured adapter plus its static annotations.
type Registered struct {
	Source
	Type     string
	Unstable bool
}

type Status int

const (
	StatusOK Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "failed"
}

// Outcome is the explicit result of one adapter invocation. StatusOK with no
// results means the provider had nothing to report; StatusFailed means it
// could not be reached or understood.
type Outcome struct {
	Source  string
	Status  Status
	Results []model.SourceResult
	Err     error
	Elapsed time.Duration
}

// Collect runs src.Fetch and never lets a failure (or panic) escape.
func Collect(ctx context.Context, log *slog.Logger, src Source) (out Outcome) {
	start := time.Now()
	out.Source = src.Name()
	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Results = nil
			out.Err = fmt.Errorf("%w: panic: %v", ErrUnavailable, r)
		}
		out.Elapsed = time.Since(start)
		if out.Status == StatusFailed {
			log.Error("source fetch failed", "source", out.Source, "err", out.Err, "elapsed", out.Elapsed)
			return
		}
		log.Info("source fetched", "source", out.Source, "events", len(out.Results), "elapsed", out.Elapsed)
	}()

	res, err := src.Fetch(ctx)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	out.Status = StatusOK
	out.Results = res
	return out
}

// NewFromConfig builds the adapter described by c.
func NewFromConfig(c config.SourceConfig) (Registered, error) {
	var (
		s        Source
		unstable bool
	)
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "techforpalestine":
		s = NewTechForPalestine(c.TechForPalestine)
	case "techforpalestine-daily":
		s = NewTechForPalestineDaily(c.TechForPalestine)
	case "reliefweb":
		s = NewReliefWeb(c.ReliefWeb)
	case "acled":
		s = NewACLED(c.ACLED)
		unstable = true
	default:
		return Registered{}, fmt.Errorf("unknown source type: %s", c.Type)
	}
	if c.Unstable != nil {
		unstable = *c.Unstable
	}
	return Registered{Source: s, Type: c.Type, Unstable: unstable}, nil
}

// Build instantiates every configured source, preserving order.
func Build(cfgs []config.SourceConfig) ([]Registered, error) {
	out := make([]Registered, 0, len(cfgs))
	for _, c := range cfgs {
		r, err := NewFromConfig(c)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
