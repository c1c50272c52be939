package pipeline

import (
	"context"
	"sync"

	"github.com/1alexb/gaza-datasheet-server/internal/source"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusUnknown  Status = "unknown"
)

type SourceHealth struct {
	Source string `json:"source"`
	Status Status `json:"status"`
	Events int    `json:"events"`
	Reason string `json:"reason,omitempty"`
}

// Report probes every source once, concurrently, in registration order. It
// never touches the store and never fails.
func (p *Pipeline) Report(ctx context.Context) []SourceHealth {
	out := make([]SourceHealth, len(p.Sources))
	probeLog := p.Log.With("probe", "health")
	var wg sync.WaitGroup
	for i, s := range p.Sources {
		wg.Add(1)
		go func(i int, s source.Registered) {
			defer wg.Done()
			out[i] = classify(s, source.Collect(ctx, probeLog, s))
		}(i, s)
	}
	wg.Wait()
	return out
}

// Health is Report keyed by source name.
func (p *Pipeline) Health(ctx context.Context) map[string]Status {
	m := make(map[string]Status, len(p.Sources))
	for _, h := range p.Report(ctx) {
		m[h.Source] = h.Status
	}
	return m
}

func classify(s source.Registered, o source.Outcome) SourceHealth {
	h := SourceHealth{Source: o.Source, Events: len(o.Results)}
	switch {
	case o.Status == source.StatusOK && len(o.Results) > 0:
		h.Status = StatusOK
		return h
	case s.Unstable:
		h.Status = StatusDegraded
	default:
		h.Status = StatusUnknown
	}
	if o.Err != nil {
		h.Reason = o.Err.Error()
	} else {
		h.Reason = "no events returned"
	}
	return h
}
