// Package pipeline runs the sync process: fetch every source, aggregate,
// write the store and ask the read index to reload.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1alexb/gaza-datasheet-server/internal/aggregate"
	"github.com/1alexb/gaza-datasheet-server/internal/config"
	"github.com/1alexb/gaza-datasheet-server/internal/metrics"
	"github.com/1alexb/gaza-datasheet-server/internal/model"
	"github.com/1alexb/gaza-datasheet-server/internal/reload"
	"github.com/1alexb/gaza-datasheet-server/internal/source"
	"github.com/1alexb/gaza-datasheet-server/internal/store"
)

// Writer persists the aggregated events; *sheet.Writer in production.
type Writer interface {
	Sync(path, sheet string, events []model.CanonicalEvent) (int, error)
}

type Pipeline struct {
	Sources  []source.Registered
	Writer   Writer
	Reloader reload.Reloader
	Store    config.StoreConfig
	Metrics  *metrics.Metrics
	Log      *slog.Logger

	mu   sync.Mutex
	last *store.SyncState
}

// FetchAll invokes every source concurrently and returns the outcomes in
// registration order, whatever order they completed in.
func (p *Pipeline) FetchAll(ctx context.Context) []source.Outcome {
	return p.fetchAll(ctx, p.Log)
}

func (p *Pipeline) fetchAll(ctx context.Context, log *slog.Logger) []source.Outcome {
	out := make([]source.Outcome, len(p.Sources))
	var wg sync.WaitGroup
	for i, s := range p.Sources {
		wg.Add(1)
		go func(i int, s source.Registered) {
			defer wg.Done()
			o := source.Collect(ctx, log, s)
			p.Metrics.ObserveSource(o.Source, o.Status.String(), len(o.Results))
			out[i] = o
		}(i, s)
	}
	wg.Wait()
	return out
}

func flatten(outcomes []source.Outcome) []model.SourceResult {
	var n int
	for _, o := range outcomes {
		n += len(o.Results)
	}
	res := make([]model.SourceResult, 0, n)
	for _, o := range outcomes {
		if o.Status == source.StatusOK {
			res = append(res, o.Results...)
		}
	}
	return res
}

// Events is the read-only aggregated view. Nothing is written.
func (p *Pipeline) Events(ctx context.Context, f aggregate.Filters) []model.CanonicalEvent {
	return aggregate.Aggregate(flatten(p.FetchAll(ctx)), f)
}

// Lookup finds a registered source by config type or display name.
func (p *Pipeline) Lookup(name string) (source.Registered, bool) {
	for _, s := range p.Sources {
		if strings.EqualFold(s.Type, name) || strings.EqualFold(s.Name(), name) {
			return s, true
		}
	}
	return source.Registered{}, false
}

// Run executes one sync process and returns the number of rows written.
// Failed sources contribute nothing; a store or reload failure fails the run.
func (p *Pipeline) Run(ctx context.Context, trigger string) (int, error) {
	runID := uuid.NewString()
	log := p.Log.With("run_id", runID, "trigger", trigger)
	start := time.Now()
	log.Info("sync started", "sources", len(p.Sources))

	n, err := p.run(ctx, runID, trigger, log)
	elapsed := time.Since(start)
	p.Metrics.ObserveSync(trigger, n, elapsed, err)
	if err != nil {
		log.Error("sync failed", "err", err, "elapsed", elapsed.Truncate(time.Millisecond))
		return 0, err
	}
	log.Info("sync finished", "count", n, "elapsed", elapsed.Truncate(time.Millisecond))
	return n, nil
}

func (p *Pipeline) run(ctx context.Context, runID, trigger string, log *slog.Logger) (int, error) {
	outcomes := p.fetchAll(ctx, log)
	events := aggregate.Aggregate(flatten(outcomes), aggregate.Filters{})

	path, sheet, err := p.Store.Resolve()
	if err != nil {
		return 0, err
	}
	n, err := p.Writer.Sync(path, sheet, events)
	if err != nil {
		return 0, fmt.Errorf("write store: %w", err)
	}
	now := time.Now().UTC()
	if err := p.Reloader.Reload(ctx, reload.Notice{RunID: runID, Store: path, Sheet: sheet, Rows: n, At: now}); err != nil {
		return 0, fmt.Errorf("reload index: %w", err)
	}

	st := store.SyncState{RunID: runID, Trigger: trigger, Finished: now, Store: path, Sheet: sheet, Rows: n}
	for _, o := range outcomes {
		ss := store.SourceState{Name: o.Source, Status: o.Status.String(), Events: len(o.Results)}
		if o.Err != nil {
			ss.Error = o.Err.Error()
		}
		st.Sources = append(st.Sources, ss)
	}
	p.mu.Lock()
	p.last = &st
	p.mu.Unlock()
	if p.Store.StatePath != "" {
		if err := store.SaveSyncState(p.Store.StatePath, st); err != nil {
			log.Warn("save sync state", "path", p.Store.StatePath, "err", err)
		}
	}
	return n, nil
}

// LastSync returns the most recent successful sync, falling back to the
// persisted state after a restart.
func (p *Pipeline) LastSync() (store.SyncState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil {
		return *p.last, true
	}
	if p.Store.StatePath == "" {
		return store.SyncState{}, false
	}
	st, err := store.LoadSyncState(p.Store.StatePath)
	if err != nil {
		return store.SyncState{}, false
	}
	p.last = &st
	return st, true
}
