// Package httpapi exposes the sync trigger, the aggregated view and health
// over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1alexb/gaza-datasheet-server/internal/aggregate"
	"github.com/1alexb/gaza-datasheet-server/internal/config"
	"github.com/1alexb/gaza-datasheet-server/internal/model"
	"github.com/1alexb/gaza-datasheet-server/internal/pipeline"
	"github.com/1alexb/gaza-datasheet-server/internal/source"
)

type Options struct {
	Version   string
	Gatherer  prometheus.Gatherer // nil means prometheus.DefaultGatherer
	AccessLog io.Writer           // combined log format; nil disables it
}

type Server struct {
	pipeline  *pipeline.Pipeline
	scheduler *pipeline.Scheduler
	version   string
	log       *slog.Logger

	handler http.Handler
	server  *http.Server
}

func New(cfg config.ServerConfig, p *pipeline.Pipeline, sched *pipeline.Scheduler, opts Options, log *slog.Logger) *Server {
	s := &Server{pipeline: p, scheduler: sched, version: opts.Version, log: log}
	if s.version == "" {
		s.version = "dev"
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("", s.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/", s.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/update", s.handleUpdate).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/external/{source}", s.handleExternal).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	var h http.Handler = r
	if opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(opts.AccessLog, h)
	}
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(log.Handler(), slog.LevelError)),
	)(h)
	s.handler = h

	s.server = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler              { return s.handler }
func (s *Server) Serve() error                       { return s.server.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	res := s.scheduler.Trigger(r.Context())
	if res.Err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": res.Err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": res.Count})
}

type eventsResponse struct {
	Count  int                    `json:"count"`
	Events []model.CanonicalEvent `json:"events"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.pipeline.Events(r.Context(), aggregate.ParseFilters(r.URL.Query()))
	writeJSON(w, http.StatusOK, eventsResponse{Count: len(events), Events: events})
}

func (s *Server) handleExternal(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["source"]
	src, ok := s.pipeline.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "unknown source: " + name})
		return
	}
	o := source.Collect(r.Context(), s.log, src)
	if o.Status != source.StatusOK {
		writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "source": o.Source, "error": o.Err.Error()})
		return
	}
	events := make([]model.CanonicalEvent, 0, len(o.Results))
	for _, res := range o.Results {
		events = append(events, res.Event)
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": o.Source, "count": len(events), "events": events})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"sources": s.pipeline.Report(r.Context()), "last_sync": nil}
	if st, ok := s.pipeline.LastSync(); ok {
		body["last_sync"] = st
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
