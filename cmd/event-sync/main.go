package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/1alexb/gaza-datasheet-server/internal/config"
	"github.com/1alexb/gaza-datasheet-server/internal/httpapi"
	"github.com/1alexb/gaza-datasheet-server/internal/metrics"
	"github.com/1alexb/gaza-datasheet-server/internal/pipeline"
	"github.com/1alexb/gaza-datasheet-server/internal/reload"
	"github.com/1alexb/gaza-datasheet-server/internal/sheet"
	"github.com/1alexb/gaza-datasheet-server/internal/source"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to YAML config (defaults apply when empty)")
		interval = flag.Duration("interval", 0, "override schedule.interval")
		listen   = flag.String("listen", "", "override server.listen_address")
		once     = flag.Bool("once", false, "run a single sync then exit")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Schedule.Interval = *interval
	}
	if *listen != "" {
		cfg.Server.ListenAddress = *listen
	}

	log := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(log)
	log.Info("event-sync starting", "version", Version)

	srcs, err := source.Build(cfg.Sources)
	if err != nil {
		log.Error("build sources", "err", err)
		os.Exit(1)
	}
	for _, s := range srcs {
		log.Info("configured source", "source", s.Name(), "type", s.Type, "unstable", s.Unstable)
	}

	reloader, err := reload.NewFromConfig(cfg.Reload, log)
	if err != nil {
		log.Error("build reloader", "err", err)
		os.Exit(1)
	}
	if c, ok := reloader.(io.Closer); ok {
		defer c.Close()
	}

	projector := sheet.Projector{
		Associations: sheet.NewAssociations(cfg.Associations),
		Centroid:     sheet.Centroid{Latitude: cfg.Geo.CentroidLatitude, Longitude: cfg.Geo.CentroidLongitude},
	}
	p := &pipeline.Pipeline{
		Sources:  srcs,
		Writer:   sheet.NewWriter(projector, log),
		Reloader: reloader,
		Store:    cfg.Store,
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
		Log:      log,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		n, err := p.Run(context.WithoutCancel(ctx), pipeline.TriggerOnDemand)
		if err != nil {
			log.Error("sync failed", "err", err)
			os.Exit(1)
		}
		log.Info("sync complete", "count", n)
		return
	}

	sched := pipeline.NewScheduler(p, cfg.Schedule.Interval, *cfg.Schedule.RunOnStart)
	srv := httpapi.New(cfg.Server, p, sched, httpapi.Options{
		Version:   Version,
		Gatherer:  prometheus.DefaultGatherer,
		AccessLog: os.Stdout,
	}, log)

	go func() {
		log.Info("serving http", "addr", cfg.Server.ListenAddress)
		if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "err", err)
			cancel()
		}
	}()

	sched.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	log.Info("stopped")
}

func newLogger(c config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
