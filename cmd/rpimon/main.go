package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"rpimon/internal/agent"
	"rpimon/internal/config"
	"rpimon/internal/core"
	"rpimon/internal/core/metrics"
	"rpimon/internal/core/metrics/probe"
	"rpimon/internal/domain"
	"rpimon/internal/logger"
	"rpimon/internal/storage/snapshot"
	"rpimon/internal/storage/sqlite"
	"rpimon/internal/transport/prom"
	"rpimon/internal/transport/rest"
	"rpimon/internal/transport/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML file overlaying the sampling configuration")
	once := pflag.Bool("once", false, "run a single tick, print the samples as JSON and exit")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rpimon: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(cfg)

	if err := domain.CheckUnits(); err != nil {
		log.Error("unit table incomplete", "error", err)
		os.Exit(1)
	}

	if *once {
		if err := runOnce(cfg, log); err != nil {
			log.Error("single tick failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, log); err != nil {
		log.Error("rpimon stopped with error", "error", err)
		os.Exit(1)
	}
}

func newExecutor(sc config.Sampling) *probe.Executor {
	return probe.NewExecutor(probe.WithTimeout(sc.ProbeTimeout))
}

func runOnce(cfg *config.Config, log logger.Logger) error {
	store := snapshot.NewMetricsStore()
	sampler := metrics.NewSampler(cfg.Sampling, newExecutor(cfg.Sampling), store, nil, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sampler.RegisterMetadata(ctx); err != nil {
		return err
	}
	report := sampler.Tick(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"samples": store.Latest(),
		"units":   store.Units(),
		"report":  report,
	})
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("rpimon: starting", "source_id", cfg.SourceID, "address", cfg.Address)

	db, err := sqlite.NewSqliteDB(cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("sqlite close", "error", err)
		}
	}()

	store := snapshot.NewMetricsStore()
	metaRecorder := core.NewMetaRecorder(sqlite.NewMetaRepository(db))
	hub := websocket.NewHub(log)
	exporter := prom.NewExporter()

	registry := core.NewRegistry()
	sinks := []struct {
		name string
		sink any
	}{
		{"snapshot", store},
		{"sqlite", metaRecorder},
		{"websocket", hub},
		{"prometheus", exporter},
	}
	for _, s := range sinks {
		if err := registry.Register(s.name, s.sink); err != nil {
			return err
		}
	}

	var reporter *agent.MetricsReporter
	if cfg.ReportURL != "" {
		reporter = agent.NewMetricsReporter(cfg.ReportURL, cfg.ReportToken, cfg.SourceID, log)
		if err := registry.Register("reporter", reporter); err != nil {
			return err
		}
	}

	sched := core.NewScheduler(log, func(sc config.Sampling) core.Session {
		metaRecorder.Bind(sc)
		return metrics.NewSampler(sc, newExecutor(sc), registry, exporter, log)
	})

	router := rest.NewRouter(cfg, &rest.RouterDeps{
		Vitals:     rest.NewVitalsHandler(store, metaRecorder, log),
		Sampler:    rest.NewSamplerHandler(sched, cfg, registry.Names, log),
		Prometheus: exporter.Handler(),
		Ws:         websocket.NewHandler(hub, log, cfg),
	})
	srv := rest.NewServer(router, cfg.Address)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gCtx)
	})

	if reporter != nil {
		g.Go(func() error {
			return reporter.Run(gCtx, cfg.ReportFlushInterval)
		})
	}

	g.Go(func() error {
		log.Info("starting http server", "address", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// No request may restart the scheduler while it drains.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown error", "error", err)
		}
		if err := sched.Shutdown(shutdownCtx); err != nil {
			log.Warn("ticks still running at shutdown", "error", err)
		}
		return nil
	})

	if err := sched.Start(cfg.Sampling); err != nil && !errors.Is(err, core.ErrSchedulerClosed) {
		stop()
		g.Wait()
		return err
	}

	err = g.Wait()
	log.Info("rpimon stopped")
	return err
}
