package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pathwise-Labs/Elicit/internal/api"
	"github.com/Pathwise-Labs/Elicit/internal/config"
	"github.com/Pathwise-Labs/Elicit/internal/engine"
	"github.com/Pathwise-Labs/Elicit/internal/events"
	"github.com/Pathwise-Labs/Elicit/internal/narrator"
	"github.com/Pathwise-Labs/Elicit/internal/store"
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store: Postgres when configured, in-memory otherwise. The in-memory
	// store loses sessions on restart; it is for development only.
	var st store.Store
	if cfg.Database.URL != "" {
		db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		st = db
		logger.Info("connected to database")
	} else {
		st = store.NewMemoryStore()
		logger.Warn("no database configured, sessions are held in memory")
	}
	defer st.Close()

	// Events (optional)
	var eventsClient events.Client
	if cfg.Events.URL != "" {
		ec, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to events bus, running without events", "error", err)
		} else {
			eventsClient = ec
			defer ec.Close()
			logger.Info("connected to events bus")
		}
	}

	// Narrator (optional)
	var narratorClient narrator.Client
	if cfg.Narrator.URL != "" {
		narratorClient = narrator.NewHTTPClient(cfg.Narrator.URL, cfg.NarratorTimeout())
	}

	// Vignette library
	lib, err := vignette.LoadLibrary(cfg.Library.Path)
	if err != nil {
		logger.Error("failed to load vignette library", "error", err)
		os.Exit(1)
	}
	if cfg.Library.GeneratedVariants > 0 {
		gen := vignette.NewGenerator(cfg.Library.GeneratedVariants, logger)
		candidates, err := gen.GenerateCandidates()
		if err != nil {
			logger.Error("failed to generate candidates", "error", err)
			os.Exit(1)
		}
		if err := lib.AddAdaptive(candidates...); err != nil {
			logger.Error("failed to extend adaptive pool", "error", err)
			os.Exit(1)
		}
		logger.Info("adaptive pool extended", "generated", len(candidates))
	}
	logger.Info("vignette library loaded",
		"beginning", len(lib.Beginning()),
		"adaptive", len(lib.Adaptive()),
		"end", len(lib.End()))

	// Engine
	eng, err := engine.New(st, eventsClient, narratorClient, lib, cfg, logger)
	if err != nil {
		logger.Error("invalid adaptive parameters", "error", err)
		os.Exit(1)
	}
	eng.Start(ctx)
	defer eng.Stop()
	logger.Info("engine started", "sweep_interval", cfg.SweepInterval())

	// Let the orchestrator open sessions over the bus
	eng.SetupSubscriptions()

	// API server
	router := api.NewRouter(eng, st, cfg.Server.AdminToken, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsRouter := api.NewMetricsRouter()
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsRouter,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
