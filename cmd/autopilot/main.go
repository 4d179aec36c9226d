package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/atc-autopilot/internal/api"
	"github.com/yegors/atc-autopilot/internal/autopilot"
	"github.com/yegors/atc-autopilot/internal/config"
	"github.com/yegors/atc-autopilot/internal/dispatch"
	"github.com/yegors/atc-autopilot/internal/engine"
	"github.com/yegors/atc-autopilot/internal/registry"
	"github.com/yegors/atc-autopilot/internal/simulation"
	"github.com/yegors/atc-autopilot/internal/snapshot"
	"github.com/yegors/atc-autopilot/internal/storage/sqlite"
	"github.com/yegors/atc-autopilot/internal/websocket"
	"github.com/yegors/atc-autopilot/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Autopilot exited with error", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting ATC autopilot",
		logger.String("version", Version),
		logger.String("source", cfg.Source.Type),
		logger.String("landing_runway", cfg.Engine.LandingRunway),
	)

	reg, err := registry.Load(cfg.Engine.LayoutPath)
	if err != nil {
		return fmt.Errorf("failed to load airport layout: %w", err)
	}
	log.Info("Loaded airport layout",
		logger.String("airport", reg.Airport()),
		logger.String("path", cfg.Engine.LayoutPath),
		logger.Int("waypoints", len(reg.WaypointNames())))

	eng, err := engine.New(cfg.EngineSettings(), reg, log)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Snapshot source
	var (
		source  snapshot.Source
		push    *snapshot.PushSource
		simSvc  *simulation.Service
		timeout = time.Duration(cfg.Source.TimeoutSecs) * time.Second
	)
	switch cfg.Source.Type {
	case config.SourceHTTP:
		source = snapshot.NewHTTPSource(cfg.Source.URL, timeout, log)
	case config.SourcePush:
		push = snapshot.NewPushSource()
		source = push
	case config.SourceReplay:
		replay, err := snapshot.NewReplaySource(cfg.Source.ReplayPath, cfg.Source.Loop, log)
		if err != nil {
			return err
		}
		source = replay
	case config.SourceSimulation:
		simSvc, err = simulation.NewService(simulation.Options{
			LandingRunway:  cfg.Engine.LandingRunway,
			SpawnInterval:  time.Duration(cfg.Simulation.SpawnIntervalSecs * float64(time.Second)),
			MaxAircraft:    cfg.Simulation.MaxAircraft,
			Seed:           cfg.Simulation.Seed,
			TimeScale:      cfg.Simulation.TimeScale,
			TurnRateDegSec: cfg.Simulation.TurnRateDegSec,
			ClimbRateFpm:   cfg.Simulation.ClimbRateFpm,
			AccelKtsSec:    cfg.Simulation.AccelKtsSec,
			UnitsPerNM:     cfg.Engine.Thresholds.UnitsPerNM,
			Exits:          cfg.Simulation.Exits,
		}, reg, log)
		if err != nil {
			return fmt.Errorf("failed to create simulation: %w", err)
		}
		wsServer.SetMessageHandler(simulation.NewWebSocketHandler(simSvc, log))
		source = simSvc
	}

	// Command dispatch, in configured order
	var dispatchers dispatch.Multi
	for _, target := range cfg.Dispatch.Targets {
		switch target {
		case config.DispatchLog:
			dispatchers = append(dispatchers, dispatch.NewLogDispatcher(log))
		case config.DispatchHTTP:
			dispatchers = append(dispatchers, dispatch.NewHTTPDispatcher(
				cfg.Dispatch.HTTPURL,
				cfg.Dispatch.CommandsPerSecond,
				cfg.Dispatch.Burst,
				time.Duration(cfg.Dispatch.TimeoutSecs)*time.Second,
				log,
			))
		case config.DispatchWebSocket:
			dispatchers = append(dispatchers, dispatch.NewWebSocketDispatcher(wsServer))
		case config.DispatchSimulation:
			dispatchers = append(dispatchers, simSvc)
		}
	}

	// Journal. Kept as an interface so a disabled journal stays an untyped nil.
	var (
		journalStore *sqlite.Journal
		journal      autopilot.Journal
	)
	if cfg.Storage.Enabled {
		if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", cfg.Storage.SQLiteBasePath, err)
		}
		dbPath := sqlite.DailyPath(cfg.Storage.SQLiteBasePath, time.Now())
		log.Info("Using daily journal", logger.String("path", dbPath))

		journalStore, err = sqlite.NewJournal(dbPath, log)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journalStore.Close()
		journal = journalStore
	}

	autopilotService := autopilot.NewService(
		eng,
		source,
		dispatchers,
		journal,
		wsServer,
		time.Duration(cfg.Engine.TickIntervalSecs*float64(time.Second)),
		log,
	)

	router := api.NewRouter(api.Dependencies{
		Autopilot:  autopilotService,
		Journal:    journalStore,
		Push:       push,
		Simulation: simSvc,
		Registry:   reg,
		Config:     cfg,
		WSServer:   wsServer,
	}, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsServer.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		autopilotService.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", logger.Error(err))
		}
		return nil
	})

	if err := autopilotService.Start(gctx); err != nil {
		stop()
		g.Wait()
		return fmt.Errorf("failed to start autopilot: %w", err)
	}

	err = g.Wait()
	log.Info("Autopilot fully stopped")
	return err
}
