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

	"echelon/internal/config"
	"echelon/internal/handler"
	"echelon/internal/hub"
	"echelon/internal/loader"
	"echelon/internal/logging"
	"echelon/internal/metrics"
	"echelon/internal/repository/sqlite"
	"echelon/internal/service"
	"echelon/internal/watcher"

	"go.uber.org/zap"
)

func main() {
	// Command line flags override the config file
	configPath := flag.String("config", "", "config file path (default: search path)")
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	seedPath := flag.String("seed", "", "seed file to import at startup")
	watchSeed := flag.Bool("watch", false, "re-import the seed file when it changes")
	flag.Parse()

	cfg, cfgFile, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "echelon: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *seedPath != "" {
		cfg.Seed.Path = *seedPath
	}
	if *watchSeed {
		cfg.Seed.Watch = true
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "echelon: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if cfgFile != "" {
		logger.Info("config loaded", zap.String("path", cfgFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// run serves the data service until ctx is done
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting echelon data service", zap.String("addr", cfg.Server.Addr))

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	logger.Info("database opened", zap.String("path", cfg.Database.Path))

	// Initialize event bus
	eventBus := service.NewEventBus(logger)

	// Initialize SSE hub. Broadcast never blocks, so the bus calls it
	// directly and every published event gets a stream id.
	sseHub := hub.New(logger)
	go sseHub.Run(ctx)
	eventBus.Subscribe(sseHub.Broadcast)

	collector := metrics.NewCollector("echelon")
	collector.RegisterGauge("echelon", "sse_clients", "Number of connected event stream clients.", func() float64 {
		return float64(sseHub.ClientCount())
	})

	// Initialize services
	reports := service.NewReportService(store, eventBus,
		service.WithCascadeInvalidation(cfg.Summaries.Cascade()),
		service.WithDefaultSourceType(cfg.Summaries.DefaultSourceType),
		service.WithReportLogger(logger),
		service.WithReportRecorder(collector),
	)
	summaries := service.NewSummaryService(store, eventBus,
		service.WithSummaryLogger(logger),
		service.WithSummaryRecorder(collector),
	)

	if cfg.Seed.Path != "" {
		importSeed := func(ctx context.Context) error {
			seed, err := loader.LoadSeed(cfg.Seed.Path)
			if err != nil {
				return err
			}
			return reports.ImportSeed(ctx, seed)
		}
		if err := importSeed(ctx); err != nil {
			return fmt.Errorf("import seed %s: %w", cfg.Seed.Path, err)
		}
		if cfg.Seed.Watch {
			w := watcher.New(cfg.Seed.Path, importSeed, logger)
			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("seed watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	h := handler.New(reports, summaries, logger)
	router := handler.NewRouter(h, handler.RouterOptions{
		AllowedOrigins: cfg.Server.CORSOrigins,
		Events:         sseHub,
		Metrics:        collector,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
