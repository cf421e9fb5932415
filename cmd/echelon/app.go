package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"echelon/internal/client"
	"echelon/internal/codec"
	"echelon/internal/config"
	"echelon/internal/coordinator"
	"echelon/internal/domain"
	"echelon/internal/logging"
	"echelon/internal/provenance"
	"echelon/internal/repository/sqlite"
	"echelon/internal/service"

	"go.uber.org/zap"
)

// backend is everything the CLI needs from a data service. Both the HTTP
// client and the in-process services provide it.
type backend interface {
	coordinator.DataService

	CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error)
	TeamSubtree(ctx context.Context, teamID int64) (domain.TeamNode, error)
	CreateCCIR(ctx context.Context, ccir domain.CCIR) (domain.CCIR, error)
	ExportSeed(ctx context.Context) (*domain.SeedFragment, error)
	ImportSeed(ctx context.Context, seed *domain.SeedFragment) (string, error)
}

var (
	_ backend = (*client.Client)(nil)
	_ backend = (*service.Local)(nil)
)

// app holds the state shared by every command
type app struct {
	configPath string
	serverURL  string
	dbPath     string
	output     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	svc    backend
	remote *client.Client
	coord  *coordinator.Coordinator
	close  func() error
}

// setup loads config and connects to the data service
func (a *app) setup() error {
	switch a.output {
	case "text", "json", "yaml":
	default:
		return domain.InvalidInput(fmt.Sprintf("unsupported output format %q", a.output))
	}

	var err error
	if a.configPath != "" {
		a.cfg, _, err = config.LoadFromPath(a.configPath)
	} else {
		a.cfg, _, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.logger, err = logging.New(config.LogConfig{Level: level, Format: "console"})
	if err != nil {
		return err
	}

	if a.dbPath != "" {
		err = a.openLocal()
	} else {
		err = a.openRemote()
	}
	if err != nil {
		return err
	}

	a.coord = coordinator.New(a.svc,
		coordinator.WithLogger(a.logger),
		coordinator.WithProvenanceOptions(
			provenance.WithParallelism(a.cfg.Client.Parallelism),
			provenance.WithMaxNodes(a.cfg.Client.MaxNodes),
		),
	)
	return nil
}

func (a *app) openLocal() error {
	store, err := sqlite.New(a.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	bus := service.NewEventBus(a.logger)
	reports := service.NewReportService(store, bus,
		service.WithCascadeInvalidation(a.cfg.Summaries.Cascade()),
		service.WithDefaultSourceType(a.cfg.Summaries.DefaultSourceType),
		service.WithReportLogger(a.logger),
	)
	summaries := service.NewSummaryService(store, bus, service.WithSummaryLogger(a.logger))

	a.svc = service.NewLocal(reports, summaries)
	a.close = store.Close
	a.logger.Debug("using local database", zap.String("path", a.dbPath))
	return nil
}

func (a *app) openRemote() error {
	base := a.cfg.Client.BaseURL
	if a.serverURL != "" {
		base = a.serverURL
	}
	b := a.cfg.Client.Breaker
	c, err := client.New(base,
		client.WithTimeout(a.cfg.Client.Timeout.Duration()),
		client.WithBreaker(client.BreakerSettings{
			MaxRequests:      b.MaxRequests,
			Interval:         b.Interval.Duration(),
			Timeout:          b.Timeout.Duration(),
			FailureThreshold: b.FailureThreshold,
			MinRequests:      b.MinRequests,
		}),
		client.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	a.svc = c
	a.remote = c
	a.logger.Debug("using data service", zap.String("url", base))
	return nil
}

// shutdown releases the backend
func (a *app) shutdown() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.close != nil {
		return a.close()
	}
	return nil
}

// render writes v as JSON or YAML, or calls text for the text format
func (a *app) render(w io.Writer, v interface{}, text func(w io.Writer) error) error {
	switch a.output {
	case "json":
		return codec.WriteJSON(w, v)
	case "yaml":
		return codec.WriteYAML(w, v)
	}
	return text(w)
}

// parseID parses a positive id argument
func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInput(fmt.Sprintf("%s must be a positive integer, got %q", name, raw))
	}
	return id, nil
}
