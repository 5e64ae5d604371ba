package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/snaptrail/internal/clients/inbox"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/services/normalizer"
	"github.com/bobmcallan/snaptrail/internal/services/planner"
	"github.com/bobmcallan/snaptrail/internal/services/report"
	"github.com/bobmcallan/snaptrail/internal/services/signal"
	"github.com/bobmcallan/snaptrail/internal/services/snapshot"
	"github.com/bobmcallan/snaptrail/internal/storage"
)

// App holds all initialized services, clients and storage.
// It is the shared core behind every snaptrail command.
type App struct {
	Config            *common.Config
	Logger            *common.Logger
	Storage           interfaces.StorageManager
	Broker            interfaces.BrokerClient
	PlannerService    interfaces.PlannerService
	NormalizerService interfaces.NormalizerService
	SignalService     interfaces.SignalService
	SnapshotService   *snapshot.Service
	ReportService     interfaces.ReportService
	StartupTime       time.Time

	scheduler *Scheduler
	runHooks  []func(*models.RunReport)
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, SNAPTRAIL_CONFIG,
// snaptrail.toml next to the binary, then config/snaptrail.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("SNAPTRAIL_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "snaptrail.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/snaptrail.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes all services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	return NewAppWithConfig(context.Background(), config, logger)
}

// NewAppWithConfig initializes all services from an already loaded config.
func NewAppWithConfig(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	if _, ok := config.LocationStatus(); !ok {
		logger.Warn().
			Str("timezone", config.Timezone).
			Msg("Timezone database unavailable, using fixed +05:30 offset")
	}

	storageManager, err := storage.NewManager(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	store := storageManager.SnapshotStore()
	broker := inbox.NewClient(config.Broker.Inbox, inbox.WithLogger(logger))

	plannerService := planner.NewService(store, config.Accounts, logger)
	normalizerService := normalizer.NewService(store, config.Location(), logger)
	signalService := signal.NewService(store, config.Signals, config.Accounts, logger)
	snapshotService := snapshot.NewService(
		store,
		storageManager.RunStore(),
		broker,
		plannerService,
		normalizerService,
		config,
		logger,
	)
	reportService := report.NewService(store, signalService, config.Signals, config.Accounts, logger)

	if len(config.Accounts) == 0 {
		logger.Warn().Msg("No accounts configured - runs will do nothing")
	}

	a := &App{
		Config:            config,
		Logger:            logger,
		Storage:           storageManager,
		Broker:            broker,
		PlannerService:    plannerService,
		NormalizerService: normalizerService,
		SignalService:     signalService,
		SnapshotService:   snapshotService,
		ReportService:     reportService,
		StartupTime:       startupStart,
	}

	logger.Info().
		Int("accounts", len(config.Accounts)).
		Str("raw_backend", config.Storage.Raw.Backend).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// OnRunComplete registers fn with the scheduler started by StartScheduler.
func (a *App) OnRunComplete(fn func(*models.RunReport)) {
	a.runHooks = append(a.runHooks, fn)
}

// StartScheduler registers the daily run on the configured cron schedule
// and performs a catch-up run when the current target date is pending.
func (a *App) StartScheduler() error {
	s := NewScheduler(a.SnapshotService, a.PlannerService, a.Config.Location(), a.Logger)
	for _, fn := range a.runHooks {
		s.OnRunComplete(fn)
	}
	if err := s.Start(a.Config.Scheduler.Schedule); err != nil {
		return err
	}
	a.scheduler = s
	go s.CatchUp(context.Background())
	return nil
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler (waiting for a running job), close storage.
func (a *App) Close() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
		a.scheduler = nil
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Storage = nil
	}
}
