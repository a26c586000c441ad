// Package app wires configuration, storage, clients, and services into a
// running application core.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/tiller/internal/clients/eodhd"
	"github.com/bobmcallan/tiller/internal/common"
	"github.com/bobmcallan/tiller/internal/interfaces"
	"github.com/bobmcallan/tiller/internal/services/allocation"
	"github.com/bobmcallan/tiller/internal/services/rebalance"
	"github.com/bobmcallan/tiller/internal/services/statement"
	"github.com/bobmcallan/tiller/internal/services/target"
	"github.com/bobmcallan/tiller/internal/storage/surrealdb"
)

// App holds all initialized services and clients. It is the shared core
// used by cmd/tiller-server.
type App struct {
	Config            *common.Config
	Logger            *common.Logger
	Storage           interfaces.StorageManager
	RateClient        interfaces.RateClient
	LookupClient      interfaces.LookupClient
	StatementService  interfaces.StatementService
	AllocationService interfaces.AllocationService
	RebalanceService  interfaces.RebalanceService
	TargetService     interfaces.TargetService
	StartupTime       time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients, and services. configPath may be
// empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Load configuration - check provided path, TILLER_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("TILLER_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tiller.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tiller.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Currency valuation and name enrichment degrade gracefully without a
	// key, so a missing key is a warning, not a startup failure.
	var eodhdClient *eodhd.Client
	if config.Clients.EODHD.APIKey != "" {
		opts := []eodhd.ClientOption{
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
			eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
		}
		if config.Clients.EODHD.BaseURL != "" {
			opts = append(opts, eodhd.WithBaseURL(config.Clients.EODHD.BaseURL))
		}
		eodhdClient = eodhd.NewClient(config.Clients.EODHD.APIKey, opts...)
	} else {
		logger.Warn().Msg("EODHD API key not configured - currency conversion and name lookups will be unavailable")
	}

	allocationService := allocation.NewService(logger)
	rebalanceService := rebalance.NewService(storageManager, logger)

	var rateClient interfaces.RateClient
	var lookupClient interfaces.LookupClient
	if eodhdClient != nil {
		rateClient = eodhdClient
		lookupClient = eodhdClient
	}

	statementService := statement.NewService(storageManager, rateClient, allocationService, logger)
	targetService := target.NewService(storageManager, lookupClient, logger)

	a := &App{
		Config:            config,
		Logger:            logger,
		Storage:           storageManager,
		RateClient:        rateClient,
		LookupClient:      lookupClient,
		StatementService:  statementService,
		AllocationService: allocationService,
		RebalanceService:  rebalanceService,
		TargetService:     targetService,
		StartupTime:       startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
