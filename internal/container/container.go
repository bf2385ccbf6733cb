package container

import (
	"context"
	"fmt"
	"log"

	"gomotif/adapters/battery"
	"gomotif/adapters/db/postgres"
	"gomotif/adapters/detect"
	"gomotif/adapters/rng"
	"gomotif/app"
	"gomotif/internal/api"
	"gomotif/internal/config"
	"gomotif/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	RunRepo   ports.RunRepository
	SweepRepo ports.SweepRepository
	Ledger    ports.LedgerPort

	// Engine components
	RNG      ports.RNGPort
	Detector ports.DetectorPort
	Battery  ports.NullBatteryPort

	// Progress streaming
	SSEHub   *api.SSEHub
	Progress *api.ProgressBroadcaster

	// Application services
	RunService   *app.RunService
	SweepService *app.SweepService
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
	}

	return c, nil
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	// Test database connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	if err := c.initRepositories(); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := c.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Printf("Container initialized successfully with database connection")
	return nil
}

// initRepositories initializes data access repositories
func (c *Container) initRepositories() error {
	c.RunRepo = postgres.NewRunRepository(c.DB)
	c.SweepRepo = postgres.NewSweepRepository(c.DB)
	c.Ledger = postgres.NewLedgerRepository(c.DB)
	return nil
}

// initEngine initializes the deterministic sampling and detection components
func (c *Container) initEngine() error {
	c.RNG = rng.New()
	c.Detector = detect.NewZScoreDetector(detect.DefaultConfig())
	c.Battery = battery.NewNullBattery(c.RNG)

	c.SSEHub = api.NewSSEHub()
	if c.SSEHub == nil {
		return fmt.Errorf("failed to create SSE hub")
	}
	c.Progress = api.NewProgressBroadcaster(c.SSEHub)

	return nil
}

// initServices wires the pipeline services over the engine and repositories
func (c *Container) initServices() error {
	c.RunService = app.NewRunService(c.Detector, c.Battery, c.RNG, c.Ledger, c.RunRepo, c.Progress)
	c.SweepService = app.NewSweepService(c.RunService, c.Ledger, c.SweepRepo, c.Progress)
	return nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
