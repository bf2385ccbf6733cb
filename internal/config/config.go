package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"gomotif/domain/nullmodel"
	"gomotif/domain/power"
	"gomotif/domain/run"
	"gomotif/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig `validate:"required"`
	Server   ServerConfig   `validate:"required"`
	Console  ConsoleConfig
	Engine   EngineConfig `validate:"required"`
	Paths    PathConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string `validate:"required"`
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

// ServerConfig holds diagnostics API server settings
type ServerConfig struct {
	Port            string `validate:"required"`
	GinMode         string
	ShutdownTimeout time.Duration
}

// ConsoleConfig holds the operator console settings
type ConsoleConfig struct {
	Port string
}

// EngineConfig holds the default run parameters; per-run requests may
// override any of them.
type EngineConfig struct {
	Seed                int64
	NullSamples         int
	Alpha               float64
	Mode                string
	ThresholdPercentile int
	MinRegionLen        int
	Workers             int
}

// PathConfig holds file system paths
type PathConfig struct {
	ExcelFile string
	ExportDir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load database configuration")
	}
	config.Database = *dbConfig

	config.Server = *loadServerConfig()
	config.Console = *loadConsoleConfig()
	config.Engine = *loadEngineConfig()
	config.Paths = *loadPathConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	return &DatabaseConfig{
		URL:      url,
		User:     getEnvOrDefault("DB_USER", ""),
		Password: getEnvOrDefault("DB_PASS", ""),
		Name:     getEnvOrDefault("DB_NAME", ""),
		Host:     getEnvOrDefault("DB_HOST", ""),
		Port:     getEnvIntOrDefault("DB_PORT", 5432),
		SSLMode:  getEnvOrDefault("SSL_MODE", "disable"),
	}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		GinMode:         getEnvOrDefault("GIN_MODE", "debug"),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadConsoleConfig() *ConsoleConfig {
	return &ConsoleConfig{
		Port: getEnvOrDefault("CONSOLE_PORT", "8081"),
	}
}

func loadEngineConfig() *EngineConfig {
	return &EngineConfig{
		Seed:                int64(getEnvIntOrDefault("SEED", 42)),
		NullSamples:         getEnvIntOrDefault("NULL_SAMPLES", 500),
		Alpha:               getEnvFloatOrDefault("ALPHA", 0.05),
		Mode:                getEnvOrDefault("NULL_MODE", string(nullmodel.ModePermutation)),
		ThresholdPercentile: getEnvIntOrDefault("THRESHOLD_PCT", 90),
		MinRegionLen:        getEnvIntOrDefault("MIN_REGION_LEN", 30),
		Workers:             getEnvIntOrDefault("WORKERS", 4),
	}
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		ExcelFile: getEnvOrDefault("EXCEL_FILE", ""),
		ExportDir: getEnvOrDefault("EXPORT_DIR", "./exports"),
	}
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	if _, err := config.Engine.RunConfig(); err != nil {
		return err
	}
	return nil
}

// RunConfig materializes the engine defaults into a validated run.Config.
func (e *EngineConfig) RunConfig() (run.Config, error) {
	mode, err := nullmodel.ParseMode(e.Mode)
	if err != nil {
		return run.Config{}, errors.Wrap(err, "invalid null mode")
	}

	cfg := run.DefaultConfig(e.Seed)
	cfg.B = e.NullSamples
	cfg.Alpha = e.Alpha
	cfg.Mode = mode
	cfg.ThresholdPercentile = e.ThresholdPercentile
	cfg.MinRegionLen = e.MinRegionLen
	cfg.Workers = e.Workers
	if err := cfg.Validate(); err != nil {
		return run.Config{}, err
	}
	return cfg, nil
}

// SweepFile is the on-disk sweep description: which cutoff settings to
// sweep and the shared run parameters for every setting.
type SweepFile struct {
	Settings  []int          `yaml:"settings"`
	Seed      *int64         `yaml:"seed"`
	B         *int           `yaml:"b"`
	Alpha     *float64       `yaml:"alpha"`
	Mode      string         `yaml:"mode"`
	Workers   *int           `yaml:"workers"`
	Grid      *GridFile      `yaml:"grid"`
	Tolerance *ToleranceFile `yaml:"tolerance"`
	Stability *StabilityFile `yaml:"stability"`
}

// GridFile mirrors power.Grid in YAML form.
type GridFile struct {
	Sizes  []int     `yaml:"sizes"`
	Sigmas []float64 `yaml:"sigmas"`
	Trials int       `yaml:"trials"`
}

// ToleranceFile mirrors power.Tolerance in YAML form.
type ToleranceFile struct {
	CenterFrac float64 `yaml:"center_frac"`
	SizeFactor float64 `yaml:"size_factor"`
}

// StabilityFile mirrors run.StabilityConfig in YAML form.
type StabilityFile struct {
	K                 int     `yaml:"k"`
	JitterScale       float64 `yaml:"jitter_scale"`
	GroupingThreshold float64 `yaml:"grouping_threshold"`
	ConsensusFraction float64 `yaml:"consensus_fraction"`
	UnstableBelow     float64 `yaml:"unstable_below"`
}

// LoadSweepFile parses a sweep description from a YAML file.
func LoadSweepFile(path string) (*SweepFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sweep file %s", path)
	}
	return ParseSweepFile(data)
}

// ParseSweepFile parses a sweep description from YAML bytes.
func ParseSweepFile(data []byte) (*SweepFile, error) {
	var file SweepFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse sweep file")
	}
	if len(file.Settings) == 0 {
		return nil, errors.ConfigInvalid("sweep file must list at least one setting")
	}
	return &file, nil
}

// RunConfig merges the sweep file over the engine defaults. The threshold
// percentile is left at the default; the sweep service overrides it per
// setting.
func (f *SweepFile) RunConfig(engine *EngineConfig) (run.Config, error) {
	base := *engine
	if f.Seed != nil {
		base.Seed = *f.Seed
	}
	if f.B != nil {
		base.NullSamples = *f.B
	}
	if f.Alpha != nil {
		base.Alpha = *f.Alpha
	}
	if f.Mode != "" {
		base.Mode = f.Mode
	}
	if f.Workers != nil {
		base.Workers = *f.Workers
	}

	cfg, err := base.RunConfig()
	if err != nil {
		return run.Config{}, err
	}
	if f.Grid != nil {
		cfg.Power = power.Grid{Sizes: f.Grid.Sizes, Sigmas: f.Grid.Sigmas, Trials: f.Grid.Trials}
	}
	if f.Tolerance != nil {
		cfg.Tolerance = power.Tolerance{CenterFrac: f.Tolerance.CenterFrac, SizeFactor: f.Tolerance.SizeFactor}
	}
	if f.Stability != nil {
		cfg.Stability = run.StabilityConfig{
			K:                 f.Stability.K,
			JitterScale:       f.Stability.JitterScale,
			GroupingThreshold: f.Stability.GroupingThreshold,
			ConsensusFraction: f.Stability.ConsensusFraction,
			UnstableBelow:     f.Stability.UnstableBelow,
		}
	}
	if err := cfg.Validate(); err != nil {
		return run.Config{}, err
	}
	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
