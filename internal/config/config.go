package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/internal/lookup"
)

// DefaultProducts are the vaccine products with product-specific codes.
var DefaultProducts = []string{"az", "pf", "mo", "nx", "jn", "gs", "vl"}

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager creates a new configuration manager. An empty file searches the
// default locations for cohort.yaml.
func NewManager(file string) (*Manager, error) {
	m := &Manager{file: file}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("cohort")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/primis-cohort/")
	}

	v.SetEnvPrefix("PRIMIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Optional: defaults and environment variables apply without a file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.file != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.max_age", 120)
	v.SetDefault("pipeline.imd_max", lookup.DefaultIMDMax)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.bulk", true)

	v.SetDefault("vaccines.products", DefaultProducts)

	// Store defaults
	v.SetDefault("store.path", "output/cohort.db")
	v.SetDefault("store.export_dir", "output/exports")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetPipelineConfig returns the transform configuration
func (m *Manager) GetPipelineConfig() *domain.PipelineConfig {
	return &m.config.Pipeline
}

// GetStoreConfig returns the run store configuration
func (m *Manager) GetStoreConfig() *domain.StoreConfig {
	return &m.config.Store
}

// ConfigFile returns the file the configuration was read from, if any.
func (m *Manager) ConfigFile() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return Validate(m.config)
}

// Validate checks a configuration. Failures are INVALID_CONFIG errors.
func Validate(config *domain.Config) error {
	invalid := func(format string, args ...interface{}) error {
		return domain.NewConfigurationError(domain.ErrInvalidConfig, "", fmt.Sprintf(format, args...))
	}

	if config.Pipeline.MaxAge <= 0 {
		return invalid("invalid maximum age: %d", config.Pipeline.MaxAge)
	}
	if config.Pipeline.IMDMax <= 0 {
		return invalid("invalid IMD maximum: %v", config.Pipeline.IMDMax)
	}
	if config.Pipeline.Workers < 1 {
		return invalid("workers must be at least 1, got %d", config.Pipeline.Workers)
	}

	seen := make(map[string]bool, len(config.Vaccines.Products))
	for _, p := range config.Vaccines.Products {
		if p == "" || strings.ToLower(p) != p {
			return invalid("vaccine product %q must be a lower case prefix", p)
		}
		if seen[p] {
			return invalid("vaccine product %q listed twice", p)
		}
		seen[p] = true
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return invalid("invalid log level: %s", config.Logging.Level)
	}
	switch config.Logging.Format {
	case "json", "text":
	default:
		return invalid("invalid log format: %s", config.Logging.Format)
	}

	return nil
}
