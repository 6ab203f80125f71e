package domain

// Config represents the main application configuration
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Vaccines VaccinesConfig `mapstructure:"vaccines"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PipelineConfig controls the record transform
type PipelineConfig struct {
	MaxAge  int     `mapstructure:"max_age"` // records at or above are dropped
	IMDMax  float64 `mapstructure:"imd_max"` // highest IMD rank
	Workers int     `mapstructure:"workers"` // goroutines for the per-record path
	Bulk    bool    `mapstructure:"bulk"`    // use the columnar evaluator
}

// VaccinesConfig lists the vaccine products with product-specific codes
type VaccinesConfig struct {
	Products []string `mapstructure:"products"`
}

// StoreConfig represents the run store configuration
type StoreConfig struct {
	Path      string `mapstructure:"path"`
	ExportDir string `mapstructure:"export_dir"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
