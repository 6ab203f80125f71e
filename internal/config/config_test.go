package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primis-cohort/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	m, err := NewManager("")
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, 120, cfg.Pipeline.MaxAge)
	assert.Equal(t, 32844.0, cfg.Pipeline.IMDMax)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.True(t, cfg.Pipeline.Bulk)
	assert.Equal(t, DefaultProducts, cfg.Vaccines.Products)
	assert.Equal(t, "output/cohort.db", m.GetStoreConfig().Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, m.ConfigFile())
}

func TestNewManager_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cohort.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
pipeline:
  workers: 4
  bulk: false
vaccines:
  products: [az, pf]
logging:
  level: debug
  format: json
`), 0644))

	m, err := NewManager(file)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, 4, m.GetPipelineConfig().Workers)
	assert.False(t, cfg.Pipeline.Bulk)
	assert.Equal(t, 120, cfg.Pipeline.MaxAge)
	assert.Equal(t, []string{"az", "pf"}, cfg.Vaccines.Products)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, file, m.ConfigFile())
}

func TestNewManager_SearchPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "cohort.yaml"),
		[]byte("pipeline:\n  max_age: 110\n"), 0644))
	chdir(t, dir)

	m, err := NewManager("")
	require.NoError(t, err)
	assert.Equal(t, 110, m.GetConfig().Pipeline.MaxAge)
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PRIMIS_PIPELINE_WORKERS", "8")
	t.Setenv("PRIMIS_LOGGING_LEVEL", "warn")
	t.Setenv("PRIMIS_STORE_PATH", "/tmp/runs.db")

	m, err := NewManager("")
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)

	t.Setenv("PRIMIS_PIPELINE_WORKERS", "2")
	require.NoError(t, m.Reload())
	assert.Equal(t, 2, m.GetConfig().Pipeline.Workers)
}

func TestNewManager_MissingExplicitFile(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *domain.Config {
		return &domain.Config{
			Pipeline: domain.PipelineConfig{MaxAge: 120, IMDMax: 32844, Workers: 1},
			Vaccines: domain.VaccinesConfig{Products: []string{"az"}},
			Logging:  domain.LoggingConfig{Level: "info", Format: "text"},
		}
	}
	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"zero max age", func(c *domain.Config) { c.Pipeline.MaxAge = 0 }},
		{"negative imd max", func(c *domain.Config) { c.Pipeline.IMDMax = -1 }},
		{"no workers", func(c *domain.Config) { c.Pipeline.Workers = 0 }},
		{"upper case product", func(c *domain.Config) { c.Vaccines.Products = []string{"AZ"} }},
		{"duplicate product", func(c *domain.Config) { c.Vaccines.Products = []string{"az", "az"} }},
		{"bad log level", func(c *domain.Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *domain.Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)

			var cfgErr *domain.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, domain.ErrInvalidConfig, cfgErr.Code)
		})
	}
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (testing.T.Chdir requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
