package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when no file or env is present", func(t *testing.T) {
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "formulary", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "console", cfg.Log.Format)
		assert.Equal(t, "stderr", cfg.Log.Output)
		assert.Equal(t, 5, cfg.Registry.MinDescriptionLength)
		assert.True(t, cfg.Registry.SeedDefaults)
		assert.Equal(t, "http://127.0.0.1:5000", cfg.Extraction.BaseURL)
		assert.Equal(t, 60*time.Second, cfg.Extraction.Timeout)
		assert.Zero(t, cfg.Extraction.RateLimit)
		assert.Equal(t, "COVER_CODE", cfg.Processor.VariantColumn)
		assert.Equal(t, "Variant 2", cfg.Processor.Variants["LI90B02"])
		assert.Len(t, cfg.Processor.Variants, len(DefaultVariants()))
	})

	t.Run("reads formulary.toml from the workspace", func(t *testing.T) {
		dir := t.TempDir()
		contents := `[log]
level = "debug"
format = "json"

[registry]
min_description_length = 0

[extraction]
base_url = "http://extract.local:9000"
timeout = "5s"
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "formulary.toml"), []byte(contents), 0o644))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, 0, cfg.Registry.MinDescriptionLength)
		assert.Equal(t, "http://extract.local:9000", cfg.Extraction.BaseURL)
		assert.Equal(t, 5*time.Second, cfg.Extraction.Timeout)
	})

	t.Run("environment overrides file values", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "formulary.toml"), []byte("[log]\nlevel = \"debug\"\n"), 0o644))
		t.Setenv("FORMULARY_LOG_LEVEL", "warn")
		t.Setenv("FORMULARY_EXTRACTION_BASE_URL", "http://env.local")

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Log.Level)
		assert.Equal(t, "http://env.local", cfg.Extraction.BaseURL)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "formulary.toml"), []byte("[log\nlevel ="), 0o644))

		_, err := Load(dir)
		require.Error(t, err)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Setenv("FORMULARY_LOG_FORMAT", "xml")
		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.format")
	})
}

func TestDefaultFileParses(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "formulary.toml"), []byte(DefaultFile), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Extraction.Timeout)
}
