package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the workspace root (without extension).
const FileName = "formulary"

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	Registry   RegistryConfig
	Extraction ExtractionConfig
	Export     ExportConfig
	Processor  ProcessorConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// RegistryConfig controls variable registry rules.
type RegistryConfig struct {
	MinDescriptionLength int
	SeedDefaults         bool
}

// ExtractionConfig points at the external document-extraction service.
type ExtractionConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
}

// ExportConfig holds export output settings
type ExportConfig struct {
	Dir string
}

// ProcessorConfig holds dataset processing settings
type ProcessorConfig struct {
	Dir           string
	VariantColumn string
	Variants      map[string]string // cover code -> variant name
}

// DefaultVariants maps product cover codes to the variant names used by
// variant-specific formula expressions.
func DefaultVariants() map[string]string {
	return map[string]string{
		"L190A01": "Variant 1",
		"LI90B01": "Variant 2",
		"LI90B02": "Variant 2",
		"L190C01": "Variant 3",
		"L190D01": "Variant 4",
		"L190E01": "Variant 5",
		"L190E02": "Variant 5",
		"L190F01": "Variant 6",
	}
}

// Load reads configuration for the given workspace root.
// Priority (highest to lowest):
// 1. Environment variables with FORMULARY_ prefix (e.g., FORMULARY_LOG_LEVEL)
// 2. formulary.toml in the workspace root
// 3. Built-in defaults
func Load(workspaceRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(FileName)
	v.SetConfigType("toml")
	if strings.TrimSpace(workspaceRoot) != "" {
		v.AddConfigPath(workspaceRoot)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("FORMULARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Registry: RegistryConfig{
			MinDescriptionLength: v.GetInt("registry.min_description_length"),
			SeedDefaults:         v.GetBool("registry.seed_defaults"),
		},
		Extraction: ExtractionConfig{
			BaseURL:   v.GetString("extraction.base_url"),
			Timeout:   v.GetDuration("extraction.timeout"),
			RateLimit: v.GetFloat64("extraction.rate_limit"),
		},
		Export: ExportConfig{
			Dir: v.GetString("export.dir"),
		},
		Processor: ProcessorConfig{
			Dir:           v.GetString("processor.dir"),
			VariantColumn: v.GetString("processor.variant_column"),
			Variants:      upperKeys(v.GetStringMapString("processor.variants")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values for obvious mistakes.
func (c *Config) Validate() error {
	if c.Registry.MinDescriptionLength < 0 {
		return fmt.Errorf("registry.min_description_length must be >= 0")
	}
	if c.Extraction.Timeout <= 0 {
		return fmt.Errorf("extraction.timeout must be positive")
	}
	if c.Extraction.RateLimit < 0 {
		return fmt.Errorf("extraction.rate_limit must be >= 0")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if strings.TrimSpace(c.Processor.VariantColumn) == "" {
		return fmt.Errorf("processor.variant_column is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "formulary")
	v.SetDefault("app.env", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("registry.min_description_length", 5)
	v.SetDefault("registry.seed_defaults", true)

	v.SetDefault("extraction.base_url", "http://127.0.0.1:5000")
	v.SetDefault("extraction.timeout", 60*time.Second)
	v.SetDefault("extraction.rate_limit", 0)

	v.SetDefault("export.dir", "")

	v.SetDefault("processor.dir", "")
	v.SetDefault("processor.variant_column", "COVER_CODE")
	v.SetDefault("processor.variants", DefaultVariants())
}

// viper folds map keys to lower case; cover codes are upper case.
func upperKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, val := range in {
		out[strings.ToUpper(strings.TrimSpace(k))] = val
	}
	return out
}

// DefaultFile is the formulary.toml written by `formulary init`.
const DefaultFile = `[log]
level = "info"
format = "console"

[registry]
min_description_length = 5
seed_defaults = true

[extraction]
base_url = "http://127.0.0.1:5000"
timeout = "60s"

[processor]
variant_column = "COVER_CODE"
`
