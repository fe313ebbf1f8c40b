// Package config provides configuration loading for pdf2md.
// Supports a .env file, YAML files, environment variables and command-line
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/pdf2md/internal/domain"
	"github.com/spherical/pdf2md/internal/observability"
)

// Supported providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// placeholderKey is the value shipped in .env.example.
const placeholderKey = "your_api_key_here"

// Config holds all configuration for a conversion run.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Output        OutputConfig        `yaml:"output"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LLMConfig holds content generator settings.
type LLMConfig struct {
	Provider   string        `yaml:"provider"` // openrouter or gemini
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ProcessingConfig holds rendering and segmentation settings.
type ProcessingConfig struct {
	MaxTokensPerSection int     `yaml:"max_tokens_per_section"`
	ImageDPI            float64 `yaml:"image_dpi"`
	ProbeDPI            float64 `yaml:"probe_dpi"`
	Concurrency         int     `yaml:"concurrency"`
	JPEGQuality         int     `yaml:"jpeg_quality"`
}

// OutputConfig holds output settings.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Manifest bool   `yaml:"manifest"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   ProviderOpenRouter,
			Timeout:    5 * time.Minute,
			MaxRetries: 3,
		},
		Processing: ProcessingConfig{
			MaxTokensPerSection: 100000,
			ImageDPI:            300,
			ProbeDPI:            72,
			Concurrency:         1,
			JPEGQuality:         85,
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Load reads .env from the working directory, then the optional YAML file at
// path, then the environment.
func Load(path string) (*Config, error) {
	return LoadFiles(".env", path)
}

// LoadFiles is Load with an explicit env file. A missing env file is ignored;
// its values never override variables already set in the process.
func LoadFiles(envFile, path string) (*Config, error) {
	cfg := DefaultConfig()

	fileEnv := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileEnv = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, domain.ConfigError("Failed to read env file "+envFile, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("Failed to read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("Failed to parse config file", err)
		}
	}

	lookup := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fileEnv[key]
	}
	if err := applyEnvOverrides(cfg, lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Overrides carries command-line values; nil fields leave the config as is.
type Overrides struct {
	OutputDir   *string
	MaxTokens   *int
	DPI         *float64
	ProbeDPI    *float64
	Concurrency *int
	Timeout     *time.Duration
	Provider    *string
	Model       *string
	LogLevel    *string
	Manifest    *bool
}

// ApplyOverrides copies every set field of o into c.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.OutputDir != nil {
		c.Output.Dir = *o.OutputDir
	}
	if o.MaxTokens != nil {
		c.Processing.MaxTokensPerSection = *o.MaxTokens
	}
	if o.DPI != nil {
		c.Processing.ImageDPI = *o.DPI
	}
	if o.ProbeDPI != nil {
		c.Processing.ProbeDPI = *o.ProbeDPI
	}
	if o.Concurrency != nil {
		c.Processing.Concurrency = *o.Concurrency
	}
	if o.Timeout != nil {
		c.LLM.Timeout = *o.Timeout
	}
	if o.Provider != nil && *o.Provider != c.LLM.Provider {
		c.LLM.Provider = *o.Provider
		// The key belongs to the previous provider.
		c.LLM.APIKey = ""
	}
	if o.Model != nil {
		c.LLM.Model = *o.Model
	}
	if o.LogLevel != nil {
		c.Observability.LogLevel = *o.LogLevel
	}
	if o.Manifest != nil {
		c.Output.Manifest = *o.Manifest
	}
}

// ResolveAPIKey fills an empty key from the environment variable of the
// configured provider.
func (c *Config) ResolveAPIKey(envFile string) {
	if c.LLM.APIKey != "" {
		return
	}
	var fileEnv map[string]string
	if envFile != "" {
		fileEnv, _ = godotenv.Read(envFile)
	}
	for _, key := range apiKeyEnv(c.LLM.Provider) {
		if v := os.Getenv(key); v != "" {
			c.LLM.APIKey = v
			return
		}
		if v := fileEnv[key]; v != "" {
			c.LLM.APIKey = v
			return
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return domain.ConfigError(fmt.Sprintf("invalid provider: %q (want %s or %s)", c.LLM.Provider, ProviderOpenRouter, ProviderGemini), nil)
	}

	envName := apiKeyEnv(c.LLM.Provider)[0]
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return domain.ConfigError(envName+" is not set", nil)
	}
	if c.LLM.APIKey == placeholderKey {
		return domain.ConfigError(envName+" still holds the placeholder value", nil)
	}

	if c.Processing.MaxTokensPerSection <= 0 {
		return domain.ConfigError(fmt.Sprintf("max tokens per section must be positive, got %d", c.Processing.MaxTokensPerSection), nil)
	}
	if c.Processing.ImageDPI <= 0 {
		return domain.ConfigError(fmt.Sprintf("image DPI must be positive, got %g", c.Processing.ImageDPI), nil)
	}
	if c.Processing.ProbeDPI <= 0 {
		return domain.ConfigError(fmt.Sprintf("probe DPI must be positive, got %g", c.Processing.ProbeDPI), nil)
	}
	if c.Processing.Concurrency < 1 {
		return domain.ConfigError(fmt.Sprintf("concurrency must be at least 1, got %d", c.Processing.Concurrency), nil)
	}
	if c.Processing.JPEGQuality < 1 || c.Processing.JPEGQuality > 100 {
		return domain.ConfigError(fmt.Sprintf("JPEG quality must be between 1 and 100, got %d", c.Processing.JPEGQuality), nil)
	}
	if c.LLM.Timeout <= 0 {
		return domain.ConfigError(fmt.Sprintf("LLM timeout must be positive, got %s", c.LLM.Timeout), nil)
	}
	if c.LLM.MaxRetries < 0 {
		return domain.ConfigError(fmt.Sprintf("max retries must not be negative, got %d", c.LLM.MaxRetries), nil)
	}
	if c.Output.Dir == "" {
		return domain.ConfigError("output directory must not be empty", nil)
	}
	if !observability.ValidLevel(c.Observability.LogLevel) {
		return domain.ConfigError("invalid log level: "+c.Observability.LogLevel, nil)
	}
	if f := c.Observability.LogFormat; f != "console" && f != "json" {
		return domain.ConfigError("invalid log format: "+f, nil)
	}

	return nil
}

func apiKeyEnv(provider string) []string {
	if provider == ProviderGemini {
		return []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
	}
	return []string{"OPENROUTER_API_KEY"}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	if v := getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}

	if cfg.LLM.APIKey == "" {
		for _, key := range apiKeyEnv(cfg.LLM.Provider) {
			if v := getenv(key); v != "" {
				cfg.LLM.APIKey = v
				break
			}
		}
	}

	if v := getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := getenv("LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return domain.ConfigError("invalid LLM_TIMEOUT", err)
		}
		cfg.LLM.Timeout = d
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"MAX_TOKENS_PER_SECTION", &cfg.Processing.MaxTokensPerSection},
		{"CONCURRENCY", &cfg.Processing.Concurrency},
		{"JPEG_QUALITY", &cfg.Processing.JPEGQuality},
		{"LLM_MAX_RETRIES", &cfg.LLM.MaxRetries},
	}
	for _, it := range ints {
		if v := getenv(it.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return domain.ConfigError("invalid "+it.env, err)
			}
			*it.dst = n
		}
	}

	floats := []struct {
		env string
		dst *float64
	}{
		{"IMAGE_DPI", &cfg.Processing.ImageDPI},
		{"PROBE_DPI", &cfg.Processing.ProbeDPI},
	}
	for _, it := range floats {
		if v := getenv(it.env); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return domain.ConfigError("invalid "+it.env, err)
			}
			*it.dst = f
		}
	}

	if v := getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}
