package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf2md/internal/domain"
)

var envKeys = []string{
	"OPENROUTER_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY",
	"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "LLM_TIMEOUT", "LLM_MAX_RETRIES",
	"MAX_TOKENS_PER_SECTION", "IMAGE_DPI", "PROBE_DPI", "CONCURRENCY", "JPEG_QUALITY",
	"OUTPUT_DIR", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every variable the loader reads; empty counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "missing.env"), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 100000, cfg.Processing.MaxTokensPerSection)
	assert.Equal(t, 300.0, cfg.Processing.ImageDPI)
	assert.Equal(t, 72.0, cfg.Processing.ProbeDPI)
	assert.Equal(t, 1, cfg.Processing.Concurrency)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, 5*time.Minute, cfg.LLM.Timeout)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", "OPENROUTER_API_KEY=sk-or-file\nMAX_TOKENS_PER_SECTION=5000\nIMAGE_DPI=150\n")

	cfg, err := LoadFiles(envFile, "")
	require.NoError(t, err)

	assert.Equal(t, "sk-or-file", cfg.LLM.APIKey)
	assert.Equal(t, 5000, cfg.Processing.MaxTokensPerSection)
	assert.Equal(t, 150.0, cfg.Processing.ImageDPI)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProcessEnvBeatsEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", "OPENROUTER_API_KEY=sk-or-file\n")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-process")

	cfg, err := LoadFiles(envFile, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-or-process", cfg.LLM.APIKey)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	yamlPath := writeFile(t, "pdf2md.yaml", `
llm:
  provider: gemini
  model: gemini-2.5-pro
  timeout: 90s
processing:
  max_tokens_per_section: 20000
  concurrency: 4
output:
  dir: out
  manifest: true
observability:
  log_level: debug
`)
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("CONCURRENCY", "2")

	cfg, err := LoadFiles("", yamlPath)
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 20000, cfg.Processing.MaxTokensPerSection)
	assert.Equal(t, 2, cfg.Processing.Concurrency)
	assert.Equal(t, 300.0, cfg.Processing.ImageDPI)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.True(t, cfg.Output.Manifest)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yaml string
	}{
		{name: "bad int", env: map[string]string{"MAX_TOKENS_PER_SECTION": "lots"}},
		{name: "bad float", env: map[string]string{"IMAGE_DPI": "high"}},
		{name: "bad duration", env: map[string]string{"LLM_TIMEOUT": "soon"}},
		{name: "bad yaml", yaml: "llm: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, "bad.yaml", tt.yaml)
			}

			_, err := LoadFiles("", path)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadFiles("", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.LLM.APIKey = "sk-or-test"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.LLM.APIKey = "" }, wantErr: "OPENROUTER_API_KEY is not set"},
		{name: "placeholder key", mutate: func(c *Config) { c.LLM.APIKey = "your_api_key_here" }, wantErr: "placeholder"},
		{name: "gemini missing key", mutate: func(c *Config) { c.LLM.Provider = ProviderGemini; c.LLM.APIKey = "" }, wantErr: "GOOGLE_API_KEY"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "acme" }, wantErr: "invalid provider"},
		{name: "zero budget", mutate: func(c *Config) { c.Processing.MaxTokensPerSection = 0 }, wantErr: "max tokens"},
		{name: "negative dpi", mutate: func(c *Config) { c.Processing.ImageDPI = -1 }, wantErr: "image DPI"},
		{name: "zero probe dpi", mutate: func(c *Config) { c.Processing.ProbeDPI = 0 }, wantErr: "probe DPI"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Processing.Concurrency = 0 }, wantErr: "concurrency"},
		{name: "quality too high", mutate: func(c *Config) { c.Processing.JPEGQuality = 101 }, wantErr: "JPEG quality"},
		{name: "zero timeout", mutate: func(c *Config) { c.LLM.Timeout = 0 }, wantErr: "timeout"},
		{name: "negative retries", mutate: func(c *Config) { c.LLM.MaxRetries = -1 }, wantErr: "retries"},
		{name: "empty output", mutate: func(c *Config) { c.Output.Dir = "" }, wantErr: "output directory"},
		{name: "bad log level", mutate: func(c *Config) { c.Observability.LogLevel = "loud" }, wantErr: "log level"},
		{name: "bad log format", mutate: func(c *Config) { c.Observability.LogFormat = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-or-test"

	dir, tokens, dpi, conc := "elsewhere", 500, 150.0, 3
	provider, timeout := ProviderGemini, time.Minute
	cfg.ApplyOverrides(Overrides{
		OutputDir:   &dir,
		MaxTokens:   &tokens,
		DPI:         &dpi,
		Concurrency: &conc,
		Provider:    &provider,
		Timeout:     &timeout,
	})

	assert.Equal(t, "elsewhere", cfg.Output.Dir)
	assert.Equal(t, 500, cfg.Processing.MaxTokensPerSection)
	assert.Equal(t, 150.0, cfg.Processing.ImageDPI)
	assert.Equal(t, 72.0, cfg.Processing.ProbeDPI)
	assert.Equal(t, 3, cfg.Processing.Concurrency)
	assert.Equal(t, time.Minute, cfg.LLM.Timeout)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.APIKey)

	cfg.ResolveAPIKey("")
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	require.NoError(t, cfg.Validate())
}
