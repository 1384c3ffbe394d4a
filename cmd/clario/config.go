package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clarioapp/clario/internal/util"
)

// config is the full server configuration. Values resolve in order: built-in
// defaults, then the YAML config file, then environment variables.
type config struct {
	Addr     string `yaml:"addr"`
	StateDir string `yaml:"state_dir"`
	Debug    bool   `yaml:"debug"`

	Store struct {
		// Driver selects the backend: sqlite, postgres, mongo, redis, memory.
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`

	OpenAI struct {
		APIKey         string  `yaml:"api_key"`
		Model          string  `yaml:"model"`
		Temperature    float64 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"openai"`

	Auth struct {
		// Mode selects the identity provider: token or trusted-header.
		Mode string `yaml:"mode"`
		// Tokens maps bearer tokens to identities for token mode.
		Tokens map[string]struct {
			UserID      string `yaml:"user_id"`
			DisplayName string `yaml:"display_name"`
		} `yaml:"tokens"`
	} `yaml:"auth"`

	MaxUploadBytes   int64 `yaml:"max_upload_bytes"`
	MaxDocumentChars int   `yaml:"max_document_chars"`
}

func defaultConfig() config {
	var cfg config
	cfg.Addr = ":8080"
	cfg.StateDir = "/var/lib/clario"
	cfg.Store.Driver = "sqlite"
	cfg.Auth.Mode = "trusted-header"
	return cfg
}

// loadConfig builds the effective configuration. A missing config file is
// fine; a malformed one is a startup error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Addr = util.GetEnv("CLARIO_ADDR", cfg.Addr)
	cfg.StateDir = util.GetEnv("CLARIO_STATE_DIR", cfg.StateDir)
	cfg.Debug = util.ParseBoolEnv("CLARIO_DEBUG", cfg.Debug)
	cfg.Store.Driver = util.GetEnv("CLARIO_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = util.GetEnv("CLARIO_STORE_DSN", cfg.Store.DSN)
	cfg.OpenAI.APIKey = util.GetEnv("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.Model = util.GetEnv("CLARIO_OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.OpenAI.TimeoutSeconds = util.ParseIntEnv("CLARIO_OPENAI_TIMEOUT_SECONDS", cfg.OpenAI.TimeoutSeconds)
	cfg.Auth.Mode = util.GetEnv("CLARIO_AUTH_MODE", cfg.Auth.Mode)
	cfg.MaxDocumentChars = util.ParseIntEnv("CLARIO_MAX_DOCUMENT_CHARS", cfg.MaxDocumentChars)

	return cfg, nil
}

func (c config) openAITimeout() time.Duration {
	if c.OpenAI.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}
