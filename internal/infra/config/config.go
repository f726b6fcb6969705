// Package config provides runtime configuration for the gateway.
// All fields have safe defaults so the binary runs locally without any
// setup beyond OPENAI_API_KEY. Precedence: defaults, then an optional YAML
// file, then environment variables.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration.
type Config struct {
	OpenAI     OpenAIConfig   `yaml:"openai"`
	Platform   PlatformConfig `yaml:"platform"`
	ListenAddr string         `yaml:"listen_addr"` // LISTEN_ADDR — default ":8080"
	DBPath     string         `yaml:"db_path"`     // AGENT_DB_PATH — default "agent.sqlite"
	LogLevel   string         `yaml:"log_level"`   // LOG_LEVEL — default "info"
}

// OpenAIConfig holds model API settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`  // OPENAI_API_KEY — no default
	BaseURL string `yaml:"base_url"` // OPENAI_BASE_URL — default "https://api.openai.com/v1"
	Model   string `yaml:"model"`    // OPENAI_MODEL — default "gpt-4o"
}

// PlatformConfig holds session-store settings.
type PlatformConfig struct {
	URL          string `yaml:"url"`           // PLATFORM_URL — default "http://localhost:8000"
	ExperimentID string `yaml:"experiment_id"` // EXPERIMENT_ID — default ""
}

const (
	envKeyOpenAIAPIKey = "OPENAI_API_KEY"
	envKeyOpenAIBase   = "OPENAI_BASE_URL"
	envKeyOpenAIModel  = "OPENAI_MODEL"
	envKeyPlatformURL  = "PLATFORM_URL"
	envKeyExperimentID = "EXPERIMENT_ID"
	envKeyListenAddr   = "LISTEN_ADDR"
	envKeyDBPath       = "AGENT_DB_PATH"
	envKeyLogLevel     = "LOG_LEVEL"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o",
		},
		Platform: PlatformConfig{
			URL: "http://localhost:8000",
		},
		ListenAddr: ":8080",
		DBPath:     "agent.sqlite",
		LogLevel:   "info",
	}
}

// Load builds the configuration: defaults, overlaid with the YAML file at
// path (if path is non-empty), overlaid with environment variables.
// ${VAR} references inside the file are expanded before parsing.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides set fields from the environment. A set-but-empty
// variable is treated as unset.
func applyEnv(cfg *Config) {
	overrideEnv(&cfg.OpenAI.APIKey, envKeyOpenAIAPIKey)
	overrideEnv(&cfg.OpenAI.BaseURL, envKeyOpenAIBase)
	overrideEnv(&cfg.OpenAI.Model, envKeyOpenAIModel)
	overrideEnv(&cfg.Platform.URL, envKeyPlatformURL)
	overrideEnv(&cfg.Platform.ExperimentID, envKeyExperimentID)
	overrideEnv(&cfg.ListenAddr, envKeyListenAddr)
	overrideEnv(&cfg.DBPath, envKeyDBPath)
	overrideEnv(&cfg.LogLevel, envKeyLogLevel)
}

func overrideEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
