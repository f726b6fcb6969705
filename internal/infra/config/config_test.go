package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("Model = %q; want gpt-4o", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("BaseURL = %q", cfg.OpenAI.BaseURL)
	}
	if cfg.Platform.URL != "http://localhost:8000" {
		t.Errorf("Platform.URL = %q", cfg.Platform.URL)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q; want :8080", cfg.ListenAddr)
	}
	if cfg.OpenAI.APIKey != "" {
		t.Errorf("APIKey = %q; want empty default", cfg.OpenAI.APIKey)
	}
}

func TestLoad_NoFileUsesEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("PLATFORM_URL", "http://store:9000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}

	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("APIKey = %q; want sk-test", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q; want gpt-4o-mini", cfg.OpenAI.Model)
	}
	if cfg.Platform.URL != "http://store:9000" {
		t.Errorf("Platform.URL = %q", cfg.Platform.URL)
	}
	// Untouched fields keep defaults
	if cfg.DBPath != "agent.sqlite" {
		t.Errorf("DBPath = %q; want default", cfg.DBPath)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
openai:
  model: gpt-4.1
platform:
  url: http://platform:8000
  experiment_id: exp-42
listen_addr: ":9090"
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}

	if cfg.OpenAI.Model != "gpt-4.1" {
		t.Errorf("Model = %q; want gpt-4.1", cfg.OpenAI.Model)
	}
	if cfg.Platform.ExperimentID != "exp-42" {
		t.Errorf("ExperimentID = %q; want exp-42", cfg.Platform.ExperimentID)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q; want :9090", cfg.ListenAddr)
	}
	// Keys the file omits keep defaults
	if cfg.OpenAI.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("BaseURL = %q; want default", cfg.OpenAI.BaseURL)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
openai:
  model: from-file
`)
	t.Setenv("OPENAI_MODEL", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}

	if cfg.OpenAI.Model != "from-env" {
		t.Errorf("Model = %q; want env to win over file", cfg.OpenAI.Model)
	}
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	t.Setenv("TEST_SECRET_KEY", "sk-from-env")
	path := writeConfigFile(t, `
openai:
  api_key: ${TEST_SECRET_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}

	if cfg.OpenAI.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q; want expanded env value", cfg.OpenAI.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("Load of missing file = nil error; want error")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "openai: [not: a mapping")

	_, err := Load(path)
	if err == nil {
		t.Error("Load of malformed YAML = nil error; want error")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"  error  ", slog.LevelError},
	}
	for _, tc := range cases {
		got, err := ParseLogLevel(tc.in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseLogLevel_Unknown(t *testing.T) {
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("ParseLogLevel(\"verbose\") = nil error; want error")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}
