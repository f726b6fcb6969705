// agentd - conversational tool-calling agent gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/config"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/llm"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/sqlite"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/server"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("agentd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config", "", "Path to YAML config file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	return serve(*configPath, out)
}

func serve(configPath string, out io.Writer) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; model calls will fail")
	}

	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		logger.Error("open database failed", "path", cfg.DBPath, "error", err)
		return 1
	}
	if err := sqlite.MigrateUp(db); err != nil {
		logger.Error("migrations failed", "error", err)
		db.Close() //nolint:errcheck
		return 1
	}

	// Probe the model API at startup. A failure is logged, not fatal: the
	// gateway still serves the UI and trace archive while the API is down.
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	provider := llm.NewOpenAIProvider(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	if err := provider.HealthCheck(probeCtx); err != nil {
		logger.Warn("model API health check failed", "base_url", cfg.OpenAI.BaseURL, "error", err)
	}
	cancelProbe()

	srv, err := server.NewServer(db, cfg, server.DefaultConfig(cfg.ListenAddr), logger)
	if err != nil {
		logger.Error("server init failed", "error", err)
		db.Close() //nolint:errcheck
		return 1
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 1
		}
	case sig := <-sigCh:
		logger.Info("signal received", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
	}

	return 0
}

func printHelp(out io.Writer) {
	helpText := `agentd - conversational tool-calling agent gateway

Usage:
  agentd [options]

Options:
  --config PATH  Path to YAML config file (optional; env vars override)
  --version      Show version information
  --help         Show this help message

Environment:
  OPENAI_API_KEY   Model API key (required for completions)
  OPENAI_BASE_URL  Model API base URL (default https://api.openai.com/v1)
  OPENAI_MODEL     Model name (default gpt-4o)
  PLATFORM_URL     Session store base URL (default http://localhost:8000)
  EXPERIMENT_ID    Experiment tag appended to session store calls
  LISTEN_ADDR      Listen address (default :8080)
  AGENT_DB_PATH    Trace archive path (default agent.sqlite)
  LOG_LEVEL        debug, info, warn or error (default info)

Examples:
  agentd --version
  OPENAI_API_KEY=sk-... agentd
  agentd --config config.yaml`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
