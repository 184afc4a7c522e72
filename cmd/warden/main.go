// Warden is an AI repair agent for distributed systems. It drives a
// bounded tool-calling loop against two A/B model backends, exposes
// repair and chat endpoints over HTTP, and tracks per-backend metrics
// for comparison.
//
// Usage:
//
//	warden serve                 Start the API server
//	warden repair [flags]        Run one repair workflow and print the result
//	warden chat <message>        Ask the agent a single question
//	warden init [dir]            Write an example config file
//	warden version               Print version and build information
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wardenlabs/warden/internal/cache"
	"github.com/wardenlabs/warden/internal/config"
	"github.com/wardenlabs/warden/internal/diagnostics"
	"github.com/wardenlabs/warden/internal/feedback"
	"github.com/wardenlabs/warden/internal/metrics"
	"github.com/wardenlabs/warden/internal/orchestrator"
	"github.com/wardenlabs/warden/internal/router"
	"github.com/wardenlabs/warden/internal/runlog"
	"github.com/wardenlabs/warden/internal/tools"
)

var (
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:           "warden",
		Short:         "AI repair agent with A/B model comparison",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: auto-discover)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(),
		newRepairCmd(),
		newChatCmd(),
		newInitCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger creates a structured logger writing to stdout. All log
// output goes through slog; this standardizes handler configuration
// across subcommands.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig resolves and loads the configuration, applying the
// command-line log level override.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	levelName := cfg.LogLevel
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := config.ParseLogLevel(levelName)
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(level)
	logger.Info("config loaded", "path", cfgPath)
	return cfg, logger, nil
}

// stack holds the fully wired application components.
type stack struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *tools.Registry
	orch     *orchestrator.Orchestrator
	promReg  *prometheus.Registry
	runs     *runlog.Store
}

// buildStack wires the full component graph from configuration. The
// caller must invoke close when done.
func buildStack() (*stack, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	promReg := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(promReg)

	dc := diagnostics.NewClient(cfg.Diagnostics.BaseURL,
		time.Duration(cfg.Diagnostics.TimeoutSeconds)*time.Second,
		logger.With("component", "diagnostics"))

	caches := make(map[string]*cache.TTLCache, len(cfg.Caches))
	for name, cc := range cfg.Caches {
		caches[name] = cache.New(name, time.Duration(cc.TTLSeconds)*time.Second, logger)
	}

	registry := tools.BuildRegistry(dc, caches, cfg.Tools.Extended, logger, collectors)
	rt := router.New(cfg, registry, logger)

	var runs *runlog.Store
	if cfg.RunLog.Path != "" {
		runs, err = runlog.Open(cfg.RunLog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open run log: %w", err)
		}
	}

	fb := feedback.NewGenerator(time.Now().UnixNano())
	orch, err := orchestrator.New(rt, registry, fb, collectors, runs, logger)
	if err != nil {
		if runs != nil {
			runs.Close()
		}
		return nil, nil, err
	}

	s := &stack{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		orch:     orch,
		promReg:  promReg,
		runs:     runs,
	}
	cleanup := func() {
		if runs != nil {
			runs.Close()
		}
	}
	return s, cleanup, nil
}
