package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalsmon/vitalsmon/agent/internal/compute"
	"github.com/vitalsmon/vitalsmon/agent/internal/config"
	"github.com/vitalsmon/vitalsmon/agent/internal/security"
	"github.com/vitalsmon/vitalsmon/agent/internal/shipper"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "vitals-agent",
	Short:        "Collects Core Web Vitals for configured pages and pushes them to vitals-server",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return run(ctx, cmd)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override log_level from the config (debug|info|warn|error)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command) error {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("vitals-agent starting", "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return err
	}
	override := cmd.Flags().Changed("log-level")
	if override {
		cfg.Agent.LogLevel = logLevel
	}
	setLevel(level, cfg.Agent.LogLevel)

	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"targets", len(cfg.Agent.Targets),
		"tick_interval", cfg.Agent.TickInterval,
	)

	// Start the gRPC shipper; it runs until ctx is cancelled.
	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	r := newRunner(compute.NewEngine(), security.NewChecker(cfg.Agent.CertCheckInterval), ship)
	r.apply(cfg.Agent.Targets)
	if r.size() == 0 {
		slog.Warn("no targets configured, agent will idle")
	}

	// Hot reload rebuilds collectors; server endpoint and intervals apply on restart.
	go func() {
		if err := config.Watch(ctx, configPath, func(updated *config.Config) {
			if !override {
				setLevel(level, updated.Agent.LogLevel)
			}
			r.apply(updated.Agent.Targets)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ticker := time.NewTicker(cfg.Agent.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("vitals-agent shutting down",
				"sent", ship.Sent(), "dropped", ship.Dropped(), "pending", ship.Pending())
			return nil
		case t := <-ticker.C:
			r.tick(ctx, t)
		}
	}
}

// setLevel applies a config log level; Load has already validated it.
func setLevel(v *slog.LevelVar, s string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		l = slog.LevelInfo
	}
	v.Set(l)
}
