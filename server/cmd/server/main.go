package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/vitalsmon/vitalsmon/pkg/wire"
	"github.com/vitalsmon/vitalsmon/server/internal/alerts"
	"github.com/vitalsmon/vitalsmon/server/internal/api"
	"github.com/vitalsmon/vitalsmon/server/internal/auth"
	"github.com/vitalsmon/vitalsmon/server/internal/config"
	"github.com/vitalsmon/vitalsmon/server/internal/exporter"
	"github.com/vitalsmon/vitalsmon/server/internal/openapi"
	"github.com/vitalsmon/vitalsmon/server/internal/receiver"
	"github.com/vitalsmon/vitalsmon/server/internal/session"
	"github.com/vitalsmon/vitalsmon/server/internal/store"
	"github.com/vitalsmon/vitalsmon/server/internal/ui"
	"github.com/vitalsmon/vitalsmon/server/internal/ws"
)

// wsInterval is how often the hub pushes a snapshot when nothing ticked.
const wsInterval = 5 * time.Second

var (
	configPath string
	logLevel   string
	uiDir      string
	uiDev      bool
)

var rootCmd = &cobra.Command{
	Use:          "vitals-server",
	Short:        "Core Web Vitals monitoring server: REST API, WebSocket stream, gRPC receiver and dashboard",
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
	rootCmd.Flags().StringVar(&uiDir, "ui-dir", "", "serve the Vite dashboard build from this directory (overrides ui.dir)")
	rootCmd.Flags().BoolVar(&uiDev, "ui-dev", false, "point the dashboard at a running Vite dev server (overrides ui.dev)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command) error {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("vitals-server starting", "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return err
	}
	levelOverride := cmd.Flags().Changed("log-level")
	if levelOverride {
		cfg.Server.LogLevel = logLevel
	}
	if cmd.Flags().Changed("ui-dir") {
		cfg.Server.UI.Dir = uiDir
	}
	if cmd.Flags().Changed("ui-dev") {
		cfg.Server.UI.Dev = uiDev
	}
	setLevel(level, cfg.Server.LogLevel)

	srv := cfg.Server
	slog.Info("config loaded",
		"grpc_port", srv.GRPCPort,
		"http_port", srv.HTTPPort,
		"auth_mode", srv.Auth.Mode,
		"tick_interval", srv.Monitor.TickInterval,
		"session_ttl", srv.Monitor.SessionTTL,
		"max_sessions", srv.Monitor.MaxSessions,
		"alert_rules", len(srv.Alerts.Rules),
	)

	if err := alerts.Validate(srv.Alerts); err != nil {
		slog.Error("invalid alert rules", "err", err)
		return err
	}
	thresholds := srv.ThresholdTable()

	// Session store with background idle eviction.
	st := store.New(srv.Monitor.SessionTTL, srv.Monitor.MaxSessions)
	alertEngine := alerts.New(srv.Alerts, thresholds)
	st.OnEvict(alertEngine.Forget)
	go st.Run(ctx)

	hub := ws.New(func() api.SnapshotResponse {
		return api.BuildSnapshot(st, alertEngine, thresholds, time.Now())
	}, wsInterval)
	go hub.Run(ctx)

	// Synthetic sessions tick on the monitor cadence; every new sample is
	// checked against the alert rules and pushed to dashboards right away.
	go st.Schedule(ctx, srv.Monitor.TickInterval, func(ticked []*session.Session) {
		for _, s := range ticked {
			alertEngine.Evaluate(s.Snapshot())
		}
		if len(ticked) > 0 {
			hub.Notify()
		}
	})

	go func() {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			if !levelOverride {
				setLevel(level, next.Server.LogLevel)
			}
			if err := alerts.Validate(next.Server.Alerts); err != nil {
				slog.Warn("config reload: keeping previous alert rules", "err", err)
				return
			}
			alertEngine.Reload(next.Server.Alerts)
			slog.Info("config reloaded; ports, auth, monitor, thresholds and ui apply on restart",
				"alert_rules", len(next.Server.Alerts.Rules))
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	// gRPC receiver for agent pushes, with optional API key authentication.
	key := srv.Auth.Key()
	header := srv.Auth.EffectiveHeader()
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(auth.APIKeyInterceptor(srv.Auth.Mode, header, key)))
	wire.RegisterSampleServiceServer(grpcSrv, receiver.New(st, alertEngine))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", srv.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", srv.GRPCPort, "err", err)
		return err
	}
	go func() {
		slog.Info("gRPC receiver listening", "port", srv.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	doc, err := openapi.Load()
	if err != nil {
		slog.Error("failed to load OpenAPI document", "err", err)
		return err
	}

	requireKey := auth.HTTPMiddleware(srv.Auth.Mode, header, key)
	apiHandler := api.New(st, alertEngine, api.Options{Thresholds: thresholds})

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(openapi.Validator(doc)(apiHandler)))
	httpMux.Handle(openapi.DocPath, openapi.Handler(doc))
	httpMux.Handle("/ws/stream", requireKey(hub))
	httpMux.Handle("/metrics", exporter.New(st, alertEngine, thresholds))

	if srv.UI.Enabled() {
		dashboard, err := ui.New(srv.UI)
		if err != nil {
			slog.Error("failed to mount dashboard", "err", err)
			return err
		}
		httpMux.Handle("/", dashboard)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", srv.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", srv.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("vitals-server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	grpcSrv.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "err", err)
	}
	alertEngine.Wait()
	return nil
}

// setLevel applies a config log level; Load has already validated it.
func setLevel(v *slog.LevelVar, s string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		l = slog.LevelInfo
	}
	v.Set(l)
}
