package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/osm"
	"github.com/NERVsystems/ecoroute/pkg/server"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"github.com/NERVsystems/ecoroute/pkg/version"
)

const (
	shutdownTimeout = 30 * time.Second
	probeInterval   = 30 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio, and optionally the HTTP transport and REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, tracing.Options{
		Version:     version.BuildVersion,
		Endpoint:    os.Getenv("OTLP_ENDPOINT"),
		Environment: os.Getenv("ENVIRONMENT"),
		Insecure:    true,
	})
	if err != nil {
		// tracing is optional
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	logger.Info("starting ecoroute",
		"version", version.BuildVersion,
		"nominatim_url", cfg.NominatimURL,
		"osrm_url", cfg.OSRMURL,
		"store", cfg.Store,
		"http_enabled", cfg.EnableHTTP,
		"http_only", cfg.HTTPOnly,
		"monitoring_enabled", cfg.EnableMonitoring,
	)

	var healthChecker *monitoring.HealthChecker
	if cfg.EnableMonitoring {
		healthChecker = monitoring.NewHealthChecker(server.ServerName, version.BuildVersion)
		defer healthChecker.Shutdown()

		monitors := startUpstreamMonitors(healthChecker, a.client, cfg, logger)
		defer func() {
			for _, m := range monitors {
				m.Stop()
			}
		}()

		metricsSrv := startMetricsServer(cfg.MonitoringAddr, logger)
		defer shutdownHTTP(metricsSrv, "monitoring server", logger)
	}

	s, err := server.NewServer(a.deps, logger)
	if err != nil {
		return err
	}

	if cfg.EnableHTTP {
		transport := server.NewHTTPTransport(s.GetMCPServer(), server.NewAPI(a.deps, logger), server.HTTPTransportConfig{
			Addr:      cfg.HTTPAddr,
			AuthType:  cfg.AuthType,
			AuthToken: cfg.AuthToken,
		}, logger)
		if healthChecker != nil {
			transport.SetHealthChecker(healthChecker)
			healthChecker.SetTransport(monitoring.TransportInfo{Type: "http_streaming", HTTPAddr: cfg.HTTPAddr})
		}

		go func() {
			logger.Info("starting HTTP transport", "addr", cfg.HTTPAddr, "endpoint", transport.GetConfig().MCPEndpoint)
			if err := transport.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP transport error", "error", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := transport.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown HTTP transport", "error", err)
			}
		}()
	} else if healthChecker != nil {
		healthChecker.SetTransport(monitoring.TransportInfo{Type: "stdio"})
	}

	switch {
	case !cfg.EnableHTTP:
		logger.Info("transport_enabled", "type", "stdio", "mode", "blocking", "tools", s.ToolNames())
		if err := s.RunWithContext(ctx); err != nil {
			return err
		}
	case cfg.HTTPOnly:
		logger.Info("server_ready", "transports", []string{"http"}, "http_only", true, "tools", s.ToolNames())
		<-ctx.Done()
		logger.Info("shutdown signal received")
	default:
		go func() {
			logger.Info("transport_enabled", "type", "stdio", "mode", "background")
			if err := s.RunWithContext(ctx); err != nil {
				// HTTP keeps serving
				logger.Error("stdio transport error", "error", err)
			}
		}()
		logger.Info("server_ready", "transports", []string{"stdio", "http"}, "tools", s.ToolNames())
		<-ctx.Done()
		logger.Info("shutdown signal received")
		s.WaitForShutdown()
	}

	logger.Info("server stopped")
	return nil
}

func startUpstreamMonitors(hc *monitoring.HealthChecker, client *osm.Client, cfg *config.Config, logger *slog.Logger) []*monitoring.ConnectionMonitor {
	monitors := []*monitoring.ConnectionMonitor{
		monitoring.NewConnectionMonitor(tracing.ServiceNominatim, hc, client.NominatimHealthCheck(cfg.NominatimURL), probeInterval),
		monitoring.NewConnectionMonitor(tracing.ServiceOSRM, hc, client.OSRMHealthCheck(cfg.OSRMURL), probeInterval),
	}
	for _, m := range monitors {
		m.Start()
	}
	logger.Info("started external service monitoring",
		"services", []string{tracing.ServiceNominatim, tracing.ServiceOSRM},
		"check_interval", probeInterval.String())
	return monitors
}

func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info("starting Prometheus metrics server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("monitoring server error", "error", err)
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown "+name, "error", err)
	}
}
