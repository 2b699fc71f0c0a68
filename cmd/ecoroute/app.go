package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/detector"
	"github.com/NERVsystems/ecoroute/pkg/mapview"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/osm"
	"github.com/NERVsystems/ecoroute/pkg/pipeline"
	"github.com/NERVsystems/ecoroute/pkg/store"
	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// app holds the wired components shared by serve and plan.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *osm.Client
	kv     store.KV
	deps   tools.Deps
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	client := osm.NewClient(cfg.UserAgent, logger)
	if err := client.RegisterService(tracing.ServiceNominatim, cfg.NominatimURL, cfg.Nominatim()); err != nil {
		return nil, err
	}
	if err := client.RegisterService(tracing.ServiceOSRM, cfg.OSRMURL, cfg.OSRM()); err != nil {
		return nil, err
	}
	if cfg.EnableMonitoring {
		client.SetMonitoringHooks(monitoring.ClientHooks())
	}

	kv, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}

	sessions, err := mapview.NewSessions(cfg.SessionCacheSize, cfg.SurfaceOptions(), cfg.TileLayer(), logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	resolver := osm.NewResolver(cfg.NominatimURL, client, logger)
	fetcher := core.NewRouteFetcher(cfg.OSRMURL, client, logger)
	calc := trip.NewCalculator(kv, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		kv:     kv,
		deps: tools.Deps{
			Planner:    pipeline.NewPlanner(resolver, fetcher, calc, monitoring.Recorder{}, logger),
			Places:     resolver,
			Fetcher:    fetcher,
			Calculator: calc,
			Detector:   newDetector(cfg, logger),
			Sessions:   sessions,
			Store:      kv,
		},
	}, nil
}

func newDetector(cfg *config.Config, logger *slog.Logger) *detector.Detector {
	return detector.New(detector.NewRandomClassifier(cfg.DetectorSeed), monitoring.Recorder{}, logger)
}

func (a *app) Close() error {
	return a.kv.Close()
}

// noticeError turns a pipeline or detector failure into what the user sees:
// the notice for validation and not-found failures, a plain abort otherwise.
func noticeError(err error) error {
	if notice, ok := core.UserNotice(err); ok {
		return errors.New(notice)
	}
	return fmt.Errorf("aborted: %w", err)
}
