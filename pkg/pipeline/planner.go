// Package pipeline runs the trip flow: resolve both addresses, fetch the
// route, then draw it and compute its metrics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/mapview"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// Resolver geocodes a free-text address.
type Resolver interface {
	Resolve(ctx context.Context, address string) (geo.Location, error)
}

// Fetcher routes between two coordinates with a routing profile.
type Fetcher interface {
	FetchRoute(ctx context.Context, from, to geo.Location, profile string) (*core.Route, error)
}

// Calculator derives and records trip metrics.
type Calculator interface {
	Calculate(ctx context.Context, distanceMeters float64, mode trip.TravelMode) (*trip.Metrics, error)
}

// Observer receives the outcome of each run. Implementations must be fast.
type Observer interface {
	TripPlanned(mode trip.TravelMode, outcome string, metrics *trip.Metrics, elapsed time.Duration)
}

// Request is one submission of the trip form.
type Request struct {
	StartAddress string
	EndAddress   string
	Mode         string
	SessionID    string // map session the route is drawn on, for logs and traces
}

// Result is everything a successful run produces.
type Result struct {
	RequestID string           `json:"request_id"`
	Start     geo.Location     `json:"start"`
	End       geo.Location     `json:"end"`
	Route     *core.Route      `json:"route"`
	Metrics   *trip.Metrics    `json:"metrics"`
	Viewport  mapview.Viewport `json:"viewport"`
}

// Outcome labels used for logging and metrics.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
	OutcomeTransport  = "transport"
	OutcomeEmptyRoute = "empty_route"
	OutcomeInternal   = "internal"
)

// Planner wires the four stages together. It is safe for concurrent use;
// each Plan call is independent apart from the surface it draws on.
type Planner struct {
	resolver   Resolver
	fetcher    Fetcher
	calculator Calculator
	observer   Observer
	logger     *slog.Logger
}

// NewPlanner builds a planner. observer may be nil.
func NewPlanner(resolver Resolver, fetcher Fetcher, calculator Calculator, observer Observer, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		resolver:   resolver,
		fetcher:    fetcher,
		calculator: calculator,
		observer:   observer,
		logger:     logger.With("component", "planner"),
	}
}

// Plan runs the full flow and draws the route on surface. Validation and
// not-found errors carry a user notice (see core.UserNotice); transport and
// empty-route errors are logged here and returned without one.
func (p *Planner) Plan(ctx context.Context, req Request, surface *mapview.Surface) (*Result, error) {
	requestID := uuid.NewString()
	logger := p.logger.With("request_id", requestID)
	attrs := []attribute.KeyValue{attribute.String(tracing.AttrRequestID, requestID)}
	if req.SessionID != "" {
		logger = logger.With("session_id", req.SessionID)
		attrs = append(attrs, attribute.String(tracing.AttrSessionID, req.SessionID))
	}
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "pipeline.plan", trace.WithAttributes(attrs...))
	defer span.End()

	mode, res, err := p.plan(ctx, req, surface, logger)
	outcome := outcomeOf(err)
	if err != nil {
		tracing.Fail(span, err)
		switch outcome {
		case OutcomeTransport, OutcomeEmptyRoute, OutcomeInternal:
			logger.Error("trip planning aborted", "outcome", outcome, "error", err)
		default:
			logger.Info("trip planning rejected", "outcome", outcome, "error", err)
		}
	} else {
		res.RequestID = requestID
		span.SetAttributes(tracing.TripAttributes(string(mode), res.Route.DistanceMeters,
			res.Metrics.EmissionsGrams.InexactFloat64(), res.Metrics.RewardPoints)...)
		logger.Info("trip planned",
			"mode", mode,
			"distance_m", res.Route.DistanceMeters,
			"emissions_g", res.Metrics.Emissions(),
			"points", res.Metrics.RewardPoints,
		)
	}

	if p.observer != nil {
		var metrics *trip.Metrics
		if res != nil {
			metrics = res.Metrics
		}
		p.observer.TripPlanned(mode, outcome, metrics, time.Since(start))
	}
	return res, err
}

func (p *Planner) plan(ctx context.Context, req Request, surface *mapview.Surface, logger *slog.Logger) (trip.TravelMode, *Result, error) {
	if err := core.ValidateAddresses(req.StartAddress, req.EndAddress); err != nil {
		return "", nil, err
	}
	mode, err := trip.ParseTravelMode(req.Mode)
	if err != nil {
		return "", nil, err
	}
	if surface == nil {
		return mode, nil, core.NewError(core.ErrInternalError, "no map surface to render on")
	}

	from, to, err := p.resolvePair(ctx, req.StartAddress, req.EndAddress)
	if err != nil {
		return mode, nil, err
	}
	logger.Debug("addresses resolved", "start", from, "end", to)

	route, err := p.fetcher.FetchRoute(ctx, from, to, mode.Profile())
	if err != nil {
		return mode, nil, fmt.Errorf("fetch route: %w", err)
	}

	if len(route.Path) == 0 {
		return mode, nil, core.NewError(core.ErrRouteNotFound, "route has no geometry to draw")
	}

	// metrics are persisted before the map changes
	metrics, err := p.calculator.Calculate(ctx, route.DistanceMeters, mode)
	if err != nil {
		return mode, nil, fmt.Errorf("calculate metrics: %w", err)
	}
	viewport, err := surface.Render(route.Path)
	if err != nil {
		return mode, nil, core.NewError(core.ErrRouteNotFound, fmt.Sprintf("route cannot be drawn: %v", err))
	}

	return mode, &Result{
		Start:    from,
		End:      to,
		Route:    route,
		Metrics:  metrics,
		Viewport: viewport,
	}, nil
}

// resolvePair geocodes both addresses concurrently and joins on both.
func (p *Planner) resolvePair(ctx context.Context, startAddr, endAddr string) (geo.Location, geo.Location, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.resolve",
		trace.WithAttributes(attribute.String(tracing.AttrPipelineStage, "resolve")),
	)
	defer span.End()

	var from, to geo.Location
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loc, err := p.resolver.Resolve(gctx, startAddr)
		if err != nil {
			return fmt.Errorf("resolve start address: %w", err)
		}
		from = loc
		return nil
	})
	g.Go(func() error {
		loc, err := p.resolver.Resolve(gctx, endAddr)
		if err != nil {
			return fmt.Errorf("resolve destination address: %w", err)
		}
		to = loc
		return nil
	})
	if err := g.Wait(); err != nil {
		return geo.Location{}, geo.Location{}, err
	}
	return from, to, nil
}

func outcomeOf(err error) string {
	switch core.Classify(err) {
	case core.CategoryNone:
		return OutcomeSuccess
	case core.CategoryValidation:
		return OutcomeValidation
	case core.CategoryNotFound:
		return OutcomeNotFound
	case core.CategoryEmptyRoute:
		return OutcomeEmptyRoute
	case core.CategoryInternal:
		return OutcomeInternal
	default:
		return OutcomeTransport
	}
}
