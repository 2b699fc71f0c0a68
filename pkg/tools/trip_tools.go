package tools

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/mapview"
	"github.com/NERVsystems/ecoroute/pkg/pipeline"
	"github.com/NERVsystems/ecoroute/pkg/store"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

func modeEnum() mcp.PropertyOption {
	return mcp.Enum(trip.ModeNames()...)
}

// PlanTripTool returns a tool definition for the full trip flow
func PlanTripTool() mcp.Tool {
	return mcp.NewTool("plan_trip",
		mcp.WithDescription("Plan a trip between two addresses: geocode both, fetch the route, draw it on the session map and report distance, carbon emissions and reward points"),
		mcp.WithString("start_address",
			mcp.Required(),
			mcp.Description("Starting address, e.g. 'MG Road, Bengaluru'"),
		),
		mcp.WithString("end_address",
			mcp.Required(),
			mcp.Description("Destination address"),
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Vehicle type"),
			modeEnum(),
		),
		mcp.WithString("session_id",
			mcp.Description("Map session to draw on (default: \"default\")"),
		),
	)
}

type planTripInput struct {
	StartAddress string `json:"start_address"`
	EndAddress   string `json:"end_address"`
	Mode         string `json:"mode"`
	SessionID    string `json:"session_id" validate:"omitempty,max=128"`
}

// PlanTripOutput is the plan_trip result.
type PlanTripOutput struct {
	RequestID       string           `json:"request_id"`
	SessionID       string           `json:"session_id"`
	Start           geo.Location     `json:"start"`
	End             geo.Location     `json:"end"`
	Distance        string           `json:"distance"`
	CarbonEmissions string           `json:"carbon_emissions"`
	RewardPoints    string           `json:"reward_points"`
	Metrics         *trip.Metrics    `json:"metrics"`
	DurationSeconds float64          `json:"duration_seconds"`
	Summary         string           `json:"summary,omitempty"`
	Polyline        string           `json:"polyline"`
	Viewport        mapview.Viewport `json:"viewport"`
}

// HandlePlanTrip runs the pipeline on the requested session's surface.
func (r *Registry) HandlePlanTrip() server.ToolHandlerFunc {
	return WithParsedInput("plan_trip", r.logger, func(ctx context.Context, in planTripInput, logger *slog.Logger) (any, error) {
		sessionID := in.SessionID
		if sessionID == "" {
			sessionID = mapview.DefaultSessionID
		}

		res, err := r.deps.Planner.Plan(ctx, pipeline.Request{
			StartAddress: in.StartAddress,
			EndAddress:   in.EndAddress,
			Mode:         in.Mode,
			SessionID:    sessionID,
		}, r.deps.Sessions.Get(sessionID))
		if err != nil {
			return nil, err
		}
		return NewPlanTripOutput(sessionID, res), nil
	})
}

// NewPlanTripOutput flattens a pipeline result into the display fields.
func NewPlanTripOutput(sessionID string, res *pipeline.Result) PlanTripOutput {
	return PlanTripOutput{
		RequestID:       res.RequestID,
		SessionID:       sessionID,
		Start:           res.Start,
		End:             res.End,
		Distance:        res.Metrics.DistanceText,
		CarbonEmissions: res.Metrics.EmissionsText,
		RewardPoints:    res.Metrics.PointsText,
		Metrics:         res.Metrics,
		DurationSeconds: res.Route.DurationSeconds,
		Summary:         res.Route.Summary,
		Polyline:        res.Route.Polyline(),
		Viewport:        res.Viewport,
	}
}

// ResolveAddressTool returns a tool definition for geocoding one address
func ResolveAddressTool() mcp.Tool {
	return mcp.NewTool("resolve_address",
		mcp.WithDescription("Convert a free-text address to latitude/longitude using Nominatim (first match only)"),
		mcp.WithString("address",
			mcp.Required(),
			mcp.Description("The address or place name to resolve"),
		),
	)
}

type resolveAddressInput struct {
	Address string `json:"address" validate:"required"`
}

// HandleResolveAddress geocodes a single address.
func (r *Registry) HandleResolveAddress() server.ToolHandlerFunc {
	return WithParsedInput("resolve_address", r.logger, func(ctx context.Context, in resolveAddressInput, logger *slog.Logger) (any, error) {
		if err := core.ValidateAddress(in.Address); err != nil {
			return nil, err
		}
		return r.deps.Places.Lookup(ctx, in.Address)
	})
}

// FetchRouteTool returns a tool definition for routing between coordinates
func FetchRouteTool() mcp.Tool {
	return mcp.NewTool("fetch_route",
		mcp.WithDescription("Fetch a route between two coordinates from OSRM. Cars, buses and EVs use the driving profile, cycles the cycling profile"),
		mcp.WithNumber("start_lat", mcp.Required(), mcp.Description("Start latitude")),
		mcp.WithNumber("start_lon", mcp.Required(), mcp.Description("Start longitude")),
		mcp.WithNumber("end_lat", mcp.Required(), mcp.Description("End latitude")),
		mcp.WithNumber("end_lon", mcp.Required(), mcp.Description("End longitude")),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Vehicle type"),
			modeEnum(),
		),
		mcp.WithBoolean("include_path",
			mcp.Description("Include every path point as well as the encoded polyline"),
		),
	)
}

type fetchRouteInput struct {
	StartLat    *float64 `json:"start_lat" validate:"required,latitude"`
	StartLon    *float64 `json:"start_lon" validate:"required,longitude"`
	EndLat      *float64 `json:"end_lat" validate:"required,latitude"`
	EndLon      *float64 `json:"end_lon" validate:"required,longitude"`
	Mode        string   `json:"mode" validate:"required"`
	IncludePath bool     `json:"include_path"`
}

// FetchRouteOutput is the fetch_route result.
type FetchRouteOutput struct {
	Mode            trip.TravelMode  `json:"mode"`
	Profile         string           `json:"profile"`
	DistanceMeters  float64          `json:"distance_meters"`
	DurationSeconds float64          `json:"duration_seconds"`
	Summary         string           `json:"summary,omitempty"`
	Polyline        string           `json:"polyline"`
	Path            []geo.Location   `json:"path,omitempty"`
	Steps           []core.RouteStep `json:"steps,omitempty"`
}

// HandleFetchRoute routes between two coordinates.
func (r *Registry) HandleFetchRoute() server.ToolHandlerFunc {
	return WithParsedInput("fetch_route", r.logger, func(ctx context.Context, in fetchRouteInput, logger *slog.Logger) (any, error) {
		mode, err := trip.ParseTravelMode(in.Mode)
		if err != nil {
			return nil, err
		}

		from := geo.Location{Latitude: *in.StartLat, Longitude: *in.StartLon}
		to := geo.Location{Latitude: *in.EndLat, Longitude: *in.EndLon}
		route, err := r.deps.Fetcher.FetchRoute(ctx, from, to, mode.Profile())
		if err != nil {
			return nil, err
		}

		out := FetchRouteOutput{
			Mode:            mode,
			Profile:         mode.Profile(),
			DistanceMeters:  route.DistanceMeters,
			DurationSeconds: route.DurationSeconds,
			Summary:         route.Summary,
			Polyline:        route.Polyline(),
			Steps:           route.Steps,
		}
		if in.IncludePath {
			out.Path = route.Path
		}
		return out, nil
	})
}

// CalculateTripMetricsTool returns a tool definition for the metrics stage
func CalculateTripMetricsTool() mcp.Tool {
	return mcp.NewTool("calculate_trip_metrics",
		mcp.WithDescription("Compute carbon emissions (grams) and reward points for a distance and vehicle type, and store the emissions as the latest value"),
		mcp.WithNumber("distance_meters",
			mcp.Required(),
			mcp.Description("Trip distance in meters"),
			mcp.Min(0),
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Vehicle type"),
			modeEnum(),
		),
	)
}

type calculateTripMetricsInput struct {
	DistanceMeters float64 `json:"distance_meters"`
	Mode           string  `json:"mode" validate:"required"`
}

// HandleCalculateTripMetrics runs the calculator on its own.
func (r *Registry) HandleCalculateTripMetrics() server.ToolHandlerFunc {
	return WithParsedInput("calculate_trip_metrics", r.logger, func(ctx context.Context, in calculateTripMetricsInput, logger *slog.Logger) (any, error) {
		mode, err := trip.ParseTravelMode(in.Mode)
		if err != nil {
			return nil, err
		}
		return r.deps.Calculator.Calculate(ctx, in.DistanceMeters, mode)
	})
}

// GetEmissionsTool returns a tool definition for reading the stored value
func GetEmissionsTool() mcp.Tool {
	return mcp.NewTool("get_emissions",
		mcp.WithDescription("Read the most recently stored carbon emissions value (grams, 2 decimals)"),
	)
}

// EmissionsOutput is the get_emissions result.
type EmissionsOutput struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// HandleGetEmissions reads the persisted slot. An unset slot has a null value.
func (r *Registry) HandleGetEmissions() server.ToolHandlerFunc {
	return WithParsedInput("get_emissions", r.logger, func(ctx context.Context, _ struct{}, logger *slog.Logger) (any, error) {
		return ReadEmissions(ctx, r.deps.Store)
	})
}

// ReadEmissions reads the persisted emissions slot from kv.
func ReadEmissions(ctx context.Context, kv Reader) (*EmissionsOutput, error) {
	out := &EmissionsOutput{Key: trip.EmissionsKey}
	value, err := kv.Get(ctx, trip.EmissionsKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return out, nil
	case err != nil:
		return nil, core.NewError(core.ErrStorageError, err.Error())
	}
	out.Value = &value
	return out, nil
}
