package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// DefaultOSRMBaseURL is the public OSRM demo server.
const DefaultOSRMBaseURL = "https://router.project-osrm.org"

// Routing profiles understood by OSRM.
const (
	ProfileDriving = "driving"
	ProfileCycling = "cycling"
)

// osrmResponse is the subset of the OSRM route response we read.
type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64           `json:"distance"` // meters
	Duration float64           `json:"duration"` // seconds
	Geometry *geojson.Geometry `json:"geometry"`
	Legs     []osrmLeg         `json:"legs"`
}

type osrmLeg struct {
	Summary string     `json:"summary"`
	Steps   []osrmStep `json:"steps"`
}

type osrmStep struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Name     string       `json:"name"`
	Maneuver osrmManeuver `json:"maneuver"`
}

type osrmManeuver struct {
	Type        string `json:"type"`
	Modifier    string `json:"modifier,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

// Route is a single best path between two coordinates.
type Route struct {
	Path            []geo.Location `json:"path"`
	DistanceMeters  float64        `json:"distance_meters"`
	DurationSeconds float64        `json:"duration_seconds"`
	Summary         string         `json:"summary,omitempty"`
	Steps           []RouteStep    `json:"steps,omitempty"`
}

// RouteStep is one manoeuvre of a route.
type RouteStep struct {
	Instruction     string  `json:"instruction"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Polyline returns the path encoded as polyline5.
func (r *Route) Polyline() string {
	return EncodePolyline(r.Path)
}

// RouteFetcher requests routes from an OSRM server. It makes a single
// attempt per call and keeps no cache.
type RouteFetcher struct {
	baseURL string
	client  Doer
	logger  *slog.Logger
}

// NewRouteFetcher creates a fetcher for the given OSRM base URL. A nil
// client falls back to DefaultClient.
func NewRouteFetcher(baseURL string, client Doer, logger *slog.Logger) *RouteFetcher {
	if baseURL == "" {
		baseURL = DefaultOSRMBaseURL
	}
	if client == nil {
		client = DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.With("service", tracing.ServiceOSRM),
	}
}

// RouteURL builds the OSRM route request for a pair of coordinates.
func (f *RouteFetcher) RouteURL(from, to geo.Location, profile string) string {
	coords := fmt.Sprintf("%.6f,%.6f;%.6f,%.6f", from.Longitude, from.Latitude, to.Longitude, to.Latitude)

	query := url.Values{}
	query.Set("alternatives", "false")
	query.Set("steps", "true")
	query.Set("geometries", "geojson")
	query.Set("overview", "full")

	return fmt.Sprintf("%s/route/v1/%s/%s?%s", f.baseURL, url.PathEscape(profile), coords, query.Encode())
}

// FetchRoute returns the first route OSRM ranks for the pair. An empty
// route list yields ROUTE_NOT_FOUND.
func (f *RouteFetcher) FetchRoute(ctx context.Context, from, to geo.Location, profile string) (*Route, error) {
	ctx, span := tracing.StartSpan(ctx, "osrm.fetch_route",
		trace.WithAttributes(
			attribute.String(tracing.AttrServiceOperation, "route"),
			attribute.String("osrm.profile", profile),
		),
	)
	defer span.End()

	for _, loc := range []geo.Location{from, to} {
		if err := ValidateCoords(loc.Latitude, loc.Longitude); err != nil {
			return nil, err
		}
	}
	if profile == "" {
		profile = ProfileDriving
	}

	reqURL := f.RouteURL(from, to, profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, NewError(ErrInternalError, fmt.Sprintf("failed to build route request: %v", err))
	}

	// OSRM answers NoRoute and friends with 400 and a JSON body.
	resp, err := Execute(ctx, f.client, req, "OSRM", http.StatusBadRequest)
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}
	defer resp.Body.Close()

	var result osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		tracing.Fail(span, err)
		return nil, NewError(ErrParseError, fmt.Sprintf("failed to decode OSRM response: %v", err))
	}

	if result.Code != "" && result.Code != "Ok" {
		f.logger.Warn("routing service returned no route", "code", result.Code, "message", result.Message)
		return nil, NewError(ErrRouteNotFound, fmt.Sprintf("no route found: %s %s", result.Code, result.Message)).
			WithQuery(reqURL)
	}
	if len(result.Routes) == 0 {
		f.logger.Warn("routing service returned an empty route list")
		return nil, NewError(ErrRouteNotFound, "no route found").WithQuery(reqURL)
	}

	route, err := convertRoute(result.Routes[0])
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64(tracing.AttrDistanceM, route.DistanceMeters),
		attribute.Int("osrm.path_points", len(route.Path)),
	)
	return route, nil
}

func convertRoute(r osrmRoute) (*Route, error) {
	if r.Geometry == nil || r.Geometry.Coordinates == nil {
		return nil, NewError(ErrParseError, "route has no geometry")
	}
	line, ok := r.Geometry.Coordinates.(orb.LineString)
	if !ok {
		return nil, NewError(ErrParseError, fmt.Sprintf("unexpected route geometry %s", r.Geometry.Type))
	}

	route := &Route{
		Path:            make([]geo.Location, len(line)),
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
	}
	// OSRM orders points [lon, lat]; geo.FromPoint swaps them.
	for i, p := range line {
		route.Path[i] = geo.FromPoint(p)
	}

	if len(r.Legs) > 0 {
		route.Summary = r.Legs[0].Summary
		for _, step := range r.Legs[0].Steps {
			if text := formatInstruction(step); text != "" {
				route.Steps = append(route.Steps, RouteStep{
					Instruction:     text,
					DistanceMeters:  step.Distance,
					DurationSeconds: step.Duration,
				})
			}
		}
	}
	return route, nil
}

// formatInstruction creates a human-readable instruction from a step
func formatInstruction(step osrmStep) string {
	m := step.Maneuver

	var sb strings.Builder
	switch m.Type {
	case "depart":
		sb.WriteString("Start")
	case "arrive":
		sb.WriteString("Arrive at destination")
	case "turn", "continue", "merge":
		sb.WriteString(strings.ToUpper(m.Type[:1]) + m.Type[1:])
		if m.Modifier != "" {
			sb.WriteString(" " + m.Modifier)
		}
	case "roundabout", "rotary":
		sb.WriteString("Enter roundabout")
	case "exit roundabout", "exit rotary":
		sb.WriteString("Exit roundabout")
	case "fork":
		sb.WriteString("Keep")
		if m.Modifier != "" {
			sb.WriteString(" " + m.Modifier)
		}
		sb.WriteString(" at fork")
	default:
		if m.Instruction != "" {
			return m.Instruction
		}
		sb.WriteString(m.Type)
	}

	if step.Name != "" && step.Name != "-" && m.Type != "arrive" {
		sb.WriteString(" onto " + step.Name)
	}

	switch {
	case step.Distance >= 1000:
		fmt.Fprintf(&sb, " for %.1f km", step.Distance/1000)
	case step.Distance > 0:
		fmt.Fprintf(&sb, " for %d m", int(step.Distance))
	}

	return sb.String()
}
