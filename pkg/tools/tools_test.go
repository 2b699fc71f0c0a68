package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/detector"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/mapview"
	"github.com/NERVsystems/ecoroute/pkg/osm"
	"github.com/NERVsystems/ecoroute/pkg/pipeline"
	"github.com/NERVsystems/ecoroute/pkg/store"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// resultText returns the first text content of a result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	t.Fatal("result has no text content")
	return ""
}

func requireSuccess(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	text := resultText(t, result)
	require.False(t, result.IsError, "unexpected error result: %s", text)
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(text), out))
	}
}

func requireError(t *testing.T, result *mcp.CallToolResult) core.MCPError {
	t.Helper()
	text := resultText(t, result)
	require.True(t, result.IsError, "expected an error result, got %s", text)
	var e core.MCPError
	require.NoError(t, json.Unmarshal([]byte(text), &e))
	return e
}

func call(t *testing.T, handler server.ToolHandlerFunc, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err, "handlers report failures as results")
	return result
}

type stubPlaces map[string]geo.Location

func (s stubPlaces) Resolve(ctx context.Context, address string) (geo.Location, error) {
	loc, ok := s[address]
	if !ok {
		return geo.Location{}, core.NewError(core.ErrAddressNotFound, "no results for "+address).
			WithNotice(core.NoticeAddressNotFound)
	}
	return loc, nil
}

func (s stubPlaces) Lookup(ctx context.Context, address string) (*osm.Place, error) {
	loc, err := s.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}
	return &osm.Place{Query: address, Location: loc, DisplayName: address + ", Karnataka, India"}, nil
}

type stubFetcher struct {
	route   *core.Route
	err     error
	profile string
}

func (s *stubFetcher) FetchRoute(ctx context.Context, from, to geo.Location, profile string) (*core.Route, error) {
	s.profile = profile
	if s.err != nil {
		return nil, s.err
	}
	return s.route, nil
}

type fixture struct {
	registry *Registry
	fetcher  *stubFetcher
	kv       *store.Memory
	sessions *mapview.Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	places := stubPlaces{
		"MG Road":     {Latitude: 12.9756, Longitude: 77.6066},
		"Indiranagar": {Latitude: 12.9784, Longitude: 77.6408},
	}
	fetcher := &stubFetcher{route: &core.Route{
		Path: []geo.Location{
			{Latitude: 12.9756, Longitude: 77.6066},
			{Latitude: 12.9770, Longitude: 77.6200},
			{Latitude: 12.9784, Longitude: 77.6408},
		},
		DistanceMeters:  10000,
		DurationSeconds: 900,
		Summary:         "Old Airport Road",
		Steps:           []core.RouteStep{{Instruction: "Head east on MG Road", DistanceMeters: 10000, DurationSeconds: 900}},
	}}
	kv := store.NewMemory()
	calc := trip.NewCalculator(kv, nil)
	sessions, err := mapview.NewSessions(8, mapview.Options{}, mapview.TileLayer{}, nil)
	require.NoError(t, err)

	deps := Deps{
		Planner:    pipeline.NewPlanner(places, fetcher, calc, nil, nil),
		Places:     places,
		Fetcher:    fetcher,
		Calculator: calc,
		Detector:   detector.New(detector.NewRandomClassifier(3), nil, nil),
		Sessions:   sessions,
		Store:      kv,
	}
	return &fixture{registry: NewRegistry(deps, nil), fetcher: fetcher, kv: kv, sessions: sessions}
}

func TestToolNames(t *testing.T) {
	f := newFixture(t)
	assert.ElementsMatch(t, []string{
		"get_version", "plan_trip", "resolve_address", "fetch_route",
		"calculate_trip_metrics", "get_emissions", "get_map_view", "detect_crop_disease",
	}, f.registry.GetToolNames())

	for _, def := range f.registry.GetToolDefinitions() {
		assert.Equal(t, def.Name, def.Tool.Name)
		assert.NotEmpty(t, def.Tool.Description, def.Name)
	}
}

func TestPlanTrip(t *testing.T) {
	f := newFixture(t)

	result := call(t, f.registry.HandlePlanTrip(), "plan_trip", map[string]any{
		"start_address": "MG Road",
		"end_address":   "Indiranagar",
		"mode":          "car",
		"session_id":    "tab-1",
	})

	var out PlanTripOutput
	requireSuccess(t, result, &out)
	assert.Equal(t, "tab-1", out.SessionID)
	assert.Equal(t, "Distance for car: 10.00 km", out.Distance)
	assert.Equal(t, "Carbon Emissions for car: 1200.00 grams", out.CarbonEmissions)
	assert.Equal(t, "Reward Points: 5 points", out.RewardPoints)
	assert.NotEmpty(t, out.Polyline)

	surface, ok := f.sessions.Peek("tab-1")
	require.True(t, ok)
	assert.Equal(t, 1, surface.OverlayCount())

	stored, err := f.kv.Get(context.Background(), trip.EmissionsKey)
	require.NoError(t, err)
	assert.Equal(t, "1200.00", stored)
}

func TestPlanTripNotices(t *testing.T) {
	f := newFixture(t)

	e := requireError(t, call(t, f.registry.HandlePlanTrip(), "plan_trip", map[string]any{
		"start_address": "", "end_address": "Indiranagar", "mode": "car",
	}))
	assert.Equal(t, string(core.ErrEmptyParameter), e.Code)
	assert.Equal(t, core.NoticeMissingAddresses, e.Notice)

	e = requireError(t, call(t, f.registry.HandlePlanTrip(), "plan_trip", map[string]any{
		"start_address": "Atlantis", "end_address": "Indiranagar", "mode": "car",
	}))
	assert.Equal(t, string(core.ErrAddressNotFound), e.Code)
	assert.Equal(t, "Address not found", e.Notice)

	e = requireError(t, call(t, f.registry.HandlePlanTrip(), "plan_trip", map[string]any{
		"start_address": "MG Road", "end_address": "Indiranagar", "mode": "rocket",
	}))
	assert.Equal(t, string(core.ErrInvalidParameter), e.Code)
	assert.ElementsMatch(t, trip.ModeNames(), e.Suggestions)
}

func TestPlanTripTransportFailureHasNoNotice(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = core.NewError(core.ErrNetworkError, "connection refused")

	e := requireError(t, call(t, f.registry.HandlePlanTrip(), "plan_trip", map[string]any{
		"start_address": "MG Road", "end_address": "Indiranagar", "mode": "bus",
	}))
	assert.Equal(t, string(core.ErrNetworkError), e.Code)
	assert.Empty(t, e.Notice)
}

func TestResolveAddress(t *testing.T) {
	f := newFixture(t)

	var place osm.Place
	requireSuccess(t, call(t, f.registry.HandleResolveAddress(), "resolve_address", map[string]any{"address": "MG Road"}), &place)
	assert.InDelta(t, 12.9756, place.Location.Latitude, 1e-9)

	e := requireError(t, call(t, f.registry.HandleResolveAddress(), "resolve_address", map[string]any{}))
	assert.Equal(t, string(core.ErrInvalidParameter), e.Code)
	assert.Contains(t, e.Message, "Address is required")

	// whitespace never reaches the geocoder, which would answer ADDRESS_NOT_FOUND
	e = requireError(t, call(t, f.registry.HandleResolveAddress(), "resolve_address", map[string]any{"address": "   "}))
	assert.Equal(t, string(core.ErrEmptyParameter), e.Code)
	assert.Equal(t, core.NoticeMissingAddress, e.Notice)
}

func TestFetchRoute(t *testing.T) {
	f := newFixture(t)

	var out FetchRouteOutput
	requireSuccess(t, call(t, f.registry.HandleFetchRoute(), "fetch_route", map[string]any{
		"start_lat": 12.9756, "start_lon": 77.6066,
		"end_lat": 12.9784, "end_lon": 77.6408,
		"mode": "cycle",
	}), &out)
	assert.Equal(t, core.ProfileCycling, f.fetcher.profile)
	assert.Equal(t, 10000.0, out.DistanceMeters)
	assert.Nil(t, out.Path)
	assert.Len(t, out.Steps, 1)

	requireSuccess(t, call(t, f.registry.HandleFetchRoute(), "fetch_route", map[string]any{
		"start_lat": 12.9756, "start_lon": 77.6066,
		"end_lat": 12.9784, "end_lon": 77.6408,
		"mode": "ev", "include_path": true,
	}), &out)
	assert.Equal(t, core.ProfileDriving, f.fetcher.profile)
	assert.Len(t, out.Path, 3)
}

func TestFetchRouteValidation(t *testing.T) {
	f := newFixture(t)

	e := requireError(t, call(t, f.registry.HandleFetchRoute(), "fetch_route", map[string]any{
		"start_lat": 95.0, "start_lon": 77.6,
		"end_lat": 12.9, "end_lon": 77.6,
		"mode": "car",
	}))
	assert.Equal(t, string(core.ErrInvalidParameter), e.Code)
	assert.Contains(t, e.Message, "StartLat")

	e = requireError(t, call(t, f.registry.HandleFetchRoute(), "fetch_route", map[string]any{
		"start_lat": "north", "mode": "car",
	}))
	assert.Equal(t, string(core.ErrInvalidInput), e.Code)
}

func TestFetchRouteMissingCoordinate(t *testing.T) {
	f := newFixture(t)

	e := requireError(t, call(t, f.registry.HandleFetchRoute(), "fetch_route", map[string]any{
		"start_lat": 12.9756, "start_lon": 77.6066,
		"end_lat": 12.9784,
		"mode": "car",
	}))
	assert.Equal(t, string(core.ErrInvalidParameter), e.Code)
	assert.Contains(t, e.Message, "EndLon is required")
	assert.Empty(t, f.fetcher.profile, "route must not be fetched")

	// zero is a real coordinate, not a missing one
	requireSuccess(t, call(t, f.registry.HandleFetchRoute(), "fetch_route", map[string]any{
		"start_lat": 0.0, "start_lon": 0.0,
		"end_lat": 12.9784, "end_lon": 77.6408,
		"mode": "car",
	}), nil)
	assert.Equal(t, core.ProfileDriving, f.fetcher.profile)
}

func TestCalculateTripMetricsAndGetEmissions(t *testing.T) {
	f := newFixture(t)

	var empty EmissionsOutput
	requireSuccess(t, call(t, f.registry.HandleGetEmissions(), "get_emissions", nil), &empty)
	assert.Equal(t, "carbonEmissions", empty.Key)
	assert.Nil(t, empty.Value)

	var m trip.Metrics
	requireSuccess(t, call(t, f.registry.HandleCalculateTripMetrics(), "calculate_trip_metrics", map[string]any{
		"distance_meters": 15500, "mode": "ev",
	}), &m)
	assert.Equal(t, "0.00", m.Emissions())
	assert.Equal(t, 20, m.RewardPoints)

	var stored EmissionsOutput
	requireSuccess(t, call(t, f.registry.HandleGetEmissions(), "get_emissions", nil), &stored)
	require.NotNil(t, stored.Value)
	assert.Equal(t, "0.00", *stored.Value)

	e := requireError(t, call(t, f.registry.HandleCalculateTripMetrics(), "calculate_trip_metrics", map[string]any{
		"distance_meters": -1, "mode": "car",
	}))
	assert.Equal(t, core.CategoryValidation, core.Classify(&e))
}

func TestGetMapView(t *testing.T) {
	f := newFixture(t)

	var before MapView
	requireSuccess(t, call(t, f.registry.HandleGetMapView(), "get_map_view", nil), &before)
	assert.Equal(t, mapview.DefaultSessionID, before.SessionID)
	assert.Equal(t, 0, before.Overlays)
	assert.Equal(t, mapview.DefaultCenter, before.Viewport.Center)
	assert.Equal(t, mapview.DefaultTileURL, before.TileLayer.URLTemplate)

	requireSuccess(t, call(t, f.registry.HandlePlanTrip(), "plan_trip", map[string]any{
		"start_address": "MG Road", "end_address": "Indiranagar", "mode": "car",
	}), nil)

	var after MapView
	requireSuccess(t, call(t, f.registry.HandleGetMapView(), "get_map_view", nil), &after)
	assert.Equal(t, 1, after.Overlays)
	require.NotNil(t, after.Viewport.Bounds)
	assert.Contains(t, string(after.GeoJSON), `"LineString"`)
}

func TestTileLayerResource(t *testing.T) {
	f := newFixture(t)

	contents, err := f.registry.HandleTileLayerResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, TileLayerURI, text.URI)

	var layer mapview.TileLayer
	require.NoError(t, json.Unmarshal([]byte(text.Text), &layer))
	assert.Equal(t, mapview.DefaultAttribution, layer.Attribution)
	assert.Equal(t, mapview.DefaultMaxZoom, layer.MaxZoom)
}

func TestDetectCropDisease(t *testing.T) {
	f := newFixture(t)

	var out struct {
		Label  string          `json:"label"`
		Advice detector.Advice `json:"advice"`
		HTML   string          `json:"html"`
	}
	requireSuccess(t, call(t, f.registry.HandleDetectCropDisease(), "detect_crop_disease", map[string]any{
		"image_name":   "maize.jpg",
		"image_base64": base64.StdEncoding.EncodeToString([]byte("not really a jpeg")),
	}), &out)
	assert.Contains(t, detector.Labels(), out.Label)
	assert.Len(t, out.Advice.Precautions, 3)
	assert.Contains(t, out.HTML, "Predicted disease: "+out.Label)

	e := requireError(t, call(t, f.registry.HandleDetectCropDisease(), "detect_crop_disease", map[string]any{}))
	assert.Equal(t, "Please select an image.", e.Notice)

	e = requireError(t, call(t, f.registry.HandleDetectCropDisease(), "detect_crop_disease", map[string]any{
		"image_name": "x.png", "image_base64": "%%%",
	}))
	assert.Equal(t, string(core.ErrInvalidParameter), e.Code)
}

func TestGetVersion(t *testing.T) {
	result, err := HandleGetVersion(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)

	var info map[string]string
	requireSuccess(t, result, &info)
	assert.NotEmpty(t, info["version"])
}

func TestRegisterAll(t *testing.T) {
	f := newFixture(t)
	srv := server.NewMCPServer("test", "0.0.1", server.WithToolCapabilities(false), server.WithResourceCapabilities(false, false))
	f.registry.RegisterAll(srv)

	resp := srv.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range f.registry.GetToolNames() {
		assert.Contains(t, string(data), `"`+name+`"`)
	}

	resp = srv.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"calculate_trip_metrics","arguments":{"distance_meters":10000,"mode":"car"}}}`))
	data, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `1200`)
}
