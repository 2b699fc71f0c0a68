package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/NERVsystems/ecoroute/pkg/geo"
)

// mock OSRM JSON response with geojson geometry in [lon, lat] order
const mockOSRMResponse = `{"code":"Ok","routes":[
 {"distance":10000,"duration":900,
  "geometry":{"type":"LineString","coordinates":[[77.5946,12.9716],[77.6100,12.9800],[77.6400,12.9784]]},
  "legs":[{"summary":"MG Road, Old Airport Road","steps":[
    {"distance":1200,"duration":120,"name":"MG Road","maneuver":{"type":"depart"}},
    {"distance":800,"duration":60,"name":"Old Airport Road","maneuver":{"type":"turn","modifier":"left"}},
    {"distance":0,"duration":0,"name":"","maneuver":{"type":"arrive"}}]}]},
 {"distance":12000,"duration":1000,
  "geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"legs":[]}
]}`

var (
	testFrom = geo.Location{Latitude: 12.9716, Longitude: 77.5946}
	testTo   = geo.Location{Latitude: 12.9784, Longitude: 77.6400}
)

func newOSRMServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var count int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &count
}

func TestFetchRouteFirstRouteReordered(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(mockOSRMResponse))
	}))
	defer server.Close()

	fetcher := NewRouteFetcher(server.URL, server.Client(), nil)
	route, err := fetcher.FetchRoute(context.Background(), testFrom, testTo, ProfileDriving)
	if err != nil {
		t.Fatalf("FetchRoute() error: %v", err)
	}

	wantPath := "/route/v1/driving/77.594600,12.971600;77.640000,12.978400"
	if gotPath != wantPath {
		t.Errorf("path = %q, want %q", gotPath, wantPath)
	}
	for _, param := range []string{"alternatives=false", "steps=true", "geometries=geojson"} {
		if !strings.Contains(gotQuery, param) {
			t.Errorf("query %q missing %q", gotQuery, param)
		}
	}

	if route.DistanceMeters != 10000 || route.DurationSeconds != 900 {
		t.Errorf("expected first route (10000m, 900s), got %.0fm, %.0fs", route.DistanceMeters, route.DurationSeconds)
	}
	if len(route.Path) != 3 {
		t.Fatalf("expected 3 path points, got %d", len(route.Path))
	}
	if route.Path[0] != testFrom {
		t.Errorf("first point = %+v, want %+v (lat, lon order)", route.Path[0], testFrom)
	}
	if route.Summary != "MG Road, Old Airport Road" {
		t.Errorf("summary = %q", route.Summary)
	}
	if len(route.Steps) != 3 || route.Steps[1].Instruction != "Turn left onto Old Airport Road for 800 m" {
		t.Errorf("unexpected steps %+v", route.Steps)
	}
	if route.Polyline() == "" {
		t.Error("expected polyline")
	}
}

func TestFetchRouteEmptyRoutes(t *testing.T) {
	server, _ := newOSRMServer(t, http.StatusOK, `{"code":"Ok","routes":[]}`)

	fetcher := NewRouteFetcher(server.URL, server.Client(), nil)
	_, err := fetcher.FetchRoute(context.Background(), testFrom, testTo, ProfileCycling)
	if Classify(err) != CategoryEmptyRoute {
		t.Errorf("expected empty-route error, got %v", err)
	}
}

func TestFetchRouteNoRouteStatus(t *testing.T) {
	server, _ := newOSRMServer(t, http.StatusBadRequest, `{"code":"NoRoute","message":"Impossible route between points"}`)

	fetcher := NewRouteFetcher(server.URL, server.Client(), nil)
	_, err := fetcher.FetchRoute(context.Background(), testFrom, testTo, ProfileDriving)
	if Classify(err) != CategoryEmptyRoute {
		t.Errorf("expected empty-route error, got %v", err)
	}
}

func TestFetchRouteNoRetryNoCache(t *testing.T) {
	server, count := newOSRMServer(t, http.StatusInternalServerError, `{}`)
	fetcher := NewRouteFetcher(server.URL, server.Client(), nil)

	for i := 0; i < 2; i++ {
		if _, err := fetcher.FetchRoute(context.Background(), testFrom, testTo, ProfileDriving); err == nil {
			t.Fatal("expected error")
		}
	}
	if got := atomic.LoadInt32(count); got != 2 {
		t.Errorf("expected one request per call, got %d for 2 calls", got)
	}

	ok, okCount := newOSRMServer(t, http.StatusOK, mockOSRMResponse)
	fetcher = NewRouteFetcher(ok.URL, ok.Client(), nil)
	for i := 0; i < 2; i++ {
		if _, err := fetcher.FetchRoute(context.Background(), testFrom, testTo, ProfileDriving); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := atomic.LoadInt32(okCount); got != 2 {
		t.Errorf("routes must not be cached, got %d requests", got)
	}
}

func TestFetchRouteMalformedBody(t *testing.T) {
	server, _ := newOSRMServer(t, http.StatusOK, `not json`)
	fetcher := NewRouteFetcher(server.URL, server.Client(), nil)

	_, err := fetcher.FetchRoute(context.Background(), testFrom, testTo, ProfileDriving)
	mcpErr, ok := AsMCPError(err)
	if !ok || mcpErr.Code != string(ErrParseError) {
		t.Errorf("expected PARSE_ERROR, got %v", err)
	}
}

func TestFetchRouteRejectsInvalidCoords(t *testing.T) {
	fetcher := NewRouteFetcher("http://127.0.0.1:1", nil, nil)
	_, err := fetcher.FetchRoute(context.Background(), geo.Location{Latitude: 100}, testTo, ProfileDriving)
	if Classify(err) != CategoryValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestFormatInstruction(t *testing.T) {
	tests := []struct {
		step osrmStep
		want string
	}{
		{osrmStep{Name: "MG Road", Distance: 1500, Maneuver: osrmManeuver{Type: "depart"}}, "Start onto MG Road for 1.5 km"},
		{osrmStep{Maneuver: osrmManeuver{Type: "arrive"}}, "Arrive at destination"},
		{osrmStep{Distance: 20, Maneuver: osrmManeuver{Type: "fork", Modifier: "right"}}, "Keep right at fork for 20 m"},
		{osrmStep{Maneuver: osrmManeuver{Type: "new name", Instruction: "Road changes name"}}, "Road changes name"},
	}
	for _, tc := range tests {
		if got := formatInstruction(tc.step); got != tc.want {
			t.Errorf("formatInstruction() = %q, want %q", got, tc.want)
		}
	}
}
