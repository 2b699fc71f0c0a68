package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
)

const testToken = "kq84JdP1zvXw0LmN7tRb"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTransport(t *testing.T, cfg HTTPTransportConfig) (*HTTPTransport, *fixture) {
	t.Helper()
	f := newFixture(t)
	s, err := NewServer(f.deps, quietLogger())
	require.NoError(t, err)
	tr := NewHTTPTransport(s.GetMCPServer(), NewAPI(f.deps, quietLogger()), cfg, quietLogger())
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr, f
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func initializeRequest() *http.Request {
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	return req
}

func TestHTTPTransport_ServiceDiscovery(t *testing.T) {
	tr, _ := newTransport(t, HTTPTransportConfig{})
	rec := serve(tr.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Service   string            `json:"service"`
		Endpoints map[string]string `json:"endpoints"`
		Auth      struct {
			Required bool `json:"required"`
		} `json:"auth"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ServerName, body.Service)
	assert.Equal(t, "/mcp", body.Endpoints["mcp"])
	assert.Equal(t, "/api/route", body.Endpoints["route"])
	assert.False(t, body.Auth.Required)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHTTPTransport_UnknownPath(t *testing.T) {
	tr, _ := newTransport(t, HTTPTransportConfig{})
	rec := serve(tr.Handler(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPTransport_HealthEndpoints(t *testing.T) {
	tr, _ := newTransport(t, HTTPTransportConfig{})
	rec := serve(tr.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), monitoring.StatusHealthy)

	hc := monitoring.NewHealthChecker(ServerName, "test")
	t.Cleanup(hc.Shutdown)
	tr.SetHealthChecker(hc)

	for _, path := range []string{"/health", "/ready", "/live"} {
		rec := serve(tr.Handler(), httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestHTTPTransport_MCPInitialize(t *testing.T) {
	tr, _ := newTransport(t, HTTPTransportConfig{})
	rec := serve(tr.Handler(), initializeRequest())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Mcp-Session-Id"))
	assert.Contains(t, rec.Body.String(), `"name":"ecoroute"`)
}

func TestHTTPTransport_APIRoute(t *testing.T) {
	tr, f := newTransport(t, HTTPTransportConfig{})
	before := testutil.ToFloat64(monitoring.HTTPRequestsTotal.WithLabelValues("POST /api/route", "2xx"))

	req := httptest.NewRequest(http.MethodPost, "/api/route",
		strings.NewReader(`{"startAddress":"MG Road","endAddress":"Indiranagar","vehicle":"bus"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionHeader, "kiosk-1")
	rec := serve(tr.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Carbon Emissions for bus: 500.00 grams")

	surface, ok := f.sessions.Peek("kiosk-1")
	require.True(t, ok)
	assert.Equal(t, 1, surface.OverlayCount())

	after := testutil.ToFloat64(monitoring.HTTPRequestsTotal.WithLabelValues("POST /api/route", "2xx"))
	assert.Equal(t, before+1, after)
}

func TestHTTPTransport_BearerAuth(t *testing.T) {
	tr, _ := newTransport(t, HTTPTransportConfig{AuthType: core.AuthBearer, AuthToken: testToken})
	h := tr.Handler()

	rec := serve(h, initializeRequest())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jsonrpc":"2.0"`)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/emissions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/emissions", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = initializeRequest()
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestHTTPTransport_APIRateLimit(t *testing.T) {
	tr, _ := newTransport(t, HTTPTransportConfig{RateLimit: 1, RateBurst: 1})
	h := tr.Handler()

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/emissions", nil)
		r.RemoteAddr = "192.0.2.10:4000"
		return r
	}
	assert.Equal(t, http.StatusOK, serve(h, req()).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req()).Code)

	health := httptest.NewRequest(http.MethodGet, "/health", nil)
	health.RemoteAddr = "192.0.2.10:4000"
	assert.Equal(t, http.StatusOK, serve(h, health).Code, "only /api is limited")
}

func TestHTTPTransport_MCPOnly(t *testing.T) {
	f := newFixture(t)
	s, err := NewServer(f.deps, quietLogger())
	require.NoError(t, err)
	tr := NewHTTPTransport(s.GetMCPServer(), nil, HTTPTransportConfig{}, quietLogger())

	rec := serve(tr.Handler(), httptest.NewRequest(http.MethodGet, "/api/emissions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/mcp", tr.GetConfig().MCPEndpoint)
}

func TestHTTPTransport_ShutdownBeforeStart(t *testing.T) {
	tr, _ := newTransport(t, DefaultHTTPTransportConfig())
	assert.NoError(t, tr.Shutdown(context.Background()))
}
