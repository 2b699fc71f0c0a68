package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string  // listen address, e.g. ":7082"
	MCPEndpoint    string  // streamable MCP path (default "/mcp")
	AuthType       string  // none, bearer or basic
	AuthToken      string  // bearer token, or user:password for basic
	RateLimit      float64 // /api requests per second per IP, 0 disables
	RateBurst      int
	MaxRequestSize int64
	MaxHeaderBytes int
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		MCPEndpoint:    "/mcp",
		AuthType:       core.AuthNone,
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 10 << 20,
		MaxHeaderBytes: 1 << 20,
	}
}

// HTTPTransport serves streamable MCP, the REST API and health endpoints
// on one listener.
type HTTPTransport struct {
	config      HTTPTransportConfig
	logger      *slog.Logger
	mcp         *mcpserver.StreamableHTTPServer
	api         *API
	auth        *core.Authenticator
	rateLimiter *RateLimiter
	health      *monitoring.HealthChecker

	mu      sync.Mutex
	handler http.Handler
	httpSrv *http.Server
}

// NewHTTPTransport creates a new HTTP transport instance. api may be nil
// to serve MCP only.
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, api *API, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultHTTPTransportConfig()
	if config.MCPEndpoint == "" {
		config.MCPEndpoint = defaults.MCPEndpoint
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = defaults.MaxRequestSize
	}
	if config.MaxHeaderBytes <= 0 {
		config.MaxHeaderBytes = defaults.MaxHeaderBytes
	}

	t := &HTTPTransport{
		config: config,
		logger: logger.With("component", "http"),
		mcp:    mcpserver.NewStreamableHTTPServer(mcpServer),
		api:    api,
		auth:   core.NewAuthenticator(config.AuthType, config.AuthToken),
	}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		t.rateLimiter = NewRateLimiter(config.RateLimit, burst, "api")
	}
	return t
}

// SetHealthChecker serves /health, /ready and /live from hc. Call before
// Handler or Start.
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.health = hc
	t.handler = nil
}

// Handler returns the fully wrapped handler. It is built once.
func (t *HTTPTransport) Handler() http.Handler {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handler == nil {
		t.handler = t.buildHandler()
	}
	return t.handler
}

func (t *HTTPTransport) buildHandler() http.Handler {
	mux := http.NewServeMux()

	if t.health != nil {
		t.health.Register(mux)
	} else {
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": monitoring.StatusHealthy})
		})
	}
	mux.HandleFunc("GET /{$}", t.handleServiceDiscovery)

	mcpAuth := RequireAuth(t.auth, t.logger, func(w http.ResponseWriter) {
		writeJSONRPCError(w, http.StatusUnauthorized, -32001, "Authentication required")
	})
	mux.Handle(t.config.MCPEndpoint, mcpAuth(t.mcp))

	if t.api != nil {
		apiMux := http.NewServeMux()
		t.api.Register(apiMux)

		mws := []Middleware{RequireAuth(t.auth, t.logger, func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authentication required"}` + "\n"))
		})}
		if t.rateLimiter != nil {
			mws = append([]Middleware{t.rateLimiter.Middleware}, mws...)
		}
		mux.Handle("/api/", Chain(apiMux, mws...))
	}

	return Chain(mux,
		TracingMiddleware,
		LoggingMiddleware(t.logger),
		SecurityHeaders,
		RequestSizeLimiter(t.config.MaxRequestSize),
		MetricsMiddleware,
	)
}

// handleServiceDiscovery tells clients where the endpoints live.
func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{"mcp": t.config.MCPEndpoint}
	if t.api != nil {
		endpoints["route"] = "/api/route"
		endpoints["detect"] = "/api/detect"
		endpoints["map"] = "/api/map"
		endpoints["emissions"] = "/api/emissions"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   ServerName,
		"transport": "streamable-http",
		"endpoints": endpoints,
		"auth":      map[string]any{"required": t.auth.Required()},
	})
}

func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{
		"jsonrpc": "2.0",
		"id":      nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// clean shutdown.
func (t *HTTPTransport) Start() error {
	handler := t.Handler()

	t.mu.Lock()
	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("Stop the transport before starting it again.")
	}
	t.httpSrv = &http.Server{
		Addr:              t.config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    t.config.MaxHeaderBytes,
	}
	srv := t.httpSrv
	t.mu.Unlock()

	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"mcp_endpoint", t.config.MCPEndpoint,
		"api", t.api != nil,
		"auth_type", t.auth.Scheme(),
		"rate_limit", t.config.RateLimit)
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")
	if err := t.mcp.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shut down MCP handler", "error", err)
	}
	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	return t.config
}
