// Package osm talks to the OpenStreetMap services ecoroute depends on:
// Nominatim for geocoding and OSRM for routing.
package osm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

const (
	// DefaultUserAgent identifies ecoroute as Nominatim's usage policy requires.
	DefaultUserAgent = "ecoroute/0.1 (+https://github.com/NERVsystems/ecoroute)"

	// API endpoints
	NominatimBaseURL = "https://nominatim.openstreetmap.org"
	OSRMBaseURL      = "https://router.project-osrm.org"

	serviceUnknown = "unknown"
)

// RateLimit configures a per-service token bucket.
type RateLimit struct {
	RPS   float64
	Burst int
}

type service struct {
	name    string
	limiter *rate.Limiter
}

// Client is a rate-limited HTTP client for the OSM services. Requests to a
// registered host wait on that service's limiter; other hosts pass through.
type Client struct {
	http   *http.Client
	logger *slog.Logger

	mu        sync.RWMutex
	userAgent string
	services  map[string]*service // keyed by host
	hooks     *MonitoringHooks
}

// NewClient returns a client with pooled connections and a 30s timeout.
func NewClient(userAgent string, logger *slog.Logger) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: 30 * time.Second,
		},
		logger:    logger.With("component", "osm_client"),
		userAgent: userAgent,
		services:  make(map[string]*service),
	}
}

// RegisterService rate-limits requests to baseURL's host under name.
func (c *Client) RegisterService(name, baseURL string, limit RateLimit) error {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid %s base URL %q", name, baseURL)
	}
	if limit.RPS <= 0 {
		limit.RPS = 1
	}
	if limit.Burst <= 0 {
		limit.Burst = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[u.Host] = &service{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(limit.RPS), limit.Burst),
	}
	return nil
}

// UserAgent returns the current User-Agent string
func (c *Client) UserAgent() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userAgent
}

// serviceFor returns the registered service for a request host and the name
// its metrics are labelled with.
func (c *Client) serviceFor(host string) (*service, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if svc := c.services[host]; svc != nil {
		return svc, svc.name
	}
	return nil, serviceUnknown
}

// waitForRateLimit blocks until the service limiter admits the request.
func (c *Client) waitForRateLimit(ctx context.Context, svc *service) (time.Duration, error) {
	if svc == nil || svc.limiter.Allow() {
		return 0, nil
	}

	start := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(tracing.AttrRateLimitService, svc.name)),
	)

	err := svc.limiter.Wait(ctx)
	waited := time.Since(start)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, svc.name),
		attribute.Int64(tracing.AttrRateLimitWaitMs, waited.Milliseconds()),
	)
	return waited, err
}

// Do sends req after applying the User-Agent and the service rate limit.
// Monitoring hooks observe every call.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	svc, name := c.serviceFor(req.URL.Host)
	operation := operationFromPath(req.URL.Path)
	hooks := c.monitoringHooks()

	hooks.request(name, operation)

	waited, err := c.waitForRateLimit(ctx, svc)
	if err != nil {
		hooks.failed(name, "rate_limit_wait_error")
		return nil, fmt.Errorf("%s rate limit wait: %w", name, err)
	}
	if waited > 100*time.Millisecond {
		hooks.rateLimit(name, waited)
	}

	req.Header.Set("User-Agent", c.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	hooks.response(name, operation, duration, err == nil && resp.StatusCode < 400)
	if err != nil {
		hooks.failed(name, "request_error")
		c.logger.Debug("request failed", "service", name, "operation", operation, "error", err)
	}
	return resp, err
}

// operationFromPath names the API call: "search", "route", "status", ...
func operationFromPath(p string) string {
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg != "" {
			return seg
		}
	}
	return "root"
}
