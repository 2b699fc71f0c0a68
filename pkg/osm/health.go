package osm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const healthCheckTimeout = 10 * time.Second

// Probe issues a GET to rawURL and fails on transport errors or 5xx.
func (c *Client) Probe(ctx context.Context, rawURL string) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// NominatimHealthCheck returns a checker hitting Nominatim's /status.
func (c *Client) NominatimHealthCheck(baseURL string) func() error {
	target := strings.TrimRight(baseURL, "/") + "/status"
	return func() error {
		return c.Probe(context.Background(), target)
	}
}

// OSRMHealthCheck returns a checker hitting OSRM's nearest service.
func (c *Client) OSRMHealthCheck(baseURL string) func() error {
	target := strings.TrimRight(baseURL, "/") + "/nearest/v1/driving/0,0"
	return func() error {
		return c.Probe(context.Background(), target)
	}
}
