package osm

import "time"

// MonitoringHooks defines hooks for monitoring HTTP requests
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called when a request had to wait for its limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when an error occurs
	OnError func(service, errorType string)
}

// SetMonitoringHooks installs hooks on the client. nil removes them.
func (c *Client) SetMonitoringHooks(hooks *MonitoringHooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = hooks
}

func (c *Client) monitoringHooks() *MonitoringHooks {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hooks
}

// The helpers below tolerate a nil receiver and nil fields.

func (h *MonitoringHooks) request(service, operation string) {
	if h != nil && h.OnRequest != nil {
		h.OnRequest(service, operation)
	}
}

func (h *MonitoringHooks) response(service, operation string, d time.Duration, success bool) {
	if h != nil && h.OnResponse != nil {
		h.OnResponse(service, operation, d, success)
	}
}

func (h *MonitoringHooks) rateLimit(service string, d time.Duration) {
	if h != nil && h.OnRateLimit != nil {
		h.OnRateLimit(service, d)
	}
}

func (h *MonitoringHooks) failed(service, errorType string) {
	if h != nil && h.OnError != nil {
		h.OnError(service, errorType)
	}
}
