package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// External service attributes
	AttrServiceName      = "ecoroute.service.name"
	AttrServiceOperation = "ecoroute.service.operation"
	AttrServiceURL       = "ecoroute.service.url"
	AttrServiceStatus    = "ecoroute.service.status"

	// Rate limiting attributes
	AttrRateLimitService = "ecoroute.ratelimit.service"
	AttrRateLimitWaitMs  = "ecoroute.ratelimit.wait_ms"

	// Trip attributes
	AttrRequestID     = "ecoroute.request_id"
	AttrTravelMode    = "ecoroute.trip.mode"
	AttrDistanceM     = "ecoroute.trip.distance_m"
	AttrEmissionsG    = "ecoroute.trip.emissions_g"
	AttrRewardPoints  = "ecoroute.trip.reward_points"
	AttrPipelineStage = "ecoroute.pipeline.stage"
	AttrSessionID     = "ecoroute.session_id"
	AttrDiseaseLabel  = "ecoroute.disease.label"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPSessionID  = "http.session_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
)

// Service names
const (
	ServiceNominatim = "nominatim"
	ServiceOSRM      = "osrm"
)

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation, url string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.String(AttrServiceURL, url),
		attribute.Int(AttrServiceStatus, status),
	}
}

// TripAttributes returns attributes describing a computed trip.
func TripAttributes(mode string, distanceM float64, emissionsG float64, points int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTravelMode, mode),
		attribute.Float64(AttrDistanceM, distanceM),
		attribute.Float64(AttrEmissionsG, emissionsG),
		attribute.Int(AttrRewardPoints, points),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
