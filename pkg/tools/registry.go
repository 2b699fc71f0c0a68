package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecoroute/pkg/detector"
	"github.com/NERVsystems/ecoroute/pkg/mapview"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/osm"
	"github.com/NERVsystems/ecoroute/pkg/pipeline"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// Places geocodes an address with its display name.
type Places interface {
	Lookup(ctx context.Context, address string) (*osm.Place, error)
}

// Reader reads the persisted emissions slot.
type Reader interface {
	Get(ctx context.Context, key string) (string, error)
}

// Deps are the services the tools call into.
type Deps struct {
	Planner    *pipeline.Planner
	Places     Places
	Fetcher    pipeline.Fetcher
	Calculator pipeline.Calculator
	Detector   *detector.Detector
	Sessions   *mapview.Sessions
	Store      Reader
}

// Registry contains all tool definitions and handlers
type Registry struct {
	logger *slog.Logger
	deps   Deps
}

// NewRegistry creates a new tool registry
func NewRegistry(deps Deps, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, deps: deps}
}

// ToolDefinition pairs an MCP tool with its handler.
type ToolDefinition struct {
	Name    string
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{Name: "get_version", Tool: GetVersionTool(), Handler: HandleGetVersion},

		// Trip flow
		{Name: "plan_trip", Tool: PlanTripTool(), Handler: r.HandlePlanTrip()},
		{Name: "resolve_address", Tool: ResolveAddressTool(), Handler: r.HandleResolveAddress()},
		{Name: "fetch_route", Tool: FetchRouteTool(), Handler: r.HandleFetchRoute()},
		{Name: "calculate_trip_metrics", Tool: CalculateTripMetricsTool(), Handler: r.HandleCalculateTripMetrics()},
		{Name: "get_emissions", Tool: GetEmissionsTool(), Handler: r.HandleGetEmissions()},

		// Map
		{Name: "get_map_view", Tool: GetMapViewTool(), Handler: r.HandleGetMapView()},

		// Detector
		{Name: "detect_crop_disease", Tool: DetectCropDiseaseTool(), Handler: r.HandleDetectCropDisease()},
	}
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Debug("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, r.wrapWithTracing(def.Name, def.Handler))
	}
}

// RegisterResources registers the tile layer description.
func (r *Registry) RegisterResources(mcpServer *server.MCPServer) {
	mcpServer.AddResource(TileLayerResource(), r.HandleTileLayerResource)
}

// RegisterAll registers all tools and resources with the MCP server.
func (r *Registry) RegisterAll(mcpServer *server.MCPServer) {
	r.RegisterTools(mcpServer)
	r.RegisterResources(mcpServer)
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// wrapWithTracing adds a span and the tool metrics around a handler.
func (r *Registry) wrapWithTracing(toolName string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("mcp.tool.%s", toolName),
			trace.WithAttributes(attribute.String(tracing.AttrMCPToolName, toolName)),
		)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(start)

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, duration.Milliseconds(), resultSize)...)
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		r.logger.Debug("tool executed",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)
		return result, err
	}
}
