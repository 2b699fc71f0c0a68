package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/mapview"
)

// TileLayerURI identifies the tile layer resource.
const TileLayerURI = "ecoroute://map/tile-layer"

// GetMapViewTool returns a tool definition for reading a session's map
func GetMapViewTool() mcp.Tool {
	return mcp.NewTool("get_map_view",
		mcp.WithDescription("Get the current map view of a session: viewport, tile layer and the drawn route as GeoJSON"),
		mcp.WithString("session_id",
			mcp.Description("Map session (default: \"default\")"),
		),
	)
}

type mapViewInput struct {
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
}

// MapView is the state of one session's surface.
type MapView struct {
	SessionID string            `json:"session_id"`
	Viewport  mapview.Viewport  `json:"viewport"`
	TileLayer mapview.TileLayer `json:"tile_layer"`
	Overlays  int               `json:"overlays"`
	GeoJSON   json.RawMessage   `json:"geojson"`
}

// Snapshot reads the view of a surface.
func Snapshot(sessionID string, surface *mapview.Surface) (*MapView, error) {
	data, err := surface.GeoJSON()
	if err != nil {
		return nil, core.NewError(core.ErrInternalError, fmt.Sprintf("encode overlays: %v", err))
	}
	tiles, _ := surface.TileLayer()
	return &MapView{
		SessionID: sessionID,
		Viewport:  surface.Viewport(),
		TileLayer: tiles,
		Overlays:  surface.OverlayCount(),
		GeoJSON:   data,
	}, nil
}

// HandleGetMapView returns the session's map view.
func (r *Registry) HandleGetMapView() server.ToolHandlerFunc {
	return WithParsedInput("get_map_view", r.logger, func(ctx context.Context, in mapViewInput, logger *slog.Logger) (any, error) {
		id := in.SessionID
		if id == "" {
			id = mapview.DefaultSessionID
		}
		return Snapshot(id, r.deps.Sessions.Get(id))
	})
}

// TileLayerResource describes the tile layer resource.
func TileLayerResource() mcp.Resource {
	return mcp.NewResource(TileLayerURI, "Map tile layer",
		mcp.WithResourceDescription("Tile URL template, attribution and max zoom of the map background"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleTileLayerResource serves the registered tile layer.
func (r *Registry) HandleTileLayerResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(r.deps.Sessions.TileLayer())
	if err != nil {
		return nil, fmt.Errorf("encode tile layer: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TileLayerURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
