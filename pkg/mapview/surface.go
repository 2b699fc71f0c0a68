// Package mapview models the map display surface a route is drawn on: a
// tile background, at most one path overlay and a viewport.
package mapview

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/NERVsystems/ecoroute/pkg/geo"
)

// Defaults for a fresh surface.
const (
	DefaultTileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultAttribution = "&copy; OpenStreetMap contributors"
	DefaultZoom        = 13
	DefaultMaxZoom     = 19
	DefaultWidthPx     = 800
	DefaultHeightPx    = 600

	tileSizePx = 256
)

// DefaultCenter is Bengaluru.
var DefaultCenter = geo.Location{Latitude: 12.9716, Longitude: 77.5946}

var (
	ErrTileLayerRegistered = errors.New("mapview: tile layer already registered")
	ErrEmptyPath           = errors.New("mapview: cannot render an empty path")
)

// TileLayer is the background raster layer.
type TileLayer struct {
	URLTemplate string `json:"url_template"`
	Attribution string `json:"attribution"`
	MaxZoom     int    `json:"max_zoom"`
}

// Viewport is the visible region of the surface.
type Viewport struct {
	Center geo.Location     `json:"center"`
	Zoom   int              `json:"zoom"`
	Bounds *geo.BoundingBox `json:"bounds,omitempty"`
}

// Overlay is one drawn path.
type Overlay struct {
	ID      string          `json:"id"`
	Path    []geo.Location  `json:"path"`
	Bounds  geo.BoundingBox `json:"bounds"`
	DrawnAt time.Time       `json:"drawn_at"`
}

// Options configures a Surface.
type Options struct {
	Center   geo.Location
	Zoom     int
	WidthPx  int
	HeightPx int
}

func (o Options) withDefaults() Options {
	if o.Center == (geo.Location{}) {
		o.Center = DefaultCenter
	}
	if o.Zoom <= 0 {
		o.Zoom = DefaultZoom
	}
	if o.WidthPx <= 0 {
		o.WidthPx = DefaultWidthPx
	}
	if o.HeightPx <= 0 {
		o.HeightPx = DefaultHeightPx
	}
	return o
}

// Surface is safe for concurrent use.
type Surface struct {
	mu       sync.RWMutex
	opts     Options
	tiles    *TileLayer
	overlays []Overlay
	viewport Viewport
	renders  int
}

// NewSurface returns a surface showing the default view and no overlays.
func NewSurface(opts Options) *Surface {
	opts = opts.withDefaults()
	return &Surface{
		opts:     opts,
		viewport: Viewport{Center: opts.Center, Zoom: opts.Zoom},
	}
}

// RegisterTileLayer sets the background layer. It may be called once.
func (s *Surface) RegisterTileLayer(layer TileLayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tiles != nil {
		return ErrTileLayerRegistered
	}
	if layer.URLTemplate == "" {
		layer.URLTemplate = DefaultTileURL
	}
	if layer.Attribution == "" {
		layer.Attribution = DefaultAttribution
	}
	if layer.MaxZoom <= 0 {
		layer.MaxZoom = DefaultMaxZoom
	}
	s.tiles = &layer
	return nil
}

// TileLayer returns the registered layer, if any.
func (s *Surface) TileLayer() (TileLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tiles == nil {
		return TileLayer{}, false
	}
	return *s.tiles, true
}

// Render replaces every overlay with path and fits the viewport to it.
func (s *Surface) Render(path []geo.Location) (Viewport, error) {
	bounds, ok := geo.BoundsOf(path)
	if !ok {
		return Viewport{}, ErrEmptyPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	s.overlays = append(s.overlays, Overlay{
		ID:      uuid.NewString(),
		Path:    append([]geo.Location(nil), path...),
		Bounds:  bounds,
		DrawnAt: time.Now().UTC(),
	})
	s.fitLocked(bounds)
	s.renders++
	return s.viewport, nil
}

// Clear removes all overlays. It is a no-op on an empty surface.
func (s *Surface) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *Surface) clearLocked() int {
	n := len(s.overlays)
	s.overlays = s.overlays[:0]
	return n
}

func (s *Surface) fitLocked(bounds geo.BoundingBox) {
	maxZoom := DefaultMaxZoom
	if s.tiles != nil {
		maxZoom = s.tiles.MaxZoom
	}
	b := bounds
	s.viewport = Viewport{
		Center: bounds.Center(),
		Zoom:   FitZoom(bounds, s.opts.WidthPx, s.opts.HeightPx, maxZoom),
		Bounds: &b,
	}
}

// OverlayCount returns the number of drawn overlays.
func (s *Surface) OverlayCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overlays)
}

// Overlays returns a copy of the drawn overlays.
func (s *Surface) Overlays() []Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Overlay(nil), s.overlays...)
}

// Viewport returns the current viewport.
func (s *Surface) Viewport() Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// Renders returns how many paths have been drawn on this surface.
func (s *Surface) Renders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renders
}

// FeatureCollection exports the overlays as GeoJSON LineStrings.
func (s *Surface) FeatureCollection() *geojson.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fc := geojson.NewFeatureCollection()
	for _, o := range s.overlays {
		line := make(orb.LineString, len(o.Path))
		for i, p := range o.Path {
			line[i] = p.Point()
		}
		f := geojson.NewFeature(line)
		f.ID = o.ID
		f.Properties["drawn_at"] = o.DrawnAt.Format(time.RFC3339)
		fc.Append(f)
	}
	return fc
}

// GeoJSON returns the overlays as a serialized FeatureCollection.
func (s *Surface) GeoJSON() ([]byte, error) {
	return json.Marshal(s.FeatureCollection())
}

// FitZoom returns the largest zoom at which bounds fit in a width x height
// pixel viewport of 256px tiles.
func FitZoom(bounds geo.BoundingBox, widthPx, heightPx, maxZoom int) int {
	nw := orb.Point{bounds.MinLon, bounds.MaxLat}
	se := orb.Point{bounds.MaxLon, bounds.MinLat}

	for z := maxZoom; z > 0; z-- {
		a := maptile.Fraction(nw, maptile.Zoom(z))
		b := maptile.Fraction(se, maptile.Zoom(z))
		w := math.Abs(b[0]-a[0]) * tileSizePx
		h := math.Abs(b[1]-a[1]) * tileSizePx
		if w <= float64(widthPx) && h <= float64(heightPx) {
			return z
		}
	}
	return 0
}
