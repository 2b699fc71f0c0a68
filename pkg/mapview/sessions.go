package mapview

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSessionID is used when a caller does not identify itself.
const DefaultSessionID = "default"

// Sessions keeps one Surface per session, evicting the least recently
// used once the cache is full.
type Sessions struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, *Surface]
	opts   Options
	tiles  TileLayer
	logger *slog.Logger
}

// NewSessions creates a session cache holding up to size surfaces. Every
// new surface gets tiles registered on creation.
func NewSessions(size int, opts Options, tiles TileLayer, logger *slog.Logger) (*Sessions, error) {
	if size <= 0 {
		size = 128
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sessions{opts: opts, tiles: tiles, logger: logger.With("component", "map_sessions")}

	cache, err := lru.NewWithEvict[string, *Surface](size, func(id string, _ *Surface) {
		s.logger.Debug("map session evicted", "session_id", id)
	})
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// Get returns the surface for id, creating it on first use.
func (s *Sessions) Get(id string) *Surface {
	if id == "" {
		id = DefaultSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if surface, ok := s.cache.Get(id); ok {
		return surface
	}
	surface := NewSurface(s.opts)
	// a fresh surface cannot already have a layer
	_ = surface.RegisterTileLayer(s.tiles)
	s.cache.Add(id, surface)
	return surface
}

// Peek returns the surface for id without creating or promoting it.
func (s *Sessions) Peek(id string) (*Surface, bool) {
	if id == "" {
		id = DefaultSessionID
	}
	return s.cache.Peek(id)
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.cache.Len()
}

// TileLayer returns the layer registered on every surface.
func (s *Sessions) TileLayer() TileLayer {
	t := s.tiles
	if t.URLTemplate == "" {
		t.URLTemplate = DefaultTileURL
	}
	if t.Attribution == "" {
		t.Attribution = DefaultAttribution
	}
	if t.MaxZoom <= 0 {
		t.MaxZoom = DefaultMaxZoom
	}
	return t
}
