// Package geo holds the coordinate and bounding box types shared by the
// resolver, the route fetcher and the map surface.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Location is a WGS84 coordinate in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point converts the location to an orb point, which is ordered [lon, lat].
func (l Location) Point() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}

// FromPoint converts an orb point back to a Location.
func FromPoint(p orb.Point) Location {
	return Location{Latitude: p.Lat(), Longitude: p.Lon()}
}

// BoundingBox is a latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// NewBoundingBox returns an empty box that any point will extend.
func NewBoundingBox() *BoundingBox {
	return &BoundingBox{
		MinLat: math.Inf(1),
		MinLon: math.Inf(1),
		MaxLat: math.Inf(-1),
		MaxLon: math.Inf(-1),
	}
}

// ExtendWithPoint grows the box to include the given point.
func (b *BoundingBox) ExtendWithPoint(lat, lon float64) {
	b.MinLat = math.Min(b.MinLat, lat)
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MaxLon = math.Max(b.MaxLon, lon)
}

// IsEmpty reports whether no point has been added yet.
func (b *BoundingBox) IsEmpty() bool {
	return b.MinLat > b.MaxLat || b.MinLon > b.MaxLon
}

// Center returns the midpoint of the box.
func (b *BoundingBox) Center() Location {
	return Location{
		Latitude:  (b.MinLat + b.MaxLat) / 2,
		Longitude: (b.MinLon + b.MaxLon) / 2,
	}
}

// BoundsOf returns the bounding box of a path. The second return value is
// false for an empty path.
func BoundsOf(path []Location) (BoundingBox, bool) {
	if len(path) == 0 {
		return BoundingBox{}, false
	}
	bbox := NewBoundingBox()
	for _, p := range path {
		bbox.ExtendWithPoint(p.Latitude, p.Longitude)
	}
	return *bbox, true
}
