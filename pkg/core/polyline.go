package core

import (
	"math"
	"strings"

	"github.com/NERVsystems/ecoroute/pkg/geo"
)

const polylinePrecision = 1e5

// EncodePolyline encodes a path with the polyline5 algorithm so routes can
// be returned compactly in tool output.
func EncodePolyline(points []geo.Location) string {
	var sb strings.Builder
	sb.Grow(len(points) * 10)

	var prevLat, prevLon int
	for _, p := range points {
		lat := int(math.Round(p.Latitude * polylinePrecision))
		lon := int(math.Round(p.Longitude * polylinePrecision))
		writeSigned(&sb, lat-prevLat)
		writeSigned(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

func writeSigned(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}
