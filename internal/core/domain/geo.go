package domain

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/wangshifu/cyclemap/internal/pkg/geospatial"
)

// Point is a named WGS-84 waypoint.
type Point struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Validate rejects non-finite or out-of-range coordinates.
func (p Point) Validate() error {
	if !geospatial.ValidCoordinate(p.Lon, p.Lat) {
		return fmt.Errorf("%w: %q (%v, %v)", ErrInvalidCoordinate, p.Name, p.Lat, p.Lon)
	}
	return nil
}

// Orb returns the point as an [lon, lat] pair.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// CRS identifies a geodetic reference frame.
type CRS string

const (
	WGS84 CRS = "WGS84"
	GCJ02 CRS = "GCJ02"
	BD09  CRS = "BD09"
)

// ParseCRS accepts the usual spellings ("wgs84", "gcj02", "gcj-02", "bd09", ...).
// An empty string means WGS84.
func ParseCRS(s string) (CRS, error) {
	norm := strings.ToUpper(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(s)))
	switch norm {
	case "", "WGS84":
		return WGS84, nil
	case "GCJ02":
		return GCJ02, nil
	case "BD09":
		return BD09, nil
	}
	return "", fmt.Errorf("unknown coordinate system %q", s)
}

// Slug is the lower-case name used in file names and GeoJSON properties.
func (c CRS) Slug() string {
	if c == "" {
		return "wgs84"
	}
	return strings.ToLower(string(c))
}

func (c CRS) frame() geospatial.Frame {
	switch c {
	case GCJ02:
		return geospatial.FrameGCJ02
	case BD09:
		return geospatial.FrameBD09
	default:
		return geospatial.FrameWGS84
	}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// MapView is a center and zoom level suitable for framing a set of points.
type MapView struct {
	Center Point  `json:"center"`
	Zoom   int    `json:"zoom"`
	Bounds Bounds `json:"bounds"`
}
