package domain

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/wangshifu/cyclemap/internal/pkg/geospatial"
)

// RouteType is the GeoJSON geometry type of a Route.
type RouteType string

const (
	LineString      RouteType = "LineString"
	MultiLineString RouteType = "MultiLineString"
)

// Route is a LineString or MultiLineString in WGS-84, coordinates in [lon, lat] order.
// It encodes to and from a bare GeoJSON geometry object.
type Route struct {
	geom orb.Geometry
}

// NewLineString wraps a single coordinate sequence.
func NewLineString(ls orb.LineString) *Route {
	if ls == nil {
		ls = orb.LineString{}
	}
	return &Route{geom: ls}
}

// NewMultiLineString wraps a set of independent segments.
func NewMultiLineString(mls orb.MultiLineString) *Route {
	if mls == nil {
		mls = orb.MultiLineString{}
	}
	return &Route{geom: mls}
}

// RouteFromGeometry accepts an orb.LineString or orb.MultiLineString.
func RouteFromGeometry(g orb.Geometry) (*Route, error) {
	switch v := g.(type) {
	case orb.LineString:
		return NewLineString(v), nil
	case orb.MultiLineString:
		return NewMultiLineString(v), nil
	case nil:
		return nil, fmt.Errorf("%w: empty geometry", ErrUnsupportedGeometry)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
	}
}

// Type returns LineString or MultiLineString.
func (r *Route) Type() RouteType {
	if _, ok := r.geom.(orb.MultiLineString); ok {
		return MultiLineString
	}
	return LineString
}

// Segments returns the route as a list of coordinate sequences. A LineString
// yields exactly one segment. A nil route has none.
func (r *Route) Segments() []orb.LineString {
	if r == nil {
		return nil
	}
	switch v := r.geom.(type) {
	case orb.LineString:
		return []orb.LineString{v}
	case orb.MultiLineString:
		return []orb.LineString(v)
	}
	return nil
}

// NumCoords counts coordinates across all segments.
func (r *Route) NumCoords() int {
	n := 0
	for _, seg := range r.Segments() {
		n += len(seg)
	}
	return n
}

// Validate rejects a non-finite or out-of-range coordinate anywhere in the
// route. A nil route is valid.
func (r *Route) Validate() error {
	for i, seg := range r.Segments() {
		for j, c := range seg {
			if !geospatial.ValidCoordinate(c[0], c[1]) {
				return fmt.Errorf("%w: route segment %d coordinate %d (%v, %v)", ErrInvalidCoordinate, i, j, c[1], c[0])
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	return &Route{geom: orb.Clone(r.geom)}
}

// MarshalJSON encodes the route as a GeoJSON geometry.
func (r Route) MarshalJSON() ([]byte, error) {
	if r.geom == nil {
		return []byte("null"), nil
	}
	return geojson.NewGeometry(r.geom).MarshalJSON()
}

// UnmarshalJSON decodes a GeoJSON LineString or MultiLineString.
func (r *Route) UnmarshalJSON(data []byte) error {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("decode route geometry: %w", err)
	}
	decoded, err := RouteFromGeometry(g.Geometry())
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

// Feature wraps the route in a GeoJSON feature with the given properties.
func (r *Route) Feature(props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(r.geom)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

var _ json.Marshaler = Route{}
