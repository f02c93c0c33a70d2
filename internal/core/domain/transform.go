package domain

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/wangshifu/cyclemap/internal/pkg/geospatial"
)

// TransformPoint projects a WGS-84 point into the target frame. Name is kept.
func TransformPoint(p Point, to CRS) (Point, error) {
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	lon, lat := geospatial.Transform(p.Lon, p.Lat, geospatial.FrameWGS84, to.frame())
	out := p
	out.Lon, out.Lat = lon, lat
	return out, nil
}

// TransformPoints projects every point. One invalid point aborts the whole call.
func TransformPoints(points []Point, to CRS) ([]Point, error) {
	out := make([]Point, len(points))
	for i, p := range points {
		tp, err := TransformPoint(p, to)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		out[i] = tp
	}
	return out, nil
}

// TransformRoute projects every coordinate of a WGS-84 route. Any invalid
// coordinate aborts the transform so no partially projected geometry escapes.
func TransformRoute(r *Route, to CRS) (*Route, error) {
	if r == nil {
		return nil, nil
	}
	segs := r.Segments()
	projected := make(orb.MultiLineString, len(segs))
	for i, seg := range segs {
		ls := make(orb.LineString, len(seg))
		for j, c := range seg {
			if !geospatial.ValidCoordinate(c.Lon(), c.Lat()) {
				return nil, fmt.Errorf("%w: segment %d coordinate %d (%v, %v)", ErrInvalidCoordinate, i, j, c.Lon(), c.Lat())
			}
			lon, lat := geospatial.Transform(c.Lon(), c.Lat(), geospatial.FrameWGS84, to.frame())
			ls[j] = orb.Point{lon, lat}
		}
		projected[i] = ls
	}
	if r.Type() == LineString {
		return NewLineString(projected[0]), nil
	}
	return NewMultiLineString(projected), nil
}
