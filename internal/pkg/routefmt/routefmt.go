// Package routefmt encodes day and trip routes into interchange formats and
// decodes uploaded GPX tracks back into routes.
package routefmt

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/paulmach/orb"
	"github.com/tkrajina/gpxgo/gpx"
	"github.com/twpayne/go-kml/v2"
	"github.com/twpayne/go-polyline"

	"github.com/wangshifu/cyclemap/internal/core/domain"
)

// Format names an output encoding.
type Format string

const (
	GeoJSON  Format = "geojson"
	GPX      Format = "gpx"
	KML      Format = "kml"
	Polyline Format = "polyline"
)

var ErrUnknownFormat = errors.New("unknown route format")

// ParseFormat accepts the format names above, case-insensitively. Empty means GeoJSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return GeoJSON, nil
	case GeoJSON, GPX, KML, Polyline:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType is the MIME type served for a format.
func (f Format) ContentType() string {
	switch f {
	case GPX:
		return "application/gpx+xml"
	case KML:
		return "application/vnd.google-earth.kml+xml"
	case Polyline:
		return "text/plain; charset=utf-8"
	default:
		return "application/geo+json"
	}
}

// Extension is the file extension for downloads.
func (f Format) Extension() string {
	if f == GeoJSON {
		return "geojson"
	}
	return string(f)
}

// Meta labels an encoded route.
type Meta struct {
	Name        string
	Description string
	CRS         domain.CRS
	Points      []domain.Point
}

// Encode renders route in format f. A nil route encodes as an empty document.
func Encode(f Format, route *domain.Route, meta Meta) ([]byte, error) {
	switch f {
	case GeoJSON, "":
		return EncodeGeoJSON(route, meta)
	case GPX:
		return EncodeGPX(route, meta)
	case KML:
		return EncodeKML(route, meta)
	case Polyline:
		return EncodePolyline(route), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// EncodeGeoJSON wraps the route in a Feature carrying name and CRS properties.
func EncodeGeoJSON(route *domain.Route, meta Meta) ([]byte, error) {
	props := map[string]any{"crs": meta.CRS.Slug()}
	if meta.Name != "" {
		props["name"] = meta.Name
	}
	if route == nil {
		route = domain.NewMultiLineString(nil)
	}
	return route.Feature(props).MarshalJSON()
}

// EncodeGPX writes one track with a segment per route segment, plus named
// points as waypoints.
func EncodeGPX(route *domain.Route, meta Meta) ([]byte, error) {
	doc := &gpx.GPX{
		Version:     "1.1",
		Creator:     "cyclemap",
		Name:        meta.Name,
		Description: meta.Description,
	}
	track := gpx.GPXTrack{Name: meta.Name}
	for _, seg := range route.Segments() {
		var s gpx.GPXTrackSegment
		for _, c := range seg {
			s.Points = append(s.Points, gpx.GPXPoint{Point: gpx.Point{Latitude: c.Lat(), Longitude: c.Lon()}})
		}
		track.Segments = append(track.Segments, s)
	}
	if len(track.Segments) > 0 {
		doc.Tracks = append(doc.Tracks, track)
	}
	for _, p := range meta.Points {
		doc.Waypoints = append(doc.Waypoints, gpx.GPXPoint{
			Point: gpx.Point{Latitude: p.Lat, Longitude: p.Lon},
			Name:  p.Name,
		})
	}
	return doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
}

var routeColor = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}

// EncodeKML writes a document with one placemark for the route (a
// MultiGeometry when there are several segments) and one per named point.
func EncodeKML(route *domain.Route, meta Meta) ([]byte, error) {
	children := []kml.Element{
		kml.Name(meta.Name),
		kml.SharedStyle("route",
			kml.LineStyle(kml.Color(routeColor), kml.Width(4)),
		),
	}
	if meta.Description != "" {
		children = append(children, kml.Description(meta.Description))
	}

	segs := route.Segments()
	var lines []kml.Element
	for _, seg := range segs {
		coords := make([]kml.Coordinate, len(seg))
		for i, c := range seg {
			coords[i] = kml.Coordinate{Lon: c.Lon(), Lat: c.Lat()}
		}
		lines = append(lines, kml.LineString(kml.Tessellate(true), kml.Coordinates(coords...)))
	}
	switch len(lines) {
	case 0:
	case 1:
		children = append(children, kml.Placemark(kml.Name(meta.Name), kml.StyleURL("#route"), lines[0]))
	default:
		children = append(children, kml.Placemark(kml.Name(meta.Name), kml.StyleURL("#route"), kml.MultiGeometry(lines...)))
	}

	for _, p := range meta.Points {
		children = append(children, kml.Placemark(
			kml.Name(p.Name),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.Lon, Lat: p.Lat})),
		))
	}

	var buf bytes.Buffer
	if err := kml.KML(kml.Document(children...)).WriteIndent(&buf, "", "  "); err != nil {
		return nil, fmt.Errorf("encode kml: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePolyline writes one Google encoded polyline per segment, newline separated.
func EncodePolyline(route *domain.Route) []byte {
	var lines [][]byte
	for _, seg := range route.Segments() {
		coords := make([][]float64, len(seg))
		for i, c := range seg {
			coords[i] = []float64{c.Lat(), c.Lon()}
		}
		lines = append(lines, polyline.EncodeCoords(coords))
	}
	return bytes.Join(lines, []byte("\n"))
}

// DecodePolyline is the inverse of EncodePolyline: one encoded line per
// segment, blank lines ignored.
func DecodePolyline(data []byte) (*domain.Route, error) {
	var mls orb.MultiLineString
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		coords, _, err := polyline.DecodeCoords(line)
		if err != nil {
			return nil, fmt.Errorf("%w: polyline: %v", domain.ErrMalformedDocument, err)
		}
		ls := make(orb.LineString, len(coords))
		for i, c := range coords {
			ls[i] = orb.Point{c[1], c[0]}
		}
		mls = append(mls, ls)
	}
	if len(mls) == 0 {
		return nil, fmt.Errorf("%w: polyline is empty", domain.ErrMalformedDocument)
	}
	route := collapse(mls)
	if err := route.Validate(); err != nil {
		return nil, err
	}
	return route, nil
}

// DecodeGPX turns every track segment (and any routes) of a GPX file into a
// route. A single segment becomes a LineString.
func DecodeGPX(data []byte) (*domain.Route, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: gpx: %v", domain.ErrMalformedDocument, err)
	}

	var mls orb.MultiLineString
	for _, track := range doc.Tracks {
		for _, seg := range track.Segments {
			if ls := gpxLine(seg.Points); len(ls) > 0 {
				mls = append(mls, ls)
			}
		}
	}
	for _, rte := range doc.Routes {
		if ls := gpxLine(rte.Points); len(ls) > 0 {
			mls = append(mls, ls)
		}
	}
	if len(mls) == 0 {
		return nil, fmt.Errorf("%w: gpx has no track points", domain.ErrMalformedDocument)
	}

	route := collapse(mls)
	if err := route.Validate(); err != nil {
		return nil, err
	}
	return route, nil
}

func gpxLine(points []gpx.GPXPoint) orb.LineString {
	ls := make(orb.LineString, 0, len(points))
	for _, p := range points {
		ls = append(ls, orb.Point{p.Longitude, p.Latitude})
	}
	return ls
}

func collapse(mls orb.MultiLineString) *domain.Route {
	if len(mls) == 1 {
		return domain.NewLineString(mls[0])
	}
	return domain.NewMultiLineString(mls)
}
