// Package mapview implements ports.MapAdapter for the supported tile providers.
// Rendering happens client-side; an adapter builds the provider-frame scene a
// browser map needs (tile source, view, route and point layers) and hands it
// out as GeoJSON.
package mapview

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/ports"
)

var (
	ErrNotInitialized = errors.New("map adapter not initialized")
	ErrDestroyed      = errors.New("map adapter destroyed")
	ErrUnknownMapType = errors.New("unknown map type")
)

// MapType selects a provider.
type MapType string

const (
	AMap  MapType = "amap"
	Baidu MapType = "baidu"
	OSM   MapType = "osm"
)

// Layer styles.
const (
	RouteColor  = "#3b82f6"
	RouteWidth  = 4
	PointColor  = "#ef4444"
	PointRadius = 6
)

// Initial view before anything is centred: Beijing at city zoom.
const (
	DefaultCenterLat = 39.9093
	DefaultCenterLon = 116.3974
	DefaultZoom      = 10
)

// Provider describes a tile source and the frame its tiles are drawn in.
type Provider struct {
	Type        MapType    `json:"type"`
	CRS         domain.CRS `json:"crs"`
	TileURL     string     `json:"tileUrl"`
	Subdomains  []string   `json:"subdomains,omitempty"`
	Attribution string     `json:"attribution"`
	MaxZoom     int        `json:"maxZoom"`
}

// View is the camera, in the provider's frame.
type View struct {
	Center [2]float64 `json:"center"` // lon, lat
	Zoom   int        `json:"zoom"`
}

// Scene is a snapshot of everything drawn on an adapter.
type Scene struct {
	Provider  Provider                   `json:"provider"`
	Container string                     `json:"container"`
	View      *View                      `json:"view,omitempty"`
	Route     *geojson.Feature           `json:"route,omitempty"`
	Points    *geojson.FeatureCollection `json:"points,omitempty"`
}

// Renderer is a MapAdapter whose drawing can be read back.
type Renderer interface {
	ports.MapAdapter
	Scene() (Scene, error)
	Provider() Provider
}

// New returns the adapter for a map type.
func New(t MapType) (Renderer, error) {
	switch MapType(strings.ToLower(string(t))) {
	case AMap:
		return NewAMapAdapter(), nil
	case Baidu:
		return NewBaiduAdapter(), nil
	case OSM:
		return NewOSMAdapter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMapType, t)
	}
}

// canvas holds the state shared by every provider; each adapter only differs in
// the Provider it is built with.
type canvas struct {
	provider Provider

	mu        sync.Mutex
	container string
	ready     bool
	destroyed bool
	view      *View
	route     *geojson.Feature
	points    *geojson.FeatureCollection
}

func (c *canvas) Provider() Provider { return c.provider }

func (c *canvas) Init(containerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrDestroyed
	}
	if containerID == "" {
		return fmt.Errorf("container id is required")
	}
	p, err := domain.TransformPoint(domain.Point{Lat: DefaultCenterLat, Lon: DefaultCenterLon}, c.provider.CRS)
	if err != nil {
		return err
	}
	c.container = containerID
	c.ready = true
	c.view = &View{Center: [2]float64{p.Lon, p.Lat}, Zoom: DefaultZoom}
	return nil
}

func (c *canvas) usable() error {
	if c.destroyed {
		return ErrDestroyed
	}
	if !c.ready {
		return ErrNotInitialized
	}
	return nil
}

func (c *canvas) SetCenter(lat, lon float64, zoom int) error {
	p, err := domain.TransformPoint(domain.Point{Lat: lat, Lon: lon}, c.provider.CRS)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	c.view = &View{Center: [2]float64{p.Lon, p.Lat}, Zoom: zoom}
	return nil
}

// DrawRoute replaces the route layer. A nil or empty route clears it.
func (c *canvas) DrawRoute(route *domain.Route) error {
	var f *geojson.Feature
	if route.NumCoords() > 0 {
		projected, err := domain.TransformRoute(route, c.provider.CRS)
		if err != nil {
			return err
		}
		f = projected.Feature(map[string]any{
			"stroke":       RouteColor,
			"stroke-width": RouteWidth,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	c.route = f
	return nil
}

// DrawPoints replaces the marker layer.
func (c *canvas) DrawPoints(points []domain.Point) error {
	projected, err := domain.TransformPoints(points, c.provider.CRS)
	if err != nil {
		return err
	}
	fc := geojson.NewFeatureCollection()
	for _, p := range projected {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.Properties["name"] = p.Name
		f.Properties["marker-color"] = PointColor
		f.Properties["marker-radius"] = PointRadius
		fc.Append(f)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	c.points = fc
	return nil
}

func (c *canvas) ClearRoute() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	c.route = nil
	return nil
}

func (c *canvas) ClearPoints() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	c.points = nil
	return nil
}

// Destroy releases the layers. Calling it twice is fine.
func (c *canvas) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	c.ready = false
	c.view, c.route, c.points = nil, nil, nil
	return nil
}

func (c *canvas) Scene() (Scene, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return Scene{}, err
	}
	return Scene{
		Provider:  c.provider,
		Container: c.container,
		View:      c.view,
		Route:     c.route,
		Points:    c.points,
	}, nil
}
