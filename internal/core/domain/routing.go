package domain

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// PointsToLineString projects points to [lon, lat] pairs in order. No
// deduplication or simplification is applied.
func PointsToLineString(points []Point) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = p.Orb()
	}
	return ls
}

// GetDayRoute returns the stored route, else a line through the points when
// there are at least two, else nil.
func GetDayRoute(day DayRecord) *Route {
	if day.RouteGeoJSON != nil {
		return day.RouteGeoJSON
	}
	if len(day.Points) >= 2 {
		return NewLineString(PointsToLineString(day.Points))
	}
	return nil
}

// MergeAllRoutes flattens every day's route into one MultiLineString. Segments
// with fewer than two coordinates are skipped; nil when nothing qualifies.
func MergeAllRoutes(days []DayRecord) *Route {
	var lines orb.MultiLineString
	for _, d := range days {
		route := GetDayRoute(d)
		if route == nil {
			continue
		}
		for _, seg := range route.Segments() {
			if len(seg) >= 2 {
				lines = append(lines, seg.Clone())
			}
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return NewMultiLineString(lines)
}

// RegenerateRoute overwrites the stored route with a line through the points
// (nil with fewer than two points) and refreshes the distance.
func RegenerateRoute(day DayRecord) DayRecord {
	out := day.Clone()
	out.RouteGeoJSON = nil
	if len(day.Points) >= 2 {
		out.RouteGeoJSON = NewLineString(PointsToLineString(day.Points))
	}
	return UpdateDayDistance(out)
}

// CollectAllPoints concatenates the points of every day in order.
func CollectAllPoints(days []DayRecord) []Point {
	var all []Point
	for _, d := range days {
		all = append(all, d.Points...)
	}
	return all
}

// CalculateBounds frames every point of the trip. Nil when there are no points.
func CalculateBounds(days []DayRecord) *MapView {
	return BoundsOfPoints(CollectAllPoints(days))
}

// BoundsOfPoints returns the center of the points' bounding box and a zoom level
// chosen from its largest side.
func BoundsOfPoints(points []Point) *MapView {
	if len(points) == 0 {
		return nil
	}
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = p.Orb()
	}
	b := mp.Bound()
	center := b.Center()

	return &MapView{
		Center: Point{Lat: center.Lat(), Lon: center.Lon()},
		Zoom:   zoomForSpan(math.Max(b.Max.Lon()-b.Min.Lon(), b.Max.Lat()-b.Min.Lat())),
		Bounds: Bounds{MinLat: b.Min.Lat(), MinLon: b.Min.Lon(), MaxLat: b.Max.Lat(), MaxLon: b.Max.Lon()},
	}
}

func zoomForSpan(maxDiff float64) int {
	switch {
	case maxDiff > 10:
		return 5
	case maxDiff > 5:
		return 6
	case maxDiff > 2:
		return 7
	case maxDiff > 1:
		return 8
	case maxDiff > 0.5:
		return 9
	case maxDiff > 0.2:
		return 10
	case maxDiff > 0.1:
		return 11
	default:
		return 12
	}
}

// IndexedDay pairs a record with its position in the document.
type IndexedDay struct {
	Index int       `json:"index"`
	Day   DayRecord `json:"day"`
}

// SortDays orders days for display: numbered days first, newest number first,
// then dated days newest first, then the rest. Day 0 counts as a number. Ties
// keep document order. The input is not modified.
func SortDays(days []DayRecord) []IndexedDay {
	out := make([]IndexedDay, len(days))
	for i, d := range days {
		out[i] = IndexedDay{Index: i, Day: d}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Day, out[j].Day
		if a.HasDay() != b.HasDay() {
			return a.HasDay()
		}
		if a.HasDay() {
			return a.Day > b.Day
		}
		if (a.Date != "") != (b.Date != "") {
			return a.Date != ""
		}
		return a.Date > b.Date
	})
	return out
}
