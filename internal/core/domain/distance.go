package domain

import (
	"github.com/paulmach/orb"

	"github.com/wangshifu/cyclemap/internal/pkg/geospatial"
)

// CalculateDistance returns the great-circle length of a route in kilometres,
// rounded to two decimals. It returns nil, not zero, when the route is nil or has
// no segment with at least two coordinates.
func CalculateDistance(route *Route) *float64 {
	if route == nil {
		return nil
	}
	var (
		total   float64
		counted bool
	)
	for _, seg := range route.Segments() {
		if len(seg) < 2 {
			continue
		}
		total += lineLengthKm(seg)
		counted = true
	}
	if !counted {
		return nil
	}
	km := geospatial.Round2(total)
	return &km
}

// lineLengthKm sums consecutive haversine legs without rounding.
func lineLengthKm(ls orb.LineString) float64 {
	var km float64
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		km += geospatial.HaversineKm(a.Lat(), a.Lon(), b.Lat(), b.Lon())
	}
	return km
}

// CalculateDayDistance measures the stored route, or the points when no route is
// stored. Nil when neither yields a measurable line.
func CalculateDayDistance(day DayRecord) *float64 {
	return CalculateDistance(GetDayRoute(day))
}

// CalculateTotalDistance sums every day's distance, counting nil as zero.
func CalculateTotalDistance(days []DayRecord) float64 {
	var total float64
	for _, d := range days {
		if km := CalculateDayDistance(d); km != nil {
			total += *km
		}
	}
	return geospatial.Round2(total)
}

// UpdateDayDistance returns a copy of day with DistanceKm freshly computed. It is
// the only writer of DistanceKm.
func UpdateDayDistance(day DayRecord) DayRecord {
	out := day.Clone()
	out.DistanceKm = CalculateDayDistance(day)
	return out
}

// DistanceStats summarises mileage across the trip.
type DistanceStats struct {
	TotalKm          float64 `json:"total_km"`
	DaysWithDistance int     `json:"days_with_distance"`
	TotalDays        int     `json:"total_days"`
	AverageKm        float64 `json:"average_km"`
}

// CalculateStats computes the mileage summary. The average only counts days that
// have a distance.
func CalculateStats(days []DayRecord) DistanceStats {
	s := DistanceStats{TotalDays: len(days), TotalKm: CalculateTotalDistance(days)}
	for _, d := range days {
		if CalculateDayDistance(d) != nil {
			s.DaysWithDistance++
		}
	}
	if s.DaysWithDistance > 0 {
		s.AverageKm = geospatial.Round2(s.TotalKm / float64(s.DaysWithDistance))
	}
	return s
}
