package domain_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangshifu/cyclemap/internal/core/domain"
)

func TestCalculateDistance_LineString(t *testing.T) {
	route := domain.NewLineString(orb.LineString{{116.0, 39.0}, {116.1, 39.0}})

	km := domain.CalculateDistance(route)
	require.NotNil(t, km)
	assert.InDelta(t, 8.64, *km, 0.01)
}

func TestCalculateDistance_Insufficient(t *testing.T) {
	tests := []struct {
		name  string
		route *domain.Route
	}{
		{"nil route", nil},
		{"empty line", domain.NewLineString(orb.LineString{})},
		{"single coordinate", domain.NewLineString(orb.LineString{{116.0, 39.0}})},
		{"empty multi", domain.NewMultiLineString(orb.MultiLineString{})},
		{"multi of short segments", domain.NewMultiLineString(orb.MultiLineString{
			{{116.0, 39.0}},
			{},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, domain.CalculateDistance(tt.route))
		})
	}
}

func TestCalculateDistance_MultiLineStringSkipsShortSegments(t *testing.T) {
	single := domain.CalculateDistance(domain.NewLineString(orb.LineString{{116.0, 39.0}, {116.1, 39.0}}))
	multi := domain.CalculateDistance(domain.NewMultiLineString(orb.MultiLineString{
		{{116.0, 39.0}, {116.1, 39.0}},
		{{120.0, 30.0}},
		{{116.0, 39.0}, {116.1, 39.0}},
	}))
	require.NotNil(t, single)
	require.NotNil(t, multi)
	assert.InDelta(t, *single*2, *multi, 0.011)
}

func TestCalculateDistance_MonotonicAsPointsAppended(t *testing.T) {
	coords := orb.LineString{
		{103.83, 36.06}, {103.90, 36.10}, {104.02, 36.15}, {104.10, 36.30},
		{104.30, 36.35}, {104.50, 36.52}, {104.80, 36.60},
	}
	prev := 0.0
	for n := 2; n <= len(coords); n++ {
		km := domain.CalculateDistance(domain.NewLineString(coords[:n]))
		require.NotNil(t, km)
		assert.GreaterOrEqual(t, *km, prev)
		prev = *km
	}
}

func TestCalculateDayDistance(t *testing.T) {
	t.Run("prefers stored route", func(t *testing.T) {
		day := domain.DayRecord{
			Points: []domain.Point{
				{Name: "a", Lat: 39.0, Lon: 116.0},
				{Name: "b", Lat: 40.0, Lon: 116.0},
			},
			RouteGeoJSON: domain.NewLineString(orb.LineString{{116.0, 39.0}, {116.1, 39.0}}),
		}
		km := domain.CalculateDayDistance(day)
		require.NotNil(t, km)
		assert.InDelta(t, 8.64, *km, 0.01)
	})

	t.Run("falls back to points", func(t *testing.T) {
		day := domain.DayRecord{Points: []domain.Point{
			{Name: "a", Lat: 39.0, Lon: 116.0},
			{Name: "b", Lat: 39.0, Lon: 116.1},
		}}
		km := domain.CalculateDayDistance(day)
		require.NotNil(t, km)
		assert.InDelta(t, 8.64, *km, 0.01)
	})

	t.Run("degenerate stored route does not fall back", func(t *testing.T) {
		day := domain.DayRecord{
			Points: []domain.Point{
				{Name: "a", Lat: 39.0, Lon: 116.0},
				{Name: "b", Lat: 39.0, Lon: 116.1},
			},
			RouteGeoJSON: domain.NewLineString(orb.LineString{{116.0, 39.0}}),
		}
		assert.Nil(t, domain.CalculateDayDistance(day))
	})

	t.Run("no geometry", func(t *testing.T) {
		day := domain.DayRecord{Points: []domain.Point{}, RouteGeoJSON: nil}
		assert.Nil(t, domain.CalculateDayDistance(day))

		updated := domain.UpdateDayDistance(day)
		assert.Nil(t, updated.DistanceKm)
	})
}

func TestCalculateTotalDistance(t *testing.T) {
	assert.Equal(t, 0.0, domain.CalculateTotalDistance(nil))
	assert.Equal(t, 0.0, domain.CalculateTotalDistance([]domain.DayRecord{{}, {Points: []domain.Point{{Lat: 1, Lon: 1}}}}))

	line := domain.NewLineString(orb.LineString{{116.0, 39.0}, {116.1, 39.0}})
	total := domain.CalculateTotalDistance([]domain.DayRecord{
		{RouteGeoJSON: line},
		{},
		{RouteGeoJSON: line},
	})
	assert.InDelta(t, 17.28, total, 0.01)
}

func TestUpdateDayDistance_Idempotent(t *testing.T) {
	stale := 123.0
	day := domain.DayRecord{
		Day:        3,
		Points:     []domain.Point{{Name: "a", Lat: 39.0, Lon: 116.0}, {Name: "b", Lat: 39.0, Lon: 116.1}},
		DistanceKm: &stale,
	}

	once := domain.UpdateDayDistance(day)
	twice := domain.UpdateDayDistance(once)

	require.NotNil(t, once.DistanceKm)
	require.NotNil(t, twice.DistanceKm)
	assert.Equal(t, *once.DistanceKm, *twice.DistanceKm)
	assert.Equal(t, 123.0, *day.DistanceKm, "input must not be modified")
}

func TestCalculateStats(t *testing.T) {
	line := domain.NewLineString(orb.LineString{{116.0, 39.0}, {116.1, 39.0}})
	stats := domain.CalculateStats([]domain.DayRecord{
		{RouteGeoJSON: line},
		{RouteGeoJSON: line},
		{},
	})
	assert.Equal(t, 3, stats.TotalDays)
	assert.Equal(t, 2, stats.DaysWithDistance)
	assert.InDelta(t, 17.28, stats.TotalKm, 0.01)
	assert.InDelta(t, 8.64, stats.AverageKm, 0.01)

	empty := domain.CalculateStats(nil)
	assert.Equal(t, 0.0, empty.AverageKm)
}
