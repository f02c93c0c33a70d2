package usecases

import (
	"context"
	"fmt"

	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/ports"
	"github.com/wangshifu/cyclemap/internal/pkg/telemetry"
)

// MapService draws the trip on any map adapter. Adapters handle their own
// reprojection, so nothing here depends on the provider.
type MapService struct {
	trips *TripService
}

// NewMapService creates a new MapService.
func NewMapService(trips *TripService) *MapService {
	return &MapService{trips: trips}
}

// Render initialises adapter on containerID and draws one day, or every day for
// AllDays. The view is fitted to the drawn points when there are any.
func (s *MapService) Render(ctx context.Context, adapter ports.MapAdapter, containerID string, dayIndex int) error {
	_, span := tracer.Start(ctx, telemetry.SpanMapRender)
	defer span.End()

	doc := s.trips.Current(ctx)

	if err := adapter.Init(containerID); err != nil {
		return fmt.Errorf("init map: %w", err)
	}
	if err := adapter.ClearRoute(); err != nil {
		return err
	}
	if err := adapter.ClearPoints(); err != nil {
		return err
	}

	var (
		route  *domain.Route
		points []domain.Point
		view   *domain.MapView
	)
	if dayIndex == AllDays {
		route = domain.MergeAllRoutes(doc.Days)
		points = domain.CollectAllPoints(doc.Days)
		view = domain.CalculateBounds(doc.Days)
	} else {
		if dayIndex < 0 || dayIndex >= len(doc.Days) {
			return fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, dayIndex)
		}
		day := doc.Days[dayIndex]
		route = domain.GetDayRoute(day)
		points = day.Points
		view = domain.BoundsOfPoints(day.Points)
	}

	if view != nil {
		if err := adapter.SetCenter(view.Center.Lat, view.Center.Lon, view.Zoom); err != nil {
			return fmt.Errorf("set center: %w", err)
		}
	}
	if route != nil {
		if err := adapter.DrawRoute(route); err != nil {
			return fmt.Errorf("draw route: %w", err)
		}
	}
	if len(points) > 0 {
		if err := adapter.DrawPoints(points); err != nil {
			return fmt.Errorf("draw points: %w", err)
		}
	}
	return nil
}
