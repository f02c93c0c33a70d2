package usecases_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wangshifu/cyclemap/internal/adapters/mapview"
	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/usecases"
)

func TestMapService_RenderDay(t *testing.T) {
	svc := usecases.NewMapService(newLoadedTrip(t))
	adapter := &mockAdapter{}

	if err := svc.Render(context.Background(), adapter, "map", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "init:map,clear-route,clear-points,center,route,points"
	if got := strings.Join(adapter.calls, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if adapter.center[2] != 12 {
		t.Errorf("expected zoom 12, got %v", adapter.center[2])
	}
	if len(adapter.points) != 2 {
		t.Errorf("expected 2 points, got %d", len(adapter.points))
	}
}

func TestMapService_RenderDayWithoutPoints(t *testing.T) {
	svc := usecases.NewMapService(newLoadedTrip(t))
	adapter := &mockAdapter{}

	if err := svc.Render(context.Background(), adapter, "map", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "init:map,clear-route,clear-points"
	if got := strings.Join(adapter.calls, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestMapService_RenderAllOnEveryProvider(t *testing.T) {
	svc := usecases.NewMapService(newLoadedTrip(t))
	for _, mt := range []mapview.MapType{mapview.AMap, mapview.Baidu, mapview.OSM} {
		adapter, err := mapview.New(mt)
		if err != nil {
			t.Fatal(err)
		}
		if err := svc.Render(context.Background(), adapter, "map", usecases.AllDays); err != nil {
			t.Fatalf("%s: unexpected error: %v", mt, err)
		}
		scene, err := adapter.Scene()
		if err != nil {
			t.Fatal(err)
		}
		if scene.Route == nil || scene.Points == nil || len(scene.Points.Features) != 2 {
			t.Errorf("%s: expected route and 2 markers, got %+v", mt, scene)
		}
	}
}

func TestMapService_Errors(t *testing.T) {
	svc := usecases.NewMapService(newLoadedTrip(t))

	if err := svc.Render(context.Background(), &mockAdapter{}, "map", 5); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}

	failing := &mockAdapter{drawErr: domain.ErrInvalidCoordinate}
	if err := svc.Render(context.Background(), failing, "map", 0); !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Errorf("expected ErrInvalidCoordinate, got %v", err)
	}
}
