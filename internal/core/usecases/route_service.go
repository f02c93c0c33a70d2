package usecases

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/ports"
	"github.com/wangshifu/cyclemap/internal/pkg/metrics"
	"github.com/wangshifu/cyclemap/internal/pkg/routefmt"
	"github.com/wangshifu/cyclemap/internal/pkg/telemetry"
)

// AllDays selects the merged route of the whole trip.
const AllDays = -1

// EncodedRoute is a route rendered in a given frame and format.
type EncodedRoute struct {
	Body     []byte
	Format   routefmt.Format
	CRS      domain.CRS
	Revision uint64
	Filename string
}

// RouteService serves day and trip routes in any frame and format. Encodings are
// cached by document revision, so any change to the trip invalidates them.
// Revisions are per process, so keys also carry an instance id.
type RouteService struct {
	trips    *TripService
	cache    ports.CacheService
	ttl      int
	instance string
}

// NewRouteService creates a new RouteService. cache may be nil.
func NewRouteService(trips *TripService, cache ports.CacheService, ttlSeconds int) *RouteService {
	return &RouteService{trips: trips, cache: cache, ttl: ttlSeconds, instance: uuid.NewString()}
}

// Route encodes the route of one day, or the merged trip route for AllDays.
func (s *RouteService) Route(ctx context.Context, dayIndex int, crs domain.CRS, format routefmt.Format) (*EncodedRoute, error) {
	ctx, span := tracer.Start(ctx, telemetry.SpanRouteEncode)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrCRS, string(crs)),
		attribute.String(telemetry.AttrFormat, string(format)),
	)

	doc, rev := s.trips.Versioned(ctx)

	var (
		route  *domain.Route
		meta   routefmt.Meta
		target = "all"
	)
	if dayIndex == AllDays {
		route = domain.MergeAllRoutes(doc.Days)
		meta = routefmt.Meta{Name: doc.Meta.Title, Description: doc.Meta.Description, Points: domain.CollectAllPoints(doc.Days)}
	} else {
		if dayIndex < 0 || dayIndex >= len(doc.Days) {
			return nil, fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, dayIndex)
		}
		day := doc.Days[dayIndex]
		route = domain.GetDayRoute(day)
		meta = routefmt.Meta{Name: dayName(day, dayIndex), Points: day.Points}
		target = strconv.Itoa(dayIndex)
	}

	out := &EncodedRoute{Format: format, CRS: crs, Revision: rev}
	out.Filename = fmt.Sprintf("route-%s-%s.%s", target, crs.Slug(), format.Extension())

	key := fmt.Sprintf("route:%s:%d:%s:%s:%s", s.instance, rev, target, crs, format)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && len(cached) > 0 {
			metrics.CacheHits.WithLabelValues("route").Inc()
			out.Body = cached
			return out, nil
		}
		metrics.CacheMisses.WithLabelValues("route").Inc()
	}

	projected, err := domain.TransformRoute(route, crs)
	if err != nil {
		return nil, err
	}
	if meta.Points, err = domain.TransformPoints(meta.Points, crs); err != nil {
		return nil, err
	}
	meta.CRS = crs

	body, err := routefmt.Encode(format, projected, meta)
	if err != nil {
		return nil, err
	}
	out.Body = body

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, body, s.ttl); err != nil {
			LoggerFromCtx(ctx).Debug("route cache set failed", "key", key, "error", err)
		}
	}
	return out, nil
}

func dayName(day domain.DayRecord, index int) string {
	switch {
	case day.Title != "":
		return day.Title
	case day.HasDay():
		return fmt.Sprintf("Day %d", day.Day)
	default:
		return fmt.Sprintf("Day #%d", index+1)
	}
}
