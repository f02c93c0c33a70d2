package ports

import (
	"context"

	"github.com/wangshifu/cyclemap/internal/core/domain"
)

// EventPublisher publishes trip events to a message broker.
type EventPublisher interface {
	PublishTripEvent(ctx context.Context, event *domain.TripEvent) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber receives day records from external producers.
type EventSubscriber interface {
	SubscribeDayRecords(ctx context.Context, handler func(ctx context.Context, day *domain.DayRecord) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// DocumentSource fetches a raw trip document (the default sample, a remote
// export, a file on disk).
type DocumentSource interface {
	Fetch(ctx context.Context) ([]byte, error)
	Name() string
}

// MapAdapter renders WGS-84 points and routes for one map provider. Each
// implementation reprojects into its own frame.
type MapAdapter interface {
	Init(containerID string) error
	SetCenter(lat, lon float64, zoom int) error
	DrawRoute(route *domain.Route) error
	DrawPoints(points []domain.Point) error
	ClearRoute() error
	ClearPoints() error
	Destroy() error
}
