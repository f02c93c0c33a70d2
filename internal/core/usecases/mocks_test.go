package usecases_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/wangshifu/cyclemap/internal/core/domain"
)

// --- Mock DocumentSource ---

type mockSource struct {
	fetchFn func(ctx context.Context) ([]byte, error)
	calls   int
	mu      sync.Mutex
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Fetch(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}
	return []byte(`{"meta":{},"days":[]}`), nil
}

func (m *mockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock SnapshotRepository ---

var errNotFound = errors.New("not found")

type mockSnapshotRepo struct {
	mu     sync.Mutex
	items  map[string]domain.Snapshot
	saveFn func(ctx context.Context, snap *domain.Snapshot) error
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{items: map[string]domain.Snapshot{}}
}

func (m *mockSnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, snap)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[snap.ID] = *snap
	return nil
}

func (m *mockSnapshotRepo) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, errNotFound
	}
	return &s, nil
}

func (m *mockSnapshotRepo) Latest(ctx context.Context) (*domain.Snapshot, error) {
	list, _ := m.List(ctx, 1)
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (m *mockSnapshotRepo) List(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Snapshot, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockSnapshotRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.TripEvent
	err    error
}

func (m *mockPublisher) PublishTripEvent(ctx context.Context, event *domain.TripEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return m.err
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error { return m.err }

func (m *mockPublisher) Kinds() []domain.TripEventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TripEventKind, len(m.events))
	for i, e := range m.events {
		out[i] = e.Kind
	}
	return out
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	if !ok {
		return nil, errNotFound
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock MapAdapter ---

type mockAdapter struct {
	calls   []string
	center  [3]float64
	route   *domain.Route
	points  []domain.Point
	drawErr error
}

func (m *mockAdapter) Init(containerID string) error {
	m.calls = append(m.calls, "init:"+containerID)
	return nil
}

func (m *mockAdapter) SetCenter(lat, lon float64, zoom int) error {
	m.calls = append(m.calls, "center")
	m.center = [3]float64{lat, lon, float64(zoom)}
	return nil
}

func (m *mockAdapter) DrawRoute(route *domain.Route) error {
	m.calls = append(m.calls, "route")
	m.route = route
	return m.drawErr
}

func (m *mockAdapter) DrawPoints(points []domain.Point) error {
	m.calls = append(m.calls, "points")
	m.points = points
	return nil
}

func (m *mockAdapter) ClearRoute() error {
	m.calls = append(m.calls, "clear-route")
	return nil
}

func (m *mockAdapter) ClearPoints() error {
	m.calls = append(m.calls, "clear-points")
	return nil
}

func (m *mockAdapter) Destroy() error {
	m.calls = append(m.calls, "destroy")
	return nil
}
