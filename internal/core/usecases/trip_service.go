package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/ports"
	"github.com/wangshifu/cyclemap/internal/pkg/metrics"
	"github.com/wangshifu/cyclemap/internal/pkg/telemetry"
)

// ErrSnapshotsDisabled is returned by snapshot operations when no repository is wired.
var ErrSnapshotsDisabled = errors.New("snapshot storage not configured")

// ErrNoSource is returned by Reload when no default document source is wired.
var ErrNoSource = errors.New("no document source configured")

var tracer = otel.Tracer("github.com/wangshifu/cyclemap/internal/core/usecases")

// TripService owns the in-memory trip document for the lifetime of the process.
// Every accepted change replaces the whole document value; readers get the value
// current at the time of the call and never see it change underneath them.
type TripService struct {
	mu  sync.RWMutex
	doc domain.TripData
	// seq advances on every accepted change and every fetch start. A fetch is
	// only applied if seq has not moved since it began.
	seq          uint64
	defaultTried bool

	source    ports.DocumentSource
	snapshots ports.SnapshotRepository
	events    ports.EventPublisher
	now       func() time.Time
}

// TripServiceOption configures optional collaborators.
type TripServiceOption func(*TripService)

// WithDefaultSource sets where the default document is fetched from the first
// time the service observes an empty trip.
func WithDefaultSource(src ports.DocumentSource) TripServiceOption {
	return func(s *TripService) { s.source = src }
}

// WithSnapshots enables Save/Restore.
func WithSnapshots(repo ports.SnapshotRepository) TripServiceOption {
	return func(s *TripService) { s.snapshots = repo }
}

// WithEvents publishes a TripEvent after each change.
func WithEvents(pub ports.EventPublisher) TripServiceOption {
	return func(s *TripService) { s.events = pub }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TripServiceOption {
	return func(s *TripService) { s.now = now }
}

// NewTripService creates a service holding an empty default document.
func NewTripService(opts ...TripServiceOption) *TripService {
	s := &TripService{doc: domain.DefaultTripData(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Revision identifies the current document value. It only grows.
func (s *TripService) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Current returns the document, lazily loading the default one first if needed.
func (s *TripService) Current(ctx context.Context) domain.TripData {
	if err := s.EnsureLoaded(ctx); err != nil {
		LoggerFromCtx(ctx).Warn("default trip load failed", "error", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Versioned returns the document together with its revision, read atomically.
func (s *TripService) Versioned(ctx context.Context) (domain.TripData, uint64) {
	_ = s.Current(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.seq
}

// EnsureLoaded fetches the default document the first time the trip is observed
// empty. It runs at most once per service lifetime.
func (s *TripService) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	if s.defaultTried || s.source == nil || len(s.doc.Days) > 0 {
		s.mu.Unlock()
		return nil
	}
	s.defaultTried = true
	s.mu.Unlock()

	_, err := s.fetch(ctx, s.source, domain.EventDefaultLoad)
	return err
}

// Reload fetches the configured source again. It reports whether the result was
// applied; a result overtaken by a newer change is discarded.
func (s *TripService) Reload(ctx context.Context) (bool, error) {
	if s.source == nil {
		return false, ErrNoSource
	}
	return s.fetch(ctx, s.source, domain.EventImported)
}

func (s *TripService) fetch(ctx context.Context, src ports.DocumentSource, kind domain.TripEventKind) (bool, error) {
	ctx, span := tracer.Start(ctx, telemetry.SpanTripFetch)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrSource, src.Name()))

	s.mu.Lock()
	s.seq++
	ticket := s.seq
	s.mu.Unlock()

	raw, err := src.Fetch(ctx)
	if err != nil {
		metrics.TripImports.WithLabelValues("fetch_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("fetch %s: %w", src.Name(), err)
	}
	data, err := domain.ImportTripData(raw)
	if err != nil {
		metrics.TripImports.WithLabelValues("malformed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	s.mu.Lock()
	if s.seq != ticket {
		current := s.seq
		s.mu.Unlock()
		metrics.StaleFetchesDiscarded.Inc()
		LoggerFromCtx(ctx).Info("discarding stale trip fetch", "source", src.Name(), "ticket", ticket, "current", current)
		span.SetAttributes(attribute.Bool(telemetry.AttrStale, true))
		return false, nil
	}
	event := s.commitLocked(data, kind, nil)
	s.mu.Unlock()

	metrics.TripImports.WithLabelValues("ok").Inc()
	s.afterCommit(ctx, data, event)
	return true, nil
}

// mutate applies fn to the current document under the write lock.
func (s *TripService) mutate(ctx context.Context, kind domain.TripEventKind, dayIndex *int, fn func(domain.TripData) (domain.TripData, error)) (domain.TripData, error) {
	s.mu.Lock()
	next, err := fn(s.doc)
	if err != nil {
		s.mu.Unlock()
		return domain.TripData{}, err
	}
	event := s.commitLocked(next, kind, dayIndex)
	s.mu.Unlock()

	s.afterCommit(ctx, next, event)
	return next, nil
}

// commitLocked swaps the document; s.mu must be held for writing. Any accepted
// change also closes the lazy default load.
func (s *TripService) commitLocked(next domain.TripData, kind domain.TripEventKind, dayIndex *int) domain.TripEvent {
	s.doc = next
	s.seq++
	s.defaultTried = true
	return domain.TripEvent{
		Kind:       kind,
		Revision:   s.seq,
		DayIndex:   dayIndex,
		Days:       len(next.Days),
		TotalKm:    domain.CalculateTotalDistance(next.Days),
		OccurredAt: s.now().UTC(),
	}
}

func (s *TripService) afterCommit(ctx context.Context, doc domain.TripData, event domain.TripEvent) {
	metrics.TripDays.Set(float64(event.Days))
	metrics.TripDistanceKm.Set(event.TotalKm)
	metrics.TripChanges.WithLabelValues(string(event.Kind)).Inc()

	if s.events == nil {
		return
	}
	if err := s.events.PublishTripEvent(ctx, &event); err != nil {
		LoggerFromCtx(ctx).Warn("publish trip event failed", "kind", event.Kind, "error", err)
	}
}

// Import replaces the document with a parsed one. A malformed document leaves the
// current document untouched. With recompute, every day's distance is refreshed.
func (s *TripService) Import(ctx context.Context, raw []byte, recompute bool) (domain.TripData, error) {
	ctx, span := tracer.Start(ctx, telemetry.SpanTripImport)
	defer span.End()

	data, err := domain.ImportTripData(raw)
	if err != nil {
		metrics.TripImports.WithLabelValues("malformed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.TripData{}, err
	}
	if recompute {
		data = domain.RecomputeDistances(data)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrDays, len(data.Days)))

	metrics.TripImports.WithLabelValues("ok").Inc()
	return s.mutate(ctx, domain.EventImported, nil, func(domain.TripData) (domain.TripData, error) {
		return data, nil
	})
}

// Export serializes the current document.
func (s *TripService) Export(ctx context.Context) ([]byte, error) {
	return domain.ExportTripData(s.Current(ctx))
}

// Reset replaces the document with an empty default one. The lazy default load
// is not triggered again.
func (s *TripService) Reset(ctx context.Context) domain.TripData {
	next, _ := s.mutate(ctx, domain.EventReset, nil, func(domain.TripData) (domain.TripData, error) {
		return domain.DefaultTripData(), nil
	})
	return next
}

// Day returns the record at index.
func (s *TripService) Day(ctx context.Context, index int) (domain.DayRecord, error) {
	doc := s.Current(ctx)
	if index < 0 || index >= len(doc.Days) {
		return domain.DayRecord{}, fmt.Errorf("%w: %d", domain.ErrIndexOutOfRange, index)
	}
	return doc.Days[index], nil
}

// SortedDays returns the days newest first, each with its document index.
func (s *TripService) SortedDays(ctx context.Context) []domain.IndexedDay {
	return domain.SortDays(s.Current(ctx).Days)
}

// AddDay appends a day with a freshly computed distance. A point or route
// coordinate out of range is rejected with ErrInvalidCoordinate.
func (s *TripService) AddDay(ctx context.Context, day domain.DayRecord) (domain.TripData, error) {
	if err := day.Validate(); err != nil {
		return domain.TripData{}, err
	}
	return s.mutate(ctx, domain.EventDayAdded, nil, func(cur domain.TripData) (domain.TripData, error) {
		return domain.AddDay(cur, day), nil
	})
}

// UpdateDay patches a day. Unlike domain.UpdateDay it rejects a missing index
// with ErrIndexOutOfRange.
func (s *TripService) UpdateDay(ctx context.Context, index int, patch domain.DayPatch) (domain.TripData, error) {
	return s.UpdateDayWithKind(ctx, domain.EventDayUpdated, index, patch)
}

// DeleteDay removes a day, rejecting a missing index.
func (s *TripService) DeleteDay(ctx context.Context, index int) (domain.TripData, error) {
	return s.mutate(ctx, domain.EventDayDeleted, &index, func(cur domain.TripData) (domain.TripData, error) {
		if err := checkIndex(cur, index); err != nil {
			return domain.TripData{}, err
		}
		return domain.DeleteDay(cur, index), nil
	})
}

// RegenerateRoute overwrites a day's stored route with a line through its points.
func (s *TripService) RegenerateRoute(ctx context.Context, index int) (domain.TripData, error) {
	return s.mutate(ctx, domain.EventRouteSet, &index, func(cur domain.TripData) (domain.TripData, error) {
		if err := checkIndex(cur, index); err != nil {
			return domain.TripData{}, err
		}
		return domain.ReplaceDay(cur, index, domain.RegenerateRoute(cur.Days[index])), nil
	})
}

// SetDayRoute stores an explicit route (e.g. an uploaded GPX track) for a day.
func (s *TripService) SetDayRoute(ctx context.Context, index int, route *domain.Route) (domain.TripData, error) {
	return s.UpdateDayWithKind(ctx, domain.EventRouteSet, index, domain.DayPatch{RouteGeoJSON: domain.Some(route)})
}

// UpdateDayWithKind is UpdateDay with a caller-chosen event kind.
func (s *TripService) UpdateDayWithKind(ctx context.Context, kind domain.TripEventKind, index int, patch domain.DayPatch) (domain.TripData, error) {
	if err := patch.Validate(); err != nil {
		return domain.TripData{}, err
	}
	return s.mutate(ctx, kind, &index, func(cur domain.TripData) (domain.TripData, error) {
		if err := checkIndex(cur, index); err != nil {
			return domain.TripData{}, err
		}
		return domain.UpdateDay(cur, index, patch), nil
	})
}

// Stats summarises mileage for the current document.
func (s *TripService) Stats(ctx context.Context) domain.DistanceStats {
	return domain.CalculateStats(s.Current(ctx).Days)
}

// Bounds frames every point of the trip; nil when there are no points.
func (s *TripService) Bounds(ctx context.Context) *domain.MapView {
	return domain.CalculateBounds(s.Current(ctx).Days)
}

// Save persists the current document as a new snapshot.
func (s *TripService) Save(ctx context.Context) (*domain.Snapshot, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	ctx, span := tracer.Start(ctx, telemetry.SpanTripSave)
	defer span.End()

	doc := s.Current(ctx)
	raw, err := domain.ExportTripData(doc)
	if err != nil {
		return nil, err
	}
	snap := &domain.Snapshot{
		ID:        uuid.NewString(),
		Title:     doc.Meta.Title,
		Days:      len(doc.Days),
		TotalKm:   domain.CalculateTotalDistance(doc.Days),
		Document:  raw,
		CreatedAt: s.now().UTC(),
	}
	span.SetAttributes(attribute.String(telemetry.AttrSnapshotID, snap.ID))
	if err := s.snapshots.Save(ctx, snap); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return snap, nil
}

// Snapshots lists stored snapshots, newest first.
func (s *TripService) Snapshots(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.snapshots.List(ctx, limit)
}

// Restore replaces the document with a stored snapshot.
func (s *TripService) Restore(ctx context.Context, id string) (domain.TripData, error) {
	if s.snapshots == nil {
		return domain.TripData{}, ErrSnapshotsDisabled
	}
	// Snapshot ids are UUIDs; anything else cannot name a stored snapshot.
	if _, err := uuid.Parse(id); err != nil {
		return domain.TripData{}, fmt.Errorf("%w: snapshot %q", domain.ErrNotFound, id)
	}
	snap, err := s.snapshots.Get(ctx, id)
	if err != nil {
		return domain.TripData{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return s.restore(ctx, snap)
}

// RestoreLatest loads the newest snapshot, if any. It reports whether one was found.
func (s *TripService) RestoreLatest(ctx context.Context) (bool, error) {
	if s.snapshots == nil {
		return false, ErrSnapshotsDisabled
	}
	snap, err := s.snapshots.Latest(ctx)
	if err != nil {
		return false, fmt.Errorf("latest snapshot: %w", err)
	}
	if snap == nil {
		return false, nil
	}
	if _, err := s.restore(ctx, snap); err != nil {
		return false, err
	}
	return true, nil
}

func (s *TripService) restore(ctx context.Context, snap *domain.Snapshot) (domain.TripData, error) {
	data, err := domain.ImportTripData(snap.Document)
	if err != nil {
		return domain.TripData{}, fmt.Errorf("snapshot %s: %w", snap.ID, err)
	}
	return s.mutate(ctx, domain.EventRestored, nil, func(domain.TripData) (domain.TripData, error) {
		return data, nil
	})
}

func checkIndex(doc domain.TripData, index int) error {
	if index < 0 || index >= len(doc.Days) {
		return fmt.Errorf("%w: %d (document has %d days)", domain.ErrIndexOutOfRange, index, len(doc.Days))
	}
	return nil
}

// LoggerFromCtx extracts a request-scoped logger stored under LoggerKey, falling
// back to the default logger.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

type loggerKey struct{}

// LoggerKey is the context key for a request-scoped *slog.Logger.
var LoggerKey = loggerKey{}
