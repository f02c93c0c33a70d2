package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/wangshifu/cyclemap/internal/adapters/http"
	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/usecases"
)

const sampleTrip = `{
  "meta": {"title": "北京周边", "author": "王师傅", "description": "", "cover": "c.jpg"},
  "days": [
    {"day": 1, "date": "2024-05-01", "points": [{"name": "天安门", "lat": 39.9087, "lon": 116.3975}, {"name": "颐和园", "lat": 39.9999, "lon": 116.2755}], "routeGeoJSON": null, "distanceKm": null, "video": "BV1xx"},
    {"day": 2, "date": "2024-05-02", "points": [], "routeGeoJSON": null, "distanceKm": 12.5}
  ]
}`

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><name>t</name><trkseg>
    <trkpt lat="39.90" lon="116.39"></trkpt>
    <trkpt lat="39.95" lon="116.40"></trkpt>
    <trkpt lat="40.00" lon="116.42"></trkpt>
  </trkseg></trk>
</gpx>`

// ---- Mocks ----

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

type mockSnapshotRepo struct {
	mu    sync.Mutex
	items map[string]domain.Snapshot
	gets  []string
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{items: map[string]domain.Snapshot{}}
}

func (m *mockSnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[snap.ID] = *snap
	return nil
}

func (m *mockSnapshotRepo) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, id)
	s, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
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

// ---- Helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...usecases.TripServiceOption) *handler.Dependencies {
	trips := usecases.NewTripService(opts...)
	return &handler.Dependencies{
		Trips:       trips,
		Routes:      usecases.NewRouteService(trips, nil, 0),
		Maps:        usecases.NewMapService(trips),
		MapProvider: "amap",
	}
}

// loadedDeps returns dependencies holding sampleTrip.
func loadedDeps(t *testing.T, opts ...usecases.TripServiceOption) *handler.Dependencies {
	t.Helper()
	deps := makeDeps(opts...)
	if _, err := deps.Trips.Import(context.Background(), []byte(sampleTrip), false); err != nil {
		t.Fatalf("import sample: %v", err)
	}
	return deps
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, []byte, *httptest.ResponseRecorder) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	rec := httptest.NewRecorder()
	for k, v := range resp.Header {
		rec.Header()[k] = v
	}
	return resp.StatusCode, b, rec
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var apiErr handler.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("decode error body %s: %v", body, err)
	}
	return apiErr.Code
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())
	status, body, _ := do(t, app, "GET", "/v1/health", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"healthy"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestReady(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	if status, _, _ := do(t, app, "GET", "/v1/ready", ""); status != 200 {
		t.Fatalf("expected 200 with no backends configured, got %d", status)
	}

	deps = makeDeps()
	deps.DB = mockPinger{err: errors.New("connection refused")}
	deps.Cache = mockPinger{}
	status, body, _ := do(t, setupApp(deps), "GET", "/v1/ready", "")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
	if !strings.Contains(string(body), "connection refused") || !strings.Contains(string(body), `"cache":"ok"`) {
		t.Errorf("unexpected checks %s", body)
	}
}

// ---- Trip document ----

func TestImportThenExport(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "PUT", "/v1/trip", sampleTrip)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var summary handler.TripSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Days != 2 || summary.TotalKm <= 0 {
		t.Errorf("unexpected summary %+v", summary)
	}

	status, body, hdr := do(t, app, "GET", "/v1/trip?download=true", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if cd := hdr.Header().Get("Content-Disposition"); !strings.Contains(cd, "trip-data-") || !strings.Contains(cd, ".json") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	for _, want := range []string{`"video":"BV1xx"`, `"cover":"c.jpg"`, `"distanceKm":12.5`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("export lost %s: %s", want, body)
		}
	}
}

func TestImport_RecomputeDistances(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	if status, _, _ := do(t, app, "PUT", "/v1/trip?recompute=true", sampleTrip); status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	// day 1 gains a distance from its two points; day 2 has no geometry and loses 12.5
	first, _ := deps.Trips.Day(context.Background(), 0)
	second, _ := deps.Trips.Day(context.Background(), 1)
	if first.DistanceKm == nil || *first.DistanceKm <= 0 {
		t.Errorf("expected day 1 distance, got %v", first.DistanceKm)
	}
	if second.DistanceKm != nil {
		t.Errorf("expected day 2 distance cleared, got %v", *second.DistanceKm)
	}
}

func TestImport_MalformedKeepsDocument(t *testing.T) {
	deps := loadedDeps(t)
	app := setupApp(deps)
	before := deps.Trips.Revision()

	for _, body := range []string{`{"meta":{}}`, `{"days": 3}`, `not json`} {
		status, resp, _ := do(t, app, "PUT", "/v1/trip", body)
		if status != 422 {
			t.Errorf("%s: expected 422, got %d", body, status)
			continue
		}
		if code := errorCode(t, resp); code != "unprocessable" {
			t.Errorf("expected unprocessable, got %s", code)
		}
	}
	if deps.Trips.Revision() != before {
		t.Errorf("malformed import changed the document")
	}
	if status, _, _ := do(t, app, "PUT", "/v1/trip", ""); status != 400 {
		t.Errorf("expected 400 for empty body, got %d", status)
	}
}

func TestResetTrip(t *testing.T) {
	app := setupApp(loadedDeps(t))
	status, body, _ := do(t, app, "DELETE", "/v1/trip", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var summary handler.TripSummary
	json.Unmarshal(body, &summary)
	if summary.Days != 0 || summary.TotalKm != 0 {
		t.Errorf("expected empty trip, got %+v", summary)
	}
	if status, _, _ := do(t, app, "GET", "/v1/trip/bounds", ""); status != 204 {
		t.Errorf("expected 204 bounds for empty trip, got %d", status)
	}
}

func TestDeprecatedExport(t *testing.T) {
	app := setupApp(loadedDeps(t))
	status, _, hdr := do(t, app, "GET", "/v1/export", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if hdr.Header().Get("Deprecation") != "true" {
		t.Errorf("expected Deprecation header")
	}
	if !strings.Contains(hdr.Header().Get("Link"), "/v1/trip") {
		t.Errorf("expected successor link, got %q", hdr.Header().Get("Link"))
	}
}

func TestReload_NoSource(t *testing.T) {
	app := setupApp(makeDeps())
	status, body, _ := do(t, app, "POST", "/v1/trip/reload", "")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
	if code := errorCode(t, body); code != "unavailable" {
		t.Errorf("expected unavailable, got %s", code)
	}
}

func TestStatsAndBounds(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, _ := do(t, app, "GET", "/v1/trip/stats", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var stats domain.DistanceStats
	json.Unmarshal(body, &stats)
	if stats.TotalDays != 2 || stats.DaysWithDistance != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	status, body, _ = do(t, app, "GET", "/v1/trip/bounds", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var view domain.MapView
	json.Unmarshal(body, &view)
	if view.Zoom != 11 {
		t.Errorf("expected zoom 11 for a ~0.12 degree span, got %d", view.Zoom)
	}
}

// ---- Days ----

func TestListDays_SortedAndPaginated(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, hdr := do(t, app, "GET", "/v1/days?limit=1", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result struct {
		Data       []domain.IndexedDay `json:"data"`
		Pagination handler.Pagination  `json:"pagination"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 2 || len(result.Data) != 1 {
		t.Fatalf("unexpected page %+v", result.Pagination)
	}
	if result.Data[0].Index != 1 || result.Data[0].Day.Day != 2 {
		t.Errorf("expected newest day first, got %+v", result.Data[0])
	}
	if !strings.Contains(hdr.Header().Get("Link"), `rel="next"`) {
		t.Errorf("expected next link, got %q", hdr.Header().Get("Link"))
	}

	_, body, _ = do(t, app, "GET", "/v1/days?offset=5", "")
	json.Unmarshal(body, &result)
	if len(result.Data) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(result.Data))
	}
}

func TestAddDay(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, _ := do(t, app, "POST", "/v1/days",
		`{"day": 3, "date": "2024-05-03", "points": [{"name":"x","lat":40.0,"lon":116.0},{"name":"y","lat":40.0,"lon":116.1}], "weather": "晴"}`)
	if status != 201 {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var added domain.IndexedDay
	if err := json.Unmarshal(body, &added); err != nil {
		t.Fatal(err)
	}
	if added.Index != 2 || added.Day.DistanceKm == nil {
		t.Errorf("expected index 2 with a distance, got %+v", added)
	}
	if _, ok := added.Day.Extras["weather"]; !ok {
		t.Errorf("expected extra member kept")
	}

	status, _, _ = do(t, app, "POST", "/v1/days", `{"day": 4, "points": [{"name":"bad","lat":200,"lon":0}]}`)
	if status != 422 {
		t.Errorf("expected 422 for invalid coordinate, got %d", status)
	}
	status, _, _ = do(t, app, "POST", "/v1/days", `{"day": `)
	if status != 400 {
		t.Errorf("expected 400 for broken JSON, got %d", status)
	}
}

func TestDays_RouteCoordinatesValidated(t *testing.T) {
	deps := loadedDeps(t)
	app := setupApp(deps)
	before := deps.Trips.Revision()

	cases := []struct {
		name, method, target, body string
	}{
		{"add with latitude past the pole", "POST", "/v1/days",
			`{"day": 4, "points": [], "routeGeoJSON": {"type": "LineString", "coordinates": [[116.0, 40.0], [116.1, 95.0]]}}`},
		{"add with longitude out of range", "POST", "/v1/days",
			`{"day": 4, "points": [], "routeGeoJSON": {"type": "MultiLineString", "coordinates": [[[116.0, 40.0], [116.1, 40.0]], [[200.0, 40.0], [116.2, 40.0]]]}}`},
		{"patch route", "PATCH", "/v1/days/0",
			`{"routeGeoJSON": {"type": "LineString", "coordinates": [[116.0, 40.0], [-181.0, 40.0]]}}`},
		{"patch points", "PATCH", "/v1/days/0",
			`{"points": [{"name": "x", "lat": -91, "lon": 116}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body, _ := do(t, app, tc.method, tc.target, tc.body)
			if status != 422 {
				t.Fatalf("expected 422, got %d: %s", status, body)
			}
			if code := errorCode(t, body); code != "unprocessable" {
				t.Errorf("expected unprocessable, got %s", code)
			}
		})
	}

	if deps.Trips.Revision() != before {
		t.Errorf("rejected writes must not change the document, revision %d -> %d", before, deps.Trips.Revision())
	}
	if n := len(deps.Trips.Current(context.Background()).Days); n != 2 {
		t.Errorf("expected 2 days, got %d", n)
	}
}

func TestGetDay(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, _ := do(t, app, "GET", "/v1/days/0", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), "天安门") {
		t.Errorf("unexpected body %s", body)
	}
	if status, _, _ := do(t, app, "GET", "/v1/days/9", ""); status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
	if status, _, _ := do(t, app, "GET", "/v1/days/abc", ""); status != 400 {
		t.Errorf("expected 400, got %d", status)
	}
}

func TestPatchDay(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, _ := do(t, app, "PATCH", "/v1/days/1", `{"title": "雨天"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var got domain.IndexedDay
	json.Unmarshal(body, &got)
	if got.Day.Title != "雨天" || got.Day.DistanceKm == nil || *got.Day.DistanceKm != 12.5 {
		t.Errorf("title-only patch should keep the stored distance, got %+v", got.Day)
	}

	if status, _, _ := do(t, app, "PATCH", "/v1/days/1", `{}`); status != 400 {
		t.Errorf("expected 400 for empty patch, got %d", status)
	}
	if status, _, _ := do(t, app, "PATCH", "/v1/days/7", `{"title": "x"}`); status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
	if status, _, _ := do(t, app, "PATCH", "/v1/days/0", `{"routeGeoJSON": {"type": "Point", "coordinates": [1, 2]}}`); status != 422 {
		t.Errorf("expected 422 for unsupported geometry, got %d", status)
	}
}

func TestDeleteDay(t *testing.T) {
	deps := loadedDeps(t)
	app := setupApp(deps)

	status, _, _ := do(t, app, "DELETE", "/v1/days/0", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	day, err := deps.Trips.Day(context.Background(), 0)
	if err != nil || day.Day != 2 {
		t.Errorf("expected day 2 to shift to index 0, got %+v (%v)", day, err)
	}
	if status, _, _ := do(t, app, "DELETE", "/v1/days/1", ""); status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestRegenerateRoute(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, _ := do(t, app, "POST", "/v1/days/0/route/regenerate", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var got domain.IndexedDay
	json.Unmarshal(body, &got)
	if got.Day.RouteGeoJSON == nil || got.Day.RouteGeoJSON.Type() != domain.LineString {
		t.Fatalf("expected a LineString route, got %+v", got.Day.RouteGeoJSON)
	}
	if got.Day.DistanceKm == nil || *got.Day.DistanceKm <= 0 {
		t.Errorf("expected a positive distance")
	}
}

func TestUploadGPX(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, _ := do(t, app, "PUT", "/v1/days/1/route/gpx", sampleGPX)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var got domain.IndexedDay
	json.Unmarshal(body, &got)
	if got.Day.RouteGeoJSON.NumCoords() != 3 {
		t.Errorf("expected 3 coordinates, got %d", got.Day.RouteGeoJSON.NumCoords())
	}
	if got.Day.DistanceKm == nil || *got.Day.DistanceKm == 12.5 {
		t.Errorf("expected distance recomputed from the track")
	}

	if status, _, _ := do(t, app, "PUT", "/v1/days/1/route/gpx", "<gpx"); status != 422 {
		t.Errorf("expected 422 for broken GPX, got %d", status)
	}
}

func TestUploadPolyline(t *testing.T) {
	app := setupApp(loadedDeps(t))

	// two segments, one encoded line each
	status, body, _ := do(t, app, "PUT", "/v1/days/1/route/polyline", "_p~iF~ps|U_ulLnnqC_mqNvxq`@\n_ibE_seK_seK_seK\n")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var got domain.IndexedDay
	json.Unmarshal(body, &got)
	if got.Day.RouteGeoJSON.Type() != domain.MultiLineString || got.Day.RouteGeoJSON.NumCoords() != 5 {
		t.Errorf("expected a 2-segment route with 5 coordinates, got %s with %d", got.Day.RouteGeoJSON.Type(), got.Day.RouteGeoJSON.NumCoords())
	}
	if got.Day.DistanceKm == nil || *got.Day.DistanceKm == 12.5 {
		t.Errorf("expected distance recomputed from the polyline")
	}

	if status, _, _ := do(t, app, "PUT", "/v1/days/1/route/polyline", ""); status != 422 {
		t.Errorf("expected 422 for an empty body, got %d", status)
	}
	if status, _, _ := do(t, app, "PUT", "/v1/days/5/route/polyline", "_ibE_seK_seK_seK"); status != 404 {
		t.Errorf("expected 404 for a missing day, got %d", status)
	}
}

// ---- Routes ----

func TestDayRoute_Formats(t *testing.T) {
	app := setupApp(loadedDeps(t))
	do(t, app, "POST", "/v1/days/0/route/regenerate", "")

	cases := []struct {
		query       string
		contentType string
		contains    string
	}{
		{"", "application/geo+json", `"LineString"`},
		{"?format=gpx&crs=gcj02", "application/gpx+xml", "<trkpt"},
		{"?format=kml", "application/vnd.google-earth.kml+xml", "<LineString>"},
		{"?format=polyline&crs=bd09", "text/plain", ""},
	}
	for _, tc := range cases {
		status, body, hdr := do(t, app, "GET", "/v1/days/0/route"+tc.query, "")
		if status != 200 {
			t.Errorf("%s: expected 200, got %d: %s", tc.query, status, body)
			continue
		}
		if ct := hdr.Header().Get("Content-Type"); !strings.HasPrefix(ct, tc.contentType) {
			t.Errorf("%s: expected %s, got %s", tc.query, tc.contentType, ct)
		}
		if !strings.Contains(string(body), tc.contains) || len(body) == 0 {
			t.Errorf("%s: unexpected body %s", tc.query, body)
		}
	}

	if status, _, _ := do(t, app, "GET", "/v1/days/0/route?format=shp", ""); status != 400 {
		t.Errorf("expected 400 for unknown format, got %d", status)
	}
	if status, _, _ := do(t, app, "GET", "/v1/days/0/route?crs=utm", ""); status != 400 {
		t.Errorf("expected 400 for unknown crs, got %d", status)
	}
	if status, _, _ := do(t, app, "GET", "/v1/days/5/route", ""); status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestTripRoute_Download(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, _, hdr := do(t, app, "GET", "/v1/trip/route?format=gpx&download=1", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if cd := hdr.Header().Get("Content-Disposition"); !strings.Contains(cd, "route-all-wgs84.gpx") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	if hdr.Header().Get("X-Trip-Revision") == "" {
		t.Errorf("expected revision header")
	}
}

// ---- Transform ----

func TestTransform(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "POST", "/v1/transform",
		`{"to": "gcj02", "points": [{"name": "天安门", "lat": 39.9087, "lon": 116.3975}],
		  "route": {"type": "LineString", "coordinates": [[116.39, 39.90], [116.40, 39.91]]}}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var out handler.TransformResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.CRS != domain.GCJ02 || len(out.Points) != 1 {
		t.Fatalf("unexpected response %+v", out)
	}
	if out.Points[0].Name != "天安门" || out.Points[0].Lon == 116.3975 {
		t.Errorf("expected a shifted, named point, got %+v", out.Points[0])
	}
	if out.Route == nil || out.Route.NumCoords() != 2 {
		t.Errorf("expected the route projected too")
	}

	status, _, _ = do(t, app, "POST", "/v1/transform", `{"to": "bd09", "points": [{"lat": 91, "lon": 0}]}`)
	if status != 422 {
		t.Errorf("expected 422 for invalid coordinate, got %d", status)
	}
	status, _, _ = do(t, app, "POST", "/v1/transform", `{"to": "mars", "points": []}`)
	if status != 400 {
		t.Errorf("expected 400 for unknown frame, got %d", status)
	}
}

// ---- Map scenes ----

func TestMapScene(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, _ := do(t, app, "GET", "/v1/map/osm?day=0&container=trip-map", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var scene struct {
		Provider struct {
			Type string `json:"type"`
			CRS  string `json:"crs"`
		} `json:"provider"`
		Container string `json:"container"`
		View      *struct {
			Zoom int `json:"zoom"`
		} `json:"view"`
		Points *struct {
			Features []json.RawMessage `json:"features"`
		} `json:"points"`
	}
	if err := json.Unmarshal(body, &scene); err != nil {
		t.Fatal(err)
	}
	if scene.Provider.Type != "osm" || scene.Provider.CRS != "WGS84" || scene.Container != "trip-map" {
		t.Errorf("unexpected provider %+v", scene)
	}
	if scene.View == nil || scene.Points == nil || len(scene.Points.Features) != 2 {
		t.Errorf("expected a view and two markers, got %s", body)
	}

	status, body, _ = do(t, app, "GET", "/v1/map", "")
	if status != 200 || !strings.Contains(string(body), `"amap"`) {
		t.Errorf("expected default provider scene, got %d %s", status, body)
	}
	if status, _, _ := do(t, app, "GET", "/v1/map/bing", ""); status != 400 {
		t.Errorf("expected 400 for unknown provider, got %d", status)
	}
	if status, _, _ := do(t, app, "GET", "/v1/map/baidu?day=8", ""); status != 404 {
		t.Errorf("expected 404 for unknown day, got %d", status)
	}
}

// ---- Snapshots ----

func TestSnapshots_Disabled(t *testing.T) {
	app := setupApp(loadedDeps(t))
	status, body, _ := do(t, app, "POST", "/v1/trip/snapshots", "")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
	if code := errorCode(t, body); code != "unavailable" {
		t.Errorf("expected unavailable, got %s", code)
	}
}

func TestSnapshots_SaveListRestore(t *testing.T) {
	app := setupApp(loadedDeps(t, usecases.WithSnapshots(newMockSnapshotRepo())))

	status, body, _ := do(t, app, "POST", "/v1/trip/snapshots", "")
	if status != 201 {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var snap domain.Snapshot
	json.Unmarshal(body, &snap)
	if snap.ID == "" || snap.Days != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	_, body, _ = do(t, app, "GET", "/v1/trip/snapshots", "")
	var list []domain.Snapshot
	json.Unmarshal(body, &list)
	if len(list) != 1 || list[0].ID != snap.ID {
		t.Errorf("unexpected list %s", body)
	}

	do(t, app, "DELETE", "/v1/trip", "")
	status, body, _ = do(t, app, "POST", "/v1/trip/snapshots/"+snap.ID+"/restore", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var summary handler.TripSummary
	json.Unmarshal(body, &summary)
	if summary.Days != 2 {
		t.Errorf("expected restored trip with 2 days, got %+v", summary)
	}

	if status, _, _ := do(t, app, "POST", "/v1/trip/snapshots/nope/restore", ""); status != 404 {
		t.Errorf("expected 404 for unknown snapshot, got %d", status)
	}
}

func TestSnapshots_RestoreMalformedIDNeverReachesStore(t *testing.T) {
	repo := newMockSnapshotRepo()
	app := setupApp(loadedDeps(t, usecases.WithSnapshots(repo)))

	status, body, _ := do(t, app, "POST", "/v1/trip/snapshots/not-a-uuid/restore", "")
	if status != 404 {
		t.Fatalf("expected 404, got %d: %s", status, body)
	}
	if code := errorCode(t, body); code != "not_found" {
		t.Errorf("expected not_found, got %s", code)
	}
	if len(repo.gets) != 0 {
		t.Errorf("malformed id must not be looked up, got %v", repo.gets)
	}

	_, body, _ = do(t, app, "GET", "/v1/trip", "")
	var doc domain.TripData
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Days) != 2 {
		t.Errorf("document must be untouched, got %d days", len(doc.Days))
	}
}

// ---- GraphQL ----

func TestGraphQL_DayExtras(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, _ := do(t, app, "POST", "/graphql", `{"query": "{ day(index: 0) { day video clue } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result struct {
		Data struct {
			Day struct {
				Day   *int    `json:"day"`
				Video *string `json:"video"`
				Clue  *string `json:"clue"`
			} `json:"day"`
		} `json:"data"`
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %s", body)
	}
	if v := result.Data.Day.Video; v == nil || *v != "BV1xx" {
		t.Errorf("expected video from the day's extras, got %v", v)
	}
	if result.Data.Day.Clue != nil {
		t.Errorf("expected null clue, got %q", *result.Data.Day.Clue)
	}
	if d := result.Data.Day.Day; d == nil || *d != 1 {
		t.Errorf("expected day 1, got %v", d)
	}
}

func TestGraphQL_TripAndMutation(t *testing.T) {
	app := setupApp(loadedDeps(t))

	status, body, _ := do(t, app, "POST", "/graphql",
		`{"query": "{ trip { title days { index day distanceKm } } stats { total_km total_days } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result struct {
		Data struct {
			Trip struct {
				Title string `json:"title"`
				Days  []struct {
					Index      int      `json:"index"`
					Day        int      `json:"day"`
					DistanceKm *float64 `json:"distanceKm"`
				} `json:"days"`
			} `json:"trip"`
			Stats struct {
				TotalKm   float64 `json:"total_km"`
				TotalDays int     `json:"total_days"`
			} `json:"stats"`
		} `json:"data"`
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %s", body)
	}
	if result.Data.Trip.Title != "北京周边" || len(result.Data.Trip.Days) != 2 {
		t.Errorf("unexpected trip %+v", result.Data.Trip)
	}
	if result.Data.Trip.Days[0].DistanceKm != nil {
		t.Errorf("expected null distance for day 1")
	}
	if result.Data.Stats.TotalDays != 2 {
		t.Errorf("unexpected stats %+v", result.Data.Stats)
	}

	_, body, _ = do(t, app, "POST", "/graphql",
		`{"query": "mutation { addDay(day: 3, date: \"2024-05-03\") { index day } }"}`)
	if !strings.Contains(string(body), `"index":2`) {
		t.Errorf("unexpected mutation result %s", body)
	}
}

func TestDocs(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, _ := do(t, app, "GET", "/docs", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), "swagger-ui") {
		t.Error("expected Swagger UI page")
	}

	// The package directory holds no api/openapi.yaml.
	status, body, _ = do(t, app, "GET", "/docs/openapi.yaml", "")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if code := errorCode(t, body); code != "not_found" {
		t.Errorf("expected not_found, got %s", code)
	}
}
