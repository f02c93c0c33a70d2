package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wangshifu/cyclemap/internal/adapters/mapview"
	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/usecases"
	"github.com/wangshifu/cyclemap/internal/pkg/routefmt"
)

// TripSummary is returned by every endpoint that replaces the document.
type TripSummary struct {
	Revision uint64  `json:"revision"`
	Title    string  `json:"title"`
	Days     int     `json:"days"`
	TotalKm  float64 `json:"total_km"`
}

func summarize(doc domain.TripData, rev uint64) TripSummary {
	return TripSummary{
		Revision: rev,
		Title:    doc.Meta.Title,
		Days:     len(doc.Days),
		TotalKm:  domain.CalculateTotalDistance(doc.Days),
	}
}

// DownloadFilename is the attachment name used for exported documents.
func DownloadFilename(now time.Time) string {
	return "trip-data-" + now.Format("2006-01-02") + ".json"
}

// errFromDecode reports a body that is not JSON as a bad request, and one that
// is JSON but carries unusable geometry as unprocessable.
func errFromDecode(c *fiber.Ctx, what string, err error) error {
	if errors.Is(err, domain.ErrUnsupportedGeometry) || errors.Is(err, domain.ErrInvalidCoordinate) {
		return errFromDomain(c, err)
	}
	return errBadRequest(c, "invalid "+what+": "+err.Error())
}

func dayIndex(c *fiber.Ctx) (int, error) {
	idx, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return 0, fmt.Errorf("invalid day index %q", c.Params("index"))
	}
	return idx, nil
}

// ---- Trip document ----

// GetTripHandler exports the current document. With ?download=true the
// response is served as an attachment.
func GetTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := deps.Trips.Export(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		if c.QueryBool("download") {
			c.Attachment(DownloadFilename(time.Now()))
		}
		c.Set("X-Trip-Revision", strconv.FormatUint(deps.Trips.Revision(), 10))
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(raw)
	}
}

// ImportTripHandler replaces the document with the request body. A malformed
// body leaves the current document in place.
func ImportTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(c.Body()) == 0 {
			return errBadRequest(c, "request body is empty")
		}
		doc, err := deps.Trips.Import(c.UserContext(), c.Body(), c.QueryBool("recompute"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summarize(doc, deps.Trips.Revision()))
	}
}

// ResetTripHandler clears the document.
func ResetTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc := deps.Trips.Reset(c.UserContext())
		return c.JSON(summarize(doc, deps.Trips.Revision()))
	}
}

// ReloadTripHandler fetches the configured source again. "applied" is false
// when a newer change overtook the fetch.
func ReloadTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		applied, err := deps.Trips.Reload(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		doc, rev := deps.Trips.Versioned(c.UserContext())
		return c.JSON(fiber.Map{
			"applied": applied,
			"trip":    summarize(doc, rev),
		})
	}
}

// TripStatsHandler returns the mileage summary.
func TripStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Trips.Stats(c.UserContext()))
	}
}

// TripBoundsHandler returns the map view framing every point. A trip without
// points has no bounds.
func TripBoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view := deps.Trips.Bounds(c.UserContext())
		if view == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(view)
	}
}

// ---- Snapshots ----

// SaveSnapshotHandler stores the current document.
func SaveSnapshotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Trips.Save(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(snap)
	}
}

// ListSnapshotsHandler lists stored snapshots newest first.
func ListSnapshotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snaps, err := deps.Trips.Snapshots(c.UserContext(), c.QueryInt("limit", 20))
		if err != nil {
			return errFromDomain(c, err)
		}
		if snaps == nil {
			snaps = []domain.Snapshot{}
		}
		return c.JSON(snaps)
	}
}

// RestoreSnapshotHandler replaces the document with a stored snapshot.
func RestoreSnapshotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := deps.Trips.Restore(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summarize(doc, deps.Trips.Revision()))
	}
}

// ---- Days ----

// ListDaysHandler returns the days newest first, each with its document index.
func ListDaysHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := deps.Trips.SortedDays(c.UserContext())
		pg := parsePagination(c, 50, 200, len(days))
		start, end := pg.window()

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: days[start:end], Pagination: pg})
	}
}

// AddDayHandler appends a day record. Points must be valid coordinates.
func AddDayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var day domain.DayRecord
		if err := json.Unmarshal(c.Body(), &day); err != nil {
			return errFromDecode(c, "day record", err)
		}
		doc, err := deps.Trips.AddDay(c.UserContext(), day)
		if err != nil {
			return errFromDomain(c, err)
		}
		last := len(doc.Days) - 1
		return c.Status(fiber.StatusCreated).JSON(domain.IndexedDay{Index: last, Day: doc.Days[last]})
	}
}

// GetDayHandler returns one day by document index.
func GetDayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := dayIndex(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		day, err := deps.Trips.Day(c.UserContext(), idx)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(domain.IndexedDay{Index: idx, Day: day})
	}
}

// PatchDayHandler applies a partial update. Members absent from the body are
// left alone; "routeGeoJSON": null clears the stored route.
func PatchDayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := dayIndex(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		var patch domain.DayPatch
		if err := json.Unmarshal(c.Body(), &patch); err != nil {
			return errFromDecode(c, "patch", err)
		}
		if !patch.Touched() {
			return errBadRequest(c, "patch changes nothing")
		}
		doc, err := deps.Trips.UpdateDay(c.UserContext(), idx, patch)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(domain.IndexedDay{Index: idx, Day: doc.Days[idx]})
	}
}

// DeleteDayHandler removes a day; later days shift down by one.
func DeleteDayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := dayIndex(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		doc, err := deps.Trips.DeleteDay(c.UserContext(), idx)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summarize(doc, deps.Trips.Revision()))
	}
}

// RegenerateRouteHandler replaces a day's route with a line through its points.
func RegenerateRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := dayIndex(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		doc, err := deps.Trips.RegenerateRoute(c.UserContext(), idx)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(domain.IndexedDay{Index: idx, Day: doc.Days[idx]})
	}
}

// UploadGPXHandler stores the tracks of an uploaded GPX file as a day's route.
func UploadGPXHandler(deps *Dependencies) fiber.Handler {
	return uploadRoute(deps, routefmt.DecodeGPX)
}

// UploadPolylineHandler replaces a day's route with encoded polylines, one
// line per segment.
func UploadPolylineHandler(deps *Dependencies) fiber.Handler {
	return uploadRoute(deps, routefmt.DecodePolyline)
}

func uploadRoute(deps *Dependencies, decode func([]byte) (*domain.Route, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := dayIndex(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		route, err := decode(c.Body())
		if err != nil {
			return errFromDomain(c, err)
		}
		doc, err := deps.Trips.SetDayRoute(c.UserContext(), idx, route)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(domain.IndexedDay{Index: idx, Day: doc.Days[idx]})
	}
}

// ---- Routes ----

// TripRouteHandler encodes the merged route of every day.
func TripRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return sendRoute(c, deps, usecases.AllDays)
	}
}

// DayRouteHandler encodes one day's route.
func DayRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := dayIndex(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return sendRoute(c, deps, idx)
	}
}

func sendRoute(c *fiber.Ctx, deps *Dependencies, idx int) error {
	crs, err := domain.ParseCRS(c.Query("crs"))
	if err != nil {
		return errBadRequest(c, err.Error())
	}
	format, err := routefmt.ParseFormat(c.Query("format"))
	if err != nil {
		return errBadRequest(c, err.Error())
	}
	out, err := deps.Routes.Route(c.UserContext(), idx, crs, format)
	if err != nil {
		return errFromDomain(c, err)
	}
	if c.QueryBool("download") {
		c.Attachment(out.Filename)
	}
	c.Set("X-Trip-Revision", strconv.FormatUint(out.Revision, 10))
	c.Set(fiber.HeaderContentType, out.Format.ContentType())
	return c.Send(out.Body)
}

// ---- Coordinate transform ----

// TransformRequest carries WGS-84 input for POST /v1/transform.
type TransformRequest struct {
	To     string         `json:"to"`
	Points []domain.Point `json:"points"`
	Route  *domain.Route  `json:"route,omitempty"`
}

// TransformResponse is the projected geometry.
type TransformResponse struct {
	CRS    domain.CRS     `json:"crs"`
	Points []domain.Point `json:"points"`
	Route  *domain.Route  `json:"route,omitempty"`
}

// TransformHandler projects WGS-84 points and an optional route into another
// frame. Any invalid coordinate fails the whole request.
func TransformHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req TransformRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errFromDecode(c, "request body", err)
		}
		crs, err := domain.ParseCRS(req.To)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		points, err := domain.TransformPoints(req.Points, crs)
		if err != nil {
			return errFromDomain(c, err)
		}
		route, err := domain.TransformRoute(req.Route, crs)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(TransformResponse{CRS: crs, Points: points, Route: route})
	}
}

// ---- Map scenes ----

// MapSceneHandler renders the trip, or one day with ?day=N, onto a provider
// adapter and returns the resulting scene in the provider's coordinate frame.
func MapSceneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provider := c.Params("provider", deps.MapProvider)
		adapter, err := mapview.New(mapview.MapType(provider))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		defer adapter.Destroy()

		idx := usecases.AllDays
		if v := c.Query("day"); v != "" && v != "all" {
			if idx, err = strconv.Atoi(v); err != nil {
				return errBadRequest(c, "invalid day "+strconv.Quote(v))
			}
		}

		if err := deps.Maps.Render(c.UserContext(), adapter, c.Query("container", "map"), idx); err != nil {
			return errFromDomain(c, err)
		}
		scene, err := adapter.Scene()
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(scene)
	}
}
