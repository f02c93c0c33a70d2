package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/wangshifu/cyclemap/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes. The WebSocket
// relay is only mounted when NATS is configured.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Deprecated aliases
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/export", SunsetDate: exportSunset, Alternative: "/v1/trip"},
	}))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/trip", withTimeout(GetTripHandler(deps)))
	v1.Put("/trip", withTimeout(ImportTripHandler(deps)))
	v1.Delete("/trip", withTimeout(ResetTripHandler(deps)))
	v1.Get("/export", withTimeout(GetTripHandler(deps)))
	v1.Post("/trip/reload", withTimeout(ReloadTripHandler(deps)))
	v1.Get("/trip/stats", withTimeout(TripStatsHandler(deps)))
	v1.Get("/trip/bounds", withTimeout(TripBoundsHandler(deps)))
	v1.Get("/trip/route", withTimeout(TripRouteHandler(deps)))

	// Snapshots
	v1.Post("/trip/snapshots", withTimeout(SaveSnapshotHandler(deps)))
	v1.Get("/trip/snapshots", withTimeout(ListSnapshotsHandler(deps)))
	v1.Post("/trip/snapshots/:id/restore", withTimeout(RestoreSnapshotHandler(deps)))

	// Days
	v1.Get("/days", withTimeout(ListDaysHandler(deps)))
	v1.Post("/days", withTimeout(AddDayHandler(deps)))
	v1.Get("/days/:index", withTimeout(GetDayHandler(deps)))
	v1.Patch("/days/:index", withTimeout(PatchDayHandler(deps)))
	v1.Delete("/days/:index", withTimeout(DeleteDayHandler(deps)))
	v1.Get("/days/:index/route", withTimeout(DayRouteHandler(deps)))
	v1.Post("/days/:index/route/regenerate", withTimeout(RegenerateRouteHandler(deps)))
	v1.Put("/days/:index/route/gpx", withTimeout(UploadGPXHandler(deps)))
	v1.Put("/days/:index/route/polyline", withTimeout(UploadPolylineHandler(deps)))

	// Geometry
	v1.Post("/transform", withTimeout(TransformHandler()))
	v1.Get("/map/:provider?", withTimeout(MapSceneHandler(deps)))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket relay of trip events
	if deps.NATS == nil {
		return
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}

// exportSunset is when GET /v1/export stops being served.
var exportSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

const requestTimeout = 15 * time.Second

func withTimeout(h fiber.Handler) fiber.Handler {
	return timeout.NewWithContext(h, requestTimeout)
}
