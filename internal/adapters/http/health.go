package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wangshifu/cyclemap/internal/adapters/valkey"
)

// Version is stamped at build time with -ldflags "-X ...http.Version=...".
var Version = "dev"

// HealthHandler is the liveness probe. It never touches a backend.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"uptime":   time.Since(startedAt).Round(time.Second).String(),
			"version":  Version,
			"revision": deps.Trips.Revision(),
		})
	}
}

var errDisconnected = errors.New("disconnected")

// probe is one readiness check; nil check means the backend is not configured.
type probe struct {
	name  string
	check func(ctx context.Context) error
}

func readinessProbes(deps *Dependencies) []probe {
	probes := []probe{{name: "database"}, {name: "nats"}, {name: "cache"}}
	if deps.DB != nil {
		probes[0].check = deps.DB.Ping
	}
	if deps.NATS != nil {
		probes[1].check = func(context.Context) error {
			if !deps.NATS.IsConnected() {
				return errDisconnected
			}
			return nil
		}
	}
	if deps.Cache != nil {
		probes[2].check = func(ctx context.Context) error {
			if err := deps.Cache.Ping(ctx); err != nil && !valkey.IsMiss(err) {
				return err
			}
			return nil
		}
	}
	return probes
}

// ReadyHandler reports 503 when any configured backend fails. Backends that
// are not configured are listed but never fail the probe.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		ready := true
		for _, p := range readinessProbes(deps) {
			if p.check == nil {
				checks[p.name] = "not configured"
				continue
			}
			if err := p.check(ctx); err != nil {
				checks[p.name] = "error: " + err.Error()
				ready = false
			} else {
				checks[p.name] = "ok"
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
				"checks": checks,
			})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": checks})
	}
}
