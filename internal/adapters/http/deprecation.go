package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecatedRoute marks an endpoint as deprecated with sunset date.
type DeprecatedRoute struct {
	Path        string    // route pattern, ":name" segments match anything
	SunsetDate  time.Time // date when the endpoint will be removed
	Alternative string    // recommended replacement (optional)
}

// DeprecationMiddleware adds Deprecation, Sunset, and Link headers to deprecated endpoints.
func DeprecationMiddleware(deprecated []DeprecatedRoute) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, d := range deprecated {
			if !matchPattern(c.Path(), d.Path) {
				continue
			}
			// RFC 8594
			c.Set("Deprecation", "true")
			c.Set("Sunset", d.SunsetDate.UTC().Format(time.RFC1123))
			if d.Alternative != "" {
				c.Set("Link", fmt.Sprintf(`<%s>; rel="successor-version"`, d.Alternative))
			}
			days := time.Until(d.SunsetDate).Hours() / 24
			c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))
			break
		}

		return c.Next()
	}
}

// matchPattern compares path segments; a ":param" pattern segment matches any
// single non-empty segment ("/v1/days/:index" matches "/v1/days/3").
func matchPattern(path, pattern string) bool {
	if path == pattern {
		return true
	}
	ps := strings.Split(strings.Trim(path, "/"), "/")
	pp := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(ps) != len(pp) {
		return false
	}
	for i := range pp {
		if strings.HasPrefix(pp[i], ":") {
			if ps[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != pp[i] {
			return false
		}
	}
	return true
}
