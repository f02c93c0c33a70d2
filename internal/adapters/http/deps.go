package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/wangshifu/cyclemap/internal/core/usecases"
)

// Pinger is anything readiness can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Trips       *usecases.TripService
	Routes      *usecases.RouteService
	Maps        *usecases.MapService
	NATS        *nats.Conn
	DB          Pinger
	Cache       Pinger
	MapProvider string // default for /v1/map when the path omits one
}
