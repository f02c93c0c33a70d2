package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/wangshifu/cyclemap/internal/adapters/http"
	natsadapter "github.com/wangshifu/cyclemap/internal/adapters/nats"
	"github.com/wangshifu/cyclemap/internal/adapters/postgres"
	"github.com/wangshifu/cyclemap/internal/adapters/source"
	"github.com/wangshifu/cyclemap/internal/adapters/valkey"
	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/ports"
	"github.com/wangshifu/cyclemap/internal/core/usecases"
	"github.com/wangshifu/cyclemap/internal/pkg/config"
	"github.com/wangshifu/cyclemap/internal/pkg/logging"
	"github.com/wangshifu/cyclemap/internal/pkg/metrics"
	"github.com/wangshifu/cyclemap/internal/pkg/telemetry"
	"github.com/wangshifu/cyclemap/internal/workflows"
)

func main() {
	cfg, err := config.Load("cyclemap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	var (
		opts  []usecases.TripServiceOption
		deps  = &http.Dependencies{MapProvider: strings.ToLower(cfg.Trip.MapProvider)}
		cache ports.CacheService
	)

	fetchTimeout := time.Duration(cfg.Trip.FetchTimeout) * time.Second
	if src := source.New(cfg.Trip.DefaultSource, fetchTimeout); src != nil {
		slog.Info("default trip source", "source", src.Name())
		opts = append(opts, usecases.WithDefaultSource(src))
	}

	// Database (snapshots)
	var db *postgres.DB
	if cfg.Database.Enabled {
		db, err = postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		deps.DB = db
		opts = append(opts, usecases.WithSnapshots(postgres.NewSnapshotRepo(db)))
		go reportPoolStats(ctx, db)
	}

	// Cache
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		deps.Cache = vc
		cache = vc
	}

	// NATS
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		opts = append(opts, usecases.WithEvents(pub))
	}

	// Raw NATS connection for WebSocket relay and import notices
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	// Use cases
	trips := usecases.NewTripService(opts...)
	deps.Trips = trips
	deps.Routes = usecases.NewRouteService(trips, cache, cfg.Trip.CacheTTL)
	deps.Maps = usecases.NewMapService(trips)

	if db != nil && cfg.Trip.RestoreOnStart {
		restored, err := trips.RestoreLatest(ctx)
		switch {
		case err != nil:
			slog.Warn("restore latest snapshot failed", "error", err)
		case restored:
			slog.Info("restored latest snapshot", "revision", trips.Revision())
		}
	}

	// Day records pushed by cmd/merge or other producers
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("day ingest disabled", "error", err)
	} else {
		defer sub.Close()
		err := sub.SubscribeDayRecords(ctx, func(ctx context.Context, day *domain.DayRecord) error {
			if _, err := trips.AddDay(ctx, *day); err != nil {
				metrics.DaysIngested.WithLabelValues("error").Inc()
				return err
			}
			metrics.DaysIngested.WithLabelValues("ok").Inc()
			return nil
		})
		if err != nil {
			slog.Warn("subscribe day records failed", "error", err)
		}
	}

	// Snapshots stored by the import workflow
	if natsConn != nil && db != nil {
		if _, err := natsConn.Subscribe(natsadapter.SubjectBroadcast, restoreOnNotice(ctx, trips)); err != nil {
			slog.Warn("subscribe import notices failed", "error", err)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		AppName:      "cyclemap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, Link, Content-Disposition, X-Trip-Revision",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// reportPoolStats copies pool counters into the metrics gauges until ctx ends.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.UpdateDBPoolMetrics(db.Stat())
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// restoreOnNotice loads snapshots announced by the import workflow.
func restoreOnNotice(ctx context.Context, trips *usecases.TripService) nats.MsgHandler {
	return func(msg *nats.Msg) {
		notice, ok := workflows.DecodeNotice(msg.Data)
		if !ok {
			return
		}
		if _, err := trips.Restore(ctx, notice.SnapshotID); err != nil {
			slog.Warn("restore imported snapshot failed", "snapshot", notice.SnapshotID, "error", err)
			return
		}
		slog.Info("restored imported snapshot", "snapshot", notice.SnapshotID, "days", notice.Days)
	}
}
