package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/wangshifu/cyclemap/internal/adapters/nats"
	"github.com/wangshifu/cyclemap/internal/adapters/postgres"
	"github.com/wangshifu/cyclemap/internal/pkg/config"
	"github.com/wangshifu/cyclemap/internal/pkg/logging"
	"github.com/wangshifu/cyclemap/internal/workflows"
)

const usage = `usage:
  importer worker                      run the trip import worker
  importer start [--recompute] <loc>   import a trip document from a URL or path`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load("cyclemap-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	switch os.Args[1] {
	case "worker":
		runWorker(cfg, c)
	case "start":
		startImport(cfg, c, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func runWorker(cfg *config.Config, c client.Client) {
	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	acts := &workflows.TripImportActivities{
		Snapshots:    postgres.NewSnapshotRepo(db),
		FetchTimeout: time.Duration(cfg.Trip.FetchTimeout) * time.Second,
	}
	// Without NATS the snapshot is still stored; API instances pick it up on
	// their next restore.
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, imports will not be announced", "error", err)
	} else {
		defer pub.Close()
		acts.Events = pub
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.TripImportWorkflow)
	w.RegisterActivity(acts)

	slog.Info("trip import worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func startImport(cfg *config.Config, c client.Client, args []string) {
	flags := pflag.NewFlagSet("start", pflag.ExitOnError)
	recompute := flags.Bool("recompute", false, "recompute every day's distance before storing")
	wait := flags.Bool("wait", true, "wait for the workflow result")
	_ = flags.Parse(args)
	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	location := flags.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "trip-import-" + uuid.NewString(),
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.TripImportWorkflow, workflows.TripImportInput{
		Location:  location,
		Recompute: *recompute,
	})
	if err != nil {
		log.Fatalf("start workflow: %v", err)
	}
	slog.Info("trip import started", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "location", location)
	if !*wait {
		return
	}

	var res workflows.TripImportResult
	if err := run.Get(ctx, &res); err != nil {
		log.Fatalf("trip import failed: %v", err)
	}
	slog.Info("trip imported",
		"snapshot", res.SnapshotID,
		"title", res.Title,
		"days", res.Days,
		"total_km", res.TotalKm,
	)
}
