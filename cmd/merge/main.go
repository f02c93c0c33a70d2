package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	natsadapter "github.com/wangshifu/cyclemap/internal/adapters/nats"
	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/merge"
	"github.com/wangshifu/cyclemap/internal/pkg/config"
	"github.com/wangshifu/cyclemap/internal/pkg/logging"
)

func main() {
	flags := pflag.NewFlagSet("merge", pflag.ExitOnError)
	dayDir := flags.String("everyday", "public/everyday", "directory of per-day JSON records")
	clueDir := flags.String("clues", "public/everyday-clue", "directory of <day>.txt clue files (empty disables)")
	output := flags.StringP("out", "o", "public/everyday-merged.json", "merged document path, - for stdout")
	title := flags.String("title", merge.DefaultTitle, "meta.title")
	author := flags.String("author", merge.DefaultAuthor, "meta.author")
	description := flags.String("description", merge.DefaultDescription, "meta.description")
	recompute := flags.Bool("recompute", false, "recompute distanceKm from each day's geometry")
	concurrency := flags.IntP("concurrency", "j", 4, "files parsed in parallel")
	publish := flags.Bool("publish", false, "also push every merged day to the ingest subject")
	// Bound into the shared config so env vars and config.yaml still apply.
	flags.String("log.level", "info", "log level")
	flags.String("nats.url", "nats://localhost:4222", "NATS server for --publish")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadWithFlags("cyclemap-merge", flags)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.SetupWriter(os.Stderr, cfg.Log.Level, "text", cfg.Telemetry.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := merge.Run(ctx, merge.Options{
		DayDir:      *dayDir,
		ClueDir:     *clueDir,
		Title:       *title,
		Author:      *author,
		Description: *description,
		Recompute:   *recompute,
		Concurrency: *concurrency,
	})
	if err != nil {
		log.Fatalf("merge: %v", err)
	}
	slog.Info("merged day records",
		"days", len(res.Trip.Days),
		"skipped", len(res.Skipped),
		"clues", res.Clues,
	)

	if *output == "-" {
		if err := writeStdout(res); err != nil {
			log.Fatalf("write: %v", err)
		}
	} else {
		if err := merge.WriteFile(*output, res.Trip); err != nil {
			log.Fatalf("write: %v", err)
		}
		slog.Info("wrote merged document", "path", *output)
	}

	if !*publish {
		return
	}
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	for i := range res.Trip.Days {
		if err := pub.PublishDay(ctx, &res.Trip.Days[i]); err != nil {
			slog.Error("publish day failed", "file", res.Files[i], "error", err)
		}
	}
	slog.Info("published day records", "subject", natsadapter.SubjectIngestDay, "days", len(res.Trip.Days))
}

func writeStdout(res *merge.Result) error {
	data, err := domain.ExportTripData(res.Trip)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
