package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wangshifu/cyclemap/internal/adapters/postgres"
	"github.com/wangshifu/cyclemap/internal/pkg/config"
	"github.com/wangshifu/cyclemap/internal/pkg/logging"
)

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down> [dir]")
	}
	dir := "migrations"
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	cfg, err := config.Load("cyclemap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text", cfg.Telemetry.ServiceName)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 1)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if _, err := db.Pool.Exec(ctx, ledgerDDL); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	var n int
	switch os.Args[1] {
	case "up":
		n, err = up(ctx, db, migrationFiles(dir, "up"))
	case "down":
		files := migrationFiles(dir, "down")
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
		n, err = down(ctx, db, files)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("migrations done", "direction", os.Args[1], "applied", n)
}

// migrationFiles lists NNN_name.<direction>.sql in name order.
func migrationFiles(dir, direction string) []string {
	files, err := filepath.Glob(filepath.Join(dir, "*."+direction+".sql"))
	if err != nil {
		log.Fatalf("glob %s: %v", dir, err)
	}
	if len(files) == 0 {
		log.Fatalf("no %s migrations in %s", direction, dir)
	}
	sort.Strings(files)
	return files
}

// migrationName strips the directory and the .up.sql / .down.sql suffix.
func migrationName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".up.sql")
	return strings.TrimSuffix(base, ".down.sql")
}

func up(ctx context.Context, db *postgres.DB, files []string) (int, error) {
	applied := 0
	for _, f := range files {
		name := migrationName(f)
		var exists bool
		if err := db.Pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name,
		).Scan(&exists); err != nil {
			return applied, err
		}
		if exists {
			slog.Debug("skip applied migration", "name", name)
			continue
		}
		if err := apply(ctx, db, f, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func down(ctx context.Context, db *postgres.DB, files []string) (int, error) {
	reverted := 0
	for _, f := range files {
		name := migrationName(f)
		var appliedAt string
		err := db.Pool.QueryRow(ctx,
			`SELECT applied_at::text FROM schema_migrations WHERE name = $1`, name,
		).Scan(&appliedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return reverted, err
		}
		if err := apply(ctx, db, f, `DELETE FROM schema_migrations WHERE name = $1`, name); err != nil {
			return reverted, err
		}
		reverted++
	}
	return reverted, nil
}

// apply runs one migration file and its ledger statement in a transaction.
func apply(ctx context.Context, db *postgres.DB, file, ledgerSQL, name string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, ledgerSQL, name); err != nil {
			return err
		}
		slog.Info("migration applied", "file", filepath.Base(file))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(file), err)
	}
	return nil
}
