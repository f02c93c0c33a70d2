package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wangshifu/cyclemap/internal/core/domain"
)

// SnapshotRepo implements ports.SnapshotRepository on the trip_snapshots table.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO trip_snapshots (id, title, days, total_km, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, snap.ID, snap.Title, snap.Days, snap.TotalKm, snap.Document, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	s := &domain.Snapshot{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id::text, title, days, total_km, document, created_at
		FROM trip_snapshots WHERE id = $1
	`, id).Scan(&s.ID, &s.Title, &s.Days, &s.TotalKm, &s.Document, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Latest returns the newest snapshot, or nil when the table is empty.
func (r *SnapshotRepo) Latest(ctx context.Context) (*domain.Snapshot, error) {
	s := &domain.Snapshot{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id::text, title, days, total_km, document, created_at
		FROM trip_snapshots ORDER BY created_at DESC LIMIT 1
	`).Scan(&s.ID, &s.Title, &s.Days, &s.TotalKm, &s.Document, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns snapshot headers, newest first. Documents are not loaded.
func (r *SnapshotRepo) List(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id::text, title, days, total_km, created_at
		FROM trip_snapshots ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.Title, &s.Days, &s.TotalKm, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SnapshotRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM trip_snapshots WHERE id = $1`, id)
	return err
}
