package ports

import (
	"context"

	"github.com/wangshifu/cyclemap/internal/core/domain"
)

// SnapshotRepository persists trip document snapshots.
type SnapshotRepository interface {
	Save(ctx context.Context, snap *domain.Snapshot) error
	Get(ctx context.Context, id string) (*domain.Snapshot, error)
	Latest(ctx context.Context) (*domain.Snapshot, error)
	List(ctx context.Context, limit int) ([]domain.Snapshot, error)
	Delete(ctx context.Context, id string) error
}
