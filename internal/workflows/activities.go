package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	"github.com/wangshifu/cyclemap/internal/adapters/source"
	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/ports"
)

// ErrTypeMalformed marks validation failures that retrying cannot fix.
const ErrTypeMalformed = "MalformedDocument"

// ImportedNotice is broadcast after a snapshot is stored by the import workflow.
type ImportedNotice struct {
	Type       string  `json:"type"` // always "snapshot_imported"
	SnapshotID string  `json:"snapshot_id"`
	Title      string  `json:"title"`
	Days       int     `json:"days"`
	TotalKm    float64 `json:"total_km"`
}

// NoticeSnapshotImported is the Type of an ImportedNotice.
const NoticeSnapshotImported = "snapshot_imported"

// ValidatedDocument is a parsed, re-serialised trip document.
type ValidatedDocument struct {
	Document []byte
	Title    string
	Days     int
	TotalKm  float64
}

// TripImportActivities holds the activity implementations for the import workflow.
type TripImportActivities struct {
	Snapshots ports.SnapshotRepository
	Events    ports.EventPublisher // optional
	// Open resolves a location to a source; source.New when nil.
	Open         func(location string, timeout time.Duration) ports.DocumentSource
	FetchTimeout time.Duration
	Now          func() time.Time
}

// FetchDocument reads the raw document at location.
func (a *TripImportActivities) FetchDocument(ctx context.Context, location string) ([]byte, error) {
	open := a.Open
	if open == nil {
		open = source.New
	}
	src := open(location, a.FetchTimeout)
	if src == nil {
		return nil, temporal.NewNonRetryableApplicationError("empty location", ErrTypeMalformed, nil)
	}
	raw, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.Name(), err)
	}
	return raw, nil
}

// ValidateDocument parses the document, optionally recomputes distances and
// serialises it again. A malformed document fails without retries.
func (a *TripImportActivities) ValidateDocument(ctx context.Context, raw []byte, recompute bool) (ValidatedDocument, error) {
	doc, err := domain.ImportTripData(raw)
	if err != nil {
		return ValidatedDocument{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeMalformed, err)
	}
	if recompute {
		doc = domain.RecomputeDistances(doc)
	}
	out, err := domain.ExportTripData(doc)
	if err != nil {
		return ValidatedDocument{}, err
	}
	return ValidatedDocument{
		Document: out,
		Title:    doc.Meta.Title,
		Days:     len(doc.Days),
		TotalKm:  domain.CalculateTotalDistance(doc.Days),
	}, nil
}

// SaveSnapshot stores the validated document and returns the snapshot ID.
func (a *TripImportActivities) SaveSnapshot(ctx context.Context, v ValidatedDocument) (string, error) {
	if a.Snapshots == nil {
		return "", temporal.NewNonRetryableApplicationError("snapshot storage not configured", "Unavailable", nil)
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	snap := &domain.Snapshot{
		ID:        uuid.NewString(),
		Title:     v.Title,
		Days:      v.Days,
		TotalKm:   v.TotalKm,
		Document:  v.Document,
		CreatedAt: now().UTC(),
	}
	if err := a.Snapshots.Save(ctx, snap); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return snap.ID, nil
}

// PublishImported broadcasts an ImportedNotice. Without a publisher it only logs.
func (a *TripImportActivities) PublishImported(ctx context.Context, r TripImportResult) error {
	notice := ImportedNotice{
		Type:       NoticeSnapshotImported,
		SnapshotID: r.SnapshotID,
		Title:      r.Title,
		Days:       r.Days,
		TotalKm:    r.TotalKm,
	}
	if a.Events == nil {
		slog.Info("snapshot imported (no publisher)", "snapshot", r.SnapshotID, "days", r.Days)
		return nil
	}
	data, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return a.Events.PublishBroadcast(ctx, data)
}

// DeleteSnapshot removes a snapshot (saga compensation / rollback).
func (a *TripImportActivities) DeleteSnapshot(ctx context.Context, id string) error {
	if a.Snapshots == nil {
		return nil
	}
	if err := a.Snapshots.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	slog.Info("snapshot deleted (saga compensation)", "snapshot", id)
	return nil
}

// DecodeNotice parses a broadcast payload; ok is false for other message types.
func DecodeNotice(data []byte) (ImportedNotice, bool) {
	var n ImportedNotice
	if err := json.Unmarshal(data, &n); err != nil || n.Type != NoticeSnapshotImported || n.SnapshotID == "" {
		return ImportedNotice{}, false
	}
	return n, true
}
