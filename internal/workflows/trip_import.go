package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Activity names, registered by TripImportActivities' method names.
const (
	ActivityFetchDocument    = "FetchDocument"
	ActivityValidateDocument = "ValidateDocument"
	ActivitySaveSnapshot     = "SaveSnapshot"
	ActivityPublishImported  = "PublishImported"
	ActivityDeleteSnapshot   = "DeleteSnapshot"
)

// TripImportInput is the input for TripImportWorkflow.
type TripImportInput struct {
	Location  string // http(s) URL or file path
	Recompute bool   // refresh every day's distance before storing
}

// TripImportResult describes the stored snapshot.
type TripImportResult struct {
	SnapshotID string
	Title      string
	Days       int
	TotalKm    float64
}

// TripImportWorkflow fetches a trip document, validates it, stores it as a
// snapshot and announces it so running API instances can restore it. If the
// announcement fails, the snapshot is deleted again (saga compensation).
func TripImportWorkflow(ctx workflow.Context, input TripImportInput) (*TripImportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting trip import workflow", "location", input.Location)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeMalformed},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Fetch
	var raw []byte
	if err := workflow.ExecuteActivity(ctx, ActivityFetchDocument, input.Location).Get(ctx, &raw); err != nil {
		return nil, err
	}

	// Step 2: Validate and normalise
	var validated ValidatedDocument
	if err := workflow.ExecuteActivity(ctx, ActivityValidateDocument, raw, input.Recompute).Get(ctx, &validated); err != nil {
		return nil, err
	}

	// Step 3: Store
	var snapshotID string
	if err := workflow.ExecuteActivity(ctx, ActivitySaveSnapshot, validated).Get(ctx, &snapshotID); err != nil {
		return nil, err
	}

	result := &TripImportResult{
		SnapshotID: snapshotID,
		Title:      validated.Title,
		Days:       validated.Days,
		TotalKm:    validated.TotalKm,
	}

	// Step 4: Announce
	if err := workflow.ExecuteActivity(ctx, ActivityPublishImported, *result).Get(ctx, nil); err != nil {
		logger.Warn("announcement failed, compensating", "snapshot", snapshotID, "error", err)
		_ = workflow.ExecuteActivity(ctx, ActivityDeleteSnapshot, snapshotID).Get(ctx, nil)
		return nil, err
	}

	logger.Info("Trip imported", "snapshot", snapshotID, "days", validated.Days)
	return result, nil
}
