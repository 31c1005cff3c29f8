package query

import (
	"context"

	"github.com/goliatone/go-chatexport/export"
	"github.com/goliatone/go-errors"
)

// RunStatusHandler returns a single run record.
type RunStatusHandler struct {
	Tracker export.RunTracker
}

func NewRunStatusHandler(tracker export.RunTracker) *RunStatusHandler {
	return &RunStatusHandler{Tracker: tracker}
}

func (h *RunStatusHandler) Query(ctx context.Context, msg RunStatus) (export.RunRecord, error) {
	if h == nil || h.Tracker == nil {
		return export.RunRecord{}, errors.New("run tracker is required", errors.CategoryInternal).
			WithTextCode("TRACKER_REQUIRED")
	}
	return h.Tracker.Status(ctx, msg.RunID)
}

// RunHistoryHandler returns run history.
type RunHistoryHandler struct {
	Tracker export.RunTracker
}

func NewRunHistoryHandler(tracker export.RunTracker) *RunHistoryHandler {
	return &RunHistoryHandler{Tracker: tracker}
}

func (h *RunHistoryHandler) Query(ctx context.Context, msg RunHistory) ([]export.RunRecord, error) {
	if h == nil || h.Tracker == nil {
		return nil, errors.New("run tracker is required", errors.CategoryInternal).
			WithTextCode("TRACKER_REQUIRED")
	}
	return h.Tracker.List(ctx, msg.Filter)
}

// BundleManifestHandler returns the decoded manifest of a written bundle.
type BundleManifestHandler struct {
	Load func(outputDir, baseName string) (export.Manifest, error)
}

func NewBundleManifestHandler() *BundleManifestHandler {
	return &BundleManifestHandler{Load: export.LoadManifest}
}

func (h *BundleManifestHandler) Query(ctx context.Context, msg BundleManifest) (export.Manifest, error) {
	if h == nil || h.Load == nil {
		return export.Manifest{}, errors.New("manifest loader is required", errors.CategoryInternal).
			WithTextCode("LOADER_REQUIRED")
	}
	if err := ctx.Err(); err != nil {
		return export.Manifest{}, err
	}
	return h.Load(msg.OutputDir, msg.BaseName)
}
