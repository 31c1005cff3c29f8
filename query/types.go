package query

import (
	"github.com/goliatone/go-chatexport/export"
	"github.com/goliatone/go-errors"
)

// RunStatus requests a single run record.
type RunStatus struct {
	RunID string
}

func (RunStatus) Type() string { return "chatexport:status" }

func (msg RunStatus) Validate() error {
	if msg.RunID == "" {
		return errors.New("run ID is required", errors.CategoryValidation).
			WithTextCode("RUN_ID_REQUIRED")
	}
	return nil
}

// RunHistory requests run history.
type RunHistory struct {
	Filter export.RunFilter
}

func (RunHistory) Type() string { return "chatexport:history" }

func (RunHistory) Validate() error { return nil }

// BundleManifest requests the decoded manifest of a written bundle.
type BundleManifest struct {
	OutputDir string
	BaseName  string
}

func (BundleManifest) Type() string { return "chatexport:manifest" }

func (msg BundleManifest) Validate() error {
	if msg.BaseName == "" {
		return errors.New("base name is required", errors.CategoryValidation).
			WithTextCode("BASE_NAME_REQUIRED")
	}
	return nil
}
