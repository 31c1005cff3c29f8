package command

import (
	"github.com/goliatone/go-chatexport/export"
	"github.com/goliatone/go-errors"
)

// RunExport executes one export pass over a chat snapshot.
type RunExport struct {
	Request export.ExportRequest
	Result  *export.ExportResult
}

func (RunExport) Type() string { return "chatexport:run" }

func (msg RunExport) Validate() error {
	if msg.Request.Source == nil && msg.Request.Snapshot == nil {
		return errors.New("chat source is required", errors.CategoryValidation).
			WithTextCode("SOURCE_REQUIRED")
	}
	return nil
}

// VerifyBundle re-checks a written bundle against its manifest.
type VerifyBundle struct {
	OutputDir string
	BaseName  string
	Result    *export.VerifyReport
}

func (VerifyBundle) Type() string { return "chatexport:verify" }

func (msg VerifyBundle) Validate() error {
	if msg.BaseName == "" {
		return errors.New("base name is required", errors.CategoryValidation).
			WithTextCode("BASE_NAME_REQUIRED")
	}
	return nil
}
