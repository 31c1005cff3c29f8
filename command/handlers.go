package command

import (
	"context"

	"github.com/goliatone/go-chatexport/export"
	"github.com/goliatone/go-chatexport/export/notify"
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
)

// RunExportHandler executes export runs. When a Notifier is set, a
// bundle-ready event goes out after each successful run.
type RunExportHandler struct {
	Runner   *export.Runner
	Notifier notify.BundleReadyNotifier
}

func NewRunExportHandler(runner *export.Runner) *RunExportHandler {
	return &RunExportHandler{Runner: runner}
}

func (h *RunExportHandler) Execute(ctx context.Context, msg RunExport) error {
	if h == nil || h.Runner == nil {
		return errors.New("export runner is required", errors.CategoryInternal).
			WithTextCode("RUNNER_REQUIRED")
	}
	result, err := h.Runner.Run(ctx, msg.Request)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[export.ExportResult](ctx); res != nil {
		res.Store(result)
	}
	if h.Notifier != nil {
		return h.Notifier.Send(ctx, notify.EventFromResult(result))
	}
	return nil
}

// VerifyBundleHandler re-checks written bundles.
type VerifyBundleHandler struct {
	Verify func(ctx context.Context, outputDir, baseName string) (export.VerifyReport, error)
}

func NewVerifyBundleHandler() *VerifyBundleHandler {
	return &VerifyBundleHandler{Verify: export.VerifyBundle}
}

func (h *VerifyBundleHandler) Execute(ctx context.Context, msg VerifyBundle) error {
	if h == nil || h.Verify == nil {
		return errors.New("bundle verifier is required", errors.CategoryInternal).
			WithTextCode("VERIFIER_REQUIRED")
	}
	report, err := h.Verify(ctx, msg.OutputDir, msg.BaseName)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = report
	}
	if res := gcmd.ResultFromContext[export.VerifyReport](ctx); res != nil {
		res.Store(report)
	}
	return nil
}
