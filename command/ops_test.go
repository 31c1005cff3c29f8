package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-chatexport/export"
	exportarchive "github.com/goliatone/go-chatexport/sources/archive"
	exportfs "github.com/goliatone/go-chatexport/sources/fs"
)

type captureBatchRunner struct {
	count int
	last  export.ExportRequest
}

func (c *captureBatchRunner) Run(ctx context.Context, req export.ExportRequest) (export.ExportResult, error) {
	_ = ctx
	c.count++
	c.last = req
	return export.ExportResult{ID: "run-1"}, nil
}

func TestBatchCommand_RunHonorsLimits(t *testing.T) {
	runner := &captureBatchRunner{}
	loader := func(ctx context.Context) ([]BatchItem, error) {
		return []BatchItem{
			{Input: "chat-a", OutputDir: "out"},
			{Input: "chat-b", OutputDir: "out"},
		}, nil
	}

	cmd := NewBatchExportCommand(runner, loader, WithBatchLimits(BatchLimits{MaxItems: 1, MinInterval: time.Millisecond}))
	cmd.sleep = func(time.Duration) {}

	count, err := cmd.run(context.Background(), "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 item, got %d", count)
	}
	if runner.count != 1 {
		t.Fatalf("expected runner count 1, got %d", runner.count)
	}
}

func TestBatchCommand_LoadsItemsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.json")
	content := `[
		{"input": "chats/alpha", "output_dir": "out", "variants": ["min"]},
		{"input": "chats/beta.zip", "output_dir": "out", "sidecar": true}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write batch file: %v", err)
	}

	runner := &captureBatchRunner{}
	cmd := NewBatchExportCommand(runner, nil)

	count, err := cmd.run(context.Background(), path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 items, got %d", count)
	}
	if !runner.last.Sidecar {
		t.Fatalf("expected sidecar flag on last request")
	}
	if runner.last.OutputDir != "out" {
		t.Fatalf("expected output dir mapped, got %q", runner.last.OutputDir)
	}
}

func TestBuildBatchRequest_PicksSourceByExtension(t *testing.T) {
	req, cleanup, err := buildBatchRequest(BatchItem{Input: "chats/alpha"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := req.Source.(*exportfs.Source); !ok {
		t.Fatalf("expected filesystem source, got %T", req.Source)
	}
	if cleanup != nil {
		t.Fatalf("expected no cleanup for directory source")
	}

	req, cleanup, err = buildBatchRequest(BatchItem{Input: "chats/beta.ZIP"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := req.Source.(*exportarchive.Source); !ok {
		t.Fatalf("expected archive source, got %T", req.Source)
	}
	if cleanup == nil {
		t.Fatalf("expected cleanup for archive source")
	}
}

func TestBatchCommand_RejectsMissingInput(t *testing.T) {
	runner := &captureBatchRunner{}
	loader := func(ctx context.Context) ([]BatchItem, error) {
		return []BatchItem{{OutputDir: "out"}}, nil
	}

	cmd := NewBatchExportCommand(runner, loader)
	if _, err := cmd.run(context.Background(), ""); err == nil {
		t.Fatalf("expected error for missing input path")
	}
	if runner.count != 0 {
		t.Fatalf("expected no runs, got %d", runner.count)
	}
}
