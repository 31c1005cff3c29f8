package command

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-chatexport/export"
	exportarchive "github.com/goliatone/go-chatexport/sources/archive"
	exportfs "github.com/goliatone/go-chatexport/sources/fs"
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
)

// BatchItem describes one export inside a batch file.
type BatchItem struct {
	Input          string   `json:"input"`
	OutputDir      string   `json:"output_dir"`
	BaseName       string   `json:"base_name,omitempty"`
	Format         string   `json:"format,omitempty"`
	Variants       []string `json:"variants,omitempty"`
	Sidecar        bool     `json:"sidecar,omitempty"`
	AllowOverwrite bool     `json:"allow_overwrite,omitempty"`
	SizeClass      string   `json:"size_class,omitempty"`
}

// BatchLoader loads batch items from a source.
type BatchLoader func(ctx context.Context) ([]BatchItem, error)

// BatchRunner executes export requests.
type BatchRunner interface {
	Run(ctx context.Context, req export.ExportRequest) (export.ExportResult, error)
}

// BatchRunnerFunc adapts a function to a BatchRunner.
type BatchRunnerFunc func(ctx context.Context, req export.ExportRequest) (export.ExportResult, error)

func (f BatchRunnerFunc) Run(ctx context.Context, req export.ExportRequest) (export.ExportResult, error) {
	if f == nil {
		return export.ExportResult{}, errors.New("batch runner is required", errors.CategoryInternal).
			WithTextCode("BATCH_RUNNER_NIL")
	}
	return f(ctx, req)
}

// BatchCommand wires CLI/Cron execution for batched exports.
type BatchCommand struct {
	runner     BatchRunner
	loader     BatchLoader
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     BatchLimits
	sleep      func(time.Duration)
}

// BatchOption customizes batch commands.
type BatchOption func(*BatchCommand)

// BatchLimits bounds batch execution throughput.
type BatchLimits struct {
	MaxItems    int
	MinInterval time.Duration
}

// WithBatchCLIConfig overrides CLI configuration.
func WithBatchCLIConfig(cfg gcmd.CLIConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cliConfig = cfg
	}
}

// WithBatchCronConfig overrides cron configuration.
func WithBatchCronConfig(cfg gcmd.HandlerConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cronConfig = cfg
	}
}

// WithBatchLimits overrides batch execution limits.
func WithBatchLimits(limits BatchLimits) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.limits = limits
	}
}

// NewBatchExportCommand creates a CLI/Cron command that exports every chat
// listed in a batch file or returned by the loader.
func NewBatchExportCommand(runner BatchRunner, loader BatchLoader, opts ...BatchOption) *BatchCommand {
	cmd := &BatchCommand{
		runner: runner,
		loader: loader,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"chatexport-batch"},
			Description: "Run batched chat exports",
			Group:       "chatexport",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "0 0 * * *"},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// CronHandler executes scheduled batch exports.
func (c *BatchCommand) CronHandler() func() error {
	return func() error {
		_, err := c.run(context.Background(), "")
		return err
	}
}

// CronOptions returns cron configuration.
func (c *BatchCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *BatchCommand) CLIHandler() any {
	return &batchCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *BatchCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

func (c *BatchCommand) run(ctx context.Context, from string) (int, error) {
	if c == nil {
		return 0, errors.New("batch command is nil", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	if c.runner == nil {
		return 0, errors.New("batch runner is required", errors.CategoryValidation).
			WithTextCode("BATCH_RUNNER_REQUIRED")
	}

	items, err := c.loadItems(ctx, from)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, item := range items {
		if c.limits.MaxItems > 0 && count >= c.limits.MaxItems {
			break
		}
		if err := c.runItem(ctx, item); err != nil {
			return count, err
		}
		count++
		if c.limits.MinInterval > 0 && c.sleep != nil {
			c.sleep(c.limits.MinInterval)
		}
	}
	return count, nil
}

func (c *BatchCommand) runItem(ctx context.Context, item BatchItem) error {
	req, cleanup, err := buildBatchRequest(item)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	_, err = c.runner.Run(ctx, req)
	return err
}

// buildBatchRequest maps a batch item to an export request. Zip inputs get an
// archive source whose cleanup removes the extraction workspace.
func buildBatchRequest(item BatchItem) (export.ExportRequest, func() error, error) {
	if strings.TrimSpace(item.Input) == "" {
		return export.ExportRequest{}, nil, errors.New("batch item input path is required", errors.CategoryValidation).
			WithTextCode("INPUT_REQUIRED")
	}

	req := export.ExportRequest{
		OutputDir:      item.OutputDir,
		BaseName:       item.BaseName,
		Format:         item.Format,
		Sidecar:        item.Sidecar,
		AllowOverwrite: item.AllowOverwrite,
		SizeClass:      export.SizeClass(item.SizeClass),
	}
	for _, v := range item.Variants {
		req.Variants = append(req.Variants, export.Variant(v))
	}

	var cleanup func() error
	if strings.EqualFold(filepath.Ext(item.Input), ".zip") {
		src := exportarchive.NewSource(item.Input)
		req.Source = src
		cleanup = src.Close
	} else {
		req.Source = exportfs.NewSource(item.Input)
	}
	return req, cleanup, nil
}

func (c *BatchCommand) loadItems(ctx context.Context, from string) ([]BatchItem, error) {
	if strings.TrimSpace(from) != "" {
		return loadBatchItemsFromFile(from)
	}
	if c.loader == nil {
		return nil, errors.New("batch loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	return c.loader(ctx)
}

type batchCLI struct {
	cmd  *BatchCommand
	From string `kong:"name='from',help='Path to JSON batch export items'"`
}

func (c *batchCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("batch command is required", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	_, err := c.cmd.run(context.Background(), c.From)
	return err
}

func loadBatchItemsFromFile(path string) ([]BatchItem, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read batch file failed").
			WithTextCode("BATCH_FILE_READ")
	}

	var items []BatchItem
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "batch file invalid JSON").
			WithTextCode("BATCH_FILE_INVALID")
	}
	return items, nil
}
