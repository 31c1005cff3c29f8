package trackerbun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-chatexport/export"
	"github.com/uptrace/bun"
)

// Tracker stores run history in a Bun-backed database.
type Tracker struct {
	DB          *bun.DB
	Now         func() time.Time
	IDGenerator func() string
}

// NewTracker creates a Bun-backed run tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now, IDGenerator: defaultIDGenerator()}
}

// Migrate creates the run history table when missing.
func (t *Tracker) Migrate(ctx context.Context) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	_, err := t.DB.NewCreateTable().Model((*runModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Start creates a new run record.
func (t *Tracker) Start(ctx context.Context, record export.RunRecord) (string, error) {
	if t == nil || t.DB == nil {
		return "", export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.State == "" {
		record.State = export.RunRunning
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = t.now()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = record.CreatedAt
	}

	model, err := modelFromRecord(record)
	if err != nil {
		return "", err
	}
	_, err = t.DB.NewInsert().Model(&model).Exec(ctx)
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

// Complete marks the run as completed and records its outcome.
func (t *Tracker) Complete(ctx context.Context, id string, result export.ExportResult) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.NewError(export.KindValidation, "run ID is required", nil)
	}

	res, err := t.DB.NewUpdate().Model((*runModel)(nil)).
		Set("state = ?", export.RunCompleted).
		Set("artifacts = ?", len(result.Artifacts)).
		Set("bytes_written = ?", result.Bytes).
		Set("thumbs_generated = ?", result.Counters.ThumbStoreGenerated).
		Set("bundle_hash = ?", result.BundleHash).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return export.NewError(export.KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	return nil
}

// Fail marks the run as failed and records the cause.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.NewError(export.KindValidation, "run ID is required", nil)
	}

	message := ""
	if cause != nil {
		message = cause.Error()
	}
	res, err := t.DB.NewUpdate().Model((*runModel)(nil)).
		Set("state = ?", export.RunFailed).
		Set("error = ?", message).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return export.NewError(export.KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	return nil
}

// Status returns a run record by ID.
func (t *Tracker) Status(ctx context.Context, id string) (export.RunRecord, error) {
	if t == nil || t.DB == nil {
		return export.RunRecord{}, export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.RunRecord{}, export.NewError(export.KindValidation, "run ID is required", nil)
	}

	model := new(runModel)
	err := t.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return export.RunRecord{}, export.NewError(export.KindNotFound, fmt.Sprintf("run %q not found", id), nil)
		}
		return export.RunRecord{}, err
	}
	return model.toRecord()
}

// List returns run records matching a filter, newest first.
func (t *Tracker) List(ctx context.Context, filter export.RunFilter) ([]export.RunRecord, error) {
	if t == nil || t.DB == nil {
		return nil, export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}

	models := make([]runModel, 0)
	query := t.DB.NewSelect().Model(&models)
	if filter.BaseName != "" {
		query = query.Where("base_name = ?", filter.BaseName)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	query = query.Order("created_at DESC", "id DESC")

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	records := make([]export.RunRecord, 0, len(models))
	for _, model := range models {
		record, err := model.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Delete removes a run record.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.NewError(export.KindValidation, "run ID is required", nil)
	}

	res, err := t.DB.NewDelete().Model((*runModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return export.NewError(export.KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	return nil
}

// Prune removes completed or failed runs created before the cutoff and
// returns how many rows went away.
func (t *Tracker) Prune(ctx context.Context, before time.Time) (int, error) {
	if t == nil || t.DB == nil {
		return 0, export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}

	res, err := t.DB.NewDelete().Model((*runModel)(nil)).
		Where("created_at < ?", before).
		Where("state IN (?)", bun.In([]string{string(export.RunCompleted), string(export.RunFailed)})).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

type runModel struct {
	bun.BaseModel `bun:"table:chatexport_runs,alias:chatexport_runs"`

	ID              string    `bun:",pk"`
	BaseName        string    `bun:"base_name,notnull"`
	OutputDir       string    `bun:"output_dir"`
	Variants        []byte    `bun:"variants"`
	Sidecar         bool      `bun:"sidecar"`
	AllowOverwrite  bool      `bun:"allow_overwrite"`
	State           string    `bun:"state,notnull"`
	Artifacts       int       `bun:"artifacts"`
	BytesWritten    int64     `bun:"bytes_written"`
	ThumbsGenerated int64     `bun:"thumbs_generated"`
	BundleHash      string    `bun:"bundle_hash"`
	Error           string    `bun:"error"`
	CreatedAt       time.Time `bun:"created_at"`
	StartedAt       time.Time `bun:"started_at,nullzero"`
	CompletedAt     time.Time `bun:"completed_at,nullzero"`
}

func modelFromRecord(record export.RunRecord) (runModel, error) {
	variants, err := json.Marshal(record.Variants)
	if err != nil {
		return runModel{}, err
	}

	return runModel{
		ID:              record.ID,
		BaseName:        record.BaseName,
		OutputDir:       record.OutputDir,
		Variants:        variants,
		Sidecar:         record.Sidecar,
		AllowOverwrite:  record.AllowOverwrite,
		State:           string(record.State),
		Artifacts:       record.Artifacts,
		BytesWritten:    record.BytesWritten,
		ThumbsGenerated: record.ThumbsGenerated,
		BundleHash:      record.BundleHash,
		Error:           record.Error,
		CreatedAt:       record.CreatedAt,
		StartedAt:       record.StartedAt,
		CompletedAt:     record.CompletedAt,
	}, nil
}

func (m runModel) toRecord() (export.RunRecord, error) {
	record := export.RunRecord{
		ID:              m.ID,
		BaseName:        m.BaseName,
		OutputDir:       m.OutputDir,
		Sidecar:         m.Sidecar,
		AllowOverwrite:  m.AllowOverwrite,
		State:           export.RunState(m.State),
		Artifacts:       m.Artifacts,
		BytesWritten:    m.BytesWritten,
		ThumbsGenerated: m.ThumbsGenerated,
		BundleHash:      m.BundleHash,
		Error:           m.Error,
		CreatedAt:       m.CreatedAt,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
	}

	if len(m.Variants) > 0 {
		if err := json.Unmarshal(m.Variants, &record.Variants); err != nil {
			return export.RunRecord{}, err
		}
	}

	return record, nil
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) nextID() string {
	if t.IDGenerator != nil {
		return t.IDGenerator()
	}
	return defaultIDGenerator()()
}

func defaultIDGenerator() func() string {
	var counter uint64
	return func() string {
		id := atomic.AddUint64(&counter, 1)
		return fmt.Sprintf("run-%d", id)
	}
}
