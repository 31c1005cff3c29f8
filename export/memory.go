package export

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryTracker stores run history in memory (test/dev only).
type MemoryTracker struct {
	mu      sync.RWMutex
	records map[string]RunRecord
	counter uint64
}

// NewMemoryTracker creates an in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{records: make(map[string]RunRecord)}
}

// Start creates a new record.
func (t *MemoryTracker) Start(ctx context.Context, record RunRecord) (string, error) {
	_ = ctx
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.State == "" {
		record.State = RunRunning
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = record.CreatedAt
	}

	t.mu.Lock()
	t.records[record.ID] = record
	t.mu.Unlock()
	return record.ID, nil
}

// Complete marks the run as completed and stores its result summary.
func (t *MemoryTracker) Complete(ctx context.Context, id string, result ExportResult) error {
	_ = ctx

	t.mu.Lock()
	record, ok := t.records[id]
	if !ok {
		t.mu.Unlock()
		return NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	record.State = RunCompleted
	record.Artifacts = len(result.Artifacts)
	record.BytesWritten = result.Bytes
	record.ThumbsGenerated = result.Counters.ThumbStoreGenerated
	record.BundleHash = result.BundleHash
	record.CompletedAt = time.Now()
	t.records[id] = record
	t.mu.Unlock()
	return nil
}

// Fail records failure state.
func (t *MemoryTracker) Fail(ctx context.Context, id string, cause error) error {
	_ = ctx

	t.mu.Lock()
	record, ok := t.records[id]
	if !ok {
		t.mu.Unlock()
		return NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	record.State = RunFailed
	if cause != nil {
		record.Error = cause.Error()
	}
	record.CompletedAt = time.Now()
	t.records[id] = record
	t.mu.Unlock()
	return nil
}

// Status returns a record by ID.
func (t *MemoryTracker) Status(ctx context.Context, id string) (RunRecord, error) {
	_ = ctx
	t.mu.RLock()
	record, ok := t.records[id]
	t.mu.RUnlock()
	if !ok {
		return RunRecord{}, NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	return record, nil
}

// List returns records matching a filter, newest first.
func (t *MemoryTracker) List(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	_ = ctx
	result := []RunRecord{}

	t.mu.RLock()
	for _, record := range t.records {
		if filter.BaseName != "" && record.BaseName != filter.BaseName {
			continue
		}
		if filter.State != "" && record.State != filter.State {
			continue
		}
		if !filter.Since.IsZero() && record.CreatedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && record.CreatedAt.After(filter.Until) {
			continue
		}
		result = append(result, record)
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (t *MemoryTracker) nextID() string {
	id := atomic.AddUint64(&t.counter, 1)
	return fmt.Sprintf("run-%d", id)
}
