package exportcallback

import (
	"context"

	"github.com/goliatone/go-chatexport/export"
)

// SourceFunc builds a chat snapshot on demand.
type SourceFunc func(ctx context.Context) (export.ChatSnapshot, error)

// Source wraps a callback function as a SnapshotSource.
type Source struct {
	fn SourceFunc
}

// NewSource creates a callback-based snapshot source.
func NewSource(fn SourceFunc) *Source {
	return &Source{fn: fn}
}

// Snapshot delegates to the configured callback.
func (s *Source) Snapshot(ctx context.Context) (export.ChatSnapshot, error) {
	if s == nil || s.fn == nil {
		return export.ChatSnapshot{}, export.NewError(export.KindValidation, "callback source requires a function", nil)
	}
	return s.fn(ctx)
}

// Static wraps a fixed snapshot as a SnapshotSource.
func Static(snapshot export.ChatSnapshot) *Source {
	return NewSource(func(ctx context.Context) (export.ChatSnapshot, error) {
		_ = ctx
		return snapshot, nil
	})
}
