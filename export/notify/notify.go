// Package notify defines the bundle-ready notification contract kept
// decoupled from any notification backend.
package notify

import (
	"context"

	"github.com/goliatone/go-chatexport/export"
)

// BundleReadyNotifier delivers bundle-ready notifications.
type BundleReadyNotifier interface {
	Send(ctx context.Context, evt BundleReadyEvent) error
}

// NotifierFunc adapts a function to a BundleReadyNotifier.
type NotifierFunc func(ctx context.Context, evt BundleReadyEvent) error

func (f NotifierFunc) Send(ctx context.Context, evt BundleReadyEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// BundleReadyEvent describes a finished bundle.
type BundleReadyEvent struct {
	Recipients   []string
	Channels     []string
	BaseName     string
	OutputDir    string
	PrimaryPath  string
	ManifestPath string
	BundleHash   string
	Artifacts    int
	Bytes        int64
	Thumbs       int64
	Message      string
	Attachments  []NotificationAttachment
}

// NotificationAttachment captures file payloads for notifications.
type NotificationAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
	Size        int64
}

// EventFromResult builds a bundle-ready event from an export result.
func EventFromResult(res export.ExportResult) BundleReadyEvent {
	return BundleReadyEvent{
		BaseName:     res.BaseName,
		OutputDir:    res.OutputDir,
		PrimaryPath:  res.PrimaryPath,
		ManifestPath: res.ManifestPath,
		BundleHash:   res.BundleHash,
		Artifacts:    len(res.Artifacts),
		Bytes:        res.Bytes,
		Thumbs:       res.Counters.ThumbStoreGenerated,
	}
}
