package exportfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-chatexport/export"
)

// Source resolves a chat export directory into a snapshot. The
// directory holds the chat text (chat.txt or chat.json, or a single
// .txt/.json file) and an optional attachments/ subfolder whose files
// become the snapshot's attachments, identified by file name.
type Source struct {
	Path string
}

// NewSource creates a directory-backed snapshot source.
func NewSource(path string) *Source {
	return &Source{Path: path}
}

// Snapshot reads the chat text and enumerates attachment files.
// Attachment bytes are left on disk; the pipeline reads them lazily.
func (s *Source) Snapshot(ctx context.Context) (export.ChatSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return export.ChatSnapshot{}, err
	}
	if s == nil || s.Path == "" {
		return export.ChatSnapshot{}, export.NewError(export.KindValidation, "source path is required", nil)
	}

	root, err := filepath.Abs(s.Path)
	if err != nil {
		return export.ChatSnapshot{}, export.NewError(export.KindInput, fmt.Sprintf("resolve path %q", s.Path), err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return export.ChatSnapshot{}, export.NewError(export.KindInput, fmt.Sprintf("stat %q", s.Path), err)
	}
	if !info.IsDir() {
		return export.ChatSnapshot{}, export.NewError(export.KindInput, fmt.Sprintf("%q is not a directory", s.Path), nil)
	}

	return SnapshotDir(root)
}

// SnapshotDir builds a snapshot from an already-resolved directory.
func SnapshotDir(root string) (export.ChatSnapshot, error) {
	chatPath, err := findChatFile(root)
	if err != nil {
		return export.ChatSnapshot{}, err
	}
	data, err := os.ReadFile(chatPath)
	if err != nil {
		return export.ChatSnapshot{}, export.NewError(export.KindInput, fmt.Sprintf("read chat text %q", chatPath), err)
	}

	snapshot := export.ChatSnapshot{
		Title:    filepath.Base(root),
		ChatPath: chatPath,
		ChatData: data,
	}

	attachDir := filepath.Join(root, "attachments")
	entries, err := os.ReadDir(attachDir)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot, nil
		}
		return export.ChatSnapshot{}, export.NewError(export.KindInput, "read attachments directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		snapshot.Attachments = append(snapshot.Attachments, export.Attachment{
			ID:   entry.Name(),
			Name: entry.Name(),
			Kind: export.MediaKindFromName(entry.Name()),
			Path: filepath.Join(attachDir, entry.Name()),
		})
	}
	return snapshot, nil
}

// findChatFile locates the chat text inside root: chat.txt and
// chat.json by convention, otherwise a single .txt or .json file.
func findChatFile(root string) (string, error) {
	for _, name := range []string{"chat.txt", "chat.json"} {
		candidate := filepath.Join(root, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", export.NewError(export.KindInput, fmt.Sprintf("read directory %q", root), err)
	}
	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".json":
			candidates = append(candidates, filepath.Join(root, entry.Name()))
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", export.NewError(export.KindInput, fmt.Sprintf("no chat text found in %q", root), nil)
	default:
		return "", export.NewError(export.KindInput, fmt.Sprintf("multiple chat text candidates in %q, expected chat.txt or chat.json", root), nil)
	}
}
