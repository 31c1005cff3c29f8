package exportarchive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-chatexport/export"
	exportfs "github.com/goliatone/go-chatexport/sources/fs"
)

// Source resolves a single-file zip archive into a snapshot by
// materializing a temporary workspace. The caller owns the workspace
// lifetime: Close removes it after the export call is done with the
// snapshot.
type Source struct {
	Path string

	workdir string
	root    string
}

// NewSource creates an archive-backed snapshot source.
func NewSource(path string) *Source {
	return &Source{Path: path}
}

// Snapshot extracts the archive into a temp workspace and reads it like
// an export directory. Repeated calls reuse the extracted workspace.
func (s *Source) Snapshot(ctx context.Context) (export.ChatSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return export.ChatSnapshot{}, err
	}
	if s == nil || s.Path == "" {
		return export.ChatSnapshot{}, export.NewError(export.KindValidation, "archive path is required", nil)
	}

	if s.root == "" {
		if err := s.extract(); err != nil {
			return export.ChatSnapshot{}, err
		}
	}
	return exportfs.SnapshotDir(s.root)
}

// Workdir returns the temporary workspace path, empty before the first
// Snapshot call.
func (s *Source) Workdir() string {
	if s == nil {
		return ""
	}
	return s.workdir
}

// Close removes the temporary workspace.
func (s *Source) Close() error {
	if s == nil || s.workdir == "" {
		return nil
	}
	err := os.RemoveAll(s.workdir)
	s.workdir = ""
	s.root = ""
	return err
}

func (s *Source) extract() error {
	r, err := zip.OpenReader(s.Path)
	if err != nil {
		return export.NewError(export.KindInput, fmt.Sprintf("open archive %q", s.Path), err)
	}
	defer r.Close()

	workdir, err := os.MkdirTemp("", "chatexport-*")
	if err != nil {
		return export.NewError(export.KindInternal, "create archive workspace", err)
	}

	for _, f := range r.File {
		if err := extractEntry(workdir, f); err != nil {
			_ = os.RemoveAll(workdir)
			return err
		}
	}

	s.workdir = workdir
	s.root = archiveRoot(workdir)
	return nil
}

func extractEntry(workdir string, f *zip.File) error {
	dest := filepath.Join(workdir, filepath.FromSlash(f.Name))

	// Reject entries that would land outside the workspace.
	rel, err := filepath.Rel(workdir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return export.NewError(export.KindInput, fmt.Sprintf("archive entry %q escapes workspace", f.Name), nil)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return export.NewError(export.KindInternal, fmt.Sprintf("create directory %q", f.Name), err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return export.NewError(export.KindInternal, fmt.Sprintf("create directory for %q", f.Name), err)
	}

	rc, err := f.Open()
	if err != nil {
		return export.NewError(export.KindInput, fmt.Sprintf("open archive entry %q", f.Name), err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return export.NewError(export.KindInternal, fmt.Sprintf("create %q", f.Name), err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return export.NewError(export.KindInput, fmt.Sprintf("extract %q", f.Name), err)
	}
	return out.Close()
}

// archiveRoot unwraps a single top-level directory, the common layout
// for zipped export folders.
func archiveRoot(workdir string) string {
	entries, err := os.ReadDir(workdir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return workdir
	}
	return filepath.Join(workdir, entries[0].Name())
}
