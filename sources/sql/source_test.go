package exportsql

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-chatexport/export"
	_ "modernc.org/sqlite"
)

func newStoreDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	schema := []string{
		`CREATE TABLE messages (id INTEGER PRIMARY KEY, sender TEXT NOT NULL, sent_at TEXT, body TEXT)`,
		`CREATE TABLE attachments (id INTEGER PRIMARY KEY, message_id INTEGER NOT NULL, name TEXT NOT NULL, data BLOB)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func seedMessages(t *testing.T, db *sql.DB) {
	t.Helper()
	seed := []string{
		`INSERT INTO messages (id, sender, sent_at, body) VALUES (1, 'alice', '2024-03-01 09:14', 'morning all')`,
		`INSERT INTO messages (id, sender, sent_at, body) VALUES (2, 'bob', '2024-03-01 09:15', 'hey, photo attached')`,
		`INSERT INTO messages (id, sender, sent_at, body) VALUES (3, 'alice', '2024-03-01 09:16', 'nice one')`,
		`INSERT INTO attachments (id, message_id, name, data) VALUES (1, 2, 'photo.png', x'89504e47')`,
	}
	for _, stmt := range seed {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestSource_ReadsMessagesAndAttachments(t *testing.T) {
	db := newStoreDB(t)
	seedMessages(t, db)

	source := NewSource(db, "Morning Standup")
	snap, err := source.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if snap.Title != "Morning Standup" {
		t.Fatalf("expected title, got %q", snap.Title)
	}
	if snap.Chat == nil {
		t.Fatalf("expected pre-parsed chat")
	}
	if len(snap.Chat.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(snap.Chat.Messages))
	}
	if got := snap.Chat.Participants; len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("expected participants in first-appearance order, got %v", got)
	}
	if got := snap.Chat.Messages[1].Attachments; len(got) != 1 || got[0] != "2/photo.png" {
		t.Fatalf("expected attachment on second message, got %v", got)
	}
	if len(snap.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(snap.Attachments))
	}
	att := snap.Attachments[0]
	if att.ID != "2/photo.png" || att.Name != "photo.png" {
		t.Fatalf("unexpected attachment identity: %+v", att)
	}
	if att.Kind != export.MediaImage {
		t.Fatalf("expected image kind, got %q", att.Kind)
	}
	if len(att.Data) == 0 {
		t.Fatalf("expected attachment bytes")
	}
}

func TestSource_ExportsThroughPipeline(t *testing.T) {
	db := newStoreDB(t)
	seedMessages(t, db)

	dir := t.TempDir()
	runner := export.NewRunner()
	res, err := runner.Run(context.Background(), export.ExportRequest{
		Source:    NewSource(db, "Morning Standup"),
		OutputDir: dir,
		Variants:  []export.Variant{export.VariantTextOnly},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.BaseName != "Morning_Standup" {
		t.Fatalf("expected base name from store title, got %q", res.BaseName)
	}
	data, err := os.ReadFile(filepath.Join(dir, res.BaseName+"-min.html"))
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected rendered html")
	}
}

func TestSource_NoMessages(t *testing.T) {
	db := newStoreDB(t)

	source := NewSource(db, "")
	_, err := source.Snapshot(context.Background())
	if export.KindFromError(err) != export.KindInput {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestSource_OrphanAttachment(t *testing.T) {
	db := newStoreDB(t)
	if _, err := db.Exec(`INSERT INTO messages (id, sender, body) VALUES (1, 'alice', 'hi')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO attachments (id, message_id, name) VALUES (1, 99, 'ghost.png')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	source := NewSource(db, "")
	if _, err := source.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected error for orphan attachment")
	}
}

func TestSource_RequiresDB(t *testing.T) {
	source := &Source{}
	_, err := source.Snapshot(context.Background())
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
