// Package exportsql reads chat snapshots from SQL message stores.
package exportsql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/goliatone/go-chatexport/export"
)

// Queries holds the statements used to read one chat. The messages
// query must return (id, sender, sent_at, body) ordered oldest first;
// the attachments query must return (message_id, name, data). An empty
// attachments query skips the attachment pass.
type Queries struct {
	Messages    string
	Attachments string
}

// DefaultQueries targets the conventional chatexport store layout.
func DefaultQueries() Queries {
	return Queries{
		Messages:    "SELECT id, sender, sent_at, body FROM messages ORDER BY id",
		Attachments: "SELECT message_id, name, data FROM attachments ORDER BY id",
	}
}

// Source reads a chat snapshot from a SQL message store. The snapshot
// carries a pre-parsed chat, so no text parser runs for this source.
type Source struct {
	DB      *sql.DB
	Title   string
	Queries Queries
}

// NewSource creates a message store source with the default queries.
func NewSource(db *sql.DB, title string) *Source {
	return &Source{DB: db, Title: title, Queries: DefaultQueries()}
}

// Snapshot reads messages and attachments into an in-memory snapshot.
func (s *Source) Snapshot(ctx context.Context) (export.ChatSnapshot, error) {
	if s == nil || s.DB == nil {
		return export.ChatSnapshot{}, export.NewError(export.KindValidation, "message store database is required", nil)
	}
	if s.Queries.Messages == "" {
		return export.ChatSnapshot{}, export.NewError(export.KindValidation, "messages query is required", nil)
	}

	chat, index, err := s.readMessages(ctx)
	if err != nil {
		return export.ChatSnapshot{}, err
	}

	var attachments []export.Attachment
	if s.Queries.Attachments != "" {
		attachments, err = s.readAttachments(ctx, index, &chat)
		if err != nil {
			return export.ChatSnapshot{}, err
		}
	}

	return export.ChatSnapshot{
		Title:       s.Title,
		Attachments: attachments,
		Chat:        &chat,
	}, nil
}

func (s *Source) readMessages(ctx context.Context) (export.Chat, map[int64]int, error) {
	rows, err := s.DB.QueryContext(ctx, s.Queries.Messages)
	if err != nil {
		return export.Chat{}, nil, export.NewError(export.KindInput, "query messages", err)
	}
	defer rows.Close()

	chat := export.Chat{}
	index := make(map[int64]int)
	seen := make(map[string]bool)
	for rows.Next() {
		var (
			id     int64
			sender string
			sentAt sql.NullString
			body   sql.NullString
		)
		if err := rows.Scan(&id, &sender, &sentAt, &body); err != nil {
			return export.Chat{}, nil, export.NewError(export.KindInput, "scan message row", err)
		}
		if !seen[sender] {
			seen[sender] = true
			chat.Participants = append(chat.Participants, sender)
		}
		index[id] = len(chat.Messages)
		chat.Messages = append(chat.Messages, export.Message{
			Sender:    sender,
			Timestamp: sentAt.String,
			Text:      body.String,
		})
	}
	if err := rows.Err(); err != nil {
		return export.Chat{}, nil, export.NewError(export.KindInput, "read message rows", err)
	}
	if len(chat.Messages) == 0 {
		return export.Chat{}, nil, export.NewError(export.KindInput, "message store returned no messages", nil)
	}
	return chat, index, nil
}

func (s *Source) readAttachments(ctx context.Context, index map[int64]int, chat *export.Chat) ([]export.Attachment, error) {
	rows, err := s.DB.QueryContext(ctx, s.Queries.Attachments)
	if err != nil {
		return nil, export.NewError(export.KindInput, "query attachments", err)
	}
	defer rows.Close()

	var attachments []export.Attachment
	for rows.Next() {
		var (
			messageID int64
			name      string
			data      []byte
		)
		if err := rows.Scan(&messageID, &name, &data); err != nil {
			return nil, export.NewError(export.KindInput, "scan attachment row", err)
		}
		pos, ok := index[messageID]
		if !ok {
			return nil, export.NewError(export.KindInput,
				fmt.Sprintf("attachment %q references unknown message %d", name, messageID), nil)
		}

		// Attachment IDs stay unique across messages that share file names.
		id := strconv.FormatInt(messageID, 10) + "/" + name
		chat.Messages[pos].Attachments = append(chat.Messages[pos].Attachments, id)
		attachments = append(attachments, export.Attachment{
			ID:   id,
			Name: name,
			Kind: export.MediaKindFromName(name),
			Data: data,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, export.NewError(export.KindInput, "read attachment rows", err)
	}
	return attachments, nil
}
