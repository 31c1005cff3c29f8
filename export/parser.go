package export

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"regexp"
	"strings"
)

// Chat format names accepted by the parser registry.
const (
	FormatLines = "lines"
	FormatJSON  = "json"
)

var (
	// "Sender: text" or "Sender [2024-01-02 15:04]: text". The sender
	// cannot contain a colon; the bracketed timestamp is optional.
	messageLineRe = regexp.MustCompile(`^([^:\[\]]+?)(?: \[([^\]]+)\])?: ?(.*)$`)
	// "[attachment: IMG_0001.jpg]" on its own line attaches to the
	// message above it.
	attachmentLineRe = regexp.MustCompile(`^\[attachment: ?([^\]]+)\]\s*$`)
)

// LineParser parses the plain-text chat format: one "Sender: text"
// line per message, optional bracketed timestamps, attachment
// references on their own lines, and bare lines continuing the
// previous message body.
type LineParser struct{}

// Parse reads a line-format chat.
func (LineParser) Parse(ctx context.Context, r io.Reader) (Chat, error) {
	if err := ctx.Err(); err != nil {
		return Chat{}, err
	}

	var chat Chat
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	first := true
	for scanner.Scan() {
		line := scanner.Text()

		if first {
			first = false
			if title, ok := strings.CutPrefix(line, "# "); ok {
				chat.Title = strings.TrimSpace(title)
				continue
			}
		}

		if m := attachmentLineRe.FindStringSubmatch(line); m != nil {
			if len(chat.Messages) == 0 {
				return Chat{}, NewError(KindInput, "attachment reference before any message", nil)
			}
			last := &chat.Messages[len(chat.Messages)-1]
			last.Attachments = append(last.Attachments, strings.TrimSpace(m[1]))
			continue
		}

		if m := messageLineRe.FindStringSubmatch(line); m != nil {
			sender := strings.TrimSpace(m[1])
			chat.Messages = append(chat.Messages, Message{
				Sender:    sender,
				Timestamp: m[2],
				Text:      m[3],
			})
			if !seen[sender] {
				seen[sender] = true
				chat.Participants = append(chat.Participants, sender)
			}
			continue
		}

		if len(chat.Messages) > 0 {
			last := &chat.Messages[len(chat.Messages)-1]
			if last.Text == "" {
				last.Text = line
			} else {
				last.Text += "\n" + line
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return Chat{}, NewError(KindInput, "chat text does not start with a message line", nil)
	}
	if err := scanner.Err(); err != nil {
		return Chat{}, NewError(KindInput, "read chat text", err)
	}
	if len(chat.Messages) == 0 {
		return Chat{}, NewError(KindInput, "chat text contains no messages", nil)
	}
	return chat, nil
}

type jsonChatDoc struct {
	Title        string            `json:"title"`
	Participants []string          `json:"participants"`
	Messages     []jsonChatMessage `json:"messages"`
}

type jsonChatMessage struct {
	Sender      string   `json:"sender"`
	Timestamp   string   `json:"timestamp"`
	Text        string   `json:"text"`
	Attachments []string `json:"attachments"`
}

// JSONParser parses the JSON chat format.
type JSONParser struct{}

// Parse reads a JSON chat document.
func (JSONParser) Parse(ctx context.Context, r io.Reader) (Chat, error) {
	if err := ctx.Err(); err != nil {
		return Chat{}, err
	}

	var doc jsonChatDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Chat{}, NewError(KindInput, "decode chat json", err)
	}
	if len(doc.Messages) == 0 {
		return Chat{}, NewError(KindInput, "chat json contains no messages", nil)
	}

	chat := Chat{
		Title:        doc.Title,
		Participants: doc.Participants,
	}
	seen := make(map[string]bool, len(doc.Participants))
	for _, p := range doc.Participants {
		seen[p] = true
	}
	for _, m := range doc.Messages {
		if m.Sender == "" {
			return Chat{}, NewError(KindInput, "chat json message without sender", nil)
		}
		chat.Messages = append(chat.Messages, Message{
			Sender:      m.Sender,
			Timestamp:   m.Timestamp,
			Text:        m.Text,
			Attachments: m.Attachments,
		})
		if !seen[m.Sender] {
			seen[m.Sender] = true
			chat.Participants = append(chat.Participants, m.Sender)
		}
	}
	return chat, nil
}

// DetectFormat guesses the chat format from the payload head. JSON
// documents start with an object or array once whitespace is skipped;
// everything else is treated as line format.
func DetectFormat(data []byte) string {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return FormatJSON
		default:
			return FormatLines
		}
	}
	return FormatLines
}
