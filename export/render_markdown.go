package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// MarkdownRenderer renders a chat document as a Markdown summary.
// Attachments appear as text mentions only; media bytes are never
// embedded. Message bodies that carry inline HTML markup are converted
// to Markdown, everything else is escaped as plain text.
type MarkdownRenderer struct{}

// Render writes the document as Markdown.
func (r MarkdownRenderer) Render(ctx context.Context, doc Document, w io.Writer, opts RenderOptions) (RenderStats, error) {
	if err := ctx.Err(); err != nil {
		return RenderStats{}, err
	}

	limit := opts.Markdown.MessageLimit
	messages := doc.Messages
	omitted := 0
	if limit > 0 && len(messages) > limit {
		omitted = len(messages) - limit
		messages = messages[:limit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdownHeading(doc.Title)))

	sb.WriteString("## Session Information\n\n")
	if len(doc.Participants) > 0 {
		sb.WriteString(fmt.Sprintf("- **Participants**: %s\n", strings.Join(doc.Participants, ", ")))
	}
	sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", len(doc.Messages)))
	if n := len(doc.Attachments); n > 0 {
		sb.WriteString(fmt.Sprintf("- **Attachments**: %d\n", n))
	}
	sb.WriteString("\n---\n\n")

	sb.WriteString("## Conversation\n\n")

	stats := RenderStats{}
	for i, msg := range messages {
		stats.Messages++

		if msg.Timestamp != "" {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n", escapeMarkdownHeading(msg.Sender), msg.Timestamp))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", escapeMarkdownHeading(msg.Sender)))
		}

		if msg.Text != "" {
			sb.WriteString(markdownBody(msg.Text))
			sb.WriteString("\n\n")
		}

		for _, id := range msg.Attachments {
			att, ok := doc.Attachments[id]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("- **Attachment**: %s (%s)\n", att.Name, att.Kind))
			stats.Attachments++
		}
		if len(msg.Attachments) > 0 {
			sb.WriteString("\n")
		}

		if i < len(messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	if omitted > 0 {
		sb.WriteString(fmt.Sprintf("---\n\n*%d more messages omitted*\n", omitted))
	}

	n, err := io.WriteString(w, sb.String())
	stats.Bytes = int64(n)
	if err != nil {
		return stats, NewError(KindRender, "write markdown output", err)
	}
	return stats, nil
}

// markdownBody normalizes a message body for Markdown output. Bodies
// containing HTML markup are converted; plain text passes through with
// trimmed whitespace.
func markdownBody(text string) string {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "<") && strings.Contains(text, ">") {
		if md, err := htmltomarkdown.ConvertString(text); err == nil {
			return strings.TrimSpace(md)
		}
	}
	return text
}

// escapeMarkdownHeading escapes characters that would break formatting
// inside a heading line.
func escapeMarkdownHeading(s string) string {
	replacer := strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	)
	return replacer.Replace(s)
}
