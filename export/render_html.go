package export

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"
)

// HTMLRenderer renders a chat document as a single self-contained HTML
// page with embedded CSS. Attachment handling follows the document's
// resolution context; the renderer itself performs no I/O and emits no
// generation-time content, so output bytes are a pure function of the
// document and options.
type HTMLRenderer struct{}

// Render writes the document as HTML.
func (r HTMLRenderer) Render(ctx context.Context, doc Document, w io.Writer, opts RenderOptions) (RenderStats, error) {
	if err := ctx.Err(); err != nil {
		return RenderStats{}, err
	}

	theme := opts.HTML.Theme
	if theme != "dark" {
		theme = "light"
	}
	lang := opts.HTML.Lang
	if lang == "" {
		lang = "en"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString(fmt.Sprintf("<html lang=%q>\n", lang))
	sb.WriteString("<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(doc.Title)))
	sb.WriteString(chatCSS)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\" data-density=%q>\n", theme, string(doc.Kind)))
	sb.WriteString("<div class=\"container\">\n")

	renderChatHeader(&sb, doc)

	stats := RenderStats{}
	sb.WriteString("<main class=\"conversation\">\n")
	for _, msg := range doc.Messages {
		stats.Messages++
		stats.Attachments += renderChatMessage(&sb, doc, msg)
	}
	sb.WriteString("</main>\n")

	sb.WriteString("</div>\n</body>\n</html>\n")

	n, err := io.WriteString(w, sb.String())
	stats.Bytes = int64(n)
	if err != nil {
		return stats, NewError(KindRender, "write html output", err)
	}
	return stats, nil
}

func renderChatHeader(sb *strings.Builder, doc Document) {
	sb.WriteString("<header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(doc.Title)))
	sb.WriteString("<div class=\"metadata\">\n")
	if len(doc.Participants) > 0 {
		sb.WriteString(fmt.Sprintf("<span class=\"meta-item\"><strong>Participants:</strong> %s</span>\n",
			html.EscapeString(strings.Join(doc.Participants, ", "))))
	}
	sb.WriteString(fmt.Sprintf("<span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(doc.Messages)))
	if len(doc.Attachments) > 0 {
		sb.WriteString(fmt.Sprintf("<span class=\"meta-item\"><strong>Attachments:</strong> %d</span>\n", len(doc.Attachments)))
	}
	sb.WriteString("</div>\n</header>\n")
}

func renderChatMessage(sb *strings.Builder, doc Document, msg Message) int64 {
	sb.WriteString("<div class=\"message\">\n")
	sb.WriteString("<div class=\"message-header\">\n")
	sb.WriteString(fmt.Sprintf("<span class=\"sender\">%s</span>\n", html.EscapeString(msg.Sender)))
	if msg.Timestamp != "" {
		sb.WriteString(fmt.Sprintf("<span class=\"timestamp\">%s</span>\n", html.EscapeString(msg.Timestamp)))
	}
	sb.WriteString("</div>\n")

	if msg.Text != "" {
		sb.WriteString("<div class=\"message-content\">")
		writeMessageText(sb, msg.Text)
		sb.WriteString("</div>\n")
	}

	var rendered int64
	for _, id := range msg.Attachments {
		resolved, ok := doc.Attachments[id]
		if !ok {
			continue
		}
		renderAttachment(sb, resolved)
		rendered++
	}

	sb.WriteString("</div>\n")
	return rendered
}

func writeMessageText(sb *strings.Builder, text string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("<br>")
		}
		sb.WriteString(html.EscapeString(line))
	}
}

func renderAttachment(sb *strings.Builder, att ResolvedAttachment) {
	name := html.EscapeString(att.Name)
	switch att.Display {
	case DisplayEmbedded:
		switch att.Kind {
		case MediaImage:
			sb.WriteString(fmt.Sprintf("<figure class=\"attachment\"><img src=%q alt=%q><figcaption>%s</figcaption></figure>\n",
				att.Source, name, name))
		case MediaVideo:
			sb.WriteString(fmt.Sprintf("<figure class=\"attachment\"><video controls src=%q></video><figcaption>%s</figcaption></figure>\n",
				att.Source, name))
		case MediaAudio:
			sb.WriteString(fmt.Sprintf("<figure class=\"attachment\"><audio controls src=%q></audio><figcaption>%s</figcaption></figure>\n",
				att.Source, name))
		default:
			sb.WriteString(fmt.Sprintf("<div class=\"attachment\"><a href=%q download=%q>%s</a></div>\n",
				att.Source, name, name))
		}
	case DisplayThumbnail:
		if att.Source != "" {
			sb.WriteString(fmt.Sprintf("<figure class=\"attachment\"><a href=%q><img src=%q alt=%q></a><figcaption>%s</figcaption></figure>\n",
				att.Source, att.Thumb, name, name))
		} else {
			sb.WriteString(fmt.Sprintf("<figure class=\"attachment\"><img src=%q alt=%q><figcaption>%s</figcaption></figure>\n",
				att.Thumb, name, name))
		}
	case DisplayLinked:
		if att.Kind == MediaImage && att.Source != "" {
			sb.WriteString(fmt.Sprintf("<figure class=\"attachment\"><img src=%q alt=%q><figcaption>%s</figcaption></figure>\n",
				att.Source, name, name))
		} else {
			sb.WriteString(fmt.Sprintf("<div class=\"attachment\"><a href=%q>%s</a></div>\n", att.Source, name))
		}
	default:
		sb.WriteString(fmt.Sprintf("<div class=\"attachment placeholder\">[%s: %s]</div>\n",
			html.EscapeString(string(att.Kind)), name))
	}
}

const chatCSS = `<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
:root { --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif; --font-mono: "SF Mono", Monaco, "Source Code Pro", monospace; }
.light-theme { --bg: #ffffff; --bg-alt: #f6f8fa; --text: #24292e; --muted: #6a737d; --border: #e1e4e8; --accent: #0366d6; }
.dark-theme { --bg: #1a1b26; --bg-alt: #24283b; --text: #c0caf5; --muted: #565f89; --border: #414868; --accent: #7aa2f7; }
body { font-family: var(--font-sans); font-size: 16px; line-height: 1.6; color: var(--text); background: var(--bg); padding: 20px; }
.container { max-width: 860px; margin: 0 auto; background: var(--bg-alt); border-radius: 10px; overflow: hidden; }
.header { padding: 28px; border-bottom: 2px solid var(--border); }
.header h1 { font-size: 26px; margin-bottom: 12px; }
.metadata { display: flex; flex-wrap: wrap; gap: 14px; font-size: 14px; color: var(--muted); }
.conversation { padding: 20px 28px; }
.message { margin-bottom: 18px; padding: 16px; border-radius: 8px; background: var(--bg); border-left: 3px solid var(--accent); }
.message-header { display: flex; justify-content: space-between; margin-bottom: 8px; font-size: 14px; }
.sender { font-weight: 600; }
.timestamp { color: var(--muted); font-family: var(--font-mono); font-size: 13px; }
.message-content { line-height: 1.7; overflow-wrap: anywhere; }
.attachment { margin-top: 10px; }
.attachment img { max-width: 100%; border-radius: 6px; border: 1px solid var(--border); }
.attachment video, .attachment audio { max-width: 100%; }
.attachment figcaption { font-size: 13px; color: var(--muted); margin-top: 4px; }
.attachment a { color: var(--accent); }
.placeholder { color: var(--muted); font-style: italic; }
@media print { body { padding: 0; } .container { border-radius: 0; } .message { page-break-inside: avoid; } }
</style>
`
