package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func renderHTMLDoc(t *testing.T, doc Document, opts RenderOptions) string {
	t.Helper()
	var buf bytes.Buffer
	stats, err := HTMLRenderer{}.Render(context.Background(), doc, &buf, opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if stats.Bytes != int64(buf.Len()) {
		t.Fatalf("stats bytes %d != written %d", stats.Bytes, buf.Len())
	}
	return buf.String()
}

func TestHTMLRendererEscapesContent(t *testing.T) {
	doc := Document{
		Title:        "Family <Group> & Friends",
		Participants: []string{"alice"},
		Messages: []Message{
			{Sender: "<script>alert(1)</script>", Text: "a < b & c > d"},
		},
		Kind: ArtifactHTMLMin,
	}

	out := renderHTMLDoc(t, doc, RenderOptions{})

	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Fatal("sender reached output unescaped")
	}
	if !strings.Contains(out, "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Fatal("expected escaped sender")
	}
	if !strings.Contains(out, "a &lt; b &amp; c &gt; d") {
		t.Fatal("expected escaped body")
	}
	if !strings.Contains(out, "<title>Family &lt;Group&gt; &amp; Friends</title>") {
		t.Fatal("expected escaped title")
	}
}

func TestHTMLRendererThemeAndLang(t *testing.T) {
	doc := Document{Title: "T", Messages: []Message{{Sender: "a", Text: "hi"}}, Kind: ArtifactHTMLMax}

	light := renderHTMLDoc(t, doc, RenderOptions{})
	if !strings.Contains(light, `class="light-theme"`) || !strings.Contains(light, `<html lang="en">`) {
		t.Fatal("expected light theme and english defaults")
	}

	dark := renderHTMLDoc(t, doc, RenderOptions{HTML: HTMLOptions{Theme: "dark", Lang: "de"}})
	if !strings.Contains(dark, `class="dark-theme"`) || !strings.Contains(dark, `<html lang="de">`) {
		t.Fatal("expected dark theme and configured language")
	}
	if !strings.Contains(dark, `data-density="html-max"`) {
		t.Fatal("expected artifact kind on the body tag")
	}
}

func TestHTMLRendererMultilineText(t *testing.T) {
	doc := Document{
		Title:    "T",
		Messages: []Message{{Sender: "a", Text: "line one\nline two"}},
		Kind:     ArtifactHTMLMin,
	}
	out := renderHTMLDoc(t, doc, RenderOptions{})
	if !strings.Contains(out, "line one<br>line two") {
		t.Fatal("expected <br> joined lines")
	}
}

func TestHTMLRendererAttachmentDisplays(t *testing.T) {
	messages := []Message{{Sender: "a", Text: "see", Attachments: []string{"att1"}}}

	embedded := Document{
		Title:    "T",
		Messages: messages,
		Attachments: map[string]ResolvedAttachment{
			"att1": {ID: "att1", Name: "photo.png", Kind: MediaImage, Display: DisplayEmbedded, Source: "data:image/png;base64,AAAA"},
		},
		Kind: ArtifactHTMLMax,
	}
	out := renderHTMLDoc(t, embedded, RenderOptions{})
	if !strings.Contains(out, `<img src="data:image/png;base64,AAAA"`) {
		t.Fatal("expected embedded image data URI")
	}

	thumb := embedded
	thumb.Attachments = map[string]ResolvedAttachment{
		"att1": {ID: "att1", Name: "photo.png", Kind: MediaImage, Display: DisplayThumbnail, Source: "chat/photo.png", Thumb: "chat/_thumbs/ab_medium.png"},
	}
	thumb.Kind = ArtifactHTMLMid
	out = renderHTMLDoc(t, thumb, RenderOptions{})
	if !strings.Contains(out, `<a href="chat/photo.png"><img src="chat/_thumbs/ab_medium.png"`) {
		t.Fatal("expected thumbnail linking to the original")
	}

	linked := embedded
	linked.Attachments = map[string]ResolvedAttachment{
		"att1": {ID: "att1", Name: "voice.opus", Kind: MediaAudio, Display: DisplayLinked, Source: "chat/voice.opus"},
	}
	linked.Kind = ArtifactHTMLSdc
	out = renderHTMLDoc(t, linked, RenderOptions{})
	if !strings.Contains(out, `<a href="chat/voice.opus">voice.opus</a>`) {
		t.Fatal("expected link to sidecar file")
	}

	placeholder := embedded
	placeholder.Attachments = map[string]ResolvedAttachment{
		"att1": {ID: "att1", Name: "clip.mp4", Kind: MediaVideo, Display: DisplayPlaceholder},
	}
	placeholder.Kind = ArtifactHTMLMin
	out = renderHTMLDoc(t, placeholder, RenderOptions{})
	if !strings.Contains(out, "[video: clip.mp4]") {
		t.Fatal("expected placeholder mention")
	}
	if strings.Contains(out, "<img") {
		t.Fatal("placeholder output must not carry media tags")
	}
}

func TestHTMLRendererEmbeddedMediaKinds(t *testing.T) {
	doc := Document{
		Title: "T",
		Messages: []Message{
			{Sender: "a", Attachments: []string{"v", "au", "doc"}},
		},
		Attachments: map[string]ResolvedAttachment{
			"v":   {ID: "v", Name: "clip.mp4", Kind: MediaVideo, Display: DisplayEmbedded, Source: "data:video/mp4;base64,AA"},
			"au":  {ID: "au", Name: "voice.wav", Kind: MediaAudio, Display: DisplayEmbedded, Source: "data:audio/wav;base64,AA"},
			"doc": {ID: "doc", Name: "notes.pdf", Kind: MediaDocument, Display: DisplayEmbedded, Source: "data:application/pdf;base64,AA"},
		},
		Kind: ArtifactHTMLMax,
	}

	out := renderHTMLDoc(t, doc, RenderOptions{})
	if !strings.Contains(out, "<video controls") {
		t.Fatal("expected video element")
	}
	if !strings.Contains(out, "<audio controls") {
		t.Fatal("expected audio element")
	}
	if !strings.Contains(out, `download="notes.pdf"`) {
		t.Fatal("expected download link for documents")
	}
}

func TestHTMLRendererDeterministic(t *testing.T) {
	doc := Document{
		Title:        "T",
		Participants: []string{"a", "b"},
		Messages: []Message{
			{Sender: "a", Timestamp: "2024-06-01", Text: "hello"},
			{Sender: "b", Text: "hi"},
		},
		Kind: ArtifactHTMLMin,
	}

	first := renderHTMLDoc(t, doc, RenderOptions{})
	second := renderHTMLDoc(t, doc, RenderOptions{})
	if first != second {
		t.Fatal("expected byte-identical output for identical documents")
	}
}

func TestHTMLRendererStats(t *testing.T) {
	doc := Document{
		Title: "T",
		Messages: []Message{
			{Sender: "a", Text: "one", Attachments: []string{"att1", "ghost"}},
			{Sender: "b", Text: "two"},
		},
		Attachments: map[string]ResolvedAttachment{
			"att1": {ID: "att1", Name: "p.png", Kind: MediaImage, Display: DisplayPlaceholder},
		},
		Kind: ArtifactHTMLMin,
	}

	var buf bytes.Buffer
	stats, err := HTMLRenderer{}.Render(context.Background(), doc, &buf, RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if stats.Messages != 2 {
		t.Fatalf("expected 2 messages, got %d", stats.Messages)
	}
	// Unresolved ids are skipped, not counted.
	if stats.Attachments != 1 {
		t.Fatalf("expected 1 attachment, got %d", stats.Attachments)
	}
}

func TestHTMLRendererCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if _, err := (HTMLRenderer{}).Render(ctx, Document{}, &buf, RenderOptions{}); err == nil {
		t.Fatal("expected context error")
	}
	if buf.Len() != 0 {
		t.Fatal("expected no output after cancellation")
	}
}
