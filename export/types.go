package export

import (
	"context"
	"io"
	"time"
)

// Variant is an attachment-density rendering of the same chat.
type Variant string

const (
	// VariantEmbedAll inlines full media as data URIs.
	VariantEmbedAll Variant = "max"
	// VariantThumbnails inlines or sidecar-references downscaled thumbnails.
	VariantThumbnails Variant = "mid"
	// VariantTextOnly omits media, emitting placeholder text.
	VariantTextOnly Variant = "min"
)

// MediaKind is the declared kind of an attachment.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaUnknown  MediaKind = "unknown"
)

// SizeClass is a thumbnail target pixel class.
type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// ContentKey is the hex sha256 of an attachment's raw bytes. Two
// attachments with identical bytes share a key regardless of name.
type ContentKey string

// ThumbKey identifies one thumbnail in the store.
type ThumbKey struct {
	Content ContentKey
	Size    SizeClass
}

// Attachment describes one media file referenced by the chat.
type Attachment struct {
	ID   string
	Name string
	Kind MediaKind
	Path string
	Data []byte
}

// Message is one parsed chat message.
type Message struct {
	Sender      string
	Timestamp   string
	Text        string
	Attachments []string
}

// Chat is the parsed message model handed to renderers.
type Chat struct {
	Title        string
	Participants []string
	Messages     []Message
}

// ChatSnapshot is an immutable view of one chat export input: the chat
// text plus its attachment files. Owned by the caller, read-only for the
// pipeline, lifetime one export invocation.
type ChatSnapshot struct {
	Title       string
	ChatPath    string
	ChatData    []byte
	Attachments []Attachment

	// Chat carries an already-parsed message model. Sources reading
	// structured stores set it so the pipeline skips text parsing.
	Chat *Chat
}

// SnapshotSource resolves a user-supplied input into a ChatSnapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (ChatSnapshot, error)
}

// ChatParser parses chat text into the message model.
type ChatParser interface {
	Parse(ctx context.Context, r io.Reader) (Chat, error)
}

// AttachmentDisplay selects how a resolved attachment is rendered.
type AttachmentDisplay string

const (
	DisplayEmbedded    AttachmentDisplay = "embedded"
	DisplayThumbnail   AttachmentDisplay = "thumbnail"
	DisplayLinked      AttachmentDisplay = "linked"
	DisplayPlaceholder AttachmentDisplay = "placeholder"
)

// ResolvedAttachment is one attachment resolved for a specific variant.
// Source and Thumb are either data URIs or paths relative to the output
// root; which fields are set depends on Display.
type ResolvedAttachment struct {
	ID      string
	Name    string
	Kind    MediaKind
	Display AttachmentDisplay
	Source  string
	Thumb   string
}

// Document is the immutable input handed to a renderer: the parsed chat
// plus the per-variant attachment resolution context.
type Document struct {
	Title        string
	Participants []string
	Messages     []Message
	Attachments  map[string]ResolvedAttachment
	Kind         ArtifactKind
	Sidecar      bool
}

// Renderer produces the bytes for one artifact. Renderers perform no I/O
// beyond the writer and know nothing about naming or overwrite policy.
type Renderer interface {
	Render(ctx context.Context, doc Document, w io.Writer, opts RenderOptions) (RenderStats, error)
}

// RenderStats capture renderer output.
type RenderStats struct {
	Messages    int64
	Attachments int64
	Bytes       int64
}

// HTMLOptions configures HTML output.
type HTMLOptions struct {
	Theme string
	Lang  string
}

// MarkdownOptions configures the markdown summary.
type MarkdownOptions struct {
	MessageLimit int
}

// RenderOptions configures renderer behavior.
type RenderOptions struct {
	HTML     HTMLOptions
	Markdown MarkdownOptions
}

// ArtifactKind names a logical output unit.
type ArtifactKind string

const (
	ArtifactHTMLMax    ArtifactKind = "html-max"
	ArtifactHTMLMid    ArtifactKind = "html-mid"
	ArtifactHTMLMin    ArtifactKind = "html-min"
	ArtifactMarkdown   ArtifactKind = "markdown"
	ArtifactHTMLSdc    ArtifactKind = "html-sdc"
	ArtifactSidecarDir ArtifactKind = "sidecar"
	ArtifactManifest   ArtifactKind = "manifest"
	ArtifactChecksum   ArtifactKind = "checksum"
)

// ArtifactInfo describes one written artifact.
type ArtifactInfo struct {
	Kind   ArtifactKind
	Name   string
	Path   string
	Dir    bool
	Bytes  int64
	SHA256 string
	// Entries lists the files inside a directory artifact, sorted by
	// path. Empty for regular files.
	Entries []ManifestFileEntry
}

// ManifestFileEntry is one file inside a directory artifact.
type ManifestFileEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ManifestEntry is one artifact in the manifest. Directory entries carry
// their per-file hashes; the directory hash covers the sorted entry list.
type ManifestEntry struct {
	Name    string              `json:"name"`
	Path    string              `json:"path"`
	Kind    string              `json:"kind"`
	SHA256  string              `json:"sha256"`
	Entries []ManifestFileEntry `json:"entries,omitempty"`
}

// Manifest is the integrity document for one bundle. Content is a pure
// function of chat content and configuration: no wall-clock time, no
// random identifiers, no uncanonicalized iteration order. Field set is
// append-only-stable.
type Manifest struct {
	SchemaVersion    int             `json:"schemaVersion"`
	BaseName         string          `json:"baseName"`
	Variants         []string        `json:"variants"`
	Sidecar          bool            `json:"sidecar"`
	Artifacts        []ManifestEntry `json:"artifacts"`
	BundleHashSha256 string          `json:"bundleHashSha256"`
}

// ExportRequest captures one export pass.
type ExportRequest struct {
	Source         SnapshotSource
	Snapshot       *ChatSnapshot
	OutputDir      string
	BaseName       string
	Format         string
	Variants       []Variant
	Sidecar        bool
	AllowOverwrite bool
	SizeClass      SizeClass
	RenderOptions  RenderOptions
}

// Counters is an inspectable snapshot of pipeline work counters.
type Counters struct {
	ThumbStoreGenerated int64
	ThumbStoreHits      int64
	ThumbStoreFailed    int64
}

// ExportResult captures a completed export pass.
type ExportResult struct {
	ID           string
	BaseName     string
	OutputDir    string
	PrimaryPath  string
	ManifestPath string
	ChecksumPath string
	BundleHash   string
	Artifacts    []ArtifactInfo
	Bytes        int64
	Counters     Counters
}

// RunState captures run history states.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RunRecord captures tracker state for one export pass.
type RunRecord struct {
	ID              string
	BaseName        string
	OutputDir       string
	Variants        []string
	Sidecar         bool
	AllowOverwrite  bool
	State           RunState
	Artifacts       int
	BytesWritten    int64
	ThumbsGenerated int64
	BundleHash      string
	Error           string
	CreatedAt       time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
}

// RunFilter filters tracker lists.
type RunFilter struct {
	BaseName string
	State    RunState
	Since    time.Time
	Until    time.Time
}

// RunTracker records export run history.
type RunTracker interface {
	Start(ctx context.Context, record RunRecord) (string, error)
	Complete(ctx context.Context, id string, result ExportResult) error
	Fail(ctx context.Context, id string, err error) error
	Status(ctx context.Context, id string) (RunRecord, error)
	List(ctx context.Context, filter RunFilter) ([]RunRecord, error)
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// ChangeEvent describes lifecycle events.
type ChangeEvent struct {
	Name      string
	RunID     string
	BaseName  string
	Variants  []string
	Sidecar   bool
	Timestamp time.Time
	Metadata  map[string]any
}

// ChangeEmitter emits lifecycle events.
type ChangeEmitter interface {
	Emit(ctx context.Context, evt ChangeEvent) error
}

// MetricsEvent describes lifecycle metrics.
type MetricsEvent struct {
	Name            string
	RunID           string
	BaseName        string
	Variants        []string
	Artifacts       int
	Bytes           int64
	ThumbsGenerated int64
	Duration        time.Duration
	ErrorKind       ErrorKind
	Timestamp       time.Time
}

// MetricsHook emits metrics-friendly lifecycle observations.
type MetricsHook interface {
	Emit(ctx context.Context, evt MetricsEvent) error
}
