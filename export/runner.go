package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner orchestrates export execution. One Run call is sequential from
// the caller's perspective; per-variant rendering and per-attachment
// thumbnail generation run concurrently inside it. The thumbnail store
// is owned by the runner and shared across its runs, so repeated exports
// of the same content never re-encode thumbnails.
type Runner struct {
	Renderers   *RendererRegistry
	Parsers     *ParserRegistry
	Thumbs      *ThumbStore
	Tracker     RunTracker
	Logger      Logger
	Emitter     ChangeEmitter
	Metrics     MetricsHook
	Now         func() time.Time
	IDGenerator func() string
	// Workers bounds concurrent thumbnail generation. <=0 means the
	// default of 4.
	Workers int
	// MaxDuration bounds one run. 0 means no limit.
	MaxDuration time.Duration
}

const defaultWorkers = 4

// NewRunner creates a runner with default registries and a fresh
// thumbnail store.
func NewRunner() *Runner {
	return &Runner{
		Renderers:   NewDefaultRendererRegistry(),
		Parsers:     NewDefaultParserRegistry(),
		Thumbs:      NewThumbStore(),
		Logger:      NopLogger{},
		Now:         time.Now,
		IDGenerator: defaultIDGenerator(),
	}
}

// Run executes one export pass: snapshot, parse, render every requested
// variant, write the bundle, manifest and checksum. A render failure for
// any variant aborts the whole call; partial bundles are never reported
// as success.
func (r *Runner) Run(ctx context.Context, req ExportRequest) (ExportResult, error) {
	if r == nil {
		return ExportResult{}, AsGoError(NewError(KindInternal, "runner is nil", nil))
	}
	if r.Renderers == nil || r.Parsers == nil {
		return ExportResult{}, AsGoError(NewError(KindInternal, "runner registries are not configured", nil))
	}
	if r.Thumbs == nil {
		r.Thumbs = NewThumbStore()
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.Logger == nil {
		r.Logger = NopLogger{}
	}
	if r.IDGenerator == nil {
		r.IDGenerator = defaultIDGenerator()
	}

	ctx, cancel := applyMaxDuration(ctx, r.Now, r.MaxDuration)
	if cancel != nil {
		defer cancel()
	}

	variants, err := normalizeVariants(req.Variants)
	if err != nil {
		return ExportResult{}, AsGoError(err)
	}
	size := NormalizeSizeClass(req.SizeClass)
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = "."
	}

	snapshot, err := r.resolveSnapshot(ctx, req)
	if err != nil {
		return ExportResult{}, AsGoError(err)
	}

	chat, err := r.parseChat(ctx, req.Format, snapshot)
	if err != nil {
		return ExportResult{}, AsGoError(err)
	}
	// An explicit title in the chat text wins over the source's derived
	// title (usually a directory or archive name).
	if chat.Title != "" {
		snapshot.Title = chat.Title
	} else {
		chat.Title = snapshot.Title
	}

	policy := NewNamePolicy(outputDir, snapshot, req.BaseName)
	kinds := ExpectedKinds(variants, req.Sidecar)

	exportID := r.IDGenerator()
	if r.Tracker != nil {
		record := RunRecord{
			ID:             exportID,
			BaseName:       policy.BaseName,
			OutputDir:      outputDir,
			Variants:       variantNames(variants),
			Sidecar:        req.Sidecar,
			AllowOverwrite: req.AllowOverwrite,
			State:          RunRunning,
			CreatedAt:      r.Now(),
		}
		id, err := r.Tracker.Start(ctx, record)
		if err != nil {
			return ExportResult{}, AsGoError(err)
		}
		if id != "" {
			exportID = id
		}
	}

	info := buildRunInfo(exportID, policy, variants, req.Sidecar, len(kinds), size, r.Now)
	r.emit(ctx, info, "export.requested", nil)
	r.emitMetrics(ctx, info, "export.requested", ExportResult{}, nil)
	r.emit(ctx, info, "export.started", nil)

	result, err := r.run(ctx, req, info, policy, variants, kinds, size, snapshot, chat)
	if err != nil {
		r.fail(ctx, info, err)
		return ExportResult{}, AsGoError(err)
	}
	result.ID = exportID

	if r.Tracker != nil {
		_ = r.Tracker.Complete(ctx, exportID, result)
	}
	r.emit(ctx, info, "export.completed", map[string]any{
		"artifacts":   len(result.Artifacts),
		"bytes":       result.Bytes,
		"bundle_hash": result.BundleHash,
		"duration":    r.Now().Sub(info.startedAt),
	})
	r.emitMetrics(ctx, info, "export.completed", result, nil)

	return result, nil
}

// run performs the write phase behind the lifecycle bookkeeping.
func (r *Runner) run(ctx context.Context, req ExportRequest, info runInfo, policy NamePolicy, variants []Variant, kinds []ArtifactKind, size SizeClass, snapshot ChatSnapshot, chat Chat) (ExportResult, error) {
	if err := policy.CheckCollisions(kinds, req.AllowOverwrite); err != nil {
		return ExportResult{}, err
	}

	sweep, err := policy.SweepSuffixArtifacts()
	if err != nil {
		return ExportResult{}, err
	}
	for _, name := range sweep.Removed {
		r.Logger.Infof("removed suffix artifact %q from output root", name)
	}
	for _, name := range sweep.Suspects {
		r.Logger.Errorf("entry %q looks like a platform duplicate of a managed artifact; not removed", name)
	}

	byID, err := loadAttachments(snapshot)
	if err != nil {
		return ExportResult{}, err
	}
	input := resolvedInput{chat: chat, byID: byID, refIDs: referencedIDs(chat, byID)}

	workers := r.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if containsVariant(variants, VariantThumbnails) {
		if err := prefetchThumbnails(ctx, r.Thumbs, size, input, workers); err != nil {
			return ExportResult{}, err
		}
	}

	var plan *SidecarPlan
	var planThumbs []Thumbnail
	if req.Sidecar {
		refs, thumbs := collectSidecarInputs(ctx, r.Thumbs, size, input, variants)
		built := BuildSidecarPlan(policy.BaseName, refs, thumbs)
		plan = &built
		planThumbs = thumbs
	}

	renderKinds := renderableKinds(kinds)
	rendered := make([][]byte, len(renderKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range renderKinds {
		g.Go(func() error {
			renderer, ok := r.Renderers.Resolve(kind)
			if !ok {
				return NewError(KindRender, fmt.Sprintf("renderer for %q not registered", kind), nil)
			}
			doc := Document{
				Title:        chat.Title,
				Participants: chat.Participants,
				Messages:     chat.Messages,
				Attachments:  buildResolutions(gctx, kind, input, r.Thumbs, size, plan),
				Kind:         kind,
				Sidecar:      req.Sidecar,
			}
			var buf bytes.Buffer
			if _, err := renderer.Render(gctx, doc, &buf, req.RenderOptions); err != nil {
				return NewError(KindRender, fmt.Sprintf("render %q", kind), err)
			}
			rendered[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExportResult{}, err
	}

	artifacts := make([]ArtifactInfo, 0, len(kinds))
	for i, kind := range renderKinds {
		target, err := policy.WriteFileAtomic(kind, rendered[i])
		if err != nil {
			return ExportResult{}, err
		}
		artifacts = append(artifacts, ArtifactInfo{
			Kind:   kind,
			Name:   policy.FileName(kind),
			Path:   target,
			Bytes:  int64(len(rendered[i])),
			SHA256: HashBytes(rendered[i]),
		})
	}

	if req.Sidecar {
		dirInfo, err := writeSidecarTree(policy, *plan, input, planThumbs)
		if err != nil {
			return ExportResult{}, err
		}
		artifacts = append(artifacts, dirInfo)
	}

	manifest, manifestBytes, err := FinalizeManifest(BuildManifest(policy.BaseName, variants, req.Sidecar, artifacts))
	if err != nil {
		return ExportResult{}, err
	}
	manifestPath, err := policy.WriteFileAtomic(ArtifactManifest, manifestBytes)
	if err != nil {
		return ExportResult{}, err
	}
	artifacts = append(artifacts, ArtifactInfo{
		Kind:   ArtifactManifest,
		Name:   policy.FileName(ArtifactManifest),
		Path:   manifestPath,
		Bytes:  int64(len(manifestBytes)),
		SHA256: HashBytes(manifestBytes),
	})

	checksumBytes := []byte(ChecksumContent(manifest.BundleHashSha256))
	checksumPath, err := policy.WriteFileAtomic(ArtifactChecksum, checksumBytes)
	if err != nil {
		return ExportResult{}, err
	}
	artifacts = append(artifacts, ArtifactInfo{
		Kind:   ArtifactChecksum,
		Name:   policy.FileName(ArtifactChecksum),
		Path:   checksumPath,
		Bytes:  int64(len(checksumBytes)),
		SHA256: HashBytes(checksumBytes),
	})

	var total int64
	for _, a := range artifacts {
		total += a.Bytes
	}

	return ExportResult{
		BaseName:     policy.BaseName,
		OutputDir:    policy.OutputDir,
		PrimaryPath:  primaryArtifactPath(policy, kinds),
		ManifestPath: manifestPath,
		ChecksumPath: checksumPath,
		BundleHash:   manifest.BundleHashSha256,
		Artifacts:    artifacts,
		Bytes:        total,
		Counters:     r.Thumbs.Counters(),
	}, nil
}

// resolveSnapshot yields the chat snapshot from the request: an inline
// snapshot wins, otherwise the snapshot source is consulted.
func (r *Runner) resolveSnapshot(ctx context.Context, req ExportRequest) (ChatSnapshot, error) {
	if req.Snapshot != nil {
		return *req.Snapshot, nil
	}
	if req.Source == nil {
		return ChatSnapshot{}, NewError(KindInput, "chat source is required", nil)
	}
	snapshot, err := req.Source.Snapshot(ctx)
	if err != nil {
		if KindFromError(err) != KindInternal {
			return ChatSnapshot{}, err
		}
		return ChatSnapshot{}, NewError(KindInput, "resolve chat source", err)
	}
	return snapshot, nil
}

// parseChat parses the snapshot's chat text with the requested or
// detected parser. Snapshots carrying a pre-parsed chat skip parsing.
func (r *Runner) parseChat(ctx context.Context, format string, snapshot ChatSnapshot) (Chat, error) {
	if snapshot.Chat != nil {
		return *snapshot.Chat, nil
	}
	data := snapshot.ChatData
	if data == nil {
		if snapshot.ChatPath == "" {
			return Chat{}, NewError(KindInput, "snapshot has no chat text", nil)
		}
		read, err := os.ReadFile(snapshot.ChatPath)
		if err != nil {
			return Chat{}, NewError(KindInput, fmt.Sprintf("read chat text %q", snapshot.ChatPath), err)
		}
		data = read
	}
	if format == "" {
		format = DetectFormat(data)
	}
	parser, ok := r.Parsers.Resolve(format)
	if !ok {
		return Chat{}, NewError(KindInput, fmt.Sprintf("parser for %q not registered", format), nil)
	}
	return parser.Parse(ctx, bytes.NewReader(data))
}

// writeSidecarTree materializes the sidecar directory: the planned
// attachment files plus the _thumbs subfolder, built in a temp tree and
// renamed into place.
func writeSidecarTree(policy NamePolicy, plan SidecarPlan, input resolvedInput, thumbs []Thumbnail) (ArtifactInfo, error) {
	entries := make([]ManifestFileEntry, 0, len(plan.Entries)+len(plan.Thumbs))
	var total int64

	target, err := policy.ReplaceDir(ArtifactSidecarDir, func(dir string) error {
		for _, entry := range plan.Entries {
			att, ok := input.byID[entry.SourceID]
			if !ok {
				return NewError(KindInternal, fmt.Sprintf("planned entry %q has no source attachment", entry.FileName), nil)
			}
			if err := os.WriteFile(filepath.Join(dir, entry.FileName), att.Bytes, 0o644); err != nil {
				return NewError(KindInternal, fmt.Sprintf("write sidecar entry %q", entry.FileName), err)
			}
			entries = append(entries, ManifestFileEntry{
				Path:   path.Join(plan.DirName, entry.FileName),
				SHA256: HashBytes(att.Bytes),
			})
			total += int64(len(att.Bytes))
		}

		thumbsDir := filepath.Join(dir, ThumbsDirName)
		if err := os.MkdirAll(thumbsDir, 0o755); err != nil {
			return NewError(KindInternal, "create thumbs directory", err)
		}
		byKey := make(map[ThumbKey]Thumbnail, len(thumbs))
		for _, t := range thumbs {
			byKey[t.Key] = t
		}
		for _, planned := range plan.Thumbs {
			thumb, ok := byKey[planned.Key]
			if !ok {
				return NewError(KindInternal, fmt.Sprintf("planned thumbnail %q has no generated bytes", planned.FileName), nil)
			}
			if err := os.WriteFile(filepath.Join(thumbsDir, planned.FileName), thumb.Data, 0o644); err != nil {
				return NewError(KindInternal, fmt.Sprintf("write thumbnail %q", planned.FileName), err)
			}
			entries = append(entries, ManifestFileEntry{
				Path:   path.Join(plan.DirName, ThumbsDirName, planned.FileName),
				SHA256: HashBytes(thumb.Data),
			})
			total += int64(len(thumb.Data))
		}
		return nil
	})
	if err != nil {
		return ArtifactInfo{}, err
	}

	return ArtifactInfo{
		Kind:    ArtifactSidecarDir,
		Name:    plan.DirName,
		Path:    target,
		Dir:     true,
		Bytes:   total,
		SHA256:  DirEntriesHash(entries),
		Entries: sortedEntries(entries),
	}, nil
}

func sortedEntries(entries []ManifestFileEntry) []ManifestFileEntry {
	out := make([]ManifestFileEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// renderableKinds filters the expected kinds down to those produced by a
// renderer.
func renderableKinds(kinds []ArtifactKind) []ArtifactKind {
	out := make([]ArtifactKind, 0, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case ArtifactSidecarDir, ArtifactManifest, ArtifactChecksum:
			continue
		}
		out = append(out, kind)
	}
	return out
}

// primaryArtifactPath picks the densest rendered artifact as the primary
// result path.
func primaryArtifactPath(policy NamePolicy, kinds []ArtifactKind) string {
	for _, kind := range []ArtifactKind{ArtifactHTMLMax, ArtifactHTMLMid, ArtifactHTMLMin, ArtifactHTMLSdc, ArtifactMarkdown} {
		for _, candidate := range kinds {
			if candidate == kind {
				return policy.Path(kind)
			}
		}
	}
	return ""
}

// normalizeVariants dedupes and validates the requested variants. The
// result keeps canonical density order; empty means all three.
func normalizeVariants(requested []Variant) ([]Variant, error) {
	if len(requested) == 0 {
		return DefaultVariants(), nil
	}
	seen := make(map[Variant]bool, len(requested))
	for _, v := range requested {
		normalized := NormalizeVariant(v)
		if !KnownVariant(normalized) {
			return nil, NewError(KindValidation, fmt.Sprintf("unknown variant %q", v), nil)
		}
		seen[normalized] = true
	}
	out := make([]Variant, 0, len(seen))
	for _, v := range DefaultVariants() {
		if seen[v] {
			out = append(out, v)
		}
	}
	return out, nil
}

func variantNames(variants []Variant) []string {
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = string(v)
	}
	return names
}

func (r *Runner) fail(ctx context.Context, info runInfo, err error) {
	if info.runID == "" {
		return
	}

	if r.Tracker != nil {
		_ = r.Tracker.Fail(ctx, info.runID, err)
	}

	name := "export.failed"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		name = "export.canceled"
	}
	r.emit(ctx, info, name, map[string]any{
		"error":      err.Error(),
		"error_kind": KindFromError(err),
		"duration":   r.Now().Sub(info.startedAt),
	})
	r.emitMetrics(ctx, info, name, ExportResult{}, err)
}

func (r *Runner) emit(ctx context.Context, info runInfo, name string, meta map[string]any) {
	if r.Emitter == nil {
		return
	}
	_ = r.Emitter.Emit(ctx, ChangeEvent{
		Name:      name,
		RunID:     info.runID,
		BaseName:  info.baseName,
		Variants:  info.variants,
		Sidecar:   info.sidecar,
		Timestamp: r.Now(),
		Metadata:  mergeMetadata(info.baseMeta, meta),
	})
}

func (r *Runner) emitMetrics(ctx context.Context, info runInfo, name string, result ExportResult, err error) {
	if r.Metrics == nil {
		return
	}
	now := r.Now()
	kind := ErrorKind("")
	if err != nil {
		kind = KindFromError(err)
	}
	_ = r.Metrics.Emit(ctx, MetricsEvent{
		Name:            name,
		RunID:           info.runID,
		BaseName:        info.baseName,
		Variants:        info.variants,
		Artifacts:       len(result.Artifacts),
		Bytes:           result.Bytes,
		ThumbsGenerated: result.Counters.ThumbStoreGenerated,
		Duration:        now.Sub(info.startedAt),
		ErrorKind:       kind,
		Timestamp:       now,
	})
}

type runInfo struct {
	runID     string
	baseName  string
	variants  []string
	sidecar   bool
	startedAt time.Time
	baseMeta  map[string]any
}

func buildRunInfo(runID string, policy NamePolicy, variants []Variant, sidecar bool, expectedArtifacts int, size SizeClass, nowFn func() time.Time) runInfo {
	now := time.Now
	if nowFn != nil {
		now = nowFn
	}
	return runInfo{
		runID:     runID,
		baseName:  policy.BaseName,
		variants:  variantNames(variants),
		sidecar:   sidecar,
		startedAt: now(),
		baseMeta: map[string]any{
			"output_dir":         policy.OutputDir,
			"sidecar":            sidecar,
			"size_class":         string(size),
			"expected_artifacts": expectedArtifacts,
		},
	}
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func applyMaxDuration(ctx context.Context, nowFn func() time.Time, limit time.Duration) (context.Context, context.CancelFunc) {
	if limit <= 0 {
		return ctx, nil
	}
	now := time.Now
	if nowFn != nil {
		now = nowFn
	}
	deadline := now().Add(limit)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return ctx, nil
	}
	return context.WithDeadline(ctx, deadline)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

func defaultIDGenerator() func() string {
	return func() string {
		return "run-" + uuid.NewString()
	}
}
