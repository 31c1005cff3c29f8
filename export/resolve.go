package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// loadedAttachment is an attachment with its bytes and content key.
type loadedAttachment struct {
	Attachment
	Key   ContentKey
	Bytes []byte
}

// resolvedInput is everything derived from one snapshot for one run: the
// parsed chat, loaded attachments, and the set of attachment ids actually
// referenced by messages. Unreferenced attachments stay out of every
// variant and out of the sidecar plan.
type resolvedInput struct {
	chat   Chat
	byID   map[string]loadedAttachment
	refIDs []string
}

// loadAttachments reads every attachment's bytes and computes content
// keys. Any unreadable attachment fails the run as an input error.
func loadAttachments(snapshot ChatSnapshot) (map[string]loadedAttachment, error) {
	byID := make(map[string]loadedAttachment, len(snapshot.Attachments))
	for _, att := range snapshot.Attachments {
		data := att.Data
		if data == nil {
			if att.Path == "" {
				return nil, NewError(KindInput, fmt.Sprintf("attachment %q has no data or path", att.ID), nil)
			}
			read, err := os.ReadFile(att.Path)
			if err != nil {
				return nil, NewError(KindInput, fmt.Sprintf("read attachment %q", att.ID), err)
			}
			data = read
		}
		kind := att.Kind
		if kind == "" || kind == MediaUnknown {
			kind = MediaKindFromName(att.Name)
		}
		loaded := loadedAttachment{Attachment: att, Key: ContentKeyOf(data), Bytes: data}
		loaded.Kind = kind
		byID[att.ID] = loaded
	}
	return byID, nil
}

// referencedIDs returns attachment ids referenced by messages, in message
// order, deduplicated, restricted to ids the snapshot actually carries.
func referencedIDs(chat Chat, byID map[string]loadedAttachment) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(byID))
	for _, msg := range chat.Messages {
		for _, id := range msg.Attachments {
			if seen[id] {
				continue
			}
			if _, ok := byID[id]; !ok {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// prefetchThumbnails warms the store for every referenced image, one
// worker per semaphore slot. Generation for the same content key is
// coalesced inside the store, so concurrent workers never race a
// duplicate encode. Undecodable images are recorded by the store and
// resolved to fallbacks later; they do not fail the prefetch.
func prefetchThumbnails(ctx context.Context, store *ThumbStore, size SizeClass, input resolvedInput, workers int) error {
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	g, ctx := errgroup.WithContext(ctx)

	seen := make(map[ContentKey]bool)
	for _, id := range input.refIDs {
		att := input.byID[id]
		if att.Kind != MediaImage || seen[att.Key] {
			continue
		}
		seen[att.Key] = true

		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			_, err := store.GetOrCreate(ctx, ThumbKey{Content: att.Key, Size: size}, att.Bytes)
			if err != nil && !IsUnthumbnailable(err) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// collectSidecarInputs gathers the references and thumbnails that belong
// in the sidecar directory for the requested variants.
func collectSidecarInputs(ctx context.Context, store *ThumbStore, size SizeClass, input resolvedInput, variants []Variant) ([]SidecarRef, []Thumbnail) {
	refs := make([]SidecarRef, 0, len(input.refIDs))
	thumbs := make([]Thumbnail, 0, len(input.refIDs))

	wantThumbs := containsVariant(variants, VariantThumbnails)
	for _, id := range input.refIDs {
		att := input.byID[id]
		refs = append(refs, SidecarRef{ID: att.ID, Name: att.Name, Key: att.Key})

		if wantThumbs && att.Kind == MediaImage {
			thumb, err := store.GetOrCreate(ctx, ThumbKey{Content: att.Key, Size: size}, att.Bytes)
			if err == nil {
				thumbs = append(thumbs, thumb)
			}
		}
	}
	return refs, thumbs
}

// buildResolutions builds the attachment-resolution context for one
// artifact kind. EmbedAll inlines full media, Thumbnails goes through the
// store (inline or sidecar-referenced), TextOnly and every fallback emit
// placeholders carrying only declared kind and name.
func buildResolutions(ctx context.Context, kind ArtifactKind, input resolvedInput, store *ThumbStore, size SizeClass, plan *SidecarPlan) map[string]ResolvedAttachment {
	out := make(map[string]ResolvedAttachment, len(input.refIDs))
	for _, id := range input.refIDs {
		att := input.byID[id]
		resolved := ResolvedAttachment{ID: att.ID, Name: att.Name, Kind: att.Kind}

		switch kind {
		case ArtifactHTMLMax:
			resolved.Display = DisplayEmbedded
			resolved.Source = dataURI(MIMEForName(att.Name), att.Bytes)

		case ArtifactHTMLMid:
			resolved = resolveThumbnail(ctx, att, store, size, plan)

		case ArtifactHTMLSdc:
			resolved.Display = DisplayLinked
			if plan != nil {
				resolved.Source = plan.EntryHref(att.Key)
			}

		default: // text-only and anything unknown
			resolved.Display = DisplayPlaceholder
		}

		out[id] = resolved
	}
	return out
}

// resolveThumbnail resolves one attachment for the thumbnail variant. In
// sidecar mode thumbnails are referenced by relative path and originals
// linked externally; otherwise the thumbnail is inlined as a data URI.
// Unthumbnailable content falls back to a link (sidecar) or placeholder.
func resolveThumbnail(ctx context.Context, att loadedAttachment, store *ThumbStore, size SizeClass, plan *SidecarPlan) ResolvedAttachment {
	resolved := ResolvedAttachment{ID: att.ID, Name: att.Name, Kind: att.Kind}

	if att.Kind == MediaImage {
		thumb, err := store.GetOrCreate(ctx, ThumbKey{Content: att.Key, Size: size}, att.Bytes)
		if err == nil {
			resolved.Display = DisplayThumbnail
			if plan != nil {
				resolved.Thumb = plan.ThumbHref(thumb.Key)
				resolved.Source = plan.EntryHref(att.Key)
			} else {
				resolved.Thumb = dataURI("image/"+thumb.Format, thumb.Data)
			}
			return resolved
		}
	}

	if plan != nil {
		resolved.Display = DisplayLinked
		resolved.Source = plan.EntryHref(att.Key)
		return resolved
	}
	resolved.Display = DisplayPlaceholder
	return resolved
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
