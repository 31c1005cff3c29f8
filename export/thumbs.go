package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	_ "image/gif"

	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const thumbJPEGQuality = 85

// Thumbnail is one generated thumbnail.
type Thumbnail struct {
	Key    ThumbKey
	Data   []byte
	Format string
	Width  int
	Height int
}

// FileName returns the content-addressed file name used in sidecar mode.
// Identical content always maps to the same name.
func (t Thumbnail) FileName() string {
	ext := ".png"
	if t.Format == "jpeg" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s_%s%s", shortContentKey(t.Key.Content), t.Key.Size, ext)
}

func shortContentKey(key ContentKey) string {
	if len(key) > 16 {
		return string(key[:16])
	}
	return string(key)
}

// ThumbStore is a content-addressed thumbnail cache. For a fixed key the
// store returns byte-identical output on every call and generates the
// underlying bytes at most once per key, across variants and across
// repeated occurrences of identical content under different names.
// Concurrent requests for the same key are coalesced.
//
// The store is caller-owned: construct one per export call for isolated
// counters, or share one across calls to extend dedup across runs.
type ThumbStore struct {
	mu       sync.RWMutex
	entries  map[ThumbKey]Thumbnail
	failures map[ThumbKey]*Unthumbnailable
	group    singleflight.Group

	generated int64
	hits      int64
	failed    int64
}

// NewThumbStore creates an empty thumbnail store.
func NewThumbStore() *ThumbStore {
	return &ThumbStore{
		entries:  make(map[ThumbKey]Thumbnail),
		failures: make(map[ThumbKey]*Unthumbnailable),
	}
}

// GetOrCreate returns the thumbnail for key, generating it on first use.
// src must be the raw attachment bytes for key.Content. Undecodable
// sources return a typed Unthumbnailable error; callers fall back to a
// non-thumbnail representation and the export continues.
func (s *ThumbStore) GetOrCreate(ctx context.Context, key ThumbKey, src []byte) (Thumbnail, error) {
	if s == nil {
		return Thumbnail{}, NewError(KindInternal, "thumbnail store is nil", nil)
	}
	if err := ctx.Err(); err != nil {
		return Thumbnail{}, err
	}
	key.Size = NormalizeSizeClass(key.Size)
	if key.Content == "" {
		return Thumbnail{}, NewError(KindValidation, "content key is required", nil)
	}

	if thumb, failure, ok := s.lookup(key); ok {
		if failure != nil {
			return Thumbnail{}, failure
		}
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		return thumb, nil
	}

	flightKey := string(key.Content) + "|" + string(key.Size)
	v, err, _ := s.group.Do(flightKey, func() (any, error) {
		if thumb, failure, ok := s.lookup(key); ok {
			if failure != nil {
				return Thumbnail{}, error(failure)
			}
			return thumb, nil
		}
		return s.generate(key, src)
	})
	if err != nil {
		return Thumbnail{}, err
	}
	return v.(Thumbnail), nil
}

func (s *ThumbStore) lookup(key ThumbKey) (Thumbnail, *Unthumbnailable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if thumb, ok := s.entries[key]; ok {
		return thumb, nil, true
	}
	if failure, ok := s.failures[key]; ok {
		return Thumbnail{}, failure, true
	}
	return Thumbnail{}, nil, false
}

func (s *ThumbStore) generate(key ThumbKey, src []byte) (Thumbnail, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		failure := &Unthumbnailable{ContentKey: key.Content, Reason: "decode failed", Err: err}
		s.mu.Lock()
		s.failures[key] = failure
		s.failed++
		s.mu.Unlock()
		return Thumbnail{}, failure
	}

	scaled := downscale(img, key.Size.MaxPixels())

	var buf bytes.Buffer
	outFormat := "png"
	switch format {
	case "jpeg":
		outFormat = "jpeg"
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: thumbJPEGQuality})
	default:
		err = png.Encode(&buf, scaled)
	}
	if err != nil {
		failure := &Unthumbnailable{ContentKey: key.Content, Reason: "encode failed", Err: err}
		s.mu.Lock()
		s.failures[key] = failure
		s.failed++
		s.mu.Unlock()
		return Thumbnail{}, failure
	}

	bounds := scaled.Bounds()
	thumb := Thumbnail{
		Key:    key,
		Data:   buf.Bytes(),
		Format: outFormat,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}

	s.mu.Lock()
	s.entries[key] = thumb
	s.generated++
	s.mu.Unlock()
	return thumb, nil
}

// downscale fits img into a maxPx bounding box, preserving aspect ratio.
// Images already inside the box are re-encoded at original size so output
// stays a pure function of (content, size class).
func downscale(img image.Image, maxPx int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return img
	}
	if w <= maxPx && h <= maxPx {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst
	}

	tw, th := w, h
	if w >= h {
		tw = maxPx
		th = h * maxPx / w
	} else {
		th = maxPx
		tw = w * maxPx / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// Generated reports how many thumbnails this store has generated.
func (s *ThumbStore) Generated() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generated
}

// Counters returns an inspectable snapshot of store activity.
func (s *ThumbStore) Counters() Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counters{
		ThumbStoreGenerated: s.generated,
		ThumbStoreHits:      s.hits,
		ThumbStoreFailed:    s.failed,
	}
}

// Len reports how many thumbnails the store currently caches.
func (s *ThumbStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
