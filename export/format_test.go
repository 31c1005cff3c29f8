package export

import "testing"

func TestNormalizeVariant(t *testing.T) {
	cases := []struct {
		in   Variant
		want Variant
	}{
		{"", VariantEmbedAll},
		{"max", VariantEmbedAll},
		{"EMBED-ALL", VariantEmbedAll},
		{"full", VariantEmbedAll},
		{"mid", VariantThumbnails},
		{"thumbs", VariantThumbnails},
		{" Thumbnails ", VariantThumbnails},
		{"min", VariantTextOnly},
		{"text-only", VariantTextOnly},
		{"sparse", VariantTextOnly},
		{"bogus", Variant("bogus")},
	}

	for _, tc := range cases {
		if got := NormalizeVariant(tc.in); got != tc.want {
			t.Fatalf("NormalizeVariant(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if KnownVariant(Variant("bogus")) {
		t.Fatal("expected bogus variant to be unknown")
	}
	for _, v := range DefaultVariants() {
		if !KnownVariant(v) {
			t.Fatalf("expected %q to be known", v)
		}
	}
}

func TestDefaultVariantsOrder(t *testing.T) {
	got := DefaultVariants()
	want := []Variant{VariantEmbedAll, VariantThumbnails, VariantTextOnly}
	if len(got) != len(want) {
		t.Fatalf("expected %d variants, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %q at %d, got %q", want[i], i, got[i])
		}
	}
}

func TestArtifactKindForVariant(t *testing.T) {
	cases := []struct {
		in   Variant
		want ArtifactKind
	}{
		{VariantEmbedAll, ArtifactHTMLMax},
		{VariantThumbnails, ArtifactHTMLMid},
		{VariantTextOnly, ArtifactHTMLMin},
		{Variant("bogus"), ArtifactKind("")},
	}
	for _, tc := range cases {
		if got := ArtifactKindForVariant(tc.in); got != tc.want {
			t.Fatalf("ArtifactKindForVariant(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeSizeClass(t *testing.T) {
	cases := []struct {
		in   SizeClass
		want SizeClass
	}{
		{"", SizeMedium},
		{"m", SizeMedium},
		{"med", SizeMedium},
		{"small", SizeSmall},
		{"SM", SizeSmall},
		{"lg", SizeLarge},
		{"Large", SizeLarge},
		{"huge", SizeClass("huge")},
	}
	for _, tc := range cases {
		if got := NormalizeSizeClass(tc.in); got != tc.want {
			t.Fatalf("NormalizeSizeClass(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSizeClassMaxPixels(t *testing.T) {
	if got := SizeSmall.MaxPixels(); got != 128 {
		t.Fatalf("small = %d", got)
	}
	if got := SizeMedium.MaxPixels(); got != 320 {
		t.Fatalf("medium = %d", got)
	}
	if got := SizeLarge.MaxPixels(); got != 640 {
		t.Fatalf("large = %d", got)
	}
	if got := SizeClass("bogus").MaxPixels(); got != 320 {
		t.Fatalf("expected medium fallback, got %d", got)
	}
}

func TestMediaKindFromName(t *testing.T) {
	cases := []struct {
		name string
		want MediaKind
	}{
		{"IMG_0001.JPG", MediaImage},
		{"photo.webp", MediaImage},
		{"clip.mp4", MediaVideo},
		{"voice.opus", MediaAudio},
		{"notes.pdf", MediaDocument},
		{"contact.vcf", MediaDocument},
		{"archive.xyz", MediaUnknown},
		{"noext", MediaUnknown},
	}
	for _, tc := range cases {
		if got := MediaKindFromName(tc.name); got != tc.want {
			t.Fatalf("MediaKindFromName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestMIMEForName(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"photo.jpeg", "image/jpeg"},
		{"photo.PNG", "image/png"},
		{"clip.mov", "video/quicktime"},
		{"voice.m4a", "audio/mp4"},
		{"notes.txt", "text/plain"},
		{"blob.bin", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := MIMEForName(tc.name); got != tc.want {
			t.Fatalf("MIMEForName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
