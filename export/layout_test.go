package export

import (
	"strings"
	"testing"
)

func TestBuildSidecarPlanDedupesByContent(t *testing.T) {
	refs := []SidecarRef{
		{ID: "a1", Name: "photo.jpg", Key: "k1"},
		{ID: "a2", Name: "photo-copy.jpg", Key: "k1"},
		{ID: "a3", Name: "voice.opus", Key: "k2"},
	}

	plan := BuildSidecarPlan("chat", refs, nil)

	if plan.DirName != "chat" {
		t.Fatalf("unexpected dir name %q", plan.DirName)
	}
	if len(plan.Entries) != 2 {
		t.Fatalf("expected one entry per unique key, got %v", plan.Entries)
	}
	// Identical content shares one file under the lexically first name.
	if plan.Entries[0].FileName != "photo-copy.jpg" || plan.Entries[0].Key != "k1" {
		t.Fatalf("unexpected first entry %+v", plan.Entries[0])
	}
	if plan.Entries[1].FileName != "voice.opus" {
		t.Fatalf("unexpected second entry %+v", plan.Entries[1])
	}

	if href := plan.EntryHref("k1"); href != "chat/photo-copy.jpg" {
		t.Fatalf("unexpected href %q", href)
	}
	if href := plan.EntryHref("missing"); href != "" {
		t.Fatalf("expected empty href for unknown key, got %q", href)
	}
}

func TestBuildSidecarPlanDisambiguatesNameCollisions(t *testing.T) {
	refs := []SidecarRef{
		{ID: "a1", Name: "IMG.jpg", Key: "aaaa1111aaaa1111aaaa"},
		{ID: "a2", Name: "IMG.jpg", Key: "bbbb2222bbbb2222bbbb"},
	}

	plan := BuildSidecarPlan("chat", refs, nil)

	if len(plan.Entries) != 2 {
		t.Fatalf("expected two entries, got %v", plan.Entries)
	}
	names := map[string]bool{}
	for _, entry := range plan.Entries {
		names[entry.FileName] = true
		if !strings.HasPrefix(entry.FileName, "IMG-") || !strings.HasSuffix(entry.FileName, ".jpg") {
			t.Fatalf("expected content-key infix, got %q", entry.FileName)
		}
	}
	if len(names) != 2 {
		t.Fatalf("expected distinct file names, got %v", names)
	}
	if names["IMG (2).jpg"] {
		t.Fatal("numeric suffixes are reserved as a collision failure signal")
	}
}

func TestBuildSidecarPlanThumbs(t *testing.T) {
	thumbs := []Thumbnail{
		{Key: ThumbKey{Content: "k2", Size: SizeMedium}, Format: "png"},
		{Key: ThumbKey{Content: "k1", Size: SizeMedium}, Format: "jpeg"},
		{Key: ThumbKey{Content: "k1", Size: SizeMedium}, Format: "jpeg"},
	}

	plan := BuildSidecarPlan("chat", nil, thumbs)

	if len(plan.Thumbs) != 2 {
		t.Fatalf("expected duplicate thumb keys to collapse, got %v", plan.Thumbs)
	}
	for i := 1; i < len(plan.Thumbs); i++ {
		if plan.Thumbs[i-1].FileName > plan.Thumbs[i].FileName {
			t.Fatalf("expected sorted thumbs, got %v", plan.Thumbs)
		}
	}

	key := ThumbKey{Content: "k1", Size: SizeMedium}
	href := plan.ThumbHref(key)
	if href != "chat/_thumbs/k1_medium.jpg" {
		t.Fatalf("unexpected thumb href %q", href)
	}
	if plan.ThumbHref(ThumbKey{Content: "zz", Size: SizeMedium}) != "" {
		t.Fatal("expected empty href for unknown thumb")
	}
}

func TestSanitizeEntryName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"  spaced.jpg  ", "spaced.jpg"},
		{"nested/dir/file.png", "file.png"},
		{`bad:name*?.png`, "bad-name--.png"},
		{"", "attachment"},
		{"...", "attachment"},
		{"../../etc/passwd", "passwd"},
	}
	for _, tc := range cases {
		if got := sanitizeEntryName(tc.in); got != tc.want {
			t.Fatalf("sanitizeEntryName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
