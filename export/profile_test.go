package export

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfileFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeProfileFile(t, `
output_dir = "/tmp/bundles"
base_name = "family"
variants = ["thumbs", "min"]
sidecar = true
allow_overwrite = true
size_class = "lg"
format = "json"
theme = "dark"
lang = "de"
message_limit = 50
workers = 8
history_db = "runs.db"
`)

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if p.OutputDir != "/tmp/bundles" || p.BaseName != "family" {
		t.Fatalf("unexpected paths %+v", p)
	}
	// Aliases normalize to canonical names on load.
	if len(p.Variants) != 2 || p.Variants[0] != "mid" || p.Variants[1] != "min" {
		t.Fatalf("unexpected variants %v", p.Variants)
	}
	if p.SizeClass != "large" {
		t.Fatalf("expected normalized size class, got %q", p.SizeClass)
	}
	if !p.Sidecar || !p.AllowOverwrite || p.Theme != "dark" || p.Lang != "de" {
		t.Fatalf("unexpected flags %+v", p)
	}
	if p.MessageLimit != 50 || p.Workers != 8 || p.HistoryDB != "runs.db" {
		t.Fatalf("unexpected tuning %+v", p)
	}
}

func TestLoadProfileDefaults(t *testing.T) {
	path := writeProfileFile(t, "")

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.OutputDir != "." || p.SizeClass != "medium" || p.Theme != "light" || p.Lang != "en" {
		t.Fatalf("unexpected defaults %+v", p)
	}
	if len(p.Variants) != 0 {
		t.Fatalf("expected empty variants to mean all, got %v", p.Variants)
	}
}

func TestLoadProfileErrors(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.toml")); KindFromError(err) != KindInput {
		t.Fatalf("expected input kind for missing file, got %v", err)
	}

	if _, err := LoadProfile(writeProfileFile(t, "not toml [")); KindFromError(err) != KindInput {
		t.Fatalf("expected input kind for malformed file, got %v", err)
	}

	cases := []struct {
		name    string
		content string
	}{
		{"unknown variant", `variants = ["huge"]`},
		{"unknown theme", `theme = "sepia"`},
		{"unknown format", `format = "xml"`},
	}
	for _, tc := range cases {
		_, err := LoadProfile(writeProfileFile(t, tc.content))
		if err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
		if KindFromError(err) != KindValidation {
			t.Fatalf("%s: expected validation kind, got %v", tc.name, err)
		}
	}
}

func TestProfileSetDefaultsClampsNegatives(t *testing.T) {
	p := &Profile{MessageLimit: -5, Workers: -1}
	p.SetDefaults()
	if p.MessageLimit != 0 || p.Workers != 0 {
		t.Fatalf("expected negatives clamped, got %+v", p)
	}
}

func TestProfileRequest(t *testing.T) {
	p := &Profile{
		OutputDir:      "/out",
		BaseName:       "family",
		Variants:       []string{"max", "min"},
		Sidecar:        true,
		AllowOverwrite: true,
		SizeClass:      "small",
		Format:         "lines",
		Theme:          "dark",
		Lang:           "fr",
		MessageLimit:   10,
	}

	req := p.Request(nil)

	if req.OutputDir != "/out" || req.BaseName != "family" || req.Format != "lines" {
		t.Fatalf("unexpected request %+v", req)
	}
	if len(req.Variants) != 2 || req.Variants[0] != VariantEmbedAll || req.Variants[1] != VariantTextOnly {
		t.Fatalf("unexpected variants %v", req.Variants)
	}
	if !req.Sidecar || !req.AllowOverwrite || req.SizeClass != SizeSmall {
		t.Fatalf("unexpected flags %+v", req)
	}
	if req.RenderOptions.HTML.Theme != "dark" || req.RenderOptions.HTML.Lang != "fr" {
		t.Fatalf("unexpected html options %+v", req.RenderOptions.HTML)
	}
	if req.RenderOptions.Markdown.MessageLimit != 10 {
		t.Fatalf("unexpected markdown options %+v", req.RenderOptions.Markdown)
	}
}
