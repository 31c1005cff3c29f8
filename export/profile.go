package export

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Profile is a declarative export configuration, loadable from a TOML
// file. Every field has a documented default; values are normalized
// and clamped on load rather than trusted ad hoc.
type Profile struct {
	// OutputDir is where the bundle is written. Default: ".".
	OutputDir string `toml:"output_dir"`
	// BaseName overrides the base name derived from the chat title.
	BaseName string `toml:"base_name"`
	// Variants lists the requested density variants. Accepts the
	// canonical names (max, mid, min) and their aliases. Empty means
	// all three.
	Variants []string `toml:"variants"`
	// Sidecar enables the externalized-media layout.
	Sidecar bool `toml:"sidecar"`
	// AllowOverwrite replaces existing bundle files instead of failing.
	AllowOverwrite bool `toml:"allow_overwrite"`
	// SizeClass selects the thumbnail size: small, medium, large.
	// Default: medium.
	SizeClass string `toml:"size_class"`
	// Format names the chat text format: lines or json. Empty means
	// detect from content.
	Format string `toml:"format"`
	// Theme selects the HTML color theme: light or dark.
	Theme string `toml:"theme"`
	// Lang sets the HTML document language. Default: "en".
	Lang string `toml:"lang"`
	// MessageLimit caps messages in the Markdown summary. 0 means all.
	MessageLimit int `toml:"message_limit"`
	// Workers bounds concurrent thumbnail generation. 0 means the
	// runner default.
	Workers int `toml:"workers"`
	// HistoryDB is the SQLite path for run history. Empty disables
	// persistent tracking.
	HistoryDB string `toml:"history_db"`
}

// DefaultProfile returns a profile with documented defaults.
func DefaultProfile() *Profile {
	return &Profile{
		OutputDir: ".",
		SizeClass: string(SizeMedium),
		Theme:     "light",
		Lang:      "en",
	}
}

// LoadProfile reads a TOML profile from path. Missing fields keep
// their defaults; the result is validated before use.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	if _, err := os.Stat(path); err != nil {
		return nil, NewError(KindInput, fmt.Sprintf("profile %q not readable", path), err)
	}
	if _, err := toml.DecodeFile(path, p); err != nil {
		return nil, NewError(KindInput, fmt.Sprintf("decode profile %q", path), err)
	}
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// SetDefaults fills empty fields with their defaults.
func (p *Profile) SetDefaults() {
	if p.OutputDir == "" {
		p.OutputDir = "."
	}
	if p.SizeClass == "" {
		p.SizeClass = string(SizeMedium)
	}
	if p.Theme == "" {
		p.Theme = "light"
	}
	if p.Lang == "" {
		p.Lang = "en"
	}
	if p.MessageLimit < 0 {
		p.MessageLimit = 0
	}
	if p.Workers < 0 {
		p.Workers = 0
	}
}

// Validate normalizes variant names and rejects values with no
// defined meaning.
func (p *Profile) Validate() error {
	for i, v := range p.Variants {
		normalized := NormalizeVariant(Variant(v))
		if !KnownVariant(normalized) {
			return NewError(KindValidation, fmt.Sprintf("unknown variant %q", v), nil)
		}
		p.Variants[i] = string(normalized)
	}
	if p.Theme != "light" && p.Theme != "dark" {
		return NewError(KindValidation, fmt.Sprintf("unknown theme %q", p.Theme), nil)
	}
	if p.Format != "" && p.Format != FormatLines && p.Format != FormatJSON {
		return NewError(KindValidation, fmt.Sprintf("unknown chat format %q", p.Format), nil)
	}
	p.SizeClass = string(NormalizeSizeClass(SizeClass(p.SizeClass)))
	return nil
}

// Request builds an export request from the profile. The snapshot
// source is supplied by the caller.
func (p *Profile) Request(source SnapshotSource) ExportRequest {
	variants := make([]Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, Variant(v))
	}
	return ExportRequest{
		Source:         source,
		OutputDir:      p.OutputDir,
		BaseName:       p.BaseName,
		Format:         p.Format,
		Variants:       variants,
		Sidecar:        p.Sidecar,
		AllowOverwrite: p.AllowOverwrite,
		SizeClass:      SizeClass(p.SizeClass),
		RenderOptions: RenderOptions{
			HTML:     HTMLOptions{Theme: p.Theme, Lang: p.Lang},
			Markdown: MarkdownOptions{MessageLimit: p.MessageLimit},
		},
	}
}
