package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Artifact file name scheme, fixed per base name B:
// B-max.html, B-mid.html, B-min.html, B.md, B.manifest.json, B.sha256,
// and in sidecar mode B-sdc.html plus the B/ directory with B/_thumbs/.
const (
	suffixMax      = "-max.html"
	suffixMid      = "-mid.html"
	suffixMin      = "-min.html"
	suffixMarkdown = ".md"
	suffixSdc      = "-sdc.html"
	suffixManifest = ".manifest.json"
	suffixChecksum = ".sha256"

	// ThumbsDirName is the thumbnail subfolder inside the sidecar directory.
	ThumbsDirName = "_thumbs"
)

var (
	suffixParenRe = regexp.MustCompile(`^(.+) \((\d+)\)$`)
	suffixSpaceRe = regexp.MustCompile(`^(.+) (\d+)$`)
	copySuffixRe  = regexp.MustCompile(`^(.+?)(?: - | )[Cc]opy(?: \d+)?$`)
)

// NamePolicy maps logical artifacts to final paths inside one output root
// and enforces the overwrite contract. It assumes exclusive ownership of
// the root for the duration of one export call.
type NamePolicy struct {
	OutputDir string
	BaseName  string
}

// NewNamePolicy derives the base name once and binds it to the output root.
func NewNamePolicy(outputDir string, snapshot ChatSnapshot, override string) NamePolicy {
	return NamePolicy{
		OutputDir: outputDir,
		BaseName:  DeriveBaseName(snapshot, override),
	}
}

// DeriveBaseName resolves the bundle base name: the override wins, then the
// snapshot title, then the chat file name, then a fixed fallback. The name
// is derived once per run and reused for every artifact.
func DeriveBaseName(snapshot ChatSnapshot, override string) string {
	name := strings.TrimSpace(override)
	if name == "" {
		name = strings.TrimSpace(snapshot.Title)
	}
	if name == "" && snapshot.ChatPath != "" {
		base := filepath.Base(snapshot.ChatPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return sanitizeBaseName(name)
}

func sanitizeBaseName(s string) string {
	const maxLen = 64
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '.':
			out = append(out, '-')
		case ' ', '\t', '\n', '\r':
			out = append(out, '_')
		default:
			if r < 32 || r == 127 {
				out = append(out, '-')
				continue
			}
			out = append(out, r)
		}
	}

	name := strings.Trim(string(out), "-_")
	if name == "" {
		return "chat"
	}
	return name
}

// FileName returns the file (or directory) name for an artifact kind.
func (p NamePolicy) FileName(kind ArtifactKind) string {
	switch kind {
	case ArtifactHTMLMax:
		return p.BaseName + suffixMax
	case ArtifactHTMLMid:
		return p.BaseName + suffixMid
	case ArtifactHTMLMin:
		return p.BaseName + suffixMin
	case ArtifactMarkdown:
		return p.BaseName + suffixMarkdown
	case ArtifactHTMLSdc:
		return p.BaseName + suffixSdc
	case ArtifactSidecarDir:
		return p.BaseName
	case ArtifactManifest:
		return p.BaseName + suffixManifest
	case ArtifactChecksum:
		return p.BaseName + suffixChecksum
	default:
		return ""
	}
}

// Path returns the absolute path for an artifact kind.
func (p NamePolicy) Path(kind ArtifactKind) string {
	return filepath.Join(p.OutputDir, p.FileName(kind))
}

// ExpectedKinds returns the artifact kinds one run will write, in the
// canonical manifest order.
func ExpectedKinds(variants []Variant, sidecar bool) []ArtifactKind {
	kinds := make([]ArtifactKind, 0, 8)
	for _, variant := range DefaultVariants() {
		if !containsVariant(variants, variant) {
			continue
		}
		kinds = append(kinds, ArtifactKindForVariant(variant))
	}
	kinds = append(kinds, ArtifactMarkdown)
	if sidecar {
		kinds = append(kinds, ArtifactHTMLSdc, ArtifactSidecarDir)
	}
	kinds = append(kinds, ArtifactManifest, ArtifactChecksum)
	return kinds
}

func containsVariant(variants []Variant, v Variant) bool {
	for _, candidate := range variants {
		if candidate == v {
			return true
		}
	}
	return false
}

// managedNames is every name the policy could ever own for this base,
// independent of the requested subset. Used by the suffix sweep.
func (p NamePolicy) managedNames() map[string]bool {
	names := map[string]bool{
		p.BaseName + suffixMax:      true,
		p.BaseName + suffixMid:      true,
		p.BaseName + suffixMin:      true,
		p.BaseName + suffixMarkdown: true,
		p.BaseName + suffixSdc:      true,
		p.BaseName:                  true,
		p.BaseName + suffixManifest: true,
		p.BaseName + suffixChecksum: true,
	}
	return names
}

// CheckCollisions enforces the overwrite contract before any write: with
// allowOverwrite unset, a pre-existing entry at any expected target fails
// the run with a collision error and nothing is written.
func (p NamePolicy) CheckCollisions(kinds []ArtifactKind, allowOverwrite bool) error {
	if allowOverwrite {
		return nil
	}
	for _, kind := range kinds {
		target := p.Path(kind)
		if _, err := os.Lstat(target); err == nil {
			return NewError(KindCollision, fmt.Sprintf("target %q already exists and overwrite is disallowed", p.FileName(kind)), nil)
		} else if !os.IsNotExist(err) {
			return NewError(KindInternal, fmt.Sprintf("stat %q", p.FileName(kind)), err)
		}
	}
	return nil
}

// SweepReport captures the outcome of a suffix-artifact sweep.
type SweepReport struct {
	Removed []string
	// Suspects are entries that look like platform duplicate-naming
	// conventions outside the swept grammar (e.g. "name - Copy"). They
	// are reported, never removed.
	Suspects []string
}

// SweepSuffixArtifacts removes numbered-duplicate forms of managed
// artifact names from the output root: "<base> (<n>)" and "<base> <n>"
// with n >= 2 are both illegal. Only entries whose de-suffixed name is a
// managed artifact name for this base are touched.
func (p NamePolicy) SweepSuffixArtifacts() (SweepReport, error) {
	report := SweepReport{}
	entries, err := os.ReadDir(p.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return report, NewError(KindInternal, "read output directory", err)
	}

	managed := p.managedNames()
	for _, entry := range entries {
		name := entry.Name()
		base, n, ok := splitNumericSuffix(name)
		if ok && n >= 2 && managed[base] {
			if err := os.RemoveAll(filepath.Join(p.OutputDir, name)); err != nil {
				return report, NewError(KindInternal, fmt.Sprintf("remove suffix artifact %q", name), err)
			}
			report.Removed = append(report.Removed, name)
			continue
		}
		if base, ok := splitCopySuffix(name); ok && managed[base] {
			report.Suspects = append(report.Suspects, name)
		}
	}
	return report, nil
}

// splitNumericSuffix decomposes "<stem> (<n>)<ext>" or "<stem> <n><ext>"
// into the de-suffixed name and n. ok is false when the name has no
// numeric suffix.
func splitNumericSuffix(name string) (string, int, bool) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for _, re := range []*regexp.Regexp{suffixParenRe, suffixSpaceRe} {
		m := re.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		return m[1] + ext, n, true
	}
	return "", 0, false
}

func splitCopySuffix(name string) (string, bool) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	m := copySuffixRe.FindStringSubmatch(stem)
	if m == nil {
		return "", false
	}
	return m[1] + ext, true
}

// WriteFileAtomic writes one managed file: temp file in the output root,
// sync, then rename over the target. Rename replaces any existing file in
// one step, satisfying the atomic-overwrite contract.
func (p NamePolicy) WriteFileAtomic(kind ArtifactKind, data []byte) (string, error) {
	target := p.Path(kind)
	if err := p.containPath(target); err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return "", NewError(KindInternal, "create output directory", err)
	}

	tmp, err := os.CreateTemp(p.OutputDir, ".chatexport-*")
	if err != nil {
		return "", NewError(KindInternal, "create temp file", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return "", NewError(KindInternal, "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", NewError(KindInternal, "sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", NewError(KindInternal, "close temp file", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", NewError(KindInternal, fmt.Sprintf("replace %q", p.FileName(kind)), err)
	}
	return target, nil
}

// ReplaceDir builds the sidecar tree under a temp directory, removes any
// old tree at the target, then renames the new tree into place. The old
// content is fully gone before the new content becomes part of the bundle.
func (p NamePolicy) ReplaceDir(kind ArtifactKind, build func(dir string) error) (string, error) {
	target := p.Path(kind)
	if err := p.containPath(target); err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return "", NewError(KindInternal, "create output directory", err)
	}

	tmp, err := os.MkdirTemp(p.OutputDir, ".chatexport-*")
	if err != nil {
		return "", NewError(KindInternal, "create temp directory", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := build(tmp); err != nil {
		return "", err
	}
	if err := os.RemoveAll(target); err != nil {
		return "", NewError(KindInternal, fmt.Sprintf("remove old %q", p.FileName(kind)), err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", NewError(KindInternal, fmt.Sprintf("replace %q", p.FileName(kind)), err)
	}
	cleanup = false
	return target, nil
}

// containPath guards against targets escaping the output root.
func (p NamePolicy) containPath(target string) error {
	root, err := filepath.Abs(p.OutputDir)
	if err != nil {
		return NewError(KindInternal, "resolve output directory", err)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return NewError(KindInternal, "resolve target path", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return NewError(KindValidation, fmt.Sprintf("target %q escapes output root", target), err)
	}
	return nil
}
