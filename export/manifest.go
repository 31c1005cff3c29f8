package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ManifestSchemaVersion is bumped whenever the manifest layout changes
// in a way existing verifiers cannot read.
const ManifestSchemaVersion = 1

// ContentKeyOf derives the content key for a byte payload.
func ContentKeyOf(data []byte) ContentKey {
	return ContentKey(HashBytes(data))
}

// HashBytes returns the lowercase hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader returns the lowercase hex SHA-256 of everything read from r
// along with the byte count.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// HashFile hashes the file at path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return HashReader(f)
}

// DirEntriesHash derives a directory artifact's hash from its file
// entries. Entries are hashed in sorted path order so the result does
// not depend on filesystem iteration order.
func DirEntriesHash(entries []ManifestFileEntry) string {
	sorted := make([]ManifestFileEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, e := range sorted {
		io.WriteString(h, e.Path)
		h.Write([]byte{0})
		io.WriteString(h, e.SHA256)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// manifestListedKinds are the artifact kinds recorded in the manifest.
// The manifest and checksum files describe the bundle and are excluded
// from their own listing.
var manifestListedKinds = map[ArtifactKind]bool{
	ArtifactHTMLMax:    true,
	ArtifactHTMLMid:    true,
	ArtifactHTMLMin:    true,
	ArtifactMarkdown:   true,
	ArtifactHTMLSdc:    true,
	ArtifactSidecarDir: true,
}

// BuildManifest assembles the manifest document for a finished pass.
// Artifacts keep their canonical production order; the bundle hash is
// left empty until FinalizeManifest fills it.
func BuildManifest(baseName string, variants []Variant, sidecar bool, artifacts []ArtifactInfo) Manifest {
	m := Manifest{
		SchemaVersion: ManifestSchemaVersion,
		BaseName:      baseName,
		Variants:      make([]string, len(variants)),
		Sidecar:       sidecar,
		Artifacts:     make([]ManifestEntry, 0, len(artifacts)),
	}
	for i, v := range variants {
		m.Variants[i] = string(v)
	}
	for _, a := range artifacts {
		if !manifestListedKinds[a.Kind] {
			continue
		}
		entry := ManifestEntry{
			Name:   a.Name,
			Path:   a.Name,
			Kind:   string(a.Kind),
			SHA256: a.SHA256,
		}
		if a.Dir {
			entry.Entries = make([]ManifestFileEntry, len(a.Entries))
			copy(entry.Entries, a.Entries)
			sort.Slice(entry.Entries, func(i, j int) bool { return entry.Entries[i].Path < entry.Entries[j].Path })
		}
		m.Artifacts = append(m.Artifacts, entry)
	}
	return m
}

// EncodeManifest serializes a manifest to its canonical byte form:
// two-space indented JSON with a trailing newline and fixed field
// order. Byte-identical input documents always produce byte-identical
// output.
func EncodeManifest(m Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, NewError(KindInternal, "encode manifest", err)
	}
	return append(data, '\n'), nil
}

// FinalizeManifest computes the bundle hash and returns the manifest
// with the hash filled in plus its final encoded bytes. The bundle
// hash covers the canonical encoding of the manifest with an empty
// bundleHashSha256 field, so the hash never covers itself.
func FinalizeManifest(m Manifest) (Manifest, []byte, error) {
	m.BundleHashSha256 = ""
	canonical, err := EncodeManifest(m)
	if err != nil {
		return Manifest{}, nil, err
	}
	m.BundleHashSha256 = HashBytes(canonical)

	final, err := EncodeManifest(m)
	if err != nil {
		return Manifest{}, nil, err
	}
	return m, final, nil
}

// DecodeManifest parses manifest bytes.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, NewError(KindValidation, "decode manifest", err)
	}
	if m.SchemaVersion != ManifestSchemaVersion {
		return Manifest{}, NewError(KindValidation,
			fmt.Sprintf("unsupported manifest schema version %d", m.SchemaVersion), nil)
	}
	return m, nil
}

// ChecksumContent formats the checksum file: the bundle hash alone on
// one line, so the hash can be read and compared without parsing the
// manifest. A sha256sum-style file annotation is deliberately absent;
// the bundle hash covers canonical manifest bytes, not the manifest
// file as written, and an annotated line would invite a false
// `sha256sum -c` check.
func ChecksumContent(bundleHash string) string {
	return bundleHash + "\n"
}

// ParseChecksum extracts the bundle hash from checksum file bytes.
func ParseChecksum(data []byte) (string, error) {
	line := strings.TrimRight(string(data), "\n")
	if strings.ContainsRune(line, '\n') || strings.ContainsRune(line, ' ') {
		return "", NewError(KindValidation, "malformed checksum file", nil)
	}
	if len(line) != 64 {
		return "", NewError(KindValidation, "malformed checksum file", nil)
	}
	if _, err := hex.DecodeString(line); err != nil {
		return "", NewError(KindValidation, "malformed checksum file", err)
	}
	return line, nil
}

// LoadManifest reads and decodes the manifest for a bundle on disk.
func LoadManifest(outputDir, baseName string) (Manifest, error) {
	policy := NamePolicy{OutputDir: outputDir, BaseName: baseName}
	path := policy.Path(ArtifactManifest)
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, NewError(KindInput, fmt.Sprintf("read manifest %q", path), err)
	}
	return DecodeManifest(data)
}
