package export

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// VerifyArtifact is the verification outcome for one manifest entry.
type VerifyArtifact struct {
	Name     string
	Kind     ArtifactKind
	Expected string
	Actual   string
	Missing  bool
	OK       bool
}

// VerifyReport summarizes a bundle verification pass.
type VerifyReport struct {
	BaseName     string
	ManifestPath string
	BundleHash   string
	ChecksumOK   bool
	BundleHashOK bool
	Artifacts    []VerifyArtifact
	ExtraEntries []string
	OK           bool
}

// VerifyBundle re-hashes every artifact listed in a bundle's manifest
// and rechecks the bundle hash and checksum file. Hash mismatches are
// reported, not returned as errors; an error means the manifest or
// checksum file itself could not be read.
func VerifyBundle(ctx context.Context, outputDir, baseName string) (VerifyReport, error) {
	if err := ctx.Err(); err != nil {
		return VerifyReport{}, err
	}

	policy := NamePolicy{OutputDir: outputDir, BaseName: baseName}

	manifestPath := policy.Path(ArtifactManifest)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return VerifyReport{}, NewError(KindInput, fmt.Sprintf("read manifest %q", manifestPath), err)
	}
	manifest, err := DecodeManifest(data)
	if err != nil {
		return VerifyReport{}, err
	}

	report := VerifyReport{
		BaseName:     manifest.BaseName,
		ManifestPath: manifestPath,
		BundleHash:   manifest.BundleHashSha256,
		OK:           true,
	}

	// The bundle hash covers the canonical manifest bytes with an
	// empty hash field.
	recomputed := manifest
	recomputed.BundleHashSha256 = ""
	canonical, err := EncodeManifest(recomputed)
	if err != nil {
		return VerifyReport{}, err
	}
	report.BundleHashOK = HashBytes(canonical) == manifest.BundleHashSha256
	if !report.BundleHashOK {
		report.OK = false
	}

	checksumPath := policy.Path(ArtifactChecksum)
	checksumData, err := os.ReadFile(checksumPath)
	if err != nil {
		return VerifyReport{}, NewError(KindInput, fmt.Sprintf("read checksum %q", checksumPath), err)
	}
	checksumHash, err := ParseChecksum(checksumData)
	if err != nil {
		return VerifyReport{}, err
	}
	report.ChecksumOK = checksumHash == manifest.BundleHashSha256
	if !report.ChecksumOK {
		report.OK = false
	}

	for _, entry := range manifest.Artifacts {
		va := VerifyArtifact{Name: entry.Name, Kind: ArtifactKind(entry.Kind), Expected: entry.SHA256}
		target := filepath.Join(outputDir, filepath.FromSlash(entry.Path))

		if va.Kind == ArtifactSidecarDir {
			va = verifySidecarDir(target, entry, va, &report)
		} else {
			actual, _, hashErr := HashFile(target)
			if hashErr != nil {
				va.Missing = true
			} else {
				va.Actual = actual
				va.OK = actual == entry.SHA256
			}
		}
		if !va.OK {
			report.OK = false
		}
		report.Artifacts = append(report.Artifacts, va)
	}

	return report, nil
}

func verifySidecarDir(dir string, entry ManifestEntry, va VerifyArtifact, report *VerifyReport) VerifyArtifact {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		va.Missing = true
		return va
	}

	listed := make(map[string]bool, len(entry.Entries))
	rehashed := make([]ManifestFileEntry, 0, len(entry.Entries))
	ok := true
	for _, fe := range entry.Entries {
		listed[fe.Path] = true
		actual, _, hashErr := HashFile(filepath.Join(filepath.Dir(dir), filepath.FromSlash(fe.Path)))
		if hashErr != nil || actual != fe.SHA256 {
			ok = false
			continue
		}
		rehashed = append(rehashed, ManifestFileEntry{Path: fe.Path, SHA256: actual})
	}

	// Files on disk that the manifest does not list break the bundle
	// contract even when every listed entry matches.
	var extras []string
	base := filepath.Dir(dir)
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(base, p)
		if relErr != nil {
			return relErr
		}
		if !listed[filepath.ToSlash(rel)] {
			extras = append(extras, filepath.ToSlash(rel))
		}
		return nil
	})
	if walkErr != nil {
		ok = false
	}
	sort.Strings(extras)
	report.ExtraEntries = append(report.ExtraEntries, extras...)
	if len(extras) > 0 {
		ok = false
	}

	va.Actual = DirEntriesHash(rehashed)
	va.OK = ok && va.Actual == entry.SHA256
	return va
}
