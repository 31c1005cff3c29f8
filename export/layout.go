package export

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// SidecarRef is one attachment reference collected while rendering.
type SidecarRef struct {
	ID   string
	Name string
	Key  ContentKey
}

// SidecarEntry is one attachment file in the sidecar directory. Identical
// content is stored once regardless of how many references point at it.
type SidecarEntry struct {
	FileName string
	SourceID string
	Key      ContentKey
}

// SidecarThumb is one thumbnail file under the _thumbs subfolder.
type SidecarThumb struct {
	FileName string
	Key      ThumbKey
}

// SidecarPlan is the on-disk layout of the sidecar directory: the
// directory named after the bundle base name, its attachment files sorted
// lexically, and one thumbnail per unique referenced content key. The
// planner never touches the filesystem.
type SidecarPlan struct {
	DirName string
	Entries []SidecarEntry
	Thumbs  []SidecarThumb
}

// BuildSidecarPlan lays out the sidecar directory for the attachments and
// thumbnails actually referenced by the rendered variants. Unreferenced
// attachments never enter the plan.
func BuildSidecarPlan(baseName string, refs []SidecarRef, thumbs []Thumbnail) SidecarPlan {
	plan := SidecarPlan{DirName: baseName}

	ordered := make([]SidecarRef, len(refs))
	copy(ordered, refs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].Key < ordered[j].Key
	})

	// One entry per unique content key; remember which declared names
	// collide across distinct keys.
	byKey := make(map[ContentKey]SidecarRef)
	keysByName := make(map[string]map[ContentKey]bool)
	for _, ref := range ordered {
		name := sanitizeEntryName(ref.Name)
		if _, seen := byKey[ref.Key]; !seen {
			byKey[ref.Key] = SidecarRef{ID: ref.ID, Name: name, Key: ref.Key}
		}
		if keysByName[name] == nil {
			keysByName[name] = make(map[ContentKey]bool)
		}
		keysByName[name][ref.Key] = true
	}

	for _, ref := range byKey {
		fileName := ref.Name
		if len(keysByName[ref.Name]) > 1 {
			fileName = disambiguateEntryName(ref.Name, ref.Key)
		}
		plan.Entries = append(plan.Entries, SidecarEntry{
			FileName: fileName,
			SourceID: ref.ID,
			Key:      ref.Key,
		})
	}
	sort.Slice(plan.Entries, func(i, j int) bool {
		return plan.Entries[i].FileName < plan.Entries[j].FileName
	})

	seenThumbs := make(map[ThumbKey]bool)
	for _, thumb := range thumbs {
		if seenThumbs[thumb.Key] {
			continue
		}
		seenThumbs[thumb.Key] = true
		plan.Thumbs = append(plan.Thumbs, SidecarThumb{
			FileName: thumb.FileName(),
			Key:      thumb.Key,
		})
	}
	sort.Slice(plan.Thumbs, func(i, j int) bool {
		return plan.Thumbs[i].FileName < plan.Thumbs[j].FileName
	})

	return plan
}

// EntryHref returns the output-root-relative URI for an attachment file.
func (p SidecarPlan) EntryHref(key ContentKey) string {
	for _, entry := range p.Entries {
		if entry.Key == key {
			return path.Join(p.DirName, entry.FileName)
		}
	}
	return ""
}

// ThumbHref returns the output-root-relative URI for a thumbnail. The
// path always carries the _thumbs segment.
func (p SidecarPlan) ThumbHref(key ThumbKey) string {
	for _, thumb := range p.Thumbs {
		if thumb.Key == key {
			return path.Join(p.DirName, ThumbsDirName, thumb.FileName)
		}
	}
	return ""
}

// sanitizeEntryName strips directory components and path-hostile
// characters from a declared attachment name.
func sanitizeEntryName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "attachment"
	}
	var out strings.Builder
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out.WriteRune('-')
		default:
			if r < 32 || r == 127 {
				out.WriteRune('-')
				continue
			}
			out.WriteRune(r)
		}
	}
	cleaned := strings.Trim(out.String(), ". ")
	if cleaned == "" {
		return "attachment"
	}
	return cleaned
}

// disambiguateEntryName separates distinct content sharing one declared
// name with a content-key infix. Numeric suffixes are never used here;
// they are reserved as a collision failure signal.
func disambiguateEntryName(name string, key ContentKey) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	infix := shortContentKey(key)
	if len(infix) > 8 {
		infix = infix[:8]
	}
	return stem + "-" + infix + ext
}
