package export

import (
	"path"
	"strings"
)

// NormalizeVariant coerces variant values into known aliases with defaults applied.
func NormalizeVariant(variant Variant) Variant {
	normalized := strings.ToLower(strings.TrimSpace(string(variant)))
	switch normalized {
	case "", string(VariantEmbedAll), "embed", "embed-all", "embed_all", "dense", "full":
		return VariantEmbedAll
	case string(VariantThumbnails), "thumbs", "thumbnails", "thumbnails-only", "compact":
		return VariantThumbnails
	case string(VariantTextOnly), "text", "text-only", "text_only", "sparse":
		return VariantTextOnly
	default:
		return Variant(normalized)
	}
}

// KnownVariant reports whether variant is one of the three densities.
func KnownVariant(variant Variant) bool {
	switch variant {
	case VariantEmbedAll, VariantThumbnails, VariantTextOnly:
		return true
	}
	return false
}

// DefaultVariants returns the full density set in canonical order.
func DefaultVariants() []Variant {
	return []Variant{VariantEmbedAll, VariantThumbnails, VariantTextOnly}
}

// ArtifactKindForVariant maps a variant to its HTML artifact kind.
func ArtifactKindForVariant(variant Variant) ArtifactKind {
	switch variant {
	case VariantEmbedAll:
		return ArtifactHTMLMax
	case VariantThumbnails:
		return ArtifactHTMLMid
	case VariantTextOnly:
		return ArtifactHTMLMin
	default:
		return ArtifactKind("")
	}
}

// NormalizeSizeClass coerces size class values with defaults applied.
func NormalizeSizeClass(size SizeClass) SizeClass {
	normalized := strings.ToLower(strings.TrimSpace(string(size)))
	switch normalized {
	case string(SizeSmall), "sm", "s":
		return SizeSmall
	case "", string(SizeMedium), "mid", "med", "m":
		return SizeMedium
	case string(SizeLarge), "lg", "l":
		return SizeLarge
	default:
		return SizeClass(normalized)
	}
}

// MaxPixels returns the bounding box edge for a size class.
func (s SizeClass) MaxPixels() int {
	switch s {
	case SizeSmall:
		return 128
	case SizeLarge:
		return 640
	default:
		return 320
	}
}

// MediaKindFromName infers a media kind from a file name.
func MediaKindFromName(name string) MediaKind {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".heic":
		return MediaImage
	case ".mp4", ".mov", ".avi", ".mkv", ".webm", ".3gp":
		return MediaVideo
	case ".mp3", ".m4a", ".ogg", ".opus", ".wav", ".aac":
		return MediaAudio
	case ".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt", ".vcf", ".csv":
		return MediaDocument
	default:
		return MediaUnknown
	}
}

// MIMEForName returns the content type used for data URIs.
func MIMEForName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".vcf":
		return "text/vcard"
	default:
		return "application/octet-stream"
	}
}
