package model

import (
	"path"
	"strings"
)

// AllowedContentTypes is the upload allow-list.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// NormalizeContentType lowercases a declared type, drops parameters and maps
// the common image/jpg alias onto image/jpeg.
func NormalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return "image/jpeg"
	}
	return ct
}

// IsAllowedContentType reports whether ct (after normalisation) may be stored.
func IsAllowedContentType(ct string) bool {
	return AllowedContentTypes[NormalizeContentType(ct)]
}

// ContentTypeForName derives the serving Content-Type from a filename extension.
func ContentTypeForName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// ExtensionForContentType is the fallback extension when the original name has none.
func ExtensionForContentType(ct string) string {
	switch NormalizeContentType(ct) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
