package assets

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const fallbackName = "asset.bin"

// SanitizeFilename strips path separators and other characters that do not
// belong in a single file name.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return fallbackName
	}
	return s
}

// ExtFromMime returns a file extension for the media types a design can
// reference, or "" when unknown.
func ExtFromMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/aac":
		return ".aac"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	case "font/ttf", "application/x-font-ttf":
		return ".ttf"
	case "font/otf", "application/x-font-otf":
		return ".otf"
	default:
		return ""
	}
}

// nameFromSource picks the local file name for a source: the last path
// segment, or asset.bin.
func nameFromSource(src string) string {
	if key, ok := strings.CutPrefix(src, StorageScheme); ok {
		return SanitizeFilename(path.Base(key))
	}
	u, err := url.Parse(src)
	if err != nil {
		return fallbackName
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." || base == "" {
		return fallbackName
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return SanitizeFilename(base)
}

func withExt(name, contentType string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	return name + ExtFromMime(contentType)
}
