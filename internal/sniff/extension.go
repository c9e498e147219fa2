package sniff

import "mime"

// extensionOverrides pins the extensions we care about, ahead of the
// platform MIME table which may disagree or pick an unusual synonym.
var extensionOverrides = map[string]string{
	"application/octet-stream": ".bin",
	"image/webp":               ".webp",
	"image/jpeg":               ".jpg",
}

// ExtensionFor maps a MIME type to a canonical filename suffix including the
// leading dot, or "" when the type is unknown. Callers omit the suffix in
// that case rather than failing.
func ExtensionFor(mimeType string) string {
	if ext, ok := extensionOverrides[mimeType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	ext := exts[0]
	if ext == ".jpe" || ext == ".jpeg" {
		ext = ".jpg"
	}
	return ext
}
