// Package texture names, stores and re-encodes avatar images.
package texture

import (
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameBytes bounds sanitized names, extension included.
const MaxNameBytes = 128

var extensions = map[string]string{
	"image/png":                 ".png",
	"image/jpeg":                ".jpg",
	"image/bmp":                 ".bmp",
	"image/gif":                 ".gif",
	"image/x-tga":               ".tga",
	"image/vnd.adobe.photoshop": ".psd",
}

// ExtensionOf returns the file extension of a mime type, ".png" when unknown.
func ExtensionOf(mimeType string) string {
	if ext, ok := extensions[mimeType]; ok {
		return ext
	}
	return ".png"
}

// SanitizeName returns a file name safe for common filesystems: NFC
// normalized, without NUL, control or path separator characters, and at
// most MaxNameBytes long. fallback is used when nothing remains.
func SanitizeName(name, mimeType, fallback string) string {
	name = norm.NFC.String(name)
	ext := ExtensionOf(mimeType)
	if e := path.Ext(name); strings.EqualFold(e, ext) || (ext == ".jpg" && strings.EqualFold(e, ".jpeg")) {
		name = name[:len(name)-len(e)]
		ext = strings.ToLower(e)
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r == 0 || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "" {
		name = fallback
	}
	return truncate(name, MaxNameBytes-len(ext)-8) + ext
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// WithSuffix inserts a numeric suffix before the extension.
func WithSuffix(name string, n int) string {
	ext := path.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}
