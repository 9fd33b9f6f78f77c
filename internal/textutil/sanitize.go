package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxStemLength caps the sanitized stem so ordinal-prefixed names stay well
// under common filesystem limits.
const MaxStemLength = 80

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// FileStem returns a sanitized, NFC-normalized stem for a display name with
// its extension removed. Control characters are dropped, runs of whitespace
// collapse to a single underscore and the result is capped at MaxStemLength
// bytes on a rune boundary. Empty results fall back to "item".
func FileStem(displayName string) string {
	name := norm.NFC.String(strings.TrimSpace(displayName))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = SanitizeFileName(name)

	var b strings.Builder
	pendingSpace := false
	for _, r := range name {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte('_')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "._-")
	if len(out) > MaxStemLength {
		cut := MaxStemLength
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimRight(out[:cut], "._-")
	}
	if out == "" {
		return "item"
	}
	return out
}
