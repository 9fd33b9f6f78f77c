package acquire

import (
	"fmt"
	"path/filepath"
	"strings"

	"photokiosk/internal/convert"
	"photokiosk/internal/mediacache"
	"photokiosk/internal/picker"
)

// Reference is one downloadable item of a selection.
type Reference struct {
	Position    int
	Locator     string
	ContentType string
	DisplayName string
}

// Classify returns KindVideo when contentType is a video type or a motion
// photo, KindImage otherwise.
func Classify(contentType string) mediacache.Kind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if strings.HasPrefix(ct, "video/") || strings.Contains(ct, "motion") {
		return mediacache.KindVideo
	}
	return mediacache.KindImage
}

// MediaURL builds the download URL for ref: the streaming form for videos,
// a width/height-bounded derivative for images.
func MediaURL(ref Reference, width, height int) string {
	if Classify(ref.ContentType) == mediacache.KindVideo {
		return ref.Locator + "=dv"
	}
	return fmt.Sprintf("%s=w%d-h%d", ref.Locator, width, height)
}

// references converts listed items, dropping those without a locator.
func references(items []picker.MediaItem) (refs []Reference, dropped []picker.MediaItem) {
	for _, item := range items {
		locator := item.Locator()
		if locator == "" {
			dropped = append(dropped, item)
			continue
		}
		refs = append(refs, Reference{
			Position:    len(refs),
			Locator:     locator,
			ContentType: item.ContentType(),
			DisplayName: item.DisplayName(),
		})
	}
	return refs, dropped
}

var extensionByType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"image/heif":      ".heif",
	"image/tiff":      ".tif",
	"image/bmp":       ".bmp",
	"image/avif":      ".avif",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
	"video/3gpp":      ".3gp",
}

// extensionFor picks a file extension from the content type, then the
// display name, then the kind.
func extensionFor(contentType, displayName string, kind mediacache.Kind) string {
	if ext, ok := extensionByType[convert.NormalizeType(contentType)]; ok {
		return ext
	}
	if ext := strings.ToLower(filepath.Ext(strings.TrimSpace(displayName))); len(ext) > 1 && len(ext) <= 6 && isAlnum(ext[1:]) {
		return ext
	}
	if kind == mediacache.KindVideo {
		return ".mp4"
	}
	return ".jpg"
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}
