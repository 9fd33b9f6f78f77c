package mediacache

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no entry has the requested ordinal.
	ErrNotFound = errors.New("cache entry not found")
	// ErrKindMismatch is returned when a viewer asks for the wrong media kind.
	ErrKindMismatch = errors.New("cache entry kind mismatch")
	// ErrInvalidEntries is returned when Write receives a malformed index.
	ErrInvalidEntries = errors.New("invalid cache entries")
)

// Kind classifies a cached file for the viewer.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// ParseKind accepts "image" or "video" in any case.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindImage:
		return KindImage, nil
	case KindVideo:
		return KindVideo, nil
	}
	return "", fmt.Errorf("unknown media kind %q", raw)
}

// Entry is one cached media file. Path is absolute.
type Entry struct {
	Ordinal     int       `json:"index"`
	Path        string    `json:"path"`
	Kind        Kind      `json:"kind"`
	DisplayName string    `json:"display_name"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	RunID       string    `json:"run_id,omitempty"`
	CachedAt    time.Time `json:"cached_at"`
}
