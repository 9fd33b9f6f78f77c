package picker

import (
	"strings"
	"time"
)

// SessionInfo is the decoded state of a remote picking session.
type SessionInfo struct {
	ID            string
	PickerURI     string
	ExpireTime    time.Time
	MediaItemsSet bool
	PollInterval  time.Duration
	TimeoutIn     time.Duration
}

type sessionPayload struct {
	ID            string `json:"id"`
	PickerURI     string `json:"pickerUri"`
	ExpireTime    string `json:"expireTime"`
	MediaItemsSet bool   `json:"mediaItemsSet"`
	PollingConfig struct {
		PollInterval string `json:"pollInterval"`
		TimeoutIn    string `json:"timeoutIn"`
	} `json:"pollingConfig"`
}

func (p sessionPayload) info() SessionInfo {
	info := SessionInfo{
		ID:            strings.TrimSpace(p.ID),
		PickerURI:     strings.TrimSpace(p.PickerURI),
		MediaItemsSet: p.MediaItemsSet,
	}
	if p.ExpireTime != "" {
		if t, err := time.Parse(time.RFC3339Nano, p.ExpireTime); err == nil {
			info.ExpireTime = t
		}
	}
	info.PollInterval, _ = parseDuration(p.PollingConfig.PollInterval)
	info.TimeoutIn, _ = parseDuration(p.PollingConfig.TimeoutIn)
	return info
}

// MediaFile holds the downloadable representation of a picked item.
type MediaFile struct {
	BaseURL  string `json:"baseUrl"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
}

// MediaItem is one entry of a session's selection. The API nests the file
// details under mediaFile; older responses carry them at the top level.
type MediaItem struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	CreateTime string    `json:"createTime"`
	MediaFile  MediaFile `json:"mediaFile"`

	BaseURL  string `json:"baseUrl"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
}

// Locator returns the base URL used to fetch the item's bytes.
func (m MediaItem) Locator() string {
	return firstNonEmpty(m.MediaFile.BaseURL, m.BaseURL)
}

// ContentType returns the declared MIME type.
func (m MediaItem) ContentType() string {
	return firstNonEmpty(m.MediaFile.MimeType, m.MimeType)
}

// DisplayName returns the original filename.
func (m MediaItem) DisplayName() string {
	return firstNonEmpty(m.MediaFile.Filename, m.Filename)
}

// MediaPage is one page of a selection listing.
type MediaPage struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration accepts the API's "5s" / "1.5s" duration strings.
func parseDuration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
