package logging

import (
	"log/slog"
	"strings"
)

const redacted = "[redacted]"

var secretKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"client_secret": true,
	"admin_token":   true,
	"authorization": true,
	"code":          true,
}

// redact masks credential material so tokens never reach a log file.
func redact(attr slog.Attr) slog.Attr {
	if !secretKeys[strings.ToLower(attr.Key)] {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && attr.Value.String() == "" {
		return attr
	}
	return slog.String(attr.Key, redacted)
}
