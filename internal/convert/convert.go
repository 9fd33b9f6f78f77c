package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"photokiosk/internal/config"
	"photokiosk/internal/deps"
	"photokiosk/internal/logging"
)

// ErrUnsupported is returned when no converter accepts a content type.
var ErrUnsupported = errors.New("no converter for content type")

// Converter rewrites an image file at src as a JPEG at dst.
type Converter interface {
	Name() string
	CanConvert(contentType string) bool
	Convert(ctx context.Context, src, dst string) error
}

// NormalizeType lowercases a MIME type and strips parameters.
func NormalizeType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	contentType = strings.ToLower(contentType)
	switch contentType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-ms-bmp", "image/x-bmp":
		return "image/bmp"
	}
	return contentType
}

// Renderable reports whether browsers display contentType without conversion.
func Renderable(contentType string) bool {
	switch NormalizeType(contentType) {
	case "image/jpeg", "image/png", "image/gif":
		return true
	}
	return false
}

// Chain tries each converter that accepts the content type in order.
type Chain []Converter

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, conv := range c {
		names = append(names, conv.Name())
	}
	return strings.Join(names, "+")
}

func (c Chain) CanConvert(contentType string) bool {
	for _, conv := range c {
		if conv.CanConvert(contentType) {
			return true
		}
	}
	return false
}

// ConvertType runs the first converter that succeeds for contentType.
func (c Chain) ConvertType(ctx context.Context, contentType, src, dst string) error {
	var errs []error
	for _, conv := range c {
		if !conv.CanConvert(contentType) {
			continue
		}
		if err := conv.Convert(ctx, src, dst); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", conv.Name(), err))
			continue
		}
		return nil
	}
	if len(errs) == 0 {
		return fmt.Errorf("%w %q", ErrUnsupported, contentType)
	}
	return errors.Join(errs...)
}

// Convert tries every member in order. Prefer Run when the content type is known.
func (c Chain) Convert(ctx context.Context, src, dst string) error {
	var errs []error
	for _, conv := range c {
		if err := conv.Convert(ctx, src, dst); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", conv.Name(), err))
			continue
		}
		return nil
	}
	if len(errs) == 0 {
		return ErrUnsupported
	}
	return errors.Join(errs...)
}

// Run converts src using conv, preferring a content-type-aware chain.
func Run(ctx context.Context, conv Converter, contentType, src, dst string) error {
	if chain, ok := conv.(Chain); ok {
		return chain.ConvertType(ctx, contentType, src, dst)
	}
	return conv.Convert(ctx, src, dst)
}

// Detect returns the converters usable with cfg, or nil when conversion is
// disabled. FFmpeg joins the chain only when its binary resolves.
func Detect(cfg *config.Config, logger *slog.Logger) Converter {
	if cfg == nil || !cfg.Acquire.ConvertImages {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "convert")
	chain := Chain{NewDecoderConverter()}

	if cfg.Acquire.FFmpegBinary != "" {
		status := deps.Resolve(cfg.Acquire.FFmpegBinary)
		if status.Available {
			chain = append(chain, NewFFmpegConverter(status.Command))
		} else {
			logging.WarnWithContext(logger, "ffmpeg unavailable; HEIC/AVIF photos stay unconverted", "converter_missing",
				logging.String("binary", cfg.Acquire.FFmpegBinary),
				logging.String("detail", status.Detail),
				logging.String(logging.FieldImpact, "some photos may not display in the slideshow"),
				logging.String(logging.FieldErrorHint, "install ffmpeg or set acquire.ffmpeg_binary"),
			)
		}
	}
	logger.Debug("image converters ready", logging.String("chain", chain.Name()))
	return chain
}
