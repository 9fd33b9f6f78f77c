package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// FFmpegConverter extracts the primary frame of HEIC, HEIF and AVIF images.
type FFmpegConverter struct {
	binary string
}

// NewFFmpegConverter builds a converter using the given ffmpeg binary.
func NewFFmpegConverter(binary string) *FFmpegConverter {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegConverter{binary: binary}
}

func (c *FFmpegConverter) Name() string { return "ffmpeg" }

func (c *FFmpegConverter) CanConvert(contentType string) bool {
	switch NormalizeType(contentType) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence", "image/avif",
		"image/webp", "image/tiff", "image/bmp":
		return true
	}
	return false
}

// Convert writes the first video frame of src as a JPEG at dst.
func (c *FFmpegConverter) Convert(ctx context.Context, src, dst string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "2",
		dst,
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("ffmpeg convert: %w: %s", err, strings.TrimSpace(string(output)))
	}
	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("ffmpeg convert: output missing: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(dst)
		return fmt.Errorf("ffmpeg convert: empty output")
	}
	return nil
}
