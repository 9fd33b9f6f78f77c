package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"photokiosk/internal/fileutil"
)

const jpegQuality = 90

// DecoderConverter re-encodes WebP, TIFF and BMP images with pure-Go decoders.
type DecoderConverter struct {
	decoders map[string]func(*os.File) (image.Image, error)
}

// NewDecoderConverter builds a DecoderConverter.
func NewDecoderConverter() *DecoderConverter {
	return &DecoderConverter{decoders: map[string]func(*os.File) (image.Image, error){
		"image/webp": func(f *os.File) (image.Image, error) { return webp.Decode(f) },
		"image/tiff": func(f *os.File) (image.Image, error) { return tiff.Decode(f) },
		"image/bmp":  func(f *os.File) (image.Image, error) { return bmp.Decode(f) },
	}}
}

func (d *DecoderConverter) Name() string { return "decoder" }

func (d *DecoderConverter) CanConvert(contentType string) bool {
	_, ok := d.decoders[NormalizeType(contentType)]
	return ok
}

// Convert decodes src with whichever registered decoder accepts it.
func (d *DecoderConverter) Convert(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	var img image.Image
	for _, decode := range []func(*os.File) (image.Image, error){
		d.decoders["image/webp"], d.decoders["image/tiff"], d.decoders["image/bmp"],
	} {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind source: %w", err)
		}
		if decoded, decErr := decode(f); decErr == nil {
			img = decoded
			break
		}
	}
	if img == nil {
		return fmt.Errorf("decode %s: unrecognized image data", src)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return fileutil.WriteFileAtomic(dst, buf.Bytes(), 0o644)
}

// flatten composites transparent pixels onto white; JPEG has no alpha.
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, bounds, img, bounds.Min, draw.Over)
	return out
}
