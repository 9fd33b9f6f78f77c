// Package convert turns downloaded images that a browser cannot display into
// JPEG. DecoderConverter handles WebP, TIFF and BMP in process; FFmpegConverter
// shells out for HEIC, HEIF and AVIF. Detect assembles the chain available on
// this host.
package convert
