// Package media validates uploaded post images and stores them.
package media

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxUploadBytes caps the size of a single image upload.
	MaxUploadBytes = 10 << 20
	// MaxImagePixels caps width*height, checked from the header before the
	// pixels are decoded.
	MaxImagePixels = 40_000_000
)

var (
	ErrNotImage      = errors.New("not a valid image")
	ErrImageTooLarge = errors.New("image dimensions are too large")
)

// DecodeImage fully decodes data and reports the registered format name.
// Reading only the header would let truncated files through.
func DecodeImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNotImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", ErrNotImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return "", ErrImageTooLarge
	}

	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotImage
	}
	return format, nil
}

func extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "":
		return ""
	default:
		return "." + format
	}
}

func contentType(format string) string {
	return "image/" + format
}
