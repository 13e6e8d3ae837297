package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/vbonduro/plantdoc/internal/domain"
)

const (
	// NormalizedMIME is the single format every image is sent to the model in.
	NormalizedMIME = "image/jpeg"
	// MaxImageBytes bounds an upload before decoding.
	MaxImageBytes = 10 << 20
	// MaxImagePixels bounds the decoded size; headers are checked before any
	// pixel buffer is allocated.
	MaxImagePixels = 40_000_000

	jpegQuality = 90
)

var ErrUnsupportedImage = errors.New("unsupported or corrupt image")

// NormalizeImage decodes a jpeg, png, gif or webp payload, flattens any
// transparency onto white and re-encodes it as JPEG. The declared MIME type
// is only used in error messages; the format is sniffed from the bytes.
func NormalizeImage(data []byte, declaredMIME string) (*domain.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupportedImage)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrUnsupportedImage, len(data), MaxImageBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: declared %q: %v", ErrUnsupportedImage, declaredMIME, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds limit of %d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height, MaxImagePixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: declared %q: %v", ErrUnsupportedImage, declaredMIME, err)
	}

	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode %s image as jpeg: %w", format, err)
	}

	return &domain.Image{Data: buf.Bytes(), MimeType: NormalizedMIME}, nil
}
