// Package imaging decodes, crops and encodes figure images.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// Ensure Codec implements the interface.
var _ driven.ImageCodec = (*Codec)(nil)

// Codec is the standard image codec. It is stateless.
type Codec struct{}

// NewCodec creates a codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Decode parses image bytes, returning the MIME type sniffed from content.
func (c *Codec) Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("decode: %w: empty image", domain.ErrInvalidInput)
	}
	mime := mimetype.Detect(data).String()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mime, fmt.Errorf("decode %s: %w", mime, err)
	}
	return img, mime, nil
}

// Crop copies the region into a new RGBA image whose origin is (0,0).
func (c *Codec) Crop(img image.Image, box domain.BBox) image.Image {
	r := image.Rect(box.X0, box.Y0, box.X1, box.Y1).Add(img.Bounds().Min)
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// EncodePNG serialises the image as PNG.
func (c *Codec) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectMIME returns the MIME type and extension (without dot) of raw bytes.
// Unrecognised content yields application/octet-stream and no extension.
func (c *Codec) DetectMIME(data []byte) (mimeType, ext string) {
	mt := mimetype.Detect(data)
	ext = strings.TrimPrefix(mt.Extension(), ".")
	if ext == "jpg" {
		ext = "jpeg"
	}
	return mt.String(), ext
}
