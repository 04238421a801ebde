package driven

import (
	"context"
	"image"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// PDFOpener opens PDF files.
type PDFOpener interface {
	Open(path string) (PDFDocument, error)
}

// PDFDocument is an open PDF. Page numbers are 1-based.
type PDFDocument interface {
	// NumPages returns the page count.
	NumPages() int

	// Info returns the document information dictionary (Title, Subject,
	// Keywords, doi, ...). Keys are as stored in the file.
	Info() map[string]string

	// PageText returns the plain text of one page.
	PageText(page int) (string, error)

	// PageImages returns the raw embedded images of one page.
	PageImages(page int) ([]domain.ImageCandidate, error)

	// PageSize returns the page media box in points.
	PageSize(page int) (width, height float64, err error)

	// Close releases the file.
	Close() error
}

// PageRenderer rasterises a page for visual region detection.
type PageRenderer interface {
	RenderPage(ctx context.Context, doc PDFDocument, page int, zoom float64) (image.Image, error)
}

// ImageCodec decodes, crops and encodes images.
type ImageCodec interface {
	// Decode parses image bytes. The returned string is the detected
	// MIME type.
	Decode(data []byte) (image.Image, string, error)

	// Crop copies the region into a new image. The box must already be
	// clamped to the image bounds.
	Crop(img image.Image, box domain.BBox) image.Image

	// EncodePNG serialises the image as PNG.
	EncodePNG(img image.Image) ([]byte, error)

	// DetectMIME returns the MIME type and file extension of raw bytes.
	DetectMIME(data []byte) (mimeType, ext string)
}
