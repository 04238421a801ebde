package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// buildPDF assembles a PDF with a correct cross-reference table from
// numbered object bodies (object i+1 is objects[i]).
func buildPDF(objects []string, trailer string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return b.Bytes()
}

func stream(dict string, data []byte) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// writeSamplePDF writes a one-page paper with text, a gray image and a
// JPEG image, and returns its path and the JPEG bytes.
func writeSamplePDF(t *testing.T) (string, []byte) {
	t.Helper()
	gray := bytes.Repeat([]byte{0x40, 0xc0}, 100)
	photo := jpegBytes(t, 16, 16)
	content := []byte("BT /F1 12 Tf 50 300 Td (Nanofluidic osmotic power) Tj ET\n" +
		"BT /F1 10 Tf 50 200 Td (Figure 1: Conductance) Tj ET")

	raw := buildPDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 300 400] >>",
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 4 0 R >> /XObject << /Im1 6 0 R /Im2 7 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding" +
			" /FirstChar 32 /LastChar 122 /Widths [" + strings.Repeat("500 ", 91) + "] >>",
		stream("", content),
		stream("/Type /XObject /Subtype /Image /Width 20 /Height 10 /ColorSpace /DeviceGray /BitsPerComponent 8", gray),
		stream("/Type /XObject /Subtype /Image /Width 16 /Height 16 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode", photo),
		"<< /Title (Nanofluidic osmotic power) /Subject (doi:10.1038/nature11876) >>",
	}, "<< /Size 9 /Root 1 0 R /Info 8 0 R >>")

	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path, photo
}

func openSample(t *testing.T) (driven.PDFDocument, []byte) {
	t.Helper()
	path, photo := writeSamplePDF(t)
	doc, err := NewOpener().Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })
	return doc, photo
}

func TestDocument_Metadata(t *testing.T) {
	doc, _ := openSample(t)

	assert.Equal(t, 1, doc.NumPages())
	assert.Equal(t, map[string]string{
		"Title":   "Nanofluidic osmotic power",
		"Subject": "doi:10.1038/nature11876",
	}, doc.Info())

	w, h, err := doc.PageSize(1)
	require.NoError(t, err)
	assert.Equal(t, 300.0, w)
	assert.Equal(t, 400.0, h)
}

func TestDocument_PageText(t *testing.T) {
	doc, _ := openSample(t)

	text, err := doc.PageText(1)
	require.NoError(t, err)
	assert.Contains(t, text, "Nanofluidic osmotic power\n")
	assert.Contains(t, text, "Figure 1: Conductance\n")

	_, err = doc.PageText(2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, _, err = doc.PageSize(0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocument_PageImages(t *testing.T) {
	doc, photo := openSample(t)

	images, err := doc.PageImages(1)
	require.NoError(t, err)
	require.Len(t, images, 2)

	gray := images[0]
	assert.Equal(t, 1, gray.Page)
	assert.Equal(t, 0, gray.Index)
	assert.Equal(t, 20, gray.Width)
	assert.Equal(t, 10, gray.Height)
	assert.Equal(t, "png", gray.Ext)
	decoded, _, err := image.Decode(bytes.NewReader(gray.Data))
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 0x40}, color.GrayModel.Convert(decoded.At(0, 0)))
	assert.Equal(t, color.Gray{Y: 0xc0}, color.GrayModel.Convert(decoded.At(1, 0)))

	assert.Equal(t, domain.ImageCandidate{Page: 1, Index: 1, Width: 16, Height: 16, Data: photo, Ext: "jpeg"}, images[1])
}

func TestOpener_Open_Errors(t *testing.T) {
	_, err := NewOpener().Open(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorContains(t, err, "read pdf")

	junk := filepath.Join(t.TempDir(), "junk.pdf")
	require.NoError(t, os.WriteFile(junk, []byte("not a pdf at all"), 0o600))
	_, err = NewOpener().Open(junk)
	assert.Error(t, err)
}

func TestRenderer_RenderPage(t *testing.T) {
	doc, _ := openSample(t)
	r, err := NewRenderer()
	require.NoError(t, err)

	img, err := r.RenderPage(context.Background(), doc, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 600, 800), img.Bounds())

	dark := 0
	for y := 180; y < 210; y++ {
		for x := 100; x < 400; x++ {
			if c := color.GrayModel.Convert(img.At(x, y)).(color.Gray); c.Y < 128 {
				dark++
			}
		}
	}
	assert.Positive(t, dark, "title text should be drawn near its baseline")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.RenderPage(cancelled, doc, 1, 2)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = r.RenderPage(context.Background(), nil, 1, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
