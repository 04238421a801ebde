// Package pdf reads text, metadata and embedded images from PDF files and
// rasterises pages for region detection.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// Ensure the adapters implement the interfaces.
var (
	_ driven.PDFOpener   = (*Opener)(nil)
	_ driven.PDFDocument = (*Document)(nil)
)

// Opener opens PDF files from disk.
type Opener struct{}

// NewOpener creates a PDF opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open parses the file's cross-reference table. Pages are decoded lazily.
func (o *Opener) Open(path string) (doc driven.PDFDocument, err error) {
	defer recoverInto(&err, "open "+path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return &Document{reader: r, raw: raw}, nil
}

// Document is an open PDF held in memory.
type Document struct {
	reader *pdf.Reader
	raw    []byte
	jpegs  []jpegStream
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	return d.reader.NumPage()
}

// Info returns the string entries of the document information dictionary.
func (d *Document) Info() map[string]string {
	out := make(map[string]string)
	func() {
		defer func() { _ = recover() }()
		info := d.reader.Trailer().Key("Info")
		for _, k := range info.Keys() {
			v := info.Key(k)
			if v.Kind() == pdf.String {
				if s := strings.TrimSpace(v.Text()); s != "" {
					out[k] = s
				}
			}
		}
	}()
	return out
}

func (d *Document) page(n int) (pdf.Page, error) {
	if n < 1 || n > d.reader.NumPage() {
		return pdf.Page{}, fmt.Errorf("page %d: %w: document has %d pages", n, domain.ErrInvalidInput, d.reader.NumPage())
	}
	p := d.reader.Page(n)
	if p.V.IsNull() {
		return pdf.Page{}, fmt.Errorf("page %d: %w", n, domain.ErrNotFound)
	}
	return p, nil
}

// PageText returns the plain text of one page, one line per text row.
func (d *Document) PageText(n int) (text string, err error) {
	defer recoverInto(&err, fmt.Sprintf("page %d text", n))

	p, err := d.page(n)
	if err != nil {
		return "", err
	}
	rows, err := p.GetTextByRow()
	if err != nil {
		return "", fmt.Errorf("page %d text: %w", n, err)
	}
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(joinRow(row.Content))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// joinRow concatenates the runs of one text row, inserting a space where
// the gap to the previous run is wider than a fraction of the font size.
func joinRow(runs []pdf.Text) string {
	var b strings.Builder
	var prevEnd float64
	for i, r := range runs {
		if i > 0 && r.X-prevEnd > 0.2*r.FontSize && !strings.HasPrefix(r.S, " ") {
			b.WriteByte(' ')
		}
		b.WriteString(r.S)
		prevEnd = r.X + r.W
	}
	return b.String()
}

// PageImages returns the image XObjects of one page. JPEG streams are
// returned as stored; 8-bit gray and RGB sample data is re-encoded as PNG.
// Images in other encodings are skipped.
func (d *Document) PageImages(n int) (out []domain.ImageCandidate, err error) {
	defer recoverInto(&err, fmt.Sprintf("page %d images", n))

	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	xobjects := p.Resources().Key("XObject")
	names := xobjects.Keys()
	sort.Strings(names)

	index := 0
	for _, name := range names {
		x := xobjects.Key(name)
		if x.Key("Subtype").Name() != "Image" {
			continue
		}
		c := domain.ImageCandidate{
			Page:   n,
			Index:  index,
			Width:  int(x.Key("Width").Int64()),
			Height: int(x.Key("Height").Int64()),
		}
		index++

		data, ext, ok := d.imageData(x, c.Width, c.Height)
		if !ok {
			continue
		}
		c.Data = data
		c.Ext = ext
		out = append(out, c)
	}
	return out, nil
}

func (d *Document) imageData(x pdf.Value, w, h int) (data []byte, ext string, ok bool) {
	defer func() {
		if recover() != nil {
			data, ext, ok = nil, "", false
		}
	}()

	switch filterName(x) {
	case "DCTDecode":
		data := d.findJPEG(x.Key("Length").Int64(), w, h)
		return data, "jpeg", data != nil
	case "", "FlateDecode":
		rc := x.Reader()
		defer rc.Close()
		samples, err := io.ReadAll(rc)
		if err != nil {
			return nil, "", false
		}
		img := samplesToImage(samples, w, h, x.Key("ColorSpace"), int(x.Key("BitsPerComponent").Int64()))
		if img == nil {
			return nil, "", false
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", false
		}
		return buf.Bytes(), "png", true
	default:
		return nil, "", false
	}
}

// filterName returns the single filter of a stream, or the last filter of a
// filter chain.
func filterName(x pdf.Value) string {
	f := x.Key("Filter")
	switch f.Kind() {
	case pdf.Name:
		return f.Name()
	case pdf.Array:
		if f.Len() > 0 {
			return f.Index(f.Len() - 1).Name()
		}
	}
	return ""
}

// samplesToImage builds an image from raw 8-bit samples. Anything else
// returns nil.
func samplesToImage(samples []byte, w, h int, cs pdf.Value, bpc int) image.Image {
	if w <= 0 || h <= 0 || bpc != 8 {
		return nil
	}
	switch cs.Name() {
	case "DeviceGray":
		if len(samples) < w*h {
			return nil
		}
		img := image.NewGray(image.Rect(0, 0, w, h))
		copy(img.Pix, samples[:w*h])
		return img
	case "DeviceRGB":
		if len(samples) < w*h*3 {
			return nil
		}
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			img.Pix[i*4] = samples[i*3]
			img.Pix[i*4+1] = samples[i*3+1]
			img.Pix[i*4+2] = samples[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
		return img
	default:
		return nil
	}
}

// jpegStream is a stream body in the raw file that starts with a JPEG SOI
// marker.
type jpegStream struct {
	offset int
	used   bool
}

// findJPEG locates the raw bytes of a DCT-encoded image stream. The PDF
// reader does not expose undecoded stream bodies, so streams are matched on
// declared length, JPEG end marker and pixel dimensions.
func (d *Document) findJPEG(length int64, w, h int) []byte {
	if d.jpegs == nil {
		d.jpegs = indexJPEGStreams(d.raw)
	}
	n := int(length)
	for i := range d.jpegs {
		s := &d.jpegs[i]
		end := s.offset + n
		if s.used || n < 4 || end > len(d.raw) {
			continue
		}
		body := d.raw[s.offset:end]
		if body[n-2] != 0xff || body[n-1] != 0xd9 {
			continue
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(body))
		if err != nil || cfg.Width != w || cfg.Height != h {
			continue
		}
		s.used = true
		return body
	}
	return nil
}

func indexJPEGStreams(raw []byte) []jpegStream {
	out := []jpegStream{}
	marker := []byte("stream")
	for i := 0; ; {
		j := bytes.Index(raw[i:], marker)
		if j < 0 {
			return out
		}
		start := i + j + len(marker)
		if start < len(raw) && raw[start] == '\r' {
			start++
		}
		if start < len(raw) && raw[start] == '\n' {
			start++
		}
		if start+3 <= len(raw) && raw[start] == 0xff && raw[start+1] == 0xd8 && raw[start+2] == 0xff {
			out = append(out, jpegStream{offset: start})
		}
		i = start
	}
}

// PageSize returns the media box of a page in points, following the page
// tree for inherited boxes. US Letter is assumed when none is declared.
func (d *Document) PageSize(n int) (w, h float64, err error) {
	defer recoverInto(&err, fmt.Sprintf("page %d size", n))

	p, err := d.page(n)
	if err != nil {
		return 0, 0, err
	}
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			w = box.Index(2).Float64() - box.Index(0).Float64()
			h = box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h, nil
			}
		}
	}
	return 612, 792, nil
}

// Close releases the file contents.
func (d *Document) Close() error {
	d.raw = nil
	d.jpegs = nil
	return nil
}

// recoverInto converts a panic from the PDF reader into an error.
func recoverInto(err *error, op string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: %w", op, panicError(r))
	}
}

func panicError(r any) error {
	if e, ok := r.(error); ok {
		return fmt.Errorf("malformed pdf: %w", e)
	}
	return errors.New(fmt.Sprint("malformed pdf: ", r))
}
