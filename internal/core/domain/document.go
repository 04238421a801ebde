package domain

import (
	"crypto/md5" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Metadata placeholders used when a citation cannot be resolved.
const (
	UnknownValue    = "Unknown"
	NoYear          = "n.d."
	UnknownJournal  = "Unknown Journal"
	chunkIDPrefixSz = 100
)

// Document represents a source PDF assigned to one knowledge domain.
// It is read once at ingestion time and is immutable thereafter.
type Document struct {
	// Path is the absolute or root-relative file path of the PDF.
	Path string

	// Domain is the knowledge domain folder the PDF was found in.
	Domain KnowledgeDomain

	// Citation holds the resolved bibliographic metadata.
	Citation CitationMetadata

	// Pages holds the extracted plain text, one entry per page.
	Pages []string
}

// Filename returns the base name of the document path.
func (d *Document) Filename() string {
	return filepath.Base(d.Path)
}

// Stem returns the filename without its extension.
func (d *Document) Stem() string {
	name := d.Filename()
	return name[:len(name)-len(filepath.Ext(name))]
}

// Text returns the page texts joined by blank lines.
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n\n")
}

// BaseMetadata returns the metadata every chunk of this document inherits.
func (d *Document) BaseMetadata() map[string]any {
	meta := map[string]any{
		MetaFilename: d.Filename(),
		MetaDomain:   d.Domain.String(),
		MetaFilePath: d.Path,
	}
	for k, v := range d.Citation.Metadata() {
		meta[k] = v
	}
	return meta
}

// CitationMetadata is the resolved bibliographic record for a document.
type CitationMetadata struct {
	Title    string
	Authors  string
	Year     string
	Journal  string
	Citation string

	// DOI is nil when no identifier could be discovered.
	DOI *string
}

// UnknownCitation returns the metadata used when resolution fails entirely.
func UnknownCitation() CitationMetadata {
	return CitationMetadata{
		Title:    UnknownValue,
		Authors:  UnknownValue,
		Year:     UnknownValue,
		Journal:  UnknownValue,
		Citation: UnknownValue,
	}
}

// Metadata flattens the citation into chunk metadata fields.
// A missing DOI is stored as an empty string.
func (c CitationMetadata) Metadata() map[string]any {
	doi := ""
	if c.DOI != nil {
		doi = *c.DOI
	}
	return map[string]any{
		MetaTitle:    c.Title,
		MetaAuthors:  c.Authors,
		MetaYear:     c.Year,
		MetaJournal:  c.Journal,
		MetaCitation: c.Citation,
		MetaDOI:      doi,
	}
}

// ContentType tags what kind of content a chunk was synthesised from.
type ContentType string

// Chunk content types.
const (
	ContentText     ContentType = "text"
	ContentFigure   ContentType = "figure"
	ContentEquation ContentType = "equation"
)

// Chunk metadata keys.
const (
	MetaFilename       = "filename"
	MetaDomain         = "domain"
	MetaFilePath       = "file_path"
	MetaTitle          = "title"
	MetaAuthors        = "authors"
	MetaYear           = "year"
	MetaJournal        = "journal"
	MetaCitation       = "citation"
	MetaDOI            = "doi"
	MetaContentType    = "content_type"
	MetaChunkIndex     = "chunk_id"
	MetaTotalChunks    = "total_chunks"
	MetaCharCount      = "char_count"
	MetaPage           = "page"
	MetaImagePath      = "image_path"
	MetaPanelLabel     = "panel_label"
	MetaFigureType     = "figure_type"
	MetaEquationType   = "equation_type"
	MetaEquationNumber = "equation_number"
)

// Chunk represents a retrievable unit of content: a text slice, a figure
// description or an equation transcription.
type Chunk struct {
	// ID is a deterministic hash of collection, filename, position and
	// content prefix.
	ID string

	// Text is the content that gets embedded.
	Text string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the dense vector computed over Text.
	Embedding []float32

	// Metadata contains scalar key-value pairs only.
	Metadata map[string]any
}

// ChunkID derives the stable id of a chunk from the collection it is
// stored in, the document filename, its position within the document and
// the first 100 characters of its text. The same paper filed under two
// domains gets distinct ids in each collection.
func ChunkID(collection, filename string, position int, text string) string {
	prefix := text
	if r := []rune(text); len(r) > chunkIDPrefixSz {
		prefix = string(r[:chunkIDPrefixSz])
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s/%s_%d_%s", collection, filename, position, prefix))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// MetaString reads a metadata value as a string, returning fallback when
// the key is absent or empty.
func MetaString(meta map[string]any, key, fallback string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return fallback
		}
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// MetaFloat reads a numeric metadata value.
func MetaFloat(meta map[string]any, key string, fallback float64) float64 {
	switch t := meta[key].(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return fallback
	}
}

// MetaInt reads an integer metadata value. JSON round trips turn ints
// into float64, both are accepted.
func MetaInt(meta map[string]any, key string, fallback int) int {
	switch t := meta[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return fallback
	}
}
