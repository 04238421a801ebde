package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/logger"
)

var (
	metadataDOI = regexp.MustCompile(`10\.\d{4,}/[^\s]+`)
	textDOI     = regexp.MustCompile(`(?i)10\.\d{4,}/[^\s\]\)>"]+`)
)

const (
	doiTextPages    = 3
	titleScanLines  = 10
	minTitleLength  = 20
	doiTrailingPunc = ".,;:"
)

// CitationResolver turns a PDF's metadata and first pages into citation
// metadata. It never fails: anything it cannot resolve stays "Unknown".
type CitationResolver struct {
	registry driven.BibliographicRegistry
}

// NewCitationResolver creates a resolver. A nil registry skips DOI lookups.
func NewCitationResolver(registry driven.BibliographicRegistry) *CitationResolver {
	return &CitationResolver{registry: registry}
}

// Resolve discovers a DOI, looks it up and formats the citation. Without
// a DOI, or when the lookup fails, the title is guessed from page 1.
func (r *CitationResolver) Resolve(ctx context.Context, info map[string]string, pages []string) domain.CitationMetadata {
	meta := domain.UnknownCitation()

	doi, ok := DiscoverDOI(info, pages)
	if !ok {
		logger.Debug("No DOI found, extracting title from text")
		meta.Title = GuessTitle(firstPage(pages))
		return meta
	}
	meta.DOI = &doi
	logger.Debug("Found DOI: %s", doi)

	if r.registry == nil {
		meta.Title = GuessTitle(firstPage(pages))
		return meta
	}
	work, err := r.registry.Lookup(ctx, doi)
	if err != nil {
		logger.Warn("Registry lookup failed for %s: %v", doi, err)
		meta.Title = GuessTitle(firstPage(pages))
		return meta
	}

	if work.Title != "" {
		meta.Title = work.Title
	}
	if len(work.Authors) > 0 {
		meta.Authors = work.Authors[0].Family
		if len(work.Authors) > 1 {
			meta.Authors += " et al."
		}
	}
	if y, ok := publishedYear(work); ok {
		meta.Year = strconv.Itoa(y)
	}
	if j := journalName(work); j != "" {
		meta.Journal = j
	}
	meta.Citation = FormatCitation(work)
	logger.Debug("Citation: %s", meta.Citation)
	return meta
}

// DiscoverDOI looks in the subject, keywords and doi metadata fields,
// then in the text of the first three pages. Trailing punctuation is
// stripped from the match.
func DiscoverDOI(info map[string]string, pages []string) (string, bool) {
	for _, key := range []string{"subject", "keywords", "doi"} {
		for k, v := range info {
			if !strings.EqualFold(k, key) || v == "" {
				continue
			}
			if m := metadataDOI.FindString(v); m != "" {
				if doi := strings.TrimRight(m, doiTrailingPunc); doi != "" {
					return doi, true
				}
			}
		}
	}
	for i, text := range pages {
		if i == doiTextPages {
			break
		}
		if m := textDOI.FindString(text); m != "" {
			return strings.TrimRight(m, doiTrailingPunc), true
		}
	}
	return "", false
}

// FormatCitation renders "{journal} ({year}), {volume}, {pages}", dropping
// pages and then volume when they are missing.
func FormatCitation(w *domain.RegistryWork) string {
	journal := journalName(w)
	if journal == "" {
		journal = domain.UnknownJournal
	}
	year := domain.NoYear
	if y, ok := publishedYear(w); ok {
		year = strconv.Itoa(y)
	}
	switch {
	case w.Volume != "" && w.Page != "":
		return fmt.Sprintf("%s (%s), %s, %s", journal, year, w.Volume, w.Page)
	case w.Volume != "":
		return fmt.Sprintf("%s (%s), %s", journal, year, w.Volume)
	default:
		return fmt.Sprintf("%s (%s)", journal, year)
	}
}

// GuessTitle returns the first of the leading non-empty lines that is
// longer than 20 characters and is not a DOI or URL.
func GuessTitle(page string) string {
	seen := 0
	for _, line := range strings.Split(page, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if seen == titleScanLines {
			break
		}
		seen++
		lower := strings.ToLower(line)
		if len(line) > minTitleLength &&
			!strings.HasPrefix(lower, "doi:") &&
			!strings.HasPrefix(lower, "http") &&
			!strings.HasPrefix(lower, "www") {
			return line
		}
	}
	return domain.UnknownValue
}

func publishedYear(w *domain.RegistryWork) (int, bool) {
	parts := w.PublishedPrint
	if len(parts) == 0 {
		parts = w.PublishedOnline
	}
	if len(parts) == 0 {
		return 0, false
	}
	return parts[0], true
}

func journalName(w *domain.RegistryWork) string {
	if w.ShortContainerTitle != "" {
		return w.ShortContainerTitle
	}
	return w.ContainerTitle
}

func firstPage(pages []string) string {
	if len(pages) == 0 {
		return ""
	}
	return pages[0]
}
