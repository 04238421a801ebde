package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// Salience thresholds for embedded images.
const (
	minMaxDimension   = 50
	maxAspectRatio    = 20.0
	minArea           = 5000
	mediumArea        = 10000
	mediumMaxAspect   = 5.0
	minImageBytes     = 500
	elongatedAspect   = 10.0
	elongatedMaxArea  = 50000
	minEquationLength = 3
)

// SalientImage applies the figure filter to a raw image. The checks run in
// a fixed order and the first failing one is reported.
func SalientImage(c domain.ImageCandidate) (bool, string) {
	area := c.Area()
	aspect := c.AspectRatio()
	maxDim := c.Width
	if c.Height > maxDim {
		maxDim = c.Height
	}

	switch {
	case maxDim < minMaxDimension:
		return false, fmt.Sprintf("too small (max dimension %d < %d)", maxDim, minMaxDimension)
	case aspect > maxAspectRatio:
		return false, fmt.Sprintf("extreme aspect ratio (%.1f > %.0f)", aspect, maxAspectRatio)
	case area < minArea:
		return false, fmt.Sprintf("insufficient area (%d < %d)", area, minArea)
	case area < mediumArea && aspect > mediumMaxAspect:
		return false, fmt.Sprintf("medium image with high aspect ratio (%.1f > %.0f)", aspect, mediumMaxAspect)
	case len(c.Data) < minImageBytes:
		return false, fmt.Sprintf("file too small (%d bytes < %d)", len(c.Data), minImageBytes)
	case aspect > elongatedAspect && area < elongatedMaxArea:
		return false, fmt.Sprintf("elongated image (%.1f > %.0f)", aspect, elongatedAspect)
	}
	return true, fmt.Sprintf("valid figure (%dx%d, area=%d, aspect=%.1f)", c.Width, c.Height, area, aspect)
}

// captionHead matches the first line of a figure caption. Continuation
// lines are appended by FindCaptions.
var captionHead = regexp.MustCompile(`(?i)Fig(?:ure)?\.?\s+\d+[a-z]?:?\s*[^\n]+`)

// FindCaptions returns the figure captions on a page in order of
// appearance. A caption runs on over following lines until a blank line
// or a line that starts another figure.
func FindCaptions(text string) []string {
	var captions []string
	pos := 0
	for pos < len(text) {
		loc := captionHead.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		for end < len(text) && text[end] == '\n' {
			next := end + 1
			lineEnd := strings.IndexByte(text[next:], '\n')
			if lineEnd < 0 {
				lineEnd = len(text) - next
			}
			if lineEnd == 0 || hasFoldPrefix(text[next:], "fig") {
				break
			}
			end = next + lineEnd
		}
		captions = append(captions, text[start:end])
		pos = end
	}
	return captions
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

type equationPattern struct {
	re   *regexp.Regexp
	kind domain.EquationType
}

// Math delimiters, display forms first.
var equationPatterns = []equationPattern{
	{regexp.MustCompile(`(?s)\$\$(.*?)\$\$`), domain.EquationDisplay},
	{regexp.MustCompile(`(?s)\\\[(.*?)\\\]`), domain.EquationDisplay},
	{regexp.MustCompile(`(?s)\\begin\{equation\}(.*?)\\end\{equation\}`), domain.EquationDisplay},
	{regexp.MustCompile(`(?s)\\begin\{align\*?\}(.*?)\\end\{align\*?\}`), domain.EquationDisplay},
	{regexp.MustCompile(`(?s)\$(.*?)\$`), domain.EquationInline},
	{regexp.MustCompile(`(?s)\\\((.*?)\\\)`), domain.EquationInline},
}

// TextEquations extracts delimited LaTeX from one page of text. Matches
// shorter than three characters are dropped. seen carries the
// (page, normalised latex) keys already emitted for the document.
func TextEquations(page int, text string, seen map[string]struct{}) []domain.Equation {
	var out []domain.Equation
	for _, p := range equationPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			latex := strings.TrimSpace(m[1])
			if len(latex) < minEquationLength {
				continue
			}
			key := fmt.Sprintf("%d|%s", page, strings.Join(strings.Fields(latex), " "))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, domain.Equation{
				Page:       page,
				LaTeX:      latex,
				Type:       p.kind,
				Confidence: 1,
			})
		}
	}
	return out
}

// ocrFence strips a code fence around a transcribed equation.
var ocrFence = regexp.MustCompile("(?s)```(?:latex)?\n?(.*?)\n?```")

func cleanLaTeX(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "```") {
		s = ocrFence.ReplaceAllString(s, "$1")
	}
	return strings.TrimSpace(s)
}
