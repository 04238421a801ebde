package services

import (
	"regexp"
	"strings"
)

// MatchSubCaptions maps panel labels to the part of a figure caption that
// describes them. Each label tries the forms "(a) text", "a. text",
// "a: text", "Panel a: text" and "a text" in that order; the first form
// that matches wins. Unmatched labels are absent from the result.
func MatchSubCaptions(caption string, labels []string) map[string]string {
	out := make(map[string]string)
	if caption == "" || len(labels) == 0 {
		return out
	}
	for _, label := range labels {
		if label == "" {
			continue
		}
		if text, ok := matchSubCaption(caption, label); ok {
			out[label] = strings.TrimSpace(text)
		}
	}
	return out
}

func matchSubCaption(caption, label string) (string, bool) {
	q := regexp.QuoteMeta(label)

	// Enumerated forms run up to the next label of the same shape.
	enumerated := []struct {
		prefix *regexp.Regexp
		stop   byte
		next   func(s string, i int) bool
	}{
		{regexp.MustCompile(`(?i)\(` + q + `\)`), '(', parenLabelAt},
		{regexp.MustCompile(`(?i)` + q + `\.`), '.', suffixLabelAt('.')},
		{regexp.MustCompile(`(?i)` + q + `:`), ':', suffixLabelAt(':')},
	}
	for _, e := range enumerated {
		if text, ok := scanEnumerated(caption, e.prefix, e.stop, e.next); ok {
			return text, true
		}
	}

	for _, re := range []*regexp.Regexp{
		regexp.MustCompile(`(?i)Panel\s+` + q + `[:\s]+([^.]+)`),
		regexp.MustCompile(`(?i)\b` + q + `\b[:\s]+([^.]+)`),
	} {
		if m := re.FindStringSubmatch(caption); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// scanEnumerated finds the first occurrence of prefix followed by optional
// whitespace and the shortest run of non-stop characters that ends where
// next reports another label, at the end of the caption, or before a
// final newline.
func scanEnumerated(s string, prefix *regexp.Regexp, stop byte, next func(string, int) bool) (string, bool) {
	for _, loc := range prefix.FindAllStringIndex(s, -1) {
		p := loc[1]
		q := p
		for q < len(s) && isSpace(s[q]) {
			q++
		}
		for i := q + 1; i <= len(s); i++ {
			if s[i-1] == stop {
				break
			}
			if i == len(s) || (i == len(s)-1 && s[i] == '\n') || next(s, i) {
				return s[q:i], true
			}
		}
		// Whitespace alone can be the text when a label or the end follows.
		if q > p && (q == len(s) || next(s, q)) {
			return "", true
		}
	}
	return "", false
}

func parenLabelAt(s string, i int) bool {
	return i+2 < len(s) && s[i] == '(' && isLetter(s[i+1]) && s[i+2] == ')'
}

func suffixLabelAt(stop byte) func(string, int) bool {
	return func(s string, i int) bool {
		return i+1 < len(s) && isLetter(s[i]) && s[i+1] == stop
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
