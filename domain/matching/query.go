// Package matching holds the pure ranking rules of service search: query
// preparation, geospatial filters and score fusion.
package matching

import (
	"sort"
	"strings"
	"unicode"
)

// Preparer strips leading intention phrases from a query so only the
// substantive noun phrase is embedded.
type Preparer struct {
	phrases []string
}

// NewPreparer creates a Preparer. Phrases are matched case-insensitively at
// the start of the query, longest first.
func NewPreparer(phrases []string) Preparer {
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = collapse(strings.ToLower(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return len(normalized[i]) > len(normalized[j])
	})
	return Preparer{phrases: normalized}
}

// Prepare returns the query with leading intention phrases removed. Stripping
// repeats so "bonjour, je cherche un ..." loses both phrases. If nothing
// substantive remains the collapsed original is returned.
func (p Preparer) Prepare(query string) string {
	original := collapse(query)
	text := strings.ToLower(original)
	for {
		stripped := p.stripOnce(text)
		if stripped == text {
			break
		}
		text = stripped
	}
	if text == "" {
		return original
	}
	return text
}

func (p Preparer) stripOnce(text string) string {
	for _, phrase := range p.phrases {
		if !strings.HasPrefix(text, phrase) {
			continue
		}
		rest := text[len(phrase):]
		// Only strip on a word boundary.
		if rest != "" && !startsWithSeparator(rest) && !endsWithSeparator(phrase) {
			continue
		}
		return strings.TrimLeftFunc(rest, isSeparator)
	}
	return text
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == ',' || r == ':' || r == ';' || r == '!' || r == '.'
}

func startsWithSeparator(s string) bool {
	for _, r := range s {
		return isSeparator(r)
	}
	return false
}

func endsWithSeparator(s string) bool {
	if s == "" {
		return false
	}
	r := rune(s[len(s)-1])
	return isSeparator(r) || r == '\''
}
