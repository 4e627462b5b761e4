// Package intent defines the closed set of user goals and the parsing rules
// that map free-form model replies onto it.
package intent

import (
	"sort"
	"strings"
	"unicode"
)

// Intent is a recognized user goal.
type Intent string

// Intent values.
const (
	CreationService         Intent = "creation_service"
	RechercheBesoin         Intent = "recherche_besoin"
	Echange                 Intent = "echange"
	AssistanceGenerale      Intent = "assistance_generale"
	ProgrammeScolaire       Intent = "programme_scolaire"
	UpdateProgrammeScolaire Intent = "update_programme_scolaire"
)

// All returns the closed intent set in prompt order.
func All() []Intent {
	return []Intent{
		CreationService,
		RechercheBesoin,
		Echange,
		AssistanceGenerale,
		ProgrammeScolaire,
		UpdateProgrammeScolaire,
	}
}

var byLength = func() []Intent {
	all := All()
	sort.SliceStable(all, func(a, b int) bool { return len(all[a]) > len(all[b]) })
	return all
}()

// Valid reports whether i belongs to the closed set.
func (i Intent) Valid() bool {
	for _, known := range All() {
		if i == known {
			return true
		}
	}
	return false
}

// String returns the intent token.
func (i Intent) String() string { return string(i) }

// Parser maps raw replies to intents through normalization and a synonym table.
type Parser struct {
	synonyms map[string]Intent
}

// NewParser creates a Parser. Synonym keys are normalized the same way
// replies are.
func NewParser(synonyms map[string]Intent) Parser {
	table := make(map[string]Intent, len(synonyms))
	for k, v := range synonyms {
		if v.Valid() {
			table[Normalize(k)] = v
		}
	}
	return Parser{synonyms: table}
}

// Parse returns the intent named by reply, or AssistanceGenerale.
func (p Parser) Parse(reply string) Intent {
	i, _ := p.Lookup(reply)
	return i
}

// Lookup is Parse that also reports whether the reply was recognized.
func (p Parser) Lookup(reply string) (Intent, bool) {
	token := Normalize(reply)
	if token == "" {
		return AssistanceGenerale, false
	}
	if i := Intent(token); i.Valid() {
		return i, true
	}
	if i, ok := p.synonyms[token]; ok {
		return i, true
	}
	// Models sometimes wrap the token in a sentence. Longer tokens first so
	// update_programme_scolaire wins over programme_scolaire.
	for _, known := range byLength {
		if strings.Contains(token, string(known)) {
			return known, true
		}
	}
	return AssistanceGenerale, false
}

// Normalize lowercases s, strips quotes and punctuation other than the
// underscore, and collapses whitespace to underscores.
func Normalize(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			pendingSep = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
