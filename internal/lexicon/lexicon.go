// Package lexicon loads the word lists that drive intent classification,
// query preparation and product detection.
package lexicon

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/intent"
	"github.com/yukpo/yukpo/domain/matching"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// IntentRule describes one intent for the classification prompt.
type IntentRule struct {
	Name     string   `yaml:"name"`
	Rule     string   `yaml:"rule"`
	Synonyms []string `yaml:"synonyms"`
}

// Lexicon is the parsed word list document.
type Lexicon struct {
	Intents          []IntentRule `yaml:"intents"`
	IntentionPhrases []string     `yaml:"intention_phrases"`
	ProductStopWords []string     `yaml:"product_stop_words"`
}

// Default returns the embedded lexicon.
func Default() Lexicon {
	l, err := Parse(defaultLexicon)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon: %v", err))
	}
	return l
}

// Parse decodes and validates a lexicon document.
func Parse(data []byte) (Lexicon, error) {
	var l Lexicon
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Lexicon{}, fmt.Errorf("parse lexicon: %w", err)
	}
	for _, r := range l.Intents {
		if !intent.Intent(r.Name).Valid() {
			return Lexicon{}, fmt.Errorf("parse lexicon: unknown intent %q", r.Name)
		}
	}
	return l, nil
}

// Synonyms returns the synonym table for an intent.Parser.
func (l Lexicon) Synonyms() map[string]intent.Intent {
	table := make(map[string]intent.Intent)
	for _, r := range l.Intents {
		for _, s := range r.Synonyms {
			table[s] = intent.Intent(r.Name)
		}
	}
	return table
}

// Parser returns an intent parser using the synonym table.
func (l Lexicon) Parser() intent.Parser {
	return intent.NewParser(l.Synonyms())
}

// Rules renders the detection rules as prompt lines, one per intent, in the
// closed set order.
func (l Lexicon) Rules() string {
	byName := make(map[string]string, len(l.Intents))
	for _, r := range l.Intents {
		byName[r.Name] = strings.TrimSpace(r.Rule)
	}
	var b strings.Builder
	for _, i := range intent.All() {
		b.WriteString("- ")
		b.WriteString(i.String())
		if rule := byName[i.String()]; rule != "" {
			b.WriteString(": ")
			b.WriteString(rule)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Preparer returns a query preparer stripping the intention phrases.
func (l Lexicon) Preparer() matching.Preparer {
	return matching.NewPreparer(l.IntentionPhrases)
}

// ProductDetector returns a product detector with the extra stop words.
func (l Lexicon) ProductDetector() catalog.ProductDetector {
	return catalog.NewProductDetector(l.ProductStopWords...)
}
