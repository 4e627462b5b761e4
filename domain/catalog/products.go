package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

// pricePattern matches "<words> à <price>" with up to four words before the price.
var pricePattern = regexp.MustCompile(`(?i)([\p{L}'-]+(?:\s+[\p{L}'-]+){0,3})\s+(?:à|a|pour)\s+(\d+(?:[.,]\d+)?)`)

// defaultProductStopWords end the noun phrase scan when reading backwards.
var defaultProductStopWords = []string{
	"je", "j'", "on", "nous", "vends", "vend", "vendons", "propose", "proposons", "offre",
	"des", "les", "mes", "nos", "de", "du", "la", "le", "l'", "un", "une", "et", "aussi",
	"avec", "ou", "plus",
}

// ProductDetector extracts "X à N" product listings from free text.
type ProductDetector struct {
	stop map[string]struct{}
}

// NewProductDetector creates a detector. Extra stop words extend the
// built-in list.
func NewProductDetector(extraStopWords ...string) ProductDetector {
	stop := make(map[string]struct{}, len(defaultProductStopWords)+len(extraStopWords))
	for _, w := range defaultProductStopWords {
		stop[w] = struct{}{}
	}
	for _, w := range extraStopWords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return ProductDetector{stop: stop}
}

// Detect returns the products priced in text, in order of appearance.
func (d ProductDetector) Detect(text string) []Product {
	var products []Product
	for _, m := range pricePattern.FindAllStringSubmatch(text, -1) {
		name := d.noun(m[1])
		if name == "" {
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
		if err != nil {
			continue
		}
		products = append(products, Product{Name: name, Price: price})
	}
	return products
}

// noun keeps the words after the last stop word.
func (d ProductDetector) noun(phrase string) string {
	words := strings.Fields(strings.ToLower(phrase))
	start := 0
	for i, w := range words {
		if _, ok := d.stop[w]; ok {
			start = i + 1
		}
	}
	return strings.Join(words[start:], " ")
}

// WithProducts returns the payload with a listeproduit field when text
// carries priced products. The payload is returned unchanged otherwise.
func (d ProductDetector) WithProducts(p Payload, text string) (Payload, []Product) {
	products := d.Detect(text)
	if len(products) == 0 {
		return p, nil
	}
	return p.With(NewField(FieldProduits, TypeListeProduit, products)), products
}
