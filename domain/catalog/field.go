package catalog

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// TypeDonnee tags the kind of value a payload field carries.
type TypeDonnee string

// TypeDonnee values.
const (
	TypeTexte        TypeDonnee = "texte"
	TypeImage        TypeDonnee = "image"
	TypeListeProduit TypeDonnee = "listeproduit"
	TypeNumerique    TypeDonnee = "numerique"
	TypeGPS          TypeDonnee = "gps"
	TypeDate         TypeDonnee = "date"
	TypeBooleen      TypeDonnee = "booleen"
	TypeTexteOCR     TypeDonnee = "texte_ocr"
	TypeChoix        TypeDonnee = "choix"
)

// Indexable reports whether fields of this type get a vector in the index.
func (t TypeDonnee) Indexable() bool {
	return t == TypeTexte || t == TypeImage
}

// Field names with a fixed meaning in the payload.
const (
	FieldTitre        = "titre"
	FieldTitreService = "titre_service"
	FieldDescription  = "description"
	FieldCategory     = "category"
	FieldGPS          = "gps"
	FieldProduits     = "produits"
	FieldMode         = "mode"
	FieldModeTroc     = "mode_troc"
)

// queryFields are the only fields probed by a search.
var queryFields = []string{FieldTitre, FieldDescription, FieldCategory, FieldTitreService}

// excludedFields are generated fields that must never be embedded or queried.
var excludedFields = map[string]struct{}{
	"reponse_intelligente":        {},
	"suggestions_complementaires": {},
}

// QueryFields returns the whitelist of fields a search probes.
func QueryFields() []string {
	return slices.Clone(queryFields)
}

// IsExcludedField reports whether a field is barred from indexing and querying.
func IsExcludedField(name string) bool {
	_, ok := excludedFields[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Product is one entry of a listeproduit field.
type Product struct {
	Name  string  `json:"nom"`
	Price float64 `json:"prix"`
}

// Field is one typed entry of a service payload.
type Field struct {
	name       string
	typeDonnee TypeDonnee
	value      any
	unit       string
	currency   string
	language   string
}

// NewField creates a Field.
func NewField(name string, typeDonnee TypeDonnee, value any) Field {
	return Field{name: name, typeDonnee: typeDonnee, value: value}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// TypeDonnee returns the field type tag.
func (f Field) TypeDonnee() TypeDonnee { return f.typeDonnee }

// Value returns the raw field value.
func (f Field) Value() any { return f.value }

// Unit returns the optional unit.
func (f Field) Unit() string { return f.unit }

// Currency returns the optional currency.
func (f Field) Currency() string { return f.currency }

// Language returns the optional language tag.
func (f Field) Language() string { return f.language }

// Text returns the value rendered as a string.
func (f Field) Text() string {
	switch v := f.value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// WithUnit returns a copy with the unit set.
func (f Field) WithUnit(unit string) Field {
	f.unit = unit
	return f
}

// WithCurrency returns a copy with the currency set.
func (f Field) WithCurrency(currency string) Field {
	f.currency = currency
	return f
}

// WithLanguage returns a copy with the language tag set.
func (f Field) WithLanguage(language string) Field {
	f.language = language
	return f
}

// Payload is the semi-structured record of typed fields carried by a service.
type Payload struct {
	fields map[string]Field
}

// NewPayload creates a payload from fields. Later fields replace earlier ones
// with the same name.
func NewPayload(fields ...Field) Payload {
	p := Payload{fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		p.fields[f.name] = f
	}
	return p
}

// Get returns a field by name.
func (p Payload) Get(name string) (Field, bool) {
	f, ok := p.fields[name]
	return f, ok
}

// With returns a copy of the payload with the field added or replaced.
func (p Payload) With(f Field) Payload {
	fields := make(map[string]Field, len(p.fields)+1)
	for k, v := range p.fields {
		fields[k] = v
	}
	fields[f.name] = f
	return Payload{fields: fields}
}

// Fields returns all fields sorted by name.
func (p Payload) Fields() []Field {
	names := make([]string, 0, len(p.fields))
	for name := range p.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	result := make([]Field, len(names))
	for i, name := range names {
		result[i] = p.fields[name]
	}
	return result
}

// IndexableFields returns the texte and image fields that may be embedded,
// with excluded fields removed.
func (p Payload) IndexableFields() []Field {
	var result []Field
	for _, f := range p.Fields() {
		if !f.typeDonnee.Indexable() || IsExcludedField(f.name) {
			continue
		}
		if strings.TrimSpace(f.Text()) == "" {
			continue
		}
		result = append(result, f)
	}
	return result
}

// Title returns the titre (or titre_service) text.
func (p Payload) Title() string {
	if f, ok := p.fields[FieldTitre]; ok && f.Text() != "" {
		return f.Text()
	}
	if f, ok := p.fields[FieldTitreService]; ok {
		return f.Text()
	}
	return ""
}

// Description returns the description text.
func (p Payload) Description() string {
	if f, ok := p.fields[FieldDescription]; ok {
		return f.Text()
	}
	return ""
}

// Category returns the category text.
func (p Payload) Category() string {
	if f, ok := p.fields[FieldCategory]; ok {
		return f.Text()
	}
	return ""
}

// Len returns the number of fields.
func (p Payload) Len() int { return len(p.fields) }

// rawField is the JSON shape of one payload entry.
type rawField struct {
	TypeDonnee TypeDonnee `json:"type_donnee"`
	Valeur     any        `json:"valeur"`
	Unite      string     `json:"unite,omitempty"`
	Devise     string     `json:"devise,omitempty"`
	Langue     string     `json:"langue,omitempty"`
}

// MarshalJSON encodes the payload as {"field": {"type_donnee": ..., "valeur": ...}}.
func (p Payload) MarshalJSON() ([]byte, error) {
	raw := make(map[string]rawField, len(p.fields))
	for name, f := range p.fields {
		raw[name] = rawField{
			TypeDonnee: f.typeDonnee,
			Valeur:     f.value,
			Unite:      f.unit,
			Devise:     f.currency,
			Langue:     f.language,
		}
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes a payload. Entries that are bare values rather than
// typed objects are kept as texte fields.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	p.fields = make(map[string]Field, len(entries))
	for name, entry := range entries {
		var rf rawField
		if err := json.Unmarshal(entry, &rf); err == nil && rf.TypeDonnee != "" {
			p.fields[name] = Field{
				name:       name,
				typeDonnee: rf.TypeDonnee,
				value:      rf.Valeur,
				unit:       rf.Unite,
				currency:   rf.Devise,
				language:   rf.Langue,
			}
			continue
		}
		var bare any
		if err := json.Unmarshal(entry, &bare); err != nil {
			return fmt.Errorf("decode payload field %s: %w", name, err)
		}
		p.fields[name] = Field{name: name, typeDonnee: TypeTexte, value: bare}
	}
	return nil
}
