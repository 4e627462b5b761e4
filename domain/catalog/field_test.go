package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_UnmarshalTypedAndBareFields(t *testing.T) {
	raw := `{
		"titre": {"type_donnee": "texte", "valeur": "Salon de coiffure", "langue": "fr"},
		"prix": {"type_donnee": "numerique", "valeur": 25, "devise": "XAF"},
		"note": "libre"
	}`

	var p Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, 3, p.Len())
	assert.Equal(t, "Salon de coiffure", p.Title())

	titre, ok := p.Get("titre")
	require.True(t, ok)
	assert.Equal(t, "fr", titre.Language())

	prix, _ := p.Get("prix")
	assert.Equal(t, TypeNumerique, prix.TypeDonnee())
	assert.Equal(t, "XAF", prix.Currency())

	note, _ := p.Get("note")
	assert.Equal(t, TypeTexte, note.TypeDonnee())
}

func TestPayload_IndexableFieldsExcludeBlacklist(t *testing.T) {
	p := NewPayload(
		NewField("titre", TypeTexte, "Plombier"),
		NewField("photo", TypeImage, "aGVsbG8="),
		NewField("reponse_intelligente", TypeTexte, "generated"),
		NewField("suggestions_complementaires", TypeTexte, "more"),
		NewField("prix", TypeNumerique, 10),
		NewField("vide", TypeTexte, "  "),
	)

	var names []string
	for _, f := range p.IndexableFields() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"photo", "titre"}, names)
}

func TestPayload_MarshalKeepsTypeTags(t *testing.T) {
	p := NewPayload(NewField("titre", TypeTexte, "Taxi").WithLanguage("fr"))

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"titre":{"type_donnee":"texte","valeur":"Taxi","langue":"fr"}}`, string(data))
}

func TestQueryFields_Whitelist(t *testing.T) {
	assert.ElementsMatch(t, []string{"titre", "description", "category", "titre_service"}, QueryFields())
	assert.True(t, IsExcludedField(" Reponse_Intelligente "))
	assert.False(t, IsExcludedField("titre"))
}
