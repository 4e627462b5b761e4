package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukpo/yukpo/domain/intent"
)

func TestDefault_CoversEveryIntent(t *testing.T) {
	l := Default()

	names := make(map[string]bool)
	for _, r := range l.Intents {
		names[r.Name] = true
	}
	for _, i := range intent.All() {
		assert.True(t, names[i.String()], i.String())
	}
	assert.NotEmpty(t, l.IntentionPhrases)
}

func TestParse_RejectsUnknownIntent(t *testing.T) {
	_, err := Parse([]byte("intents:\n  - name: vendre\n"))
	assert.Error(t, err)
}

func TestParser_Synonyms(t *testing.T) {
	p := Default().Parser()

	assert.Equal(t, intent.Echange, p.Parse("Troc"))
	assert.Equal(t, intent.RechercheBesoin, p.Parse("looking for"))
	assert.Equal(t, intent.AssistanceGenerale, p.Parse("???"))
}

func TestRules_ListsClosedSet(t *testing.T) {
	rules := Default().Rules()

	assert.Contains(t, rules, "- creation_service: ")
	assert.Contains(t, rules, "- update_programme_scolaire: ")
}

func TestPreparer_StripsPhrases(t *testing.T) {
	p := Default().Preparer()

	assert.Equal(t, "salon de coiffure", p.Prepare("je cherche un salon de coiffure"))
	assert.Equal(t, "plombier", p.Prepare("Bonjour, j'ai besoin d'un plombier"))
	assert.Equal(t, "avocat", p.Prepare("avocat"))
	assert.Equal(t, "italian restaurant", p.Prepare("I am looking for an italian restaurant"))
}

func TestProductDetector_UsesStopWords(t *testing.T) {
	d := Default().ProductDetector()

	products := d.Detect("je vends des robes à 25 et des chaussures à 40")
	require.Len(t, products, 2)
	assert.Equal(t, "robes", products[0].Name)
	assert.Equal(t, 25.0, products[0].Price)
	assert.Equal(t, "chaussures", products[1].Name)
	assert.Equal(t, 40.0, products[1].Price)
}
