package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukpo/yukpo/domain/vector"
)

func TestMemoryIndex_QueryFilters(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	lat, lon := 3.848, 11.502
	farLat, farLon := 4.05, 9.7

	require.NoError(t, idx.Upsert(ctx, vector.Record{ServiceID: 1, Field: "titre", Value: "restaurant italien", TypeDonnee: "texte", Active: true, TypeMetier: vector.MetierService, GPSLat: &lat, GPSLon: &lon}))
	require.NoError(t, idx.Upsert(ctx, vector.Record{ServiceID: 2, Field: "titre", Value: "restaurant italien", TypeDonnee: "texte", Active: true, TypeMetier: vector.MetierService, GPSLat: &farLat, GPSLon: &farLon}))
	require.NoError(t, idx.Upsert(ctx, vector.Record{ServiceID: 3, Field: "titre", Value: "garage auto", TypeDonnee: "texte", Active: true, TypeMetier: vector.MetierService}))

	all, err := idx.Query(ctx, vector.Query{Text: "restaurant italien", TopK: 10, ActiveOnly: true, TypeMetier: vector.MetierService})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.InDelta(t, 1.0, all[0].Score, 1e-9)

	near, err := idx.Query(ctx, vector.Query{
		Text:       "restaurant italien",
		TopK:       10,
		ActiveOnly: true,
		Circle:     &vector.Circle{Lat: 3.848, Lon: 11.502, RadiusKM: 5},
	})
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, int64(1), near[0].Record.ServiceID)
}

func TestMemoryIndex_SetActiveAndDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, vector.Record{ServiceID: 5, Field: "titre", Value: "coiffure", TypeDonnee: "texte", Active: true}))
	require.NoError(t, idx.Upsert(ctx, vector.Record{ServiceID: 5, Field: "photo", Value: "img", TypeDonnee: "image", Active: true}))

	require.NoError(t, idx.SetActive(ctx, 5, "", false))
	for _, r := range idx.Records() {
		assert.False(t, r.Active)
	}
	matches, err := idx.Query(ctx, vector.Query{Text: "coiffure", TopK: 5, ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, idx.Delete(ctx, 5))
	assert.Empty(t, idx.Records())
}
