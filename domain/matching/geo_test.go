package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/vector"
)

var square = Polygon{
	{Lat: 3.80, Lon: 11.45},
	{Lat: 3.80, Lon: 11.55},
	{Lat: 3.90, Lon: 11.55},
	{Lat: 3.90, Lon: 11.45},
}

func TestPolygon_Contains(t *testing.T) {
	assert.True(t, square.Contains(Point{Lat: 3.848, Lon: 11.502}))
	assert.False(t, square.Contains(Point{Lat: 4.05, Lon: 9.70}))
	assert.False(t, Polygon{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}.Contains(Point{}))
}

func TestPolygon_BoundingCircleCoversVertices(t *testing.T) {
	c := square.BoundingCircle()

	assert.InDelta(t, 3.85, c.Lat, 1e-9)
	assert.InDelta(t, 11.50, c.Lon, 1e-9)
	center := Point{Lat: c.Lat, Lon: c.Lon}
	for _, v := range square {
		assert.LessOrEqual(t, center.Distance(v), c.RadiusKM+1e-9)
	}
}

func TestDistance(t *testing.T) {
	yaounde := Point{Lat: 3.848, Lon: 11.502}
	douala := Point{Lat: 4.0511, Lon: 9.7679}
	assert.InDelta(t, 193, yaounde.Distance(douala), 5)
	assert.InDelta(t, 0, yaounde.Distance(yaounde), 1e-9)
}

func TestZone_DegeneratePolygonFallsBackToCircle(t *testing.T) {
	circle := &vector.Circle{Lat: 3.848, Lon: 11.502, RadiusKM: 5}
	z := Zone{Circle: circle, Polygon: Polygon{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}}

	assert.False(t, z.Refines())
	assert.Equal(t, circle, z.IndexFilter())
	assert.True(t, z.Admits(nil))

	assert.Nil(t, Zone{}.IndexFilter())
}

func TestZone_PolygonRefines(t *testing.T) {
	z := Zone{Polygon: square}

	require.True(t, z.Refines())
	require.NotNil(t, z.IndexFilter())
	assert.True(t, z.Admits(&Point{Lat: 3.85, Lon: 11.5}))
	assert.False(t, z.Admits(&Point{Lat: 3.95, Lon: 11.5}))
	assert.False(t, z.Admits(nil))
}

func TestParseServiceGPS(t *testing.T) {
	p, err := ParseServiceGPS("11.502,3.848")
	require.NoError(t, err)
	assert.InDelta(t, 3.848, p.Lat, 1e-9)
	assert.InDelta(t, 11.502, p.Lon, 1e-9)

	p, err = ParseServiceGPS("[[11.45,3.80],[11.55,3.80],[11.55,3.90],[11.45,3.90]]")
	require.NoError(t, err)
	assert.InDelta(t, 3.85, p.Lat, 1e-9)

	p, err = ParseServiceGPS("")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = ParseServiceGPS("abc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseLatLon(t *testing.T) {
	p, err := ParseLatLon("3.848, 11.502")
	require.NoError(t, err)
	assert.Equal(t, Point{Lat: 3.848, Lon: 11.502}, p)

	_, err = ParseLatLon("95,10")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
