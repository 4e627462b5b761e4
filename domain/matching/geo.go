package matching

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/vector"
)

const earthRadiusKM = 6371.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the great-circle distance in kilometres.
func (p Point) Distance(o Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := o.Lat * math.Pi / 180
	dLat := (o.Lat - p.Lat) * math.Pi / 180
	dLon := (o.Lon - p.Lon) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Polygon is a closed ring of points.
type Polygon []Point

// Valid reports whether the polygon has enough vertices to enclose an area.
func (poly Polygon) Valid() bool { return len(poly) >= 3 }

// Centroid returns the vertex average.
func (poly Polygon) Centroid() Point {
	var c Point
	if len(poly) == 0 {
		return c
	}
	for _, p := range poly {
		c.Lat += p.Lat
		c.Lon += p.Lon
	}
	n := float64(len(poly))
	return Point{Lat: c.Lat / n, Lon: c.Lon / n}
}

// BoundingCircle flattens the polygon to the circle the index can filter on:
// centred on the centroid with the distance to the farthest vertex as radius.
func (poly Polygon) BoundingCircle() vector.Circle {
	c := poly.Centroid()
	var radius float64
	for _, p := range poly {
		radius = math.Max(radius, c.Distance(p))
	}
	return vector.Circle{Lat: c.Lat, Lon: c.Lon, RadiusKM: radius}
}

// Contains reports whether p lies inside the polygon using a ray cast with
// longitude as x and latitude as y.
func (poly Polygon) Contains(p Point) bool {
	if !poly.Valid() {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := range poly {
		yi, yj := poly[i].Lat, poly[j].Lat
		xi, xj := poly[i].Lon, poly[j].Lon
		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lon < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Zone is the geographic restriction of a search: a circle, a polygon, or both.
type Zone struct {
	Circle  *vector.Circle
	Polygon Polygon
}

// IndexFilter returns the circle to pass to the vector index. A valid
// polygon is flattened to its bounding circle; otherwise the point circle is
// used.
func (z Zone) IndexFilter() *vector.Circle {
	if z.Polygon.Valid() {
		c := z.Polygon.BoundingCircle()
		return &c
	}
	return z.Circle
}

// Refines reports whether candidates must be checked against the polygon.
func (z Zone) Refines() bool { return z.Polygon.Valid() }

// Admits reports whether a candidate location passes the client-side refinement.
func (z Zone) Admits(p *Point) bool {
	if !z.Refines() {
		return true
	}
	return p != nil && z.Polygon.Contains(*p)
}

// ParseLatLon parses a "lat,lon" string as sent by mobile clients.
func ParseLatLon(s string) (Point, error) {
	a, b, err := parsePair(s)
	if err != nil {
		return Point{}, err
	}
	return Point{Lat: a, Lon: b}, validate(Point{Lat: a, Lon: b})
}

// ParseServiceGPS parses a service location: "lon,lat", a "lon,lat|lon,lat|..."
// ring, or a JSON array of [lon,lat] pairs. Polygons resolve to their centroid.
func ParseServiceGPS(s string) (*Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	poly, err := ParsePolygon(s)
	if err == nil && len(poly) > 1 {
		c := poly.Centroid()
		return &c, nil
	}
	lon, lat, err := parsePair(s)
	if err != nil {
		return nil, err
	}
	p := Point{Lat: lat, Lon: lon}
	if err := validate(p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParsePolygon parses a JSON [[lon,lat],...] array or a "lon,lat|lon,lat" ring.
func ParsePolygon(s string) (Polygon, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var pairs [][]float64
		if err := json.Unmarshal([]byte(s), &pairs); err != nil {
			return nil, fmt.Errorf("%w: polygon: %v", domain.ErrInvalidInput, err)
		}
		return PolygonFromPairs(pairs)
	}
	parts := strings.Split(s, "|")
	poly := make(Polygon, 0, len(parts))
	for _, part := range parts {
		lon, lat, err := parsePair(part)
		if err != nil {
			return nil, err
		}
		poly = append(poly, Point{Lat: lat, Lon: lon})
	}
	return poly, nil
}

// PolygonFromPairs builds a polygon from [lon,lat] pairs.
func PolygonFromPairs(pairs [][]float64) (Polygon, error) {
	poly := make(Polygon, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: polygon vertex needs [lon,lat]", domain.ErrInvalidInput)
		}
		p := Point{Lat: pair[1], Lon: pair[0]}
		if err := validate(p); err != nil {
			return nil, err
		}
		poly = append(poly, p)
	}
	return poly, nil
}

func parsePair(s string) (float64, float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: coordinate %q", domain.ErrInvalidInput, s)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: coordinate %q", domain.ErrInvalidInput, s)
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: coordinate %q", domain.ErrInvalidInput, s)
	}
	return a, b, nil
}

func validate(p Point) error {
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: coordinate out of range (%f,%f)", domain.ErrInvalidInput, p.Lat, p.Lon)
	}
	return nil
}
