// Package vector defines the records, queries and port of the external vector index.
package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// TypeMetier partitions the vector index.
type TypeMetier string

// TypeMetier values.
const (
	MetierService TypeMetier = "service"
	MetierEchange TypeMetier = "echange"
	MetierIA      TypeMetier = "ia"
)

// Type tags used only inside the ia partition.
const (
	TypeIntention = "intention"
	TypeReponse   = "reponse_ia"
)

// Record is one vector with its metadata.
type Record struct {
	ID             string
	ServiceID      int64
	Field          string
	Value          string
	TypeDonnee     string
	Active         bool
	TypeMetier     TypeMetier
	Langue         string
	GPSLat         *float64
	GPSLon         *float64
	Unite          string
	Devise         string
	IAResponse     string
	Intent         string
	OriginalText   string
	TranslatedText string
	ImageOrigin    bool
	Mode           string
}

// RecordID derives the index id of a service field.
func RecordID(serviceID int64, field, typeDonnee string) string {
	return fmt.Sprintf("%d:%s:%s", serviceID, field, typeDonnee)
}

// CacheID derives a deterministic id for an ia partition entry.
func CacheID(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.TrimSpace(p)))
		h.Write([]byte{0})
	}
	return "ia:" + hex.EncodeToString(h.Sum(nil))
}

// Circle is a geographic filter in kilometres.
type Circle struct {
	Lat      float64
	Lon      float64
	RadiusKM float64
}

// Query is a nearest-neighbour probe with metadata filters.
type Query struct {
	Text       string
	TypeDonnee string
	TopK       int
	ActiveOnly bool
	TypeMetier TypeMetier
	Field      string
	Intent     string
	Langue     string
	Mode       string
	Circle     *Circle
}

// Match is one scored result of a Query.
type Match struct {
	Score  float64
	Record Record
}

// Index is the external vector index.
type Index interface {
	Embed(ctx context.Context, value, typeDonnee string) ([]float64, error)
	Upsert(ctx context.Context, record Record) error
	Query(ctx context.Context, q Query) ([]Match, error)
	Delete(ctx context.Context, serviceID int64) error
	SetActive(ctx context.Context, serviceID int64, typeDonnee string, active bool) error
}
