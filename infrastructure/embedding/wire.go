package embedding

import (
	"github.com/yukpo/yukpo/domain/vector"
)

type embedRequest struct {
	Value      string `json:"value"`
	TypeDonnee string `json:"type_donnee"`
}

// embedResponse accepts {"embedding": [...]} and {"vector": [...]}.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Vector    []float64 `json:"vector"`
}

func (r embedResponse) vector() []float64 {
	if len(r.Embedding) > 0 {
		return r.Embedding
	}
	return r.Vector
}

// wireRecord is the upsert body and the metadata of a search hit.
type wireRecord struct {
	ID             string   `json:"id,omitempty"`
	ServiceID      int64    `json:"service_id"`
	Field          string   `json:"field,omitempty"`
	Value          string   `json:"value,omitempty"`
	TypeDonnee     string   `json:"type_donnee"`
	Active         bool     `json:"active"`
	TypeMetier     string   `json:"type_metier"`
	Langue         string   `json:"langue"`
	GPSLat         *float64 `json:"gps_lat"`
	GPSLon         *float64 `json:"gps_lon"`
	Unite          string   `json:"unite,omitempty"`
	Devise         string   `json:"devise,omitempty"`
	IAResponse     string   `json:"ia_response,omitempty"`
	Intent         string   `json:"intent,omitempty"`
	OriginalText   string   `json:"original_text,omitempty"`
	TranslatedText string   `json:"translated_text,omitempty"`
	ImageOrigin    bool     `json:"image_origin,omitempty"`
	Mode           string   `json:"mode,omitempty"`
}

func toWire(r vector.Record) wireRecord {
	return wireRecord{
		ID:             r.ID,
		ServiceID:      r.ServiceID,
		Field:          r.Field,
		Value:          r.Value,
		TypeDonnee:     r.TypeDonnee,
		Active:         r.Active,
		TypeMetier:     string(r.TypeMetier),
		Langue:         r.Langue,
		GPSLat:         r.GPSLat,
		GPSLon:         r.GPSLon,
		Unite:          r.Unite,
		Devise:         r.Devise,
		IAResponse:     r.IAResponse,
		Intent:         r.Intent,
		OriginalText:   r.OriginalText,
		TranslatedText: r.TranslatedText,
		ImageOrigin:    r.ImageOrigin,
		Mode:           r.Mode,
	}
}

// record converts search hit metadata. The hit id wins over a metadata id.
func (w wireRecord) record(id string) vector.Record {
	if id == "" {
		id = w.ID
	}
	return vector.Record{
		ID:             id,
		ServiceID:      w.ServiceID,
		Field:          w.Field,
		Value:          w.Value,
		TypeDonnee:     w.TypeDonnee,
		Active:         w.Active,
		TypeMetier:     vector.TypeMetier(w.TypeMetier),
		Langue:         w.Langue,
		GPSLat:         w.GPSLat,
		GPSLon:         w.GPSLon,
		Unite:          w.Unite,
		Devise:         w.Devise,
		IAResponse:     w.IAResponse,
		Intent:         w.Intent,
		OriginalText:   w.OriginalText,
		TranslatedText: w.TranslatedText,
		ImageOrigin:    w.ImageOrigin,
		Mode:           w.Mode,
	}
}

type searchRequest struct {
	Query       string   `json:"query"`
	TypeDonnee  string   `json:"type_donnee"`
	TopK        int      `json:"top_k"`
	Active      bool     `json:"active"`
	TypeMetier  string   `json:"type_metier"`
	GPSLat      *float64 `json:"gps_lat,omitempty"`
	GPSLon      *float64 `json:"gps_lon,omitempty"`
	GPSRadiusKM *float64 `json:"gps_radius_km,omitempty"`
	Field       string   `json:"field,omitempty"`
	Intent      string   `json:"intent,omitempty"`
	Langue      string   `json:"langue,omitempty"`
	Mode        string   `json:"mode,omitempty"`
}

type searchHit struct {
	ID       string     `json:"id"`
	Score    float64    `json:"score"`
	Metadata wireRecord `json:"metadata"`
}

// searchResponse accepts {"results": [...]} and {"matches": [...]}.
type searchResponse struct {
	Results []searchHit `json:"results"`
	Matches []searchHit `json:"matches"`
}

func (r searchResponse) results() []searchHit {
	if len(r.Results) > 0 {
		return r.Results
	}
	return r.Matches
}

type deleteRequest struct {
	ServiceID int64 `json:"service_id"`
}

type statusRequest struct {
	ServiceID  int64  `json:"service_id"`
	TypeDonnee string `json:"type_donnee"`
	Active     bool   `json:"active"`
}
