package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/matching"
	"github.com/yukpo/yukpo/domain/vector"
)

// Input is the multimodal object of an inbound request.
type Input struct {
	Texte       string   `json:"texte,omitempty"`
	Base64Image []string `json:"base64_image,omitempty"`
	AudioBase64 []string `json:"audio_base64,omitempty"`
	DocBase64   []string `json:"doc_base64,omitempty"`
	ExcelBase64 []string `json:"excel_base64,omitempty"`
	SiteWeb     string   `json:"site_web,omitempty"`
	GPSMobile   string   `json:"gps_mobile,omitempty"`
	Intention   string   `json:"intention,omitempty"`
	ZoneGPS     *ZoneGPS `json:"zone_gps,omitempty"`
	Langue      string   `json:"langue,omitempty"`
}

// HasImage reports whether the input carries image-like modalities.
func (in Input) HasImage() bool {
	return len(in.Base64Image) > 0 || len(in.DocBase64) > 0 || len(in.ExcelBase64) > 0
}

// Point parses gps_mobile ("lat,lon").
func (in Input) Point() (*matching.Point, error) {
	if strings.TrimSpace(in.GPSMobile) == "" {
		return nil, nil
	}
	p, err := matching.ParseLatLon(in.GPSMobile)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ZoneGPS is either a circle {"centre": [lon,lat], "rayon": km} or a
// polygon [[lon,lat], ...].
type ZoneGPS struct {
	Centre  []float64
	Rayon   float64
	Polygon [][]float64
}

type zoneCircle struct {
	Centre []float64 `json:"centre"`
	Rayon  float64   `json:"rayon"`
}

// UnmarshalJSON accepts both zone shapes.
func (z *ZoneGPS) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var pairs [][]float64
		if err := json.Unmarshal(trimmed, &pairs); err != nil {
			return fmt.Errorf("%w: zone_gps polygon: %v", domain.ErrInvalidInput, err)
		}
		*z = ZoneGPS{Polygon: pairs}
		return nil
	}
	var c zoneCircle
	if err := json.Unmarshal(trimmed, &c); err != nil {
		return fmt.Errorf("%w: zone_gps: %v", domain.ErrInvalidInput, err)
	}
	*z = ZoneGPS{Centre: c.Centre, Rayon: c.Rayon}
	return nil
}

// MarshalJSON writes the zone back in the shape it was given.
func (z ZoneGPS) MarshalJSON() ([]byte, error) {
	if len(z.Polygon) > 0 {
		return json.Marshal(z.Polygon)
	}
	return json.Marshal(zoneCircle{Centre: z.Centre, Rayon: z.Rayon})
}

// Zone resolves the geographic restriction of a search. A polygon with
// fewer than three vertices is ignored, falling back to the circle built
// from the centre, or from point with defaultRadius.
func (in Input) Zone(point *matching.Point, defaultRadius float64) (matching.Zone, error) {
	var zone matching.Zone
	z := in.ZoneGPS

	if z != nil && len(z.Polygon) > 0 {
		poly, err := matching.PolygonFromPairs(z.Polygon)
		if err != nil {
			return matching.Zone{}, err
		}
		if poly.Valid() {
			zone.Polygon = poly
		}
	}

	radius := defaultRadius
	if z != nil && z.Rayon > 0 {
		radius = z.Rayon
	}
	switch {
	case z != nil && len(z.Centre) == 2:
		if radius <= 0 {
			return matching.Zone{}, fmt.Errorf("%w: zone_gps rayon must be positive", domain.ErrInvalidInput)
		}
		zone.Circle = &vector.Circle{Lat: z.Centre[1], Lon: z.Centre[0], RadiusKM: radius}
	case z != nil && len(z.Centre) != 0:
		return matching.Zone{}, fmt.Errorf("%w: zone_gps centre needs [lon,lat]", domain.ErrInvalidInput)
	case point != nil && radius > 0:
		zone.Circle = &vector.Circle{Lat: point.Lat, Lon: point.Lon, RadiusKM: radius}
	}
	return zone, nil
}

// ServiceDraft is an explicit service description sent with a creation.
type ServiceDraft struct {
	Payload            catalog.Payload `json:"data"`
	GPS                string          `json:"gps,omitempty"`
	IsTarissable       bool            `json:"is_tarissable,omitempty"`
	VitesseTarissement string          `json:"vitesse_tarissement,omitempty"`
}

// Exchange modes.
const (
	ModeEchange = "echange"
	ModeDon     = "don"
)

// ExchangeDraft describes a swap or a donation.
type ExchangeDraft struct {
	Mode     string `json:"mode"`
	ModeTroc string `json:"mode_troc"`
	Offre    string `json:"offre,omitempty"`
	Besoin   string `json:"besoin,omitempty"`
	GPS      string `json:"gps"`
}

// Validate checks the exchange schema: a known mode, mode_troc, a location
// and an offer or a need.
func (e ExchangeDraft) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(e.Mode))
	if mode != ModeEchange && mode != ModeDon {
		return fmt.Errorf("%w: mode must be %q or %q", domain.ErrInvalidInput, ModeEchange, ModeDon)
	}
	if strings.TrimSpace(e.ModeTroc) == "" {
		return fmt.Errorf("%w: mode_troc is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(e.GPS) == "" {
		return fmt.Errorf("%w: gps is required for an exchange", domain.ErrInvalidInput)
	}
	if _, err := matching.ParseServiceGPS(e.GPS); err != nil {
		return err
	}
	if strings.TrimSpace(e.Offre) == "" && strings.TrimSpace(e.Besoin) == "" {
		return fmt.Errorf("%w: an exchange needs an offre or a besoin", domain.ErrInvalidInput)
	}
	return nil
}

// Request is an orchestrated user request.
type Request struct {
	UserID   int64          `json:"user_id,omitempty"`
	Input    Input          `json:"input"`
	Service  *ServiceDraft  `json:"service,omitempty"`
	Exchange *ExchangeDraft `json:"echange,omitempty"`
}
