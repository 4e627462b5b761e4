// Package dto holds the request and response bodies of the v1 API.
package dto

import (
	"github.com/yukpo/yukpo/application/service"
	"github.com/yukpo/yukpo/infrastructure/api/jsonapi"
)

// SearchAttributes represents search request attributes in JSON:API format.
type SearchAttributes struct {
	Query     string           `json:"query"`
	Images    []string         `json:"base64_image,omitempty"`
	GPSMobile string           `json:"gps_mobile,omitempty"`
	ZoneGPS   *service.ZoneGPS `json:"zone_gps,omitempty"`
	Mode      string           `json:"mode,omitempty"`
	Limit     *int             `json:"limit,omitempty"`
	TopK      *int             `json:"top_k,omitempty"`
	MinScore  *float64         `json:"min_score,omitempty"`
}

// SearchData represents search request data in JSON:API format.
type SearchData struct {
	Type       string           `json:"type"`
	Attributes SearchAttributes `json:"attributes"`
}

// SearchRequest represents a JSON:API search request.
type SearchRequest struct {
	Data SearchData `json:"data"`
}

// MatchData is one search result as decoded by clients.
type MatchData struct {
	Type       string                  `json:"type"`
	ID         string                  `json:"id"`
	Attributes jsonapi.MatchAttributes `json:"attributes"`
}

// SearchResponse represents a JSON:API search response.
type SearchResponse struct {
	Data []MatchData   `json:"data"`
	Meta *jsonapi.Meta `json:"meta,omitempty"`
}
