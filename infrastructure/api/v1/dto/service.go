package dto

import (
	"time"

	"github.com/yukpo/yukpo/infrastructure/api/jsonapi"
)

// ReactivateAttributes carries the number of days to stay visible.
type ReactivateAttributes struct {
	Days int `json:"days"`
}

// ReactivateData represents reactivation data in JSON:API format.
type ReactivateData struct {
	Type       string               `json:"type"`
	Attributes ReactivateAttributes `json:"attributes"`
}

// ReactivateRequest represents a JSON:API reactivation request.
type ReactivateRequest struct {
	Data ReactivateData `json:"data"`
}

// ReviewAttributes carries a rating from 1 to 5.
type ReviewAttributes struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// ReviewData represents review data in JSON:API format.
type ReviewData struct {
	Type       string           `json:"type"`
	Attributes ReviewAttributes `json:"attributes"`
}

// ReviewRequest represents a JSON:API review request.
type ReviewRequest struct {
	Data ReviewData `json:"data"`
}

// InteractionAttributes carries a contact event.
type InteractionAttributes struct {
	Kind        string     `json:"kind"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// InteractionData represents interaction data in JSON:API format.
type InteractionData struct {
	Type       string                `json:"type"`
	Attributes InteractionAttributes `json:"attributes"`
}

// InteractionRequest represents a JSON:API interaction request.
type InteractionRequest struct {
	Data InteractionData `json:"data"`
}

// ServiceData is a service as decoded by clients.
type ServiceData struct {
	Type       string                    `json:"type"`
	ID         string                    `json:"id"`
	Attributes jsonapi.ServiceAttributes `json:"attributes"`
}

// ServiceResponse represents a JSON:API single service response.
type ServiceResponse struct {
	Data ServiceData `json:"data"`
}

// ScoreData is a reputation score as decoded by clients.
type ScoreData struct {
	Type       string                  `json:"type"`
	ID         string                  `json:"id"`
	Attributes jsonapi.ScoreAttributes `json:"attributes"`
}

// ScoreResponse represents a JSON:API score response.
type ScoreResponse struct {
	Data ScoreData `json:"data"`
}

// RequestData is an orchestrated request outcome as decoded by clients.
type RequestData struct {
	Type       string                    `json:"type"`
	ID         string                    `json:"id"`
	Attributes jsonapi.RequestAttributes `json:"attributes"`
}

// RequestResponse represents a JSON:API orchestrated request response.
type RequestResponse struct {
	Data RequestData `json:"data"`
}
