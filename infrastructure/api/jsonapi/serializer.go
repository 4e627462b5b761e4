package jsonapi

import (
	"strconv"

	"github.com/yukpo/yukpo/application/service"
	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/scoring"
)

// Resource types.
const (
	TypeService = "service"
	TypeMatch   = "match"
	TypeScore   = "score"
	TypeRequest = "request"
)

// ServiceAttributes represents a catalog service in API responses.
type ServiceAttributes struct {
	UserID             int64           `json:"user_id"`
	Data               catalog.Payload `json:"data"`
	Category           string          `json:"category,omitempty"`
	GPS                string          `json:"gps,omitempty"`
	IsActive           bool            `json:"is_active"`
	IsTarissable       bool            `json:"is_tarissable"`
	VitesseTarissement string          `json:"vitesse_tarissement,omitempty"`
	ActiveDays         int             `json:"active_days,omitempty"`
	AutoDeactivateAt   *DateTime       `json:"auto_deactivate_at,omitempty"`
	Mode               string          `json:"mode,omitempty"`
	EmbeddingStatus    string          `json:"embedding_status"`
	CreatedAt          DateTime        `json:"created_at"`
	UpdatedAt          DateTime        `json:"updated_at"`
}

// MatchAttributes represents one ranked search result.
type MatchAttributes struct {
	Title            string          `json:"title"`
	Category         string          `json:"category,omitempty"`
	GPS              string          `json:"gps,omitempty"`
	Data             catalog.Payload `json:"data"`
	SemanticScore    float64         `json:"semantic_score"`
	InteractionScore float64         `json:"interaction_score"`
	FinalScore       float64         `json:"final_score"`
	DistanceKM       *float64        `json:"distance_km,omitempty"`
}

// ScoreAttributes represents the reputation of a service.
type ScoreAttributes struct {
	Rating     float64  `json:"rating"`
	Promptness float64  `json:"promptness"`
	Value      float64  `json:"value"`
	ComputedAt DateTime `json:"computed_at"`
}

// RequestAttributes represents the outcome of an orchestrated request.
type RequestAttributes struct {
	Intent       string      `json:"intent"`
	IntentSource string      `json:"intent_source"`
	TokensUsed   int         `json:"tokens_used"`
	Model        string      `json:"model,omitempty"`
	Answer       string      `json:"answer,omitempty"`
	Cached       bool        `json:"cached,omitempty"`
	Service      *Resource   `json:"service,omitempty"`
	Results      []*Resource `json:"results,omitempty"`
	Warnings     []string    `json:"warnings,omitempty"`
	Dropped      []string    `json:"dropped,omitempty"`
}

// Serializer converts domain objects to JSON:API resources.
type Serializer struct{}

// NewSerializer creates a new Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// ServiceResource converts a catalog service.
func (s *Serializer) ServiceResource(svc catalog.Service) *Resource {
	return NewResource(TypeService, strconv.FormatInt(svc.ID(), 10), ServiceAttributes{
		UserID:             svc.UserID(),
		Data:               svc.Payload(),
		Category:           svc.Category(),
		GPS:                svc.GPS(),
		IsActive:           svc.IsActive(),
		IsTarissable:       svc.IsTarissable(),
		VitesseTarissement: string(svc.Vitesse()),
		ActiveDays:         svc.ActiveDays(),
		AutoDeactivateAt:   NewDateTimePtr(svc.AutoDeactivateAt()),
		Mode:               svc.Mode(),
		EmbeddingStatus:    string(svc.EmbeddingStatus()),
		CreatedAt:          NewDateTime(svc.CreatedAt()),
		UpdatedAt:          NewDateTime(svc.UpdatedAt()),
	})
}

// MatchResources converts ranked matches, best first.
func (s *Serializer) MatchResources(matches []service.Match) []*Resource {
	resources := make([]*Resource, len(matches))
	for i, m := range matches {
		svc := m.Service()
		resources[i] = NewResource(TypeMatch, strconv.FormatInt(svc.ID(), 10), MatchAttributes{
			Title:            svc.Payload().Title(),
			Category:         svc.Category(),
			GPS:              svc.GPS(),
			Data:             svc.Payload(),
			SemanticScore:    m.Semantic(),
			InteractionScore: m.Interaction(),
			FinalScore:       m.Final(),
			DistanceKM:       m.DistanceKM(),
		})
	}
	return resources
}

// SearchDocument converts a search result. Failed probes are reported in meta.
func (s *Serializer) SearchDocument(result service.SearchResult) *Document {
	meta := Meta{"query": result.Query(), "count": result.Count()}
	if w := result.Warnings(); len(w) > 0 {
		meta["warnings"] = w
	}
	return NewListResponse(s.MatchResources(result.Matches())).WithMeta(meta)
}

// ScoreResource converts a reputation score.
func (s *Serializer) ScoreResource(score scoring.Score) *Resource {
	return NewResource(TypeScore, strconv.FormatInt(score.ServiceID, 10), ScoreAttributes{
		Rating:     score.Rating,
		Promptness: score.Promptness,
		Value:      score.Value,
		ComputedAt: NewDateTime(score.ComputedAt),
	})
}

// RequestResource converts an orchestrator response. id identifies the
// request, usually its correlation ID.
func (s *Serializer) RequestResource(id string, resp service.Response) *Resource {
	attrs := RequestAttributes{
		Intent:       resp.Intent.String(),
		IntentSource: resp.IntentSource,
		TokensUsed:   resp.TokensUsed,
		Model:        resp.Model,
		Answer:       resp.Answer,
		Cached:       resp.Cached,
		Dropped:      resp.Dropped,
	}
	if resp.Service != nil {
		attrs.Service = s.ServiceResource(*resp.Service)
	}
	if resp.Search != nil {
		attrs.Results = s.MatchResources(resp.Search.Matches())
		attrs.Warnings = resp.Search.Warnings()
	}
	return NewResource(TypeRequest, id, attrs)
}
