package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yukpo/yukpo"
	"github.com/yukpo/yukpo/application/service"
	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/intent"
	"github.com/yukpo/yukpo/domain/scoring"
	"github.com/yukpo/yukpo/infrastructure/api/jsonapi"
	"github.com/yukpo/yukpo/infrastructure/api/middleware"
	"github.com/yukpo/yukpo/infrastructure/api/v1/dto"
)

// ServicesRouter handles catalog service endpoints.
type ServicesRouter struct {
	client     *yukpo.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewServicesRouter creates a new ServicesRouter.
func NewServicesRouter(client *yukpo.Client) *ServicesRouter {
	return &ServicesRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for service endpoints.
func (r *ServicesRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Create)
	router.Get("/{id}", r.Get)
	router.Delete("/{id}", r.Delete)
	router.Post("/{id}/reactivate", r.Reactivate)
	router.Post("/{id}/deactivate", r.Deactivate)
	router.Get("/{id}/score", r.Score)
	router.Post("/{id}/reviews", r.Review)
	router.Post("/{id}/interactions", r.Interaction)

	return router
}

// Create handles POST /api/v1/services with an explicit service description.
func (r *ServicesRouter) Create(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	uid, err := userID(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var draft service.ServiceDraft
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody)).Decode(&draft); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	resp, err := r.client.Requests.Handle(ctx, service.Request{
		UserID:  uid,
		Input:   service.Input{Intention: intent.CreationService.String()},
		Service: &draft,
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if resp.Service == nil {
		middleware.WriteError(w, req, fmt.Errorf("%w: no service was created", domain.ErrInvalidInput), r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.ServiceResource(*resp.Service)))
}

// Get handles GET /api/v1/services/{id}.
func (r *ServicesRouter) Get(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	svc, err := r.client.Service(req.Context(), id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.ServiceResource(svc)))
}

// Reactivate handles POST /api/v1/services/{id}/reactivate.
func (r *ServicesRouter) Reactivate(w http.ResponseWriter, req *http.Request) {
	id, uid, ok := r.target(w, req)
	if !ok {
		return
	}

	var body dto.ReactivateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if body.Data.Attributes.Days <= 0 {
		middleware.WriteError(w, req, fmt.Errorf("%w: days must be positive", domain.ErrInvalidInput), r.logger)
		return
	}

	svc, err := r.client.Lifecycle.Reactivate(req.Context(), id, uid, body.Data.Attributes.Days)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.ServiceResource(svc)))
}

// Deactivate handles POST /api/v1/services/{id}/deactivate.
func (r *ServicesRouter) Deactivate(w http.ResponseWriter, req *http.Request) {
	id, uid, ok := r.target(w, req)
	if !ok {
		return
	}

	svc, err := r.client.Lifecycle.Deactivate(req.Context(), id, uid)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.ServiceResource(svc)))
}

// Delete handles DELETE /api/v1/services/{id}.
func (r *ServicesRouter) Delete(w http.ResponseWriter, req *http.Request) {
	id, uid, ok := r.target(w, req)
	if !ok {
		return
	}

	if err := r.client.Lifecycle.Delete(req.Context(), id, uid); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Score handles GET /api/v1/services/{id}/score.
func (r *ServicesRouter) Score(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	id, err := pathID(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if _, err := r.client.Service(ctx, id); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	score, err := r.client.Scores.Score(ctx, id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.ScoreResource(score)))
}

// Review handles POST /api/v1/services/{id}/reviews.
func (r *ServicesRouter) Review(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	id, uid, ok := r.target(w, req)
	if !ok {
		return
	}
	if uid == 0 {
		middleware.WriteError(w, req, fmt.Errorf("%w: a review needs %s", domain.ErrUnauthorized, HeaderUserID), r.logger)
		return
	}
	if _, err := r.client.Service(ctx, id); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var body dto.ReviewRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	attrs := body.Data.Attributes
	score, err := r.client.Scores.RecordReview(ctx, id, uid, attrs.Rating, attrs.Comment)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.ScoreResource(score)))
}

// Interaction handles POST /api/v1/services/{id}/interactions.
func (r *ServicesRouter) Interaction(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	id, uid, ok := r.target(w, req)
	if !ok {
		return
	}
	if _, err := r.client.Service(ctx, id); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var body dto.InteractionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	attrs := body.Data.Attributes
	interaction := scoring.Interaction{
		ServiceID:   id,
		UserID:      uid,
		Kind:        scoring.InteractionKind(attrs.Kind),
		RespondedAt: attrs.RespondedAt,
	}
	if attrs.OccurredAt != nil {
		interaction.OccurredAt = attrs.OccurredAt.UTC()
	}

	score, err := r.client.Scores.RecordInteraction(ctx, interaction)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.ScoreResource(score)))
}

// target reads the service ID and the caller, writing the error response
// when either is invalid.
func (r *ServicesRouter) target(w http.ResponseWriter, req *http.Request) (int64, int64, bool) {
	id, err := pathID(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return 0, 0, false
	}
	uid, err := userID(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return 0, 0, false
	}
	return id, uid, true
}
