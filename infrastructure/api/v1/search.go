package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yukpo/yukpo"
	"github.com/yukpo/yukpo/application/service"
	"github.com/yukpo/yukpo/infrastructure/api/jsonapi"
	"github.com/yukpo/yukpo/infrastructure/api/middleware"
	"github.com/yukpo/yukpo/infrastructure/api/v1/dto"
)

// SearchRouter handles search API endpoints.
type SearchRouter struct {
	client     *yukpo.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewSearchRouter creates a new SearchRouter.
func NewSearchRouter(client *yukpo.Client) *SearchRouter {
	return &SearchRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Search)

	return router
}

// Search handles POST /api/v1/search. It runs the matching engine directly,
// without intent detection.
func (r *SearchRouter) Search(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody)).Decode(&body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	opts, err := r.searchOptions(body.Data.Attributes)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	result, err := r.client.Search.Query(ctx, body.Data.Attributes.Query, opts...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, r.serializer.SearchDocument(result))
}

func (r *SearchRouter) searchOptions(attrs dto.SearchAttributes) ([]service.SearchOption, error) {
	in := service.Input{GPSMobile: attrs.GPSMobile, ZoneGPS: attrs.ZoneGPS}
	point, err := in.Point()
	if err != nil {
		return nil, err
	}
	zone, err := in.Zone(point, r.client.Config().Matching().DefaultRadiusKM())
	if err != nil {
		return nil, err
	}

	opts := []service.SearchOption{
		service.WithPoint(point),
		service.WithZone(zone),
	}
	if len(attrs.Images) > 0 {
		opts = append(opts, service.WithImages(attrs.Images...))
	}
	if mode := strings.ToLower(strings.TrimSpace(attrs.Mode)); mode != "" {
		opts = append(opts, service.WithExchange(mode))
	}
	if attrs.Limit != nil {
		opts = append(opts, service.WithLimit(*attrs.Limit))
	}
	if attrs.TopK != nil {
		opts = append(opts, service.WithTopK(*attrs.TopK))
	}
	if attrs.MinScore != nil {
		opts = append(opts, service.WithMinScore(*attrs.MinScore))
	}
	return opts, nil
}
