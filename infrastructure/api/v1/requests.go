package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yukpo/yukpo"
	"github.com/yukpo/yukpo/application/service"
	"github.com/yukpo/yukpo/infrastructure/api/jsonapi"
	"github.com/yukpo/yukpo/infrastructure/api/middleware"
	"github.com/yukpo/yukpo/internal/log"
)

// maxRequestBody bounds inbound bodies; multimodal requests carry base64 media.
const maxRequestBody = 64 << 20

// RequestsRouter handles orchestrated requests.
type RequestsRouter struct {
	client     *yukpo.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewRequestsRouter creates a new RequestsRouter.
func NewRequestsRouter(client *yukpo.Client) *RequestsRouter {
	return &RequestsRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for request endpoints.
func (r *RequestsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Handle)

	return router
}

// Handle handles POST /api/v1/requests. The body is a multimodal request;
// the caller is taken from the X-User-ID header.
func (r *RequestsRouter) Handle(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	uid, err := userID(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var body service.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody)).Decode(&body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	body.UserID = uid

	resp, err := r.client.Requests.Handle(ctx, body)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	status := http.StatusOK
	if resp.Service != nil {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, jsonapi.NewSingleResponse(r.serializer.RequestResource(log.CorrelationID(ctx), resp)))
}
