package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yukpo/yukpo"
	apimiddleware "github.com/yukpo/yukpo/infrastructure/api/middleware"
	v1 "github.com/yukpo/yukpo/infrastructure/api/v1"
	mcpinternal "github.com/yukpo/yukpo/internal/mcp"
)

// APIServer provides an HTTP API backed by a yukpo Client.
type APIServer struct {
	client       *yukpo.Client
	apiKeys      []string
	origins      []string
	version      string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// APIServerOption configures an APIServer.
type APIServerOption func(*APIServer)

// WithVersion sets the version reported by /health and the MCP endpoint.
func WithVersion(version string) APIServerOption {
	return func(a *APIServer) {
		a.version = version
	}
}

// NewAPIServer creates a new APIServer wired to the given yukpo Client.
// API keys and CORS origins come from the client configuration. With keys
// configured, mutating endpoints under /api/v1 require a valid X-API-KEY.
// Health, metrics and MCP remain open.
func NewAPIServer(client *yukpo.Client, opts ...APIServerOption) *APIServer {
	a := &APIServer{
		client:  client,
		apiKeys: client.Config().APIKeys(),
		origins: client.Config().CORSAllowedOrigins(),
		version: "dev",
		logger:  client.Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
// If not called, ListenAndServe creates a default router with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	requestsRouter := v1.NewRequestsRouter(c)
	searchRouter := v1.NewSearchRouter(c)
	servicesRouter := v1.NewServicesRouter(c)
	auth := apimiddleware.NewAuthConfigWithKeys(a.apiKeys)

	router.Group(func(router chi.Router) {
		router.Use(apimiddleware.Correlation)
		router.Use(apimiddleware.Logging(a.logger))
		if len(a.origins) > 0 {
			router.Use(cors.Handler(cors.Options{
				AllowedOrigins: a.origins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Content-Type", apimiddleware.HeaderAPIKey, apimiddleware.HeaderCorrelationID, v1.HeaderUserID},
				ExposedHeaders: []string{apimiddleware.HeaderCorrelationID},
				MaxAge:         300,
			}))
		}

		router.Route("/api/v1", func(r chi.Router) {
			r.Use(chimiddleware.Timeout(60 * time.Second))
			r.Use(apimiddleware.WriteProtect(auth))

			r.Mount("/requests", requestsRouter.Routes())
			r.Mount("/search", searchRouter.Routes())
			r.Mount("/services", servicesRouter.Routes())
		})

		router.Get("/health", a.health)
		router.Handle("/metrics", c.MetricsHandler())

		// MCP streams its responses and tracks sessions in headers, which
		// chi's Timeout middleware would break.
		mcpSrv := mcpinternal.NewServer(c.Search, c, a.version, a.logger,
			mcpinternal.WithDefaultRadius(c.Config().Matching().DefaultRadiusKM()),
		)
		router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
	})
}

func (a *APIServer) health(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		apimiddleware.WriteError(w, req, apimiddleware.NewAPIError(http.StatusServiceUnavailable, "database unreachable", err), a.logger)
		return
	}
	apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": a.version})
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.logger)
	a.server = &server

	if a.routerCalled && a.router != nil {
		server.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(server.Router())
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the routes as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		useBase(a.router)
		a.MountRoutes()
	}
	return a.router
}
