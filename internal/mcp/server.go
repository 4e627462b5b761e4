// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yukpo/yukpo/application/service"
	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/catalog"
)

// Searcher runs catalog searches for MCP tools.
type Searcher interface {
	Query(ctx context.Context, query string, opts ...service.SearchOption) (service.SearchResult, error)
}

// ServiceLookup retrieves catalog services by ID for MCP tools.
type ServiceLookup interface {
	Service(ctx context.Context, id int64) (catalog.Service, error)
}

// Server wraps the MCP server with yukpo-specific tools.
type Server struct {
	mcpServer     *server.MCPServer
	searcher      Searcher
	services      ServiceLookup
	version       string
	defaultRadius float64
	logger        *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithDefaultRadius sets the radius in kilometres of the circle drawn
// around gps_mobile.
func WithDefaultRadius(km float64) Option {
	return func(s *Server) {
		s.defaultRadius = km
	}
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(searcher Searcher, services ServiceLookup, version string, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		searcher: searcher,
		services: services,
		version:  version,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	mcpServer := server.NewMCPServer(
		"yukpo",
		version,
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	searchTool := mcp.NewTool("search_services",
		mcp.WithDescription("Search the marketplace catalog for services matching a need, ranked by semantic similarity and reputation"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What the user is looking for, in any language"),
		),
		mcp.WithString("gps_mobile",
			mcp.Description("Searcher location as \"lat,lon\""),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default and ceiling: 10)"),
			mcp.Min(1),
		),
		mcp.WithString("mode",
			mcp.Description("Restrict to exchange listings of this mode"),
			mcp.Enum(service.ModeEchange, service.ModeDon),
		),
	)
	mcpServer.AddTool(searchTool, s.handleSearch)

	getServiceTool := mcp.NewTool("get_service",
		mcp.WithDescription("Get a catalog service by its ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The numeric ID of the service"),
		),
	)
	mcpServer.AddTool(getServiceTool, s.handleGetService)

	versionTool := mcp.NewTool("get_version",
		mcp.WithDescription("Get the yukpo server version"),
	)
	mcpServer.AddTool(versionTool, s.handleGetVersion)
}

type matchResult struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Category    string          `json:"category,omitempty"`
	GPS         string          `json:"gps,omitempty"`
	Data        catalog.Payload `json:"data"`
	Score       float64         `json:"score"`
	Semantic    float64         `json:"semantic_score"`
	Interaction float64         `json:"interaction_score"`
	DistanceKM  *float64        `json:"distance_km,omitempty"`
}

type searchResult struct {
	Query    string        `json:"query"`
	Results  []matchResult `json:"results"`
	Warnings []string      `json:"warnings,omitempty"`
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	in := service.Input{GPSMobile: request.GetString("gps_mobile", "")}
	point, err := in.Point()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid gps_mobile: %v", err)), nil
	}
	zone, err := in.Zone(point, s.defaultRadius)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := []service.SearchOption{
		service.WithPoint(point),
		service.WithZone(zone),
		service.WithLimit(request.GetInt("limit", 10)),
	}
	if mode := strings.ToLower(strings.TrimSpace(request.GetString("mode", ""))); mode != "" {
		opts = append(opts, service.WithExchange(mode))
	}

	result, err := s.searcher.Query(ctx, query, opts...)
	if err != nil {
		s.logger.Error("search failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	out := searchResult{Query: result.Query(), Results: []matchResult{}, Warnings: result.Warnings()}
	for _, m := range result.Matches() {
		svc := m.Service()
		out.Results = append(out.Results, matchResult{
			ID:          strconv.FormatInt(svc.ID(), 10),
			Title:       svc.Payload().Title(),
			Category:    svc.Category(),
			GPS:         svc.GPS(),
			Data:        svc.Payload(),
			Score:       m.Final(),
			Semantic:    m.Semantic(),
			Interaction: m.Interaction(),
			DistanceKM:  m.DistanceKM(),
		})
	}

	jsonBytes, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

type serviceResult struct {
	ID              string          `json:"id"`
	UserID          int64           `json:"user_id"`
	Title           string          `json:"title"`
	Category        string          `json:"category,omitempty"`
	GPS             string          `json:"gps,omitempty"`
	Data            catalog.Payload `json:"data"`
	IsActive        bool            `json:"is_active"`
	Mode            string          `json:"mode,omitempty"`
	EmbeddingStatus string          `json:"embedding_status"`
}

func (s *Server) handleGetService(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	if s.services == nil {
		return mcp.NewToolResultError("service lookup not configured"), nil
	}

	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil || id <= 0 {
		return mcp.NewToolResultError(fmt.Sprintf("invalid id: %s", idStr)), nil
	}

	svc, err := s.services.Service(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("service %d not found", id)), nil
	}
	if err != nil {
		s.logger.Error("failed to get service", slog.Int64("id", id), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to get service: %v", err)), nil
	}

	result := serviceResult{
		ID:              strconv.FormatInt(svc.ID(), 10),
		UserID:          svc.UserID(),
		Title:           svc.Payload().Title(),
		Category:        svc.Category(),
		GPS:             svc.GPS(),
		Data:            svc.Payload(),
		IsActive:        svc.IsActive(),
		Mode:            svc.Mode(),
		EmbeddingStatus: string(svc.EmbeddingStatus()),
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetVersion(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.version), nil
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
