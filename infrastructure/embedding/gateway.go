// Package embedding is the outbound client of the external embedding and
// vector index service.
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yukpo/yukpo/domain"
	"github.com/yukpo/yukpo/domain/vector"
	"github.com/yukpo/yukpo/infrastructure/metrics"
	"github.com/yukpo/yukpo/internal/config"
	"github.com/yukpo/yukpo/internal/log"
)

// Service endpoints.
const (
	pathEmbed     = "/embedding"
	pathUpsert    = "/add_embedding_pinecone"
	pathSearch    = "/search_embedding_pinecone"
	pathDelete    = "/delete_embedding_pinecone"
	pathSetActive = "/update_embedding_status"
)

// Operation names used in errors, logs and metrics.
const (
	opEmbed     = "embed"
	opUpsert    = "upsert"
	opQuery     = "query"
	opDelete    = "delete"
	opSetActive = "set_active"
)

// HeaderAPIKey carries the static key of the embedding service.
const HeaderAPIKey = "x-api-key"

// AnyType is the type_donnee wildcard accepted by the status endpoint.
const AnyType = "_"

const (
	defaultCacheSize = 2048
	defaultCacheTTL  = time.Hour
)

// ErrNotConfigured indicates no embedding service URL was provided.
var ErrNotConfigured = errors.New("embedding service not configured")

// Config configures a Gateway.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	CacheSize     int
	CacheTTL      time.Duration
	HTTPClient    *http.Client
}

// ConfigFromEndpoint converts an endpoint configuration.
func ConfigFromEndpoint(e config.Endpoint) Config {
	return Config{
		BaseURL:       e.BaseURL(),
		APIKey:        e.APIKey(),
		Timeout:       e.Timeout(),
		MaxRetries:    e.MaxRetries(),
		InitialDelay:  e.InitialDelay(),
		BackoffFactor: e.BackoffFactor(),
	}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = log.OrDefault(l) }
}

// WithMetrics records retries and call latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// Gateway implements vector.Index over the embedding service HTTP API.
type Gateway struct {
	client        *resty.Client
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
	cache         *expirable.LRU[string, []float64]
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

var _ vector.Index = (*Gateway)(nil)

// NewGateway creates a Gateway. It fails with ErrNotConfigured when no base
// URL is set.
func NewGateway(cfg Config, opts ...Option) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
	}
	client.
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader(HeaderAPIKey, cfg.APIKey)
	}

	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	g := &Gateway{
		client:        client,
		timeout:       cfg.Timeout,
		maxRetries:    cfg.MaxRetries,
		initialDelay:  cfg.InitialDelay,
		backoffFactor: cfg.BackoffFactor,
		cache:         expirable.NewLRU[string, []float64](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:        slog.Default(),
	}
	if g.timeout <= 0 {
		g.timeout = config.DefaultEmbeddingTimeout
	}
	if g.maxRetries < 0 {
		g.maxRetries = 0
	}
	if g.initialDelay <= 0 {
		g.initialDelay = config.DefaultEmbeddingInitialDelay
	}
	if g.backoffFactor < 1 {
		g.backoffFactor = config.DefaultBackoffFactor
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Embed encodes a value. Non-image embeddings are memoized.
func (g *Gateway) Embed(ctx context.Context, value, typeDonnee string) ([]float64, error) {
	key := typeDonnee + "\x00" + value
	cacheable := typeDonnee != "image"
	if cacheable {
		if v, ok := g.cache.Get(key); ok {
			return v, nil
		}
	}

	var resp embedResponse
	err := g.post(ctx, opEmbed, pathEmbed, embedRequest{Value: value, TypeDonnee: typeDonnee}, &resp)
	if err != nil {
		return nil, kind(domain.ErrEmbeddingUnavailable, err)
	}
	vec := resp.vector()
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: %s: empty embedding", domain.ErrEmbeddingUnavailable, opEmbed)
	}
	if cacheable {
		g.cache.Add(key, vec)
	}
	return vec, nil
}

// Upsert writes a record with its metadata.
func (g *Gateway) Upsert(ctx context.Context, record vector.Record) error {
	if err := g.post(ctx, opUpsert, pathUpsert, toWire(record), nil); err != nil {
		return kind(domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Query runs a nearest-neighbour search. A non-positive TopK returns no
// matches without calling the service.
func (g *Gateway) Query(ctx context.Context, q vector.Query) ([]vector.Match, error) {
	if q.TopK <= 0 {
		return nil, nil
	}

	req := searchRequest{
		Query:      q.Text,
		TypeDonnee: q.TypeDonnee,
		TopK:       q.TopK,
		Active:     q.ActiveOnly,
		TypeMetier: string(q.TypeMetier),
		Field:      q.Field,
		Intent:     q.Intent,
		Langue:     q.Langue,
		Mode:       q.Mode,
	}
	if q.Circle != nil {
		lat, lon, radius := q.Circle.Lat, q.Circle.Lon, q.Circle.RadiusKM
		req.GPSLat, req.GPSLon, req.GPSRadiusKM = &lat, &lon, &radius
	}

	var resp searchResponse
	if err := g.post(ctx, opQuery, pathSearch, req, &resp); err != nil {
		return nil, kind(domain.ErrIndexUnavailable, err)
	}

	matches := make([]vector.Match, 0, len(resp.results()))
	for _, r := range resp.results() {
		matches = append(matches, vector.Match{Score: r.Score, Record: r.Metadata.record(r.ID)})
	}
	return matches, nil
}

// Delete removes every vector of a service.
func (g *Gateway) Delete(ctx context.Context, serviceID int64) error {
	if err := g.post(ctx, opDelete, pathDelete, deleteRequest{ServiceID: serviceID}, nil); err != nil {
		return kind(domain.ErrIndexUnavailable, err)
	}
	return nil
}

// SetActive flips the active flag of a service's vectors. An empty
// typeDonnee targets every type.
func (g *Gateway) SetActive(ctx context.Context, serviceID int64, typeDonnee string, active bool) error {
	if typeDonnee == "" {
		typeDonnee = AnyType
	}
	body := statusRequest{ServiceID: serviceID, TypeDonnee: typeDonnee, Active: active}
	if err := g.post(ctx, opSetActive, pathSetActive, body, nil); err != nil {
		return kind(domain.ErrIndexUnavailable, err)
	}
	return nil
}

// post sends body with retries and decodes the response into out when set.
func (g *Gateway) post(ctx context.Context, op, path string, body, out any) error {
	start := time.Now()
	attempt := 0

	err := g.withRetry(ctx, op, func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.client.R().
			SetContext(callCtx).
			SetBody(body).
			Post(path)
		if err != nil {
			return &callError{op: op, cause: err}
		}
		if resp.IsError() {
			return &callError{op: op, status: resp.StatusCode(), body: truncate(resp.String())}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &callError{op: op, status: resp.StatusCode(), cause: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	})

	g.metrics.ObserveGatewayCall(op, time.Since(start), err)
	if err != nil {
		g.logger.WarnContext(ctx, "embedding service call failed",
			slog.String("operation", op),
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// withRetry retries transport errors and 5xx responses with exponential
// backoff, at most maxRetries times.
func (g *Gateway) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.initialDelay
	b.Multiplier = g.backoffFactor
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.maxRetries)), ctx)
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		g.metrics.ObserveRetry(op)
		g.logger.DebugContext(ctx, "retrying embedding service call",
			slog.String("operation", op),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	})
}

// callError is a failed call to the embedding service.
type callError struct {
	op     string
	status int
	body   string
	cause  error
}

func (e *callError) Error() string {
	switch {
	case e.cause != nil && e.status != 0:
		return fmt.Sprintf("%s: status %d: %v", e.op, e.status, e.cause)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.op, e.cause)
	case e.body != "":
		return fmt.Sprintf("%s: status %d: %s", e.op, e.status, e.body)
	default:
		return fmt.Sprintf("%s: status %d", e.op, e.status)
	}
}

func (e *callError) Unwrap() error { return e.cause }

// StatusCode returns the HTTP status, 0 for transport failures.
func (e *callError) StatusCode() int { return e.status }

func retryable(err error) bool {
	var ce *callError
	if !errors.As(err, &ce) {
		return false
	}
	if ce.status == 0 {
		if errors.Is(ce.cause, context.Canceled) {
			return false
		}
		return true
	}
	return ce.status >= http.StatusInternalServerError
}

// kind wraps err with an error kind, adding ErrTimeout when a deadline was hit.
func kind(k error, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w: %v", k, domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", k, err)
}

const maxErrorBody = 200

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
