// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultCORSAllowedOrigins    = "*"
	DefaultDBMaxOpenConns        = 10
	DefaultEmbeddingTimeout      = 60 * time.Second
	DefaultEmbeddingMaxRetries   = 3
	DefaultEmbeddingInitialDelay = 500 * time.Millisecond
	DefaultBackoffFactor         = 2.0
	DefaultLLMTimeout            = 15 * time.Second
	DefaultLLMMultimodalTimeout  = 30 * time.Second
	DefaultLLMMaxRetries         = 2
	DefaultMinScoreThreshold     = 0.70
	DefaultFinalScoreThreshold   = 0.40
	DefaultSemanticThreshold     = 0.70
	DefaultSemanticStrict        = 0.95
	DefaultIntentThreshold       = 0.95
	DefaultMatchingBatchSize     = 50
	DefaultMaxCandidates         = 1000
	DefaultEarlyStopThreshold    = 0.9
	DefaultMatchingTopK          = 20
	DefaultResultLimit           = 10
	DefaultRadiusKM              = 50.0
	DefaultCacheLookupTimeout    = 2 * time.Second
	DefaultVectorLookupTimeout   = 2 * time.Second
	DefaultFrontCacheSize        = 4096
	DefaultFrontCacheTTL         = time.Hour
	DefaultScoreCacheTTL         = 3600.0 // seconds
	DefaultScoreUpdateInterval   = 1800.0 // seconds
	DefaultSweepSchedule         = "@every 1h"
	DefaultAlertCooldownHours    = 24
	DefaultIndexerPoolSize       = 8
	DefaultAdmissionLimit        = 10000
	DefaultMaxPDFPages           = 10
	DefaultTextChunkSize         = 4000
	DefaultOCRLanguages          = "eng+fra"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures an outbound AI service.
type Endpoint struct {
	baseURL           string
	model             string
	apiKey            string
	timeout           time.Duration
	multimodalTimeout time.Duration
	maxRetries        int
	initialDelay      time.Duration
	backoffFactor     float64
}

// NewEndpoint creates a new Endpoint with embedding service defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		timeout:           DefaultEmbeddingTimeout,
		multimodalTimeout: DefaultEmbeddingTimeout,
		maxRetries:        DefaultEmbeddingMaxRetries,
		initialDelay:      DefaultEmbeddingInitialDelay,
		backoffFactor:     DefaultBackoffFactor,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the per-call timeout for text-only requests.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MultimodalTimeout returns the per-call timeout for requests carrying images.
func (e Endpoint) MultimodalTimeout() time.Duration { return e.multimodalTimeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// IsConfigured returns true if the endpoint has a base URL.
func (e Endpoint) IsConfigured() bool {
	return e.baseURL != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = strings.TrimRight(url, "/") }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMultimodalTimeout sets the request timeout for image-bearing calls.
func WithMultimodalTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.multimodalTimeout = d }
}

// WithMaxRetries sets the max retries.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// MatchingConfig holds the search ranking tunables.
type MatchingConfig struct {
	minScoreThreshold   float64
	finalScoreThreshold float64
	batchSize           int
	maxCandidates       int
	earlyStopThreshold  float64
	topK                int
	resultLimit         int
	defaultRadiusKM     float64
	vectorLookupTimeout time.Duration
}

// NewMatchingConfig creates a MatchingConfig with defaults.
func NewMatchingConfig() MatchingConfig {
	return MatchingConfig{
		minScoreThreshold:   DefaultMinScoreThreshold,
		finalScoreThreshold: DefaultFinalScoreThreshold,
		batchSize:           DefaultMatchingBatchSize,
		maxCandidates:       DefaultMaxCandidates,
		earlyStopThreshold:  DefaultEarlyStopThreshold,
		topK:                DefaultMatchingTopK,
		resultLimit:         DefaultResultLimit,
		defaultRadiusKM:     DefaultRadiusKM,
		vectorLookupTimeout: DefaultVectorLookupTimeout,
	}
}

// MinScoreThreshold returns the semantic score marking a strong match.
func (m MatchingConfig) MinScoreThreshold() float64 { return m.minScoreThreshold }

// FinalScoreThreshold returns the cut applied to fused scores.
func (m MatchingConfig) FinalScoreThreshold() float64 { return m.finalScoreThreshold }

// BatchSize returns how many catalog records are read per batch.
func (m MatchingConfig) BatchSize() int { return m.batchSize }

// MaxCandidates caps the candidates considered by a search.
func (m MatchingConfig) MaxCandidates() int { return m.maxCandidates }

// EarlyStopThreshold returns the semantic score above which remaining batches are skipped
// once the result limit is filled.
func (m MatchingConfig) EarlyStopThreshold() float64 { return m.earlyStopThreshold }

// TopK returns the per-field index query size.
func (m MatchingConfig) TopK() int { return m.topK }

// ResultLimit returns the maximum results returned.
func (m MatchingConfig) ResultLimit() int { return m.resultLimit }

// DefaultRadiusKM returns the radius used when a point is given without a zone.
func (m MatchingConfig) DefaultRadiusKM() float64 { return m.defaultRadiusKM }

// VectorLookupTimeout bounds one field query.
func (m MatchingConfig) VectorLookupTimeout() time.Duration { return m.vectorLookupTimeout }

// WithFinalScoreThreshold returns a copy with the fused-score cut set.
func (m MatchingConfig) WithFinalScoreThreshold(v float64) MatchingConfig {
	m.finalScoreThreshold = v
	return m
}

// WithMinScoreThreshold returns a copy with the strong-match score set.
func (m MatchingConfig) WithMinScoreThreshold(v float64) MatchingConfig {
	m.minScoreThreshold = v
	return m
}

// WithBatchSize returns a copy with the batch size set.
func (m MatchingConfig) WithBatchSize(n int) MatchingConfig {
	if n > 0 {
		m.batchSize = n
	}
	return m
}

// WithMaxCandidates returns a copy with the candidate cap set.
func (m MatchingConfig) WithMaxCandidates(n int) MatchingConfig {
	if n > 0 {
		m.maxCandidates = n
	}
	return m
}

// WithEarlyStopThreshold returns a copy with the early stop score set.
func (m MatchingConfig) WithEarlyStopThreshold(v float64) MatchingConfig {
	m.earlyStopThreshold = v
	return m
}

// WithTopK returns a copy with the per-field query size set.
func (m MatchingConfig) WithTopK(n int) MatchingConfig {
	m.topK = n
	return m
}

// WithResultLimit returns a copy with the result limit set.
func (m MatchingConfig) WithResultLimit(n int) MatchingConfig {
	if n > 0 {
		m.resultLimit = n
	}
	return m
}

// WithDefaultRadiusKM returns a copy with the default radius set.
func (m MatchingConfig) WithDefaultRadiusKM(km float64) MatchingConfig {
	if km > 0 {
		m.defaultRadiusKM = km
	}
	return m
}

// WithVectorLookupTimeout returns a copy with the field query timeout set.
func (m MatchingConfig) WithVectorLookupTimeout(d time.Duration) MatchingConfig {
	if d > 0 {
		m.vectorLookupTimeout = d
	}
	return m
}

// CacheConfig holds the semantic and intent cache tunables.
type CacheConfig struct {
	semanticThreshold float64
	strictThreshold   float64
	intentThreshold   float64
	lookupTimeout     time.Duration
	frontSize         int
	frontTTL          time.Duration
}

// NewCacheConfig creates a CacheConfig with defaults.
func NewCacheConfig() CacheConfig {
	return CacheConfig{
		semanticThreshold: DefaultSemanticThreshold,
		strictThreshold:   DefaultSemanticStrict,
		intentThreshold:   DefaultIntentThreshold,
		lookupTimeout:     DefaultCacheLookupTimeout,
		frontSize:         DefaultFrontCacheSize,
		frontTTL:          DefaultFrontCacheTTL,
	}
}

// SemanticThreshold returns the default semantic cache hit score.
func (c CacheConfig) SemanticThreshold() float64 { return c.semanticThreshold }

// StrictThreshold returns the hit score used across modalities.
func (c CacheConfig) StrictThreshold() float64 { return c.strictThreshold }

// IntentThreshold returns the intent cache hit score.
func (c CacheConfig) IntentThreshold() float64 { return c.intentThreshold }

// LookupTimeout bounds a cache lookup.
func (c CacheConfig) LookupTimeout() time.Duration { return c.lookupTimeout }

// FrontSize returns the capacity of in-process front caches.
func (c CacheConfig) FrontSize() int { return c.frontSize }

// FrontTTL returns the expiry of in-process front cache entries.
func (c CacheConfig) FrontTTL() time.Duration { return c.frontTTL }

// WithSemanticThreshold returns a copy with the semantic hit score set.
func (c CacheConfig) WithSemanticThreshold(v float64) CacheConfig {
	c.semanticThreshold = v
	return c
}

// WithStrictThreshold returns a copy with the strict hit score set.
func (c CacheConfig) WithStrictThreshold(v float64) CacheConfig {
	c.strictThreshold = v
	return c
}

// WithIntentThreshold returns a copy with the intent hit score set.
func (c CacheConfig) WithIntentThreshold(v float64) CacheConfig {
	c.intentThreshold = v
	return c
}

// WithLookupTimeout returns a copy with the lookup bound set.
func (c CacheConfig) WithLookupTimeout(d time.Duration) CacheConfig {
	if d > 0 {
		c.lookupTimeout = d
	}
	return c
}

// WithFront returns a copy with the front cache size and expiry set.
func (c CacheConfig) WithFront(size int, ttl time.Duration) CacheConfig {
	if size > 0 {
		c.frontSize = size
	}
	if ttl > 0 {
		c.frontTTL = ttl
	}
	return c
}

// ScoringConfig holds the interaction score cache tunables.
type ScoringConfig struct {
	cacheTTLSeconds       float64
	updateIntervalSeconds float64
	redisURL              string
}

// NewScoringConfig creates a ScoringConfig with defaults.
func NewScoringConfig() ScoringConfig {
	return ScoringConfig{
		cacheTTLSeconds:       DefaultScoreCacheTTL,
		updateIntervalSeconds: DefaultScoreUpdateInterval,
	}
}

// CacheTTL returns how long a materialized score stays fresh.
func (s ScoringConfig) CacheTTL() time.Duration {
	return time.Duration(s.cacheTTLSeconds * float64(time.Second))
}

// UpdateInterval returns the background refresh interval.
func (s ScoringConfig) UpdateInterval() time.Duration {
	return time.Duration(s.updateIntervalSeconds * float64(time.Second))
}

// RedisURL returns the shared cache URL, empty for in-process caching.
func (s ScoringConfig) RedisURL() string { return s.redisURL }

// WithCacheTTLSeconds returns a copy with the score TTL set.
func (s ScoringConfig) WithCacheTTLSeconds(seconds float64) ScoringConfig {
	s.cacheTTLSeconds = seconds
	return s
}

// WithUpdateIntervalSeconds returns a copy with the refresh interval set.
func (s ScoringConfig) WithUpdateIntervalSeconds(seconds float64) ScoringConfig {
	s.updateIntervalSeconds = seconds
	return s
}

// WithRedisURL returns a copy using a shared Redis cache.
func (s ScoringConfig) WithRedisURL(url string) ScoringConfig {
	s.redisURL = url
	return s
}

// LifecycleConfig holds the deactivation sweep tunables.
type LifecycleConfig struct {
	sweepSchedule      string
	alertCooldownHours int
	alertWebhookURL    string
}

// NewLifecycleConfig creates a LifecycleConfig with defaults.
func NewLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		sweepSchedule:      DefaultSweepSchedule,
		alertCooldownHours: DefaultAlertCooldownHours,
	}
}

// SweepSchedule returns the cron spec of the sweep.
func (l LifecycleConfig) SweepSchedule() string { return l.sweepSchedule }

// AlertCooldown returns the minimum gap between two alerts for one service.
func (l LifecycleConfig) AlertCooldown() time.Duration {
	return time.Duration(l.alertCooldownHours) * time.Hour
}

// AlertWebhookURL returns where owner alerts are posted, empty to only log them.
func (l LifecycleConfig) AlertWebhookURL() string { return l.alertWebhookURL }

// WithSweepSchedule returns a copy with the cron spec set.
func (l LifecycleConfig) WithSweepSchedule(spec string) LifecycleConfig {
	if spec != "" {
		l.sweepSchedule = spec
	}
	return l
}

// WithAlertCooldownHours returns a copy with the alert cooldown set.
func (l LifecycleConfig) WithAlertCooldownHours(hours int) LifecycleConfig {
	if hours > 0 {
		l.alertCooldownHours = hours
	}
	return l
}

// WithAlertWebhookURL returns a copy with the webhook set.
func (l LifecycleConfig) WithAlertWebhookURL(url string) LifecycleConfig {
	l.alertWebhookURL = url
	return l
}

// MediaConfig holds the multimodal normalizer tunables.
type MediaConfig struct {
	maxPDFPages   int
	textChunkSize int
	ocrEnabled    bool
	ocrLanguages  []string
}

// NewMediaConfig creates a MediaConfig with defaults.
func NewMediaConfig() MediaConfig {
	return MediaConfig{
		maxPDFPages:   DefaultMaxPDFPages,
		textChunkSize: DefaultTextChunkSize,
		ocrEnabled:    true,
		ocrLanguages:  ParseOCRLanguages(DefaultOCRLanguages),
	}
}

// MaxPDFPages bounds PDF rasterization.
func (m MediaConfig) MaxPDFPages() int { return m.maxPDFPages }

// TextChunkSize returns the maximum characters per text artifact.
func (m MediaConfig) TextChunkSize() int { return m.textChunkSize }

// OCREnabled reports whether images are OCR'd.
func (m MediaConfig) OCREnabled() bool { return m.ocrEnabled }

// OCRLanguages returns the tesseract languages.
func (m MediaConfig) OCRLanguages() []string {
	langs := make([]string, len(m.ocrLanguages))
	copy(langs, m.ocrLanguages)
	return langs
}

// WithMaxPDFPages returns a copy with the page bound set.
func (m MediaConfig) WithMaxPDFPages(n int) MediaConfig {
	if n > 0 {
		m.maxPDFPages = n
	}
	return m
}

// WithTextChunkSize returns a copy with the chunk size set.
func (m MediaConfig) WithTextChunkSize(n int) MediaConfig {
	if n > 0 {
		m.textChunkSize = n
	}
	return m
}

// WithOCR returns a copy with OCR toggled and its languages set.
func (m MediaConfig) WithOCR(enabled bool, languages []string) MediaConfig {
	m.ocrEnabled = enabled
	if len(languages) > 0 {
		m.ocrLanguages = languages
	}
	return m
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host               string
	port               int
	dataDir            string
	dbURL              string
	dbMaxOpenConns     int
	logLevel           string
	logFormat          LogFormat
	apiKeys            []string
	corsAllowedOrigins []string
	embedding          Endpoint
	llm                Endpoint
	matching           MatchingConfig
	cache              CacheConfig
	scoring            ScoringConfig
	lifecycle          LifecycleConfig
	media              MediaConfig
	indexerPoolSize    int
	admissionLimit     int
	admissionFailFast  bool
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".yukpo"
	}
	return filepath.Join(home, ".yukpo")
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewLLMEndpoint creates an Endpoint with LLM defaults.
func NewLLMEndpoint() Endpoint {
	return NewEndpointWithOptions(
		WithTimeout(DefaultLLMTimeout),
		WithMultimodalTimeout(DefaultLLMMultimodalTimeout),
		WithMaxRetries(DefaultLLMMaxRetries),
	)
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:               DefaultHost,
		port:               DefaultPort,
		dataDir:            dataDir,
		dbURL:              "sqlite:///" + filepath.Join(dataDir, "yukpo.db"),
		dbMaxOpenConns:     DefaultDBMaxOpenConns,
		logLevel:           DefaultLogLevel,
		logFormat:          LogFormatPretty,
		apiKeys:            []string{},
		corsAllowedOrigins: []string{DefaultCORSAllowedOrigins},
		embedding:          NewEndpoint(),
		llm:                NewLLMEndpoint(),
		matching:           NewMatchingConfig(),
		cache:              NewCacheConfig(),
		scoring:            NewScoringConfig(),
		lifecycle:          NewLifecycleConfig(),
		media:              NewMediaConfig(),
		indexerPoolSize:    DefaultIndexerPoolSize,
		admissionLimit:     DefaultAdmissionLimit,
		admissionFailFast:  true,
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// DBMaxOpenConns returns the relational pool bound.
func (c AppConfig) DBMaxOpenConns() int { return c.dbMaxOpenConns }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// APIKeys returns the configured API keys.
func (c AppConfig) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

// CORSAllowedOrigins returns the allowed CORS origins.
func (c AppConfig) CORSAllowedOrigins() []string {
	origins := make([]string, len(c.corsAllowedOrigins))
	copy(origins, c.corsAllowedOrigins)
	return origins
}

// Embedding returns the embedding service endpoint.
func (c AppConfig) Embedding() Endpoint { return c.embedding }

// LLM returns the generative model endpoint.
func (c AppConfig) LLM() Endpoint { return c.llm }

// Matching returns the search tunables.
func (c AppConfig) Matching() MatchingConfig { return c.matching }

// Cache returns the cache tunables.
func (c AppConfig) Cache() CacheConfig { return c.cache }

// Scoring returns the interaction score tunables.
func (c AppConfig) Scoring() ScoringConfig { return c.scoring }

// Lifecycle returns the sweep tunables.
func (c AppConfig) Lifecycle() LifecycleConfig { return c.lifecycle }

// Media returns the normalizer tunables.
func (c AppConfig) Media() MediaConfig { return c.media }

// IndexerPoolSize returns the number of concurrent indexing jobs.
func (c AppConfig) IndexerPoolSize() int { return c.indexerPoolSize }

// AdmissionLimit returns the maximum concurrent requests.
func (c AppConfig) AdmissionLimit() int { return c.admissionLimit }

// AdmissionFailFast reports whether requests beyond the limit fail instead of waiting.
func (c AppConfig) AdmissionFailFast() bool { return c.admissionFailFast }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		// Update default DB URL when data dir changes
		if c.dbURL == "" || strings.Contains(c.dbURL, "yukpo.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "yukpo.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithDBMaxOpenConns sets the relational pool bound.
func WithDBMaxOpenConns(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.dbMaxOpenConns = n
		}
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithAPIKeys sets the API keys.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) {
		c.apiKeys = make([]string, len(keys))
		copy(c.apiKeys, keys)
	}
}

// WithCORSAllowedOrigins sets the allowed CORS origins.
func WithCORSAllowedOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		c.corsAllowedOrigins = make([]string, len(origins))
		copy(c.corsAllowedOrigins, origins)
	}
}

// WithEmbeddingEndpoint sets the embedding service endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embedding = e }
}

// WithLLMEndpoint sets the generative model endpoint.
func WithLLMEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.llm = e }
}

// WithMatchingConfig sets the search tunables.
func WithMatchingConfig(m MatchingConfig) AppConfigOption {
	return func(c *AppConfig) { c.matching = m }
}

// WithCacheConfig sets the cache tunables.
func WithCacheConfig(cc CacheConfig) AppConfigOption {
	return func(c *AppConfig) { c.cache = cc }
}

// WithScoringConfig sets the interaction score tunables.
func WithScoringConfig(s ScoringConfig) AppConfigOption {
	return func(c *AppConfig) { c.scoring = s }
}

// WithLifecycleConfig sets the sweep tunables.
func WithLifecycleConfig(l LifecycleConfig) AppConfigOption {
	return func(c *AppConfig) { c.lifecycle = l }
}

// WithMediaConfig sets the normalizer tunables.
func WithMediaConfig(m MediaConfig) AppConfigOption {
	return func(c *AppConfig) { c.media = m }
}

// WithIndexerPoolSize sets the number of concurrent indexing jobs.
func WithIndexerPoolSize(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.indexerPoolSize = n
		}
	}
}

// WithAdmission sets the request admission limit and overflow policy.
func WithAdmission(limit int, failFast bool) AppConfigOption {
	return func(c *AppConfig) {
		if limit > 0 {
			c.admissionLimit = limit
		}
		c.admissionFailFast = failFast
	}
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Sensitive values like API keys are masked or shown as counts.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("embedding_base_url", orNotConfigured(c.embedding.BaseURL())),
		slog.String("llm_base_url", orNotConfigured(c.llm.BaseURL())),
		slog.String("llm_model", orNotConfigured(c.llm.Model())),
		slog.Int("api_keys_count", len(c.apiKeys)),
		slog.Float64("final_score_threshold", c.matching.FinalScoreThreshold()),
		slog.Float64("semantic_cache_threshold", c.cache.SemanticThreshold()),
		slog.String("sweep_schedule", c.lifecycle.SweepSchedule()),
		slog.Bool("redis_score_cache", c.scoring.RedisURL() != ""),
		slog.Int("indexer_pool_size", c.indexerPoolSize),
		slog.Int("admission_limit", c.admissionLimit),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

func orNotConfigured(s string) string {
	if s == "" {
		return "(not configured)"
	}
	return s
}

// ParseAPIKeys parses a comma-separated string of API keys.
func ParseAPIKeys(s string) []string {
	return splitList(s, ",")
}

// ParseOCRLanguages parses a tesseract "eng+fra" language list.
func ParseOCRLanguages(s string) []string {
	return splitList(s, "+")
}

func splitList(s, sep string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, sep)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
