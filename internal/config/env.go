package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., LLM_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.yukpo
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/yukpo.db
	DBURL string `envconfig:"DB_URL"`

	// DBMaxOpenConns bounds the relational connection pool.
	// Env: DB_MAX_OPEN_CONNS (default: 10)
	DBMaxOpenConns int `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// APIKeys is a comma-separated list of valid API keys.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`

	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	// Env: CORS_ALLOWED_ORIGINS (default: *)
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Embedding configures the external embedding and vector index service.
	Embedding EmbeddingEnv `envconfig:"EMBEDDING"`

	// LLM configures the generative model.
	LLM LLMEnv `envconfig:"LLM_ENDPOINT"`

	// Matching configures search ranking.
	Matching MatchingEnv `envconfig:"MATCHING"`

	// FinalScoreThreshold is the cut applied to fused scores.
	// Env: FINAL_SCORE_THRESHOLD (default: 0.40)
	FinalScoreThreshold float64 `envconfig:"FINAL_SCORE_THRESHOLD" default:"0.40"`

	// SemanticCache configures the semantic response cache.
	SemanticCache SemanticCacheEnv `envconfig:"SEMANTIC_CACHE"`

	// IntentCacheThreshold is the similarity for an intent cache hit.
	// Env: INTENT_CACHE_THRESHOLD (default: 0.95)
	IntentCacheThreshold float64 `envconfig:"INTENT_CACHE_THRESHOLD" default:"0.95"`

	// CacheLookupTimeout bounds semantic and intent cache lookups.
	// Env: CACHE_LOOKUP_TIMEOUT (default: 2s)
	CacheLookupTimeout time.Duration `envconfig:"CACHE_LOOKUP_TIMEOUT" default:"2s"`

	// VectorLookupTimeout bounds one field query of a search.
	// Env: VECTOR_LOOKUP_TIMEOUT (default: 2s)
	VectorLookupTimeout time.Duration `envconfig:"VECTOR_LOOKUP_TIMEOUT" default:"2s"`

	// FrontCache configures the in-process LRU caches.
	FrontCache FrontCacheEnv `envconfig:"FRONT_CACHE"`

	// Score configures the interaction score cache.
	Score ScoreEnv `envconfig:"SCORE"`

	// RedisURL switches the score cache to Redis.
	// Env: REDIS_URL
	RedisURL string `envconfig:"REDIS_URL"`

	// Lifecycle configures the deactivation sweep.
	Lifecycle LifecycleEnv `envconfig:"LIFECYCLE"`

	// AlertWebhookURL receives owner alerts as JSON.
	// Env: ALERT_WEBHOOK_URL
	AlertWebhookURL string `envconfig:"ALERT_WEBHOOK_URL"`

	// IndexerPoolSize is the number of concurrent indexing jobs.
	// Env: INDEXER_POOL_SIZE (default: 8)
	IndexerPoolSize int `envconfig:"INDEXER_POOL_SIZE" default:"8"`

	// Admission configures request admission control.
	Admission AdmissionEnv `envconfig:"ADMISSION"`

	// MaxPDFPages bounds PDF rasterization.
	// Env: MAX_PDF_PAGES (default: 10)
	MaxPDFPages int `envconfig:"MAX_PDF_PAGES" default:"10"`

	// TextChunkSize is the maximum characters per text artifact.
	// Env: TEXT_CHUNK_SIZE (default: 4000)
	TextChunkSize int `envconfig:"TEXT_CHUNK_SIZE" default:"4000"`

	// OCR configures image text extraction.
	OCR OCREnv `envconfig:"OCR"`
}

// EmbeddingEnv holds environment configuration for the embedding service.
type EmbeddingEnv struct {
	// APIURL is the base URL of the service.
	// Env: EMBEDDING_API_URL
	APIURL string `envconfig:"API_URL"`

	// APIKey is sent in the x-api-key header.
	// Env: EMBEDDING_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// TimeoutSeconds is the per-call timeout.
	// Env: EMBEDDING_TIMEOUT_SECONDS (default: 60)
	TimeoutSeconds float64 `envconfig:"TIMEOUT_SECONDS" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: EMBEDDING_MAX_RETRIES (default: 3)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: EMBEDDING_INITIAL_DELAY (default: 0.5)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"0.5"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: EMBEDDING_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
}

// LLMEnv holds environment configuration for the generative model.
type LLMEnv struct {
	// BaseURL is the OpenAI-compatible base URL.
	// Env: LLM_ENDPOINT_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the chat model identifier.
	// Env: LLM_ENDPOINT_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: LLM_ENDPOINT_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the text-only request timeout in seconds.
	// Env: LLM_ENDPOINT_TIMEOUT (default: 15)
	Timeout float64 `envconfig:"TIMEOUT" default:"15"`

	// MultimodalTimeout is the timeout in seconds for requests with images.
	// Env: LLM_ENDPOINT_MULTIMODAL_TIMEOUT (default: 30)
	MultimodalTimeout float64 `envconfig:"MULTIMODAL_TIMEOUT" default:"30"`

	// MaxRetries is the maximum number of retries.
	// Env: LLM_ENDPOINT_MAX_RETRIES (default: 2)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"2"`
}

// MatchingEnv holds environment configuration for search ranking.
type MatchingEnv struct {
	// MinScoreThreshold marks a strong semantic match.
	// Env: MATCHING_MIN_SCORE_THRESHOLD (default: 0.70)
	MinScoreThreshold float64 `envconfig:"MIN_SCORE_THRESHOLD" default:"0.70"`

	// BatchSize is the number of catalog records read per batch.
	// Env: MATCHING_BATCH_SIZE (default: 50)
	BatchSize int `envconfig:"BATCH_SIZE" default:"50"`

	// MaxCandidates caps the candidates considered.
	// Env: MATCHING_MAX_CANDIDATES (default: 1000)
	MaxCandidates int `envconfig:"MAX_CANDIDATES" default:"1000"`

	// EarlyStopThreshold stops reading batches once enough results score above it.
	// Env: MATCHING_EARLY_STOP_THRESHOLD (default: 0.9)
	EarlyStopThreshold float64 `envconfig:"EARLY_STOP_THRESHOLD" default:"0.9"`

	// TopK is the per-field index query size.
	// Env: MATCHING_TOP_K (default: 20)
	TopK int `envconfig:"TOP_K" default:"20"`

	// ResultLimit is the maximum results returned.
	// Env: MATCHING_RESULT_LIMIT (default: 10)
	ResultLimit int `envconfig:"RESULT_LIMIT" default:"10"`

	// DefaultRadiusKM applies when a point is given without a zone.
	// Env: MATCHING_DEFAULT_RADIUS_KM (default: 50)
	DefaultRadiusKM float64 `envconfig:"DEFAULT_RADIUS_KM" default:"50"`
}

// SemanticCacheEnv holds environment configuration for the semantic cache.
type SemanticCacheEnv struct {
	// Threshold is the default hit score.
	// Env: SEMANTIC_CACHE_THRESHOLD (default: 0.70)
	Threshold float64 `envconfig:"THRESHOLD" default:"0.70"`

	// StrictThreshold applies across modalities.
	// Env: SEMANTIC_CACHE_STRICT_THRESHOLD (default: 0.95)
	StrictThreshold float64 `envconfig:"STRICT_THRESHOLD" default:"0.95"`
}

// FrontCacheEnv holds environment configuration for in-process caches.
type FrontCacheEnv struct {
	// Size is the capacity of each front cache.
	// Env: FRONT_CACHE_SIZE (default: 4096)
	Size int `envconfig:"SIZE" default:"4096"`

	// TTLSeconds is the entry expiry.
	// Env: FRONT_CACHE_TTL_SECONDS (default: 3600)
	TTLSeconds float64 `envconfig:"TTL_SECONDS" default:"3600"`
}

// ScoreEnv holds environment configuration for interaction scores.
type ScoreEnv struct {
	// CacheTTLSeconds is how long a score stays fresh.
	// Env: SCORE_CACHE_TTL_SECONDS (default: 3600)
	CacheTTLSeconds float64 `envconfig:"CACHE_TTL_SECONDS" default:"3600"`

	// UpdateIntervalSeconds is the background refresh interval.
	// Env: SCORE_UPDATE_INTERVAL_SECONDS (default: 1800)
	UpdateIntervalSeconds float64 `envconfig:"UPDATE_INTERVAL_SECONDS" default:"1800"`
}

// LifecycleEnv holds environment configuration for the sweep.
type LifecycleEnv struct {
	// SweepSchedule is a cron spec.
	// Env: LIFECYCLE_SWEEP_SCHEDULE (default: @every 1h)
	SweepSchedule string `envconfig:"SWEEP_SCHEDULE" default:"@every 1h"`

	// AlertCooldownHours is the minimum gap between owner alerts.
	// Env: LIFECYCLE_ALERT_COOLDOWN_HOURS (default: 24)
	AlertCooldownHours int `envconfig:"ALERT_COOLDOWN_HOURS" default:"24"`
}

// AdmissionEnv holds environment configuration for admission control.
type AdmissionEnv struct {
	// Limit is the maximum concurrent requests.
	// Env: ADMISSION_LIMIT (default: 10000)
	Limit int `envconfig:"LIMIT" default:"10000"`

	// FailFast rejects requests beyond the limit instead of queueing them.
	// Env: ADMISSION_FAIL_FAST (default: true)
	FailFast bool `envconfig:"FAIL_FAST" default:"true"`
}

// OCREnv holds environment configuration for OCR.
type OCREnv struct {
	// Enabled controls whether images are OCR'd.
	// Env: OCR_ENABLED (default: true)
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// Languages is a tesseract language list.
	// Env: OCR_LANGUAGES (default: eng+fra)
	Languages string `envconfig:"LANGUAGES" default:"eng+fra"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "YUKPO" would require YUKPO_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	cfg = applyOption(cfg, WithDBMaxOpenConns(e.DBMaxOpenConns))
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.APIKeys != "" {
		cfg = applyOption(cfg, WithAPIKeys(ParseAPIKeys(e.APIKeys)))
	}
	if e.CORSAllowedOrigins != "" {
		cfg = applyOption(cfg, WithCORSAllowedOrigins(ParseAPIKeys(e.CORSAllowedOrigins)))
	}

	cfg = applyOption(cfg, WithEmbeddingEndpoint(e.Embedding.ToEndpoint()))
	cfg = applyOption(cfg, WithLLMEndpoint(e.LLM.ToEndpoint()))

	cfg = applyOption(cfg, WithMatchingConfig(e.Matching.ToMatchingConfig().
		WithFinalScoreThreshold(e.FinalScoreThreshold).
		WithVectorLookupTimeout(e.VectorLookupTimeout)))

	cfg = applyOption(cfg, WithCacheConfig(NewCacheConfig().
		WithSemanticThreshold(e.SemanticCache.Threshold).
		WithStrictThreshold(e.SemanticCache.StrictThreshold).
		WithIntentThreshold(e.IntentCacheThreshold).
		WithLookupTimeout(e.CacheLookupTimeout).
		WithFront(e.FrontCache.Size, seconds(e.FrontCache.TTLSeconds))))

	cfg = applyOption(cfg, WithScoringConfig(NewScoringConfig().
		WithCacheTTLSeconds(e.Score.CacheTTLSeconds).
		WithUpdateIntervalSeconds(e.Score.UpdateIntervalSeconds).
		WithRedisURL(e.RedisURL)))

	cfg = applyOption(cfg, WithLifecycleConfig(NewLifecycleConfig().
		WithSweepSchedule(e.Lifecycle.SweepSchedule).
		WithAlertCooldownHours(e.Lifecycle.AlertCooldownHours).
		WithAlertWebhookURL(e.AlertWebhookURL)))

	cfg = applyOption(cfg, WithMediaConfig(NewMediaConfig().
		WithMaxPDFPages(e.MaxPDFPages).
		WithTextChunkSize(e.TextChunkSize).
		WithOCR(e.OCR.Enabled, ParseOCRLanguages(e.OCR.Languages))))

	cfg = applyOption(cfg, WithIndexerPoolSize(e.IndexerPoolSize))
	cfg = applyOption(cfg, WithAdmission(e.Admission.Limit, e.Admission.FailFast))

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// ToEndpoint converts EmbeddingEnv to Endpoint.
func (e EmbeddingEnv) ToEndpoint() Endpoint {
	return NewEndpointWithOptions(
		WithBaseURL(e.APIURL),
		WithAPIKey(e.APIKey),
		WithTimeout(seconds(e.TimeoutSeconds)),
		WithMultimodalTimeout(seconds(e.TimeoutSeconds)),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithBackoffFactor(e.BackoffFactor),
	)
}

// ToEndpoint converts LLMEnv to Endpoint.
func (l LLMEnv) ToEndpoint() Endpoint {
	return NewEndpointWithOptions(
		WithBaseURL(l.BaseURL),
		WithModel(l.Model),
		WithAPIKey(l.APIKey),
		WithTimeout(seconds(l.Timeout)),
		WithMultimodalTimeout(seconds(l.MultimodalTimeout)),
		WithMaxRetries(l.MaxRetries),
	)
}

// ToMatchingConfig converts MatchingEnv to MatchingConfig.
func (m MatchingEnv) ToMatchingConfig() MatchingConfig {
	return NewMatchingConfig().
		WithMinScoreThreshold(m.MinScoreThreshold).
		WithBatchSize(m.BatchSize).
		WithMaxCandidates(m.MaxCandidates).
		WithEarlyStopThreshold(m.EarlyStopThreshold).
		WithTopK(m.TopK).
		WithResultLimit(m.ResultLimit).
		WithDefaultRadiusKM(m.DefaultRadiusKM)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
