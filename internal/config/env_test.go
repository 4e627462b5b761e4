package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvDefaults_MatchConfigDefaults(t *testing.T) {
	// Struct tag defaults must be literals, so this keeps them in sync with
	// the constants in config.go.
	clearEnvVars(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultDBMaxOpenConns, cfg.DBMaxOpenConns)
	assert.Equal(t, DefaultCORSAllowedOrigins, cfg.CORSAllowedOrigins)

	assert.Equal(t, DefaultEmbeddingTimeout, seconds(cfg.Embedding.TimeoutSeconds))
	assert.Equal(t, DefaultEmbeddingMaxRetries, cfg.Embedding.MaxRetries)
	assert.Equal(t, DefaultEmbeddingInitialDelay, seconds(cfg.Embedding.InitialDelay))
	assert.Equal(t, DefaultBackoffFactor, cfg.Embedding.BackoffFactor)

	assert.Equal(t, DefaultLLMTimeout, seconds(cfg.LLM.Timeout))
	assert.Equal(t, DefaultLLMMultimodalTimeout, seconds(cfg.LLM.MultimodalTimeout))
	assert.Equal(t, DefaultLLMMaxRetries, cfg.LLM.MaxRetries)

	assert.Equal(t, DefaultMinScoreThreshold, cfg.Matching.MinScoreThreshold)
	assert.Equal(t, DefaultFinalScoreThreshold, cfg.FinalScoreThreshold)
	assert.Equal(t, DefaultMatchingBatchSize, cfg.Matching.BatchSize)
	assert.Equal(t, DefaultMaxCandidates, cfg.Matching.MaxCandidates)
	assert.Equal(t, DefaultEarlyStopThreshold, cfg.Matching.EarlyStopThreshold)
	assert.Equal(t, DefaultMatchingTopK, cfg.Matching.TopK)
	assert.Equal(t, DefaultResultLimit, cfg.Matching.ResultLimit)
	assert.Equal(t, DefaultRadiusKM, cfg.Matching.DefaultRadiusKM)

	assert.Equal(t, DefaultSemanticThreshold, cfg.SemanticCache.Threshold)
	assert.Equal(t, DefaultSemanticStrict, cfg.SemanticCache.StrictThreshold)
	assert.Equal(t, DefaultIntentThreshold, cfg.IntentCacheThreshold)
	assert.Equal(t, DefaultCacheLookupTimeout, cfg.CacheLookupTimeout)
	assert.Equal(t, DefaultVectorLookupTimeout, cfg.VectorLookupTimeout)
	assert.Equal(t, DefaultFrontCacheSize, cfg.FrontCache.Size)
	assert.Equal(t, DefaultFrontCacheTTL, seconds(cfg.FrontCache.TTLSeconds))

	assert.Equal(t, DefaultScoreCacheTTL, cfg.Score.CacheTTLSeconds)
	assert.Equal(t, DefaultScoreUpdateInterval, cfg.Score.UpdateIntervalSeconds)
	assert.Equal(t, DefaultSweepSchedule, cfg.Lifecycle.SweepSchedule)
	assert.Equal(t, DefaultAlertCooldownHours, cfg.Lifecycle.AlertCooldownHours)
	assert.Equal(t, DefaultIndexerPoolSize, cfg.IndexerPoolSize)
	assert.Equal(t, DefaultAdmissionLimit, cfg.Admission.Limit)
	assert.True(t, cfg.Admission.FailFast)
	assert.Equal(t, DefaultMaxPDFPages, cfg.MaxPDFPages)
	assert.Equal(t, DefaultTextChunkSize, cfg.TextChunkSize)
	assert.True(t, cfg.OCR.Enabled)
	assert.Equal(t, DefaultOCRLanguages, cfg.OCR.Languages)
}

func TestLoadFromEnv_OverrideValues(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("PORT", "9090")
	t.Setenv("EMBEDDING_API_URL", "http://embed.local/")
	t.Setenv("EMBEDDING_API_KEY", "secret")
	t.Setenv("EMBEDDING_MAX_RETRIES", "5")
	t.Setenv("LLM_ENDPOINT_MODEL", "gpt-4o-mini")
	t.Setenv("FINAL_SCORE_THRESHOLD", "0.55")
	t.Setenv("MATCHING_TOP_K", "30")
	t.Setenv("CACHE_LOOKUP_TIMEOUT", "500ms")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LIFECYCLE_SWEEP_SCHEDULE", "@every 15m")
	t.Setenv("ADMISSION_FAIL_FAST", "false")
	t.Setenv("OCR_LANGUAGES", "fra")

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := env.ToAppConfig()

	assert.Equal(t, 9090, cfg.Port())
	assert.Equal(t, "http://embed.local", cfg.Embedding().BaseURL())
	assert.Equal(t, "secret", cfg.Embedding().APIKey())
	assert.Equal(t, 5, cfg.Embedding().MaxRetries())
	assert.Equal(t, "gpt-4o-mini", cfg.LLM().Model())
	assert.Equal(t, 15*time.Second, cfg.LLM().Timeout())
	assert.Equal(t, 0.55, cfg.Matching().FinalScoreThreshold())
	assert.Equal(t, 30, cfg.Matching().TopK())
	assert.Equal(t, 500*time.Millisecond, cfg.Cache().LookupTimeout())
	assert.Equal(t, "redis://localhost:6379/0", cfg.Scoring().RedisURL())
	assert.Equal(t, "@every 15m", cfg.Lifecycle().SweepSchedule())
	assert.False(t, cfg.AdmissionFailFast())
	assert.Equal(t, []string{"fra"}, cfg.Media().OCRLanguages())
}

func TestParseLogFormat(t *testing.T) {
	assert.Equal(t, LogFormatJSON, parseLogFormat("JSON"))
	assert.Equal(t, LogFormatPretty, parseLogFormat("pretty"))
	assert.Equal(t, LogFormatPretty, parseLogFormat("anything"))
}

func TestLoadDotEnv_NonExistent(t *testing.T) {
	clearEnvVars(t)
	assert.NoError(t, LoadDotEnv("/nonexistent/.env"))
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	content := `DATA_DIR=/config/data
LOG_LEVEL=WARN
SEMANTIC_CACHE_THRESHOLD=0.8
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	clearEnvVars(t)

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)

	assert.Equal(t, "/config/data", cfg.DataDir())
	assert.Equal(t, "sqlite:////config/data/yukpo.db", cfg.DBURL())
	assert.Equal(t, "WARN", cfg.LogLevel())
	assert.Equal(t, 0.8, cfg.Cache().SemanticThreshold())
}

// clearEnvVars unsets every variable the config reads. t.Setenv registers
// the restore; os.Unsetenv then removes the value for the test.
func clearEnvVars(t *testing.T) {
	t.Helper()

	vars := []string{
		"HOST", "PORT", "DATA_DIR", "DB_URL", "DB_MAX_OPEN_CONNS", "LOG_LEVEL", "LOG_FORMAT",
		"API_KEYS", "CORS_ALLOWED_ORIGINS",
		"EMBEDDING_API_URL", "EMBEDDING_API_KEY", "EMBEDDING_TIMEOUT_SECONDS", "EMBEDDING_MAX_RETRIES",
		"EMBEDDING_INITIAL_DELAY", "EMBEDDING_BACKOFF_FACTOR",
		"LLM_ENDPOINT_BASE_URL", "LLM_ENDPOINT_MODEL", "LLM_ENDPOINT_API_KEY", "LLM_ENDPOINT_TIMEOUT",
		"LLM_ENDPOINT_MULTIMODAL_TIMEOUT", "LLM_ENDPOINT_MAX_RETRIES",
		"MATCHING_MIN_SCORE_THRESHOLD", "MATCHING_BATCH_SIZE", "MATCHING_MAX_CANDIDATES",
		"MATCHING_EARLY_STOP_THRESHOLD", "MATCHING_TOP_K", "MATCHING_RESULT_LIMIT", "MATCHING_DEFAULT_RADIUS_KM",
		"FINAL_SCORE_THRESHOLD", "SEMANTIC_CACHE_THRESHOLD", "SEMANTIC_CACHE_STRICT_THRESHOLD",
		"INTENT_CACHE_THRESHOLD", "CACHE_LOOKUP_TIMEOUT", "VECTOR_LOOKUP_TIMEOUT",
		"FRONT_CACHE_SIZE", "FRONT_CACHE_TTL_SECONDS",
		"SCORE_CACHE_TTL_SECONDS", "SCORE_UPDATE_INTERVAL_SECONDS", "REDIS_URL",
		"LIFECYCLE_SWEEP_SCHEDULE", "LIFECYCLE_ALERT_COOLDOWN_HOURS", "ALERT_WEBHOOK_URL",
		"INDEXER_POOL_SIZE", "ADMISSION_LIMIT", "ADMISSION_FAIL_FAST",
		"MAX_PDF_PAGES", "TEXT_CHUNK_SIZE", "OCR_ENABLED", "OCR_LANGUAGES",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		require.NoError(t, os.Unsetenv(v))
	}
}
