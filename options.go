package yukpo

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yukpo/yukpo/domain/vector"
	"github.com/yukpo/yukpo/infrastructure/notify"
	"github.com/yukpo/yukpo/infrastructure/provider"
	"github.com/yukpo/yukpo/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	app            config.AppConfig
	textProvider   provider.TextGenerator
	index          vector.Index
	notifier       notify.Sender
	registry       *prometheus.Registry
	logger         *slog.Logger
	skipSupervisor bool
	closers        []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{app: config.NewAppConfig()}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig replaces the whole application configuration, usually one
// loaded from the environment.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.app = cfg
	}
}

// WithSQLite stores the catalog in a SQLite file.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDBURL("sqlite:///" + filepath.Clean(path)))
	}
}

// WithPostgres stores the catalog in PostgreSQL.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDBURL(dsn))
	}
}

// WithDataDir sets the data directory for the default SQLite database.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithDataDir(dir))
	}
}

// WithEmbeddingEndpoint sets the embedding service. Without one the client
// falls back to an in-process index that does not survive restarts.
func WithEmbeddingEndpoint(e config.Endpoint) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithEmbeddingEndpoint(e))
	}
}

// WithLLMEndpoint sets the OpenAI-compatible generative model.
func WithLLMEndpoint(e config.Endpoint) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithLLMEndpoint(e))
	}
}

// WithTextProvider sets a custom text generation provider. It takes
// precedence over the LLM endpoint.
func WithTextProvider(p provider.TextGenerator) Option {
	return func(c *clientConfig) {
		c.textProvider = p
	}
}

// WithIndex sets a custom vector index. It takes precedence over the
// embedding endpoint.
func WithIndex(idx vector.Index) Option {
	return func(c *clientConfig) {
		c.index = idx
	}
}

// WithNotifier sets the owner alert channel.
func WithNotifier(n notify.Sender) Option {
	return func(c *clientConfig) {
		c.notifier = n
	}
}

// WithRegistry registers the client metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *clientConfig) {
		c.registry = reg
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithAPIKeys sets the API keys for HTTP API authentication.
func WithAPIKeys(keys ...string) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithAPIKeys(keys))
	}
}

// WithMatchingConfig sets the search tunables.
func WithMatchingConfig(m config.MatchingConfig) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithMatchingConfig(m))
	}
}

// WithLifecycleConfig sets the sweep tunables.
func WithLifecycleConfig(l config.LifecycleConfig) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithLifecycleConfig(l))
	}
}

// WithAdmission bounds concurrent requests.
func WithAdmission(limit int, failFast bool) Option {
	return func(c *clientConfig) {
		c.app = c.app.Apply(config.WithAdmission(limit, failFast))
	}
}

// WithoutSupervisor leaves the lifecycle sweep and score refresh to the
// caller. One-shot commands and tests use it.
func WithoutSupervisor() Option {
	return func(c *clientConfig) {
		c.skipSupervisor = true
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(c io.Closer) Option {
	return func(cfg *clientConfig) {
		cfg.closers = append(cfg.closers, c)
	}
}
