// Package yukpo provides the semantic matching core of the Yukpo
// marketplace: multimodal request intake, intent detection, catalog
// indexing, field-wise semantic search fused with reputation, and the
// automatic deactivation lifecycle.
//
// Basic usage:
//
//	client, err := yukpo.New(
//	    yukpo.WithSQLite(".yukpo/yukpo.db"),
//	    yukpo.WithLLMEndpoint(config.NewEndpointWithOptions(
//	        config.WithBaseURL("https://api.openai.com/v1"),
//	        config.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    )),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Requests.Handle(ctx, service.Request{
//	    UserID: 42,
//	    Input:  service.Input{Texte: "je cherche un coiffeur", GPSMobile: "4.05,9.7"},
//	})
//
//	for _, m := range resp.Search.Matches() {
//	    fmt.Println(m.Service().Payload().Title(), m.Final())
//	}
package yukpo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/yukpo/yukpo/application/service"
	"github.com/yukpo/yukpo/domain/catalog"
	"github.com/yukpo/yukpo/domain/scoring"
	"github.com/yukpo/yukpo/domain/vector"
	"github.com/yukpo/yukpo/infrastructure/cache"
	"github.com/yukpo/yukpo/infrastructure/embedding"
	"github.com/yukpo/yukpo/infrastructure/media"
	"github.com/yukpo/yukpo/infrastructure/metrics"
	"github.com/yukpo/yukpo/infrastructure/notify"
	"github.com/yukpo/yukpo/infrastructure/persistence"
	"github.com/yukpo/yukpo/infrastructure/provider"
	"github.com/yukpo/yukpo/infrastructure/translate"
	"github.com/yukpo/yukpo/internal/config"
	"github.com/yukpo/yukpo/internal/database"
	"github.com/yukpo/yukpo/internal/lexicon"
	"github.com/yukpo/yukpo/internal/log"
)

// Client is the main entry point for the yukpo library.
// The lifecycle supervisor starts automatically on creation.
//
// Access operations via struct fields:
//
//	client.Requests.Handle(ctx, req)
//	client.Search.Query(ctx, "coiffure")
//	client.Lifecycle.Reactivate(ctx, serviceID, userID, 7)
type Client struct {
	Requests  *service.Orchestrator
	Search    *service.Search
	Lifecycle *service.Lifecycle
	Scores    *service.Scorer
	Indexer   *service.Indexer

	db         database.Database
	services   catalog.ServiceStore
	index      vector.Index
	supervisor *service.Supervisor
	metrics    *metrics.Metrics
	closers    []io.Closer

	logger      *slog.Logger
	app         config.AppConfig
	supervising bool
	closed      atomic.Bool
	mu          sync.Mutex
}

// New creates a new Client with the given options.
// The lifecycle supervisor is started unless WithoutSupervisor is set.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	app := cfg.app

	if app.DBURL() == "" {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.NewLogger(app)
	}

	if _, err := config.PrepareDataDir(app.DataDir()); err != nil {
		return nil, err
	}

	ctx := context.Background()
	db, err := database.NewDatabaseWithLogger(ctx, app.DBURL(), logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.ConfigurePool(app.DBMaxOpenConns()); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	if err := persistence.AutoMigrate(db); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	if err := persistence.ValidateSchema(db); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	var m *metrics.Metrics
	if cfg.registry != nil {
		m = metrics.NewWithRegistry(cfg.registry)
	} else {
		m = metrics.New()
	}

	closers := cfg.closers

	index, err := buildIndex(cfg, m, logger)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	generator, err := buildGenerator(cfg)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	var translator service.Translator
	if generator != nil {
		translator = translate.NewLLMTranslator(generator, 0, 0, logger)
	} else {
		logger.Warn("no LLM endpoint configured, intents fall back to assistance and translation is off")
	}

	scoreCache, err := buildScoreCache(ctx, app.Scoring(), logger)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	if c, ok := scoreCache.(io.Closer); ok {
		closers = append(closers, c)
	}

	var ocr service.ImageReader
	if app.Media().OCREnabled() {
		ocr = media.NewTesseractOCR(app.Media().OCRLanguages())
	}
	rasterizer := media.NewPDFRasterizer(0, 0)
	closers = append(closers, rasterizer)

	services := persistence.NewServiceStore(db)
	logs := persistence.NewLogStore(db)
	hist := persistence.NewHistoryStore(db)
	scores := persistence.NewScoringStore(db)
	lex := lexicon.Default()

	indexerOpts := []service.IndexerOption{
		service.WithIndexerMetrics(m),
		service.WithIndexerLogger(logger),
	}
	if translator != nil {
		indexerOpts = append(indexerOpts, service.WithIndexerTranslator(translator))
	}
	if ocr != nil {
		indexerOpts = append(indexerOpts, service.WithIndexerOCR(ocr))
	}
	indexer, err := service.NewIndexer(services, logs, index, app.IndexerPoolSize(), indexerOpts...)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	notifier := cfg.notifier
	if notifier == nil {
		notifier = notify.New(app.Lifecycle().AlertWebhookURL(), logger)
	}

	client := &Client{
		Indexer:  indexer,
		db:       db,
		services: services,
		index:    index,
		metrics:  m,
		closers:  closers,
		logger:   logger,
		app:      app,
	}

	client.Scores = service.NewScorer(scores, scoreCache, app.Scoring().UpdateInterval(), logger)
	client.Search = service.NewSearch(index, services, client.Scores, lex.Preparer(), translator, app.Matching(), &client.closed, m, logger)
	client.Lifecycle = service.NewLifecycle(services, logs, indexer, notifier, app.Lifecycle().AlertCooldown(), m, logger)

	normalizerOpts := []service.NormalizerOption{
		service.WithRasterizer(rasterizer),
		service.WithTextExtractor(media.NewDocumentExtractor("", logger)),
	}
	if ocr != nil {
		normalizerOpts = append(normalizerOpts, service.WithOCR(ocr))
	}
	if translator != nil {
		normalizerOpts = append(normalizerOpts, service.WithNormalizerTranslator(translator))
	}
	normalizer := service.NewNormalizer(app.Media(), logger, normalizerOpts...)

	classifier := service.NewIntentClassifier(generator, index, lex, app.Cache(),
		service.WithClassifierMetrics(m),
		service.WithClassifierLogger(logger),
	)

	orchestratorOpts := []service.OrchestratorOption{
		service.WithAdmission(app.AdmissionLimit(), app.AdmissionFailFast()),
		service.WithOrchestratorMetrics(m),
		service.WithOrchestratorLogger(logger),
	}
	if generator != nil {
		orchestratorOpts = append(orchestratorOpts, service.WithAssistant(generator, service.NewSemanticCache(index, app.Cache(), m, logger)))
	}
	if translator != nil {
		orchestratorOpts = append(orchestratorOpts, service.WithOrchestratorTranslator(translator))
	}
	client.Requests = service.NewOrchestrator(classifier, normalizer, client.Search, indexer, services, logs, hist, lex.ProductDetector(), app.Matching(), orchestratorOpts...)

	client.supervisor = service.NewSupervisor(client.Lifecycle, client.Scores, app.Lifecycle().SweepSchedule(), app.Scoring().UpdateInterval(), logger)
	if !cfg.skipSupervisor {
		if err := client.supervisor.Start(ctx); err != nil {
			indexer.Close()
			return nil, errors.Join(err, db.Close())
		}
		client.supervising = true
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "yukpo client ready", app.LogAttrs()...)
	return client, nil
}

// Service returns a catalog service by ID.
func (c *Client) Service(ctx context.Context, id int64) (catalog.Service, error) {
	if c.closed.Load() {
		return catalog.Service{}, ErrClientClosed
	}
	return c.services.Get(ctx, id)
}

// Sweep runs one lifecycle sweep now.
func (c *Client) Sweep(ctx context.Context) (service.SweepReport, error) {
	if c.closed.Load() {
		return service.SweepReport{}, ErrClientClosed
	}
	return c.Lifecycle.Sweep(ctx)
}

// MetricsHandler serves the client metrics in the Prometheus format.
func (c *Client) MetricsHandler() http.Handler {
	return c.metrics.Handler()
}

// Ping checks that the database answers.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	sqlDB, err := c.db.GORM().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Config returns the configuration the client was built with.
func (c *Client) Config() config.AppConfig {
	return c.app
}

// Close stops the supervisor, drains indexing jobs and releases all resources.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.supervising {
		c.supervisor.Stop()
	}
	c.Indexer.Close()

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("yukpo client closed")
	return nil
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// buildIndex picks the custom index, the embedding service or the
// in-process fallback.
func buildIndex(cfg *clientConfig, m *metrics.Metrics, logger *slog.Logger) (vector.Index, error) {
	if cfg.index != nil {
		return cfg.index, nil
	}
	endpoint := cfg.app.Embedding()
	if !endpoint.IsConfigured() {
		logger.Warn("no embedding service configured, using the in-process index")
		return embedding.NewMemoryIndex(), nil
	}
	gw, err := embedding.NewGateway(embedding.ConfigFromEndpoint(endpoint),
		embedding.WithLogger(logger),
		embedding.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding gateway: %w", err)
	}
	return gw, nil
}

// buildGenerator returns nil when no model is configured.
func buildGenerator(cfg *clientConfig) (provider.TextGenerator, error) {
	if cfg.textProvider != nil {
		return cfg.textProvider, nil
	}
	p, err := provider.NewOpenAIProviderFromEndpoint(cfg.app.LLM())
	if errors.Is(err, provider.ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// buildScoreCache uses Redis when a URL is configured.
func buildScoreCache(ctx context.Context, cfg config.ScoringConfig, logger *slog.Logger) (scoring.Cache, error) {
	if cfg.RedisURL() == "" {
		return cache.NewMemoryScoreCache(cfg.CacheTTL()), nil
	}
	rc, err := cache.NewRedisScoreCache(ctx, cfg.RedisURL(), cfg.CacheTTL(), logger)
	if err != nil {
		return nil, fmt.Errorf("redis score cache: %w", err)
	}
	return rc, nil
}
