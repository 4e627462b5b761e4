package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yukpo/yukpo/domain/intent"
	"github.com/yukpo/yukpo/domain/vector"
	"github.com/yukpo/yukpo/infrastructure/metrics"
	"github.com/yukpo/yukpo/internal/config"
	"github.com/yukpo/yukpo/internal/log"
)

const semanticCacheTopK = 3

// SemanticCache reuses model answers for semantically equivalent prompts.
// Entries live in the ia partition of the vector index; an in-process front
// layer answers exact repeats.
type SemanticCache struct {
	index         vector.Index
	front         *expirable.LRU[string, string]
	threshold     float64
	strict        float64
	lookupTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewSemanticCache creates a SemanticCache.
func NewSemanticCache(index vector.Index, cfg config.CacheConfig, m *metrics.Metrics, logger *slog.Logger) *SemanticCache {
	return &SemanticCache{
		index:         index,
		front:         expirable.NewLRU[string, string](cfg.FrontSize(), nil, cfg.FrontTTL()),
		threshold:     cfg.SemanticThreshold(),
		strict:        cfg.StrictThreshold(),
		lookupTimeout: cfg.LookupTimeout(),
		metrics:       m,
		logger:        log.OrDefault(logger),
	}
}

// Lookup returns a cached answer for query. Entries produced from a
// different modality than the query need the strict threshold. A lookup
// that errors or exceeds its timeout is a miss.
func (c *SemanticCache) Lookup(ctx context.Context, query string, i intent.Intent, lang string, imageOrigin bool) (string, bool) {
	key := vector.CacheID(cacheKey(query), i.String(), lang)
	if answer, ok := c.front.Get(key); ok {
		c.metrics.ObserveCache("semantic_front", true)
		return answer, true
	}
	c.metrics.ObserveCache("semantic_front", false)

	lookupCtx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	matches, err := c.index.Query(lookupCtx, vector.Query{
		Text:       query,
		TypeDonnee: vector.TypeReponse,
		TopK:       semanticCacheTopK,
		ActiveOnly: true,
		TypeMetier: vector.MetierIA,
		Intent:     i.String(),
		Langue:     lang,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "semantic cache lookup failed", slog.String("error", err.Error()))
		c.metrics.ObserveCache("semantic", false)
		return "", false
	}

	for _, m := range matches {
		threshold := c.threshold
		if m.Record.ImageOrigin != imageOrigin {
			threshold = c.strict
		}
		if m.Score >= threshold && m.Record.IAResponse != "" {
			c.metrics.ObserveCache("semantic", true)
			c.front.Add(key, m.Record.IAResponse)
			return m.Record.IAResponse, true
		}
	}
	c.metrics.ObserveCache("semantic", false)
	return "", false
}

// Store writes an answer through both layers. The id is deterministic in
// (query, intent, language) so repeats overwrite.
func (c *SemanticCache) Store(ctx context.Context, query string, i intent.Intent, lang, answer string, imageOrigin bool) error {
	key := vector.CacheID(cacheKey(query), i.String(), lang)
	c.front.Add(key, answer)

	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	return c.index.Upsert(ctx, vector.Record{
		ID:          key,
		Value:       query,
		TypeDonnee:  vector.TypeReponse,
		Active:      true,
		TypeMetier:  vector.MetierIA,
		Langue:      lang,
		Intent:      i.String(),
		IAResponse:  answer,
		ImageOrigin: imageOrigin,
	})
}
