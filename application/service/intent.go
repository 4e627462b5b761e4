package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yukpo/yukpo/domain/intent"
	"github.com/yukpo/yukpo/domain/vector"
	"github.com/yukpo/yukpo/infrastructure/metrics"
	"github.com/yukpo/yukpo/infrastructure/provider"
	"github.com/yukpo/yukpo/internal/config"
	"github.com/yukpo/yukpo/internal/lexicon"
	"github.com/yukpo/yukpo/internal/log"
)

// Intent classification sources.
const (
	SourceExplicit = "explicit"
	SourceFront    = "front_cache"
	SourceIndex    = "intent_cache"
	SourceModel    = "model"
	SourceFallback = "fallback"
)

const classifyPrompt = `You classify marketplace requests. Reply with exactly one label from this list and nothing else:
%s`

// Classification is the outcome of intent detection.
type Classification struct {
	Intent     intent.Intent
	Source     string
	TokensUsed int
	Model      string
}

// IntentClassifier maps a request to an intent through an explicit hint, two
// cache layers and finally the generative model.
type IntentClassifier struct {
	generator     provider.TextGenerator
	index         vector.Index
	parser        intent.Parser
	rules         string
	front         *expirable.LRU[string, intent.Intent]
	threshold     float64
	lookupTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// ClassifierOption configures an IntentClassifier.
type ClassifierOption func(*IntentClassifier)

// WithClassifierMetrics records cache outcomes.
func WithClassifierMetrics(m *metrics.Metrics) ClassifierOption {
	return func(c *IntentClassifier) { c.metrics = m }
}

// WithClassifierLogger sets the logger.
func WithClassifierLogger(l *slog.Logger) ClassifierOption {
	return func(c *IntentClassifier) { c.logger = log.OrDefault(l) }
}

// NewIntentClassifier creates a classifier. A nil generator falls back to
// assistance_generale on every cache miss.
func NewIntentClassifier(
	generator provider.TextGenerator,
	index vector.Index,
	lex lexicon.Lexicon,
	cfg config.CacheConfig,
	opts ...ClassifierOption,
) *IntentClassifier {
	c := &IntentClassifier{
		generator:     generator,
		index:         index,
		parser:        lex.Parser(),
		rules:         lex.Rules(),
		front:         expirable.NewLRU[string, intent.Intent](cfg.FrontSize(), nil, cfg.FrontTTL()),
		threshold:     cfg.IntentThreshold(),
		lookupTimeout: cfg.LookupTimeout(),
		logger:        log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the intent of text. An explicit hint that parses to a
// known intent skips detection entirely.
func (c *IntentClassifier) Classify(ctx context.Context, text, explicit string) (Classification, error) {
	if explicit != "" {
		if i, ok := c.parser.Lookup(explicit); ok {
			return Classification{Intent: i, Source: SourceExplicit}, nil
		}
		c.logger.WarnContext(ctx, "ignoring unknown explicit intention", slog.String("intention", explicit))
	}

	key := cacheKey(text)
	if key == "" {
		return Classification{Intent: intent.AssistanceGenerale, Source: SourceFallback}, nil
	}

	if i, ok := c.front.Get(key); ok {
		c.metrics.ObserveCache("intent_front", true)
		return Classification{Intent: i, Source: SourceFront}, nil
	}
	c.metrics.ObserveCache("intent_front", false)

	if i, ok := c.lookup(ctx, key); ok {
		c.front.Add(key, i)
		return Classification{Intent: i, Source: SourceIndex}, nil
	}

	if c.generator == nil {
		return Classification{Intent: intent.AssistanceGenerale, Source: SourceFallback}, nil
	}

	req := provider.NewChatCompletionRequest(
		provider.SystemMessage(fmt.Sprintf(classifyPrompt, c.rules)),
		provider.UserMessage(text),
	).WithTemperature(0).WithMaxTokens(16)

	resp, err := c.generator.ChatCompletion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Classification{}, ctx.Err()
		}
		c.logger.WarnContext(ctx, "intent detection failed, using fallback", slog.String("error", err.Error()))
		return Classification{Intent: intent.AssistanceGenerale, Source: SourceFallback}, nil
	}

	detected, known := c.parser.Lookup(resp.Content())
	result := Classification{
		Intent:     detected,
		Source:     SourceModel,
		TokensUsed: resp.Usage().TotalTokens(),
		Model:      resp.Model(),
	}
	if !known {
		result.Intent = intent.AssistanceGenerale
		c.logger.WarnContext(ctx, "unrecognized intent reply", slog.String("reply", resp.Content()))
		return result, nil
	}

	c.front.Add(key, detected)
	c.store(ctx, key, detected)
	return result, nil
}

// lookup probes the intention records of the ia partition.
func (c *IntentClassifier) lookup(ctx context.Context, key string) (intent.Intent, bool) {
	if c.index == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	matches, err := c.index.Query(ctx, vector.Query{
		Text:       key,
		TypeDonnee: vector.TypeIntention,
		TopK:       1,
		ActiveOnly: true,
		TypeMetier: vector.MetierIA,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "intent cache lookup failed", slog.String("error", err.Error()))
		c.metrics.ObserveCache("intent", false)
		return "", false
	}
	for _, m := range matches {
		i := intent.Intent(m.Record.Intent)
		if m.Score >= c.threshold && i.Valid() {
			c.metrics.ObserveCache("intent", true)
			return i, true
		}
	}
	c.metrics.ObserveCache("intent", false)
	return "", false
}

func (c *IntentClassifier) store(ctx context.Context, key string, i intent.Intent) {
	if c.index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	err := c.index.Upsert(ctx, vector.Record{
		ID:         vector.CacheID(key, vector.TypeIntention),
		Value:      key,
		TypeDonnee: vector.TypeIntention,
		Active:     true,
		TypeMetier: vector.MetierIA,
		Intent:     i.String(),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "intent cache write failed", slog.String("error", err.Error()))
	}
}

// cacheKey lowercases text and collapses whitespace.
func cacheKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
