// Package translate detects the language of a text and translates it with
// an LLM, memoizing results.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yukpo/yukpo/infrastructure/provider"
	"github.com/yukpo/yukpo/internal/log"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 24 * time.Hour
	maxTokens        = 2048
)

const systemPrompt = `Detect the language of the user text and translate it to %s.
Reply with JSON only: {"source": "<ISO 639-1 code>", "text": "<translation>"}.
If the text is already in %s, copy it unchanged.`

type result struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// LLMTranslator translates through a chat completion model.
type LLMTranslator struct {
	generator provider.TextGenerator
	cache     *expirable.LRU[string, result]
	logger    *slog.Logger
}

// NewLLMTranslator creates a translator. Non-positive size or ttl use defaults.
func NewLLMTranslator(generator provider.TextGenerator, size int, ttl time.Duration, logger *slog.Logger) *LLMTranslator {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &LLMTranslator{
		generator: generator,
		cache:     expirable.NewLRU[string, result](size, nil, ttl),
		logger:    log.OrDefault(logger),
	}
}

// Translate returns text in the target language and the detected source
// language. Blank text is returned unchanged.
func (t *LLMTranslator) Translate(ctx context.Context, text, target string) (string, string, error) {
	if strings.TrimSpace(text) == "" {
		return text, "", nil
	}
	key := target + "\x00" + text
	if r, ok := t.cache.Get(key); ok {
		return r.Text, r.Source, nil
	}

	req := provider.NewChatCompletionRequest(
		provider.SystemMessage(fmt.Sprintf(systemPrompt, target, target)),
		provider.UserMessage(text),
	).WithTemperature(0).WithMaxTokens(maxTokens)

	resp, err := t.generator.ChatCompletion(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("translate: %w", err)
	}

	r := parse(resp.Content())
	if r.Text == "" {
		r.Text = text
	}
	t.cache.Add(key, r)
	t.logger.DebugContext(ctx, "translated text",
		slog.String("source", r.Source),
		slog.String("target", target),
		slog.Int("chars", len(text)),
	)
	return r.Text, r.Source, nil
}

// parse reads the JSON reply, tolerating code fences. A reply that is not
// JSON is taken as the translation itself.
func parse(reply string) result {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var r result
	if err := json.Unmarshal([]byte(s), &r); err == nil {
		r.Source = strings.ToLower(strings.TrimSpace(r.Source))
		r.Text = strings.TrimSpace(r.Text)
		return r
	}
	return result{Text: s}
}
