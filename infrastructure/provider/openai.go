package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/yukpo/yukpo/internal/config"
)

const defaultChatModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	MultimodalTimeout time.Duration
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffFactor     float64
	HTTPClient        *http.Client
}

// ConfigFromEndpoint converts an endpoint configuration.
func ConfigFromEndpoint(e config.Endpoint) OpenAIConfig {
	return OpenAIConfig{
		APIKey:            e.APIKey(),
		BaseURL:           e.BaseURL(),
		Model:             e.Model(),
		Timeout:           e.Timeout(),
		MultimodalTimeout: e.MultimodalTimeout(),
		MaxRetries:        e.MaxRetries(),
		InitialDelay:      e.InitialDelay(),
		BackoffFactor:     e.BackoffFactor(),
	}
}

// OpenAIProvider implements TextGenerator against any OpenAI-compatible API.
type OpenAIProvider struct {
	client            *openai.Client
	model             string
	timeout           time.Duration
	multimodalTimeout time.Duration
	maxRetries        int
	initialDelay      time.Duration
	backoffFactor     float64
}

// NewOpenAIProvider creates a provider from configuration.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	p := &OpenAIProvider{
		client:            openai.NewClientWithConfig(clientCfg),
		model:             cfg.Model,
		timeout:           cfg.Timeout,
		multimodalTimeout: cfg.MultimodalTimeout,
		maxRetries:        cfg.MaxRetries,
		initialDelay:      cfg.InitialDelay,
		backoffFactor:     cfg.BackoffFactor,
	}
	if p.model == "" {
		p.model = defaultChatModel
	}
	if p.timeout <= 0 {
		p.timeout = config.DefaultLLMTimeout
	}
	if p.multimodalTimeout <= 0 {
		p.multimodalTimeout = config.DefaultLLMMultimodalTimeout
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	if p.initialDelay <= 0 {
		p.initialDelay = config.DefaultEmbeddingInitialDelay
	}
	if p.backoffFactor < 1 {
		p.backoffFactor = config.DefaultBackoffFactor
	}
	return p
}

// NewOpenAIProviderFromEndpoint creates a provider for a configured endpoint.
func NewOpenAIProviderFromEndpoint(e config.Endpoint) (*OpenAIProvider, error) {
	if !e.IsConfigured() {
		return nil, ErrNotConfigured
	}
	return NewOpenAIProvider(ConfigFromEndpoint(e)), nil
}

// Model returns the chat model name.
func (p *OpenAIProvider) Model() string { return p.model }

// ChatCompletion generates a completion. Requests with images get the
// multimodal timeout; each attempt is bounded separately.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	openaiReq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(req.Messages()),
	}
	if req.MaxTokens() > 0 {
		openaiReq.MaxTokens = req.MaxTokens()
	}
	if req.Temperature() > 0 {
		openaiReq.Temperature = float32(req.Temperature())
	}

	timeout := p.timeout
	if req.Multimodal() {
		timeout = p.multimodalTimeout
	}

	var resp openai.ChatCompletionResponse
	err := p.withRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		var err error
		resp, err = p.client.CreateChatCompletion(callCtx, openaiReq)
		return err
	})
	if err != nil {
		return ChatCompletionResponse{}, wrapError("chat_completion", err)
	}
	if len(resp.Choices) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no choices in response", nil)
	}

	return NewChatCompletionResponse(
		resp.Choices[0].Message.Content,
		string(resp.Choices[0].FinishReason),
		resp.Model,
		NewUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
	), nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		images := m.Images()
		if len(images) == 0 {
			out[i] = openai.ChatCompletionMessage{Role: m.Role(), Content: m.Content()}
			continue
		}
		parts := make([]openai.ChatMessagePart, 0, len(images)+1)
		if m.Content() != "" {
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: m.Content()})
		}
		for _, img := range images {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: img, Detail: openai.ImageURLDetailAuto},
			})
		}
		out[i] = openai.ChatCompletionMessage{Role: m.Role(), MultiContent: parts}
	}
	return out
}

// withRetry runs fn with exponential backoff until it succeeds, fails with a
// non-retryable error, or maxRetries retries are spent.
func (p *OpenAIProvider) withRetry(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialDelay
	b.Multiplier = p.backoffFactor
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.maxRetries)), ctx)
	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	return false
}

func wrapError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	return NewProviderError(operation, 0, err.Error(), err)
}

var _ TextGenerator = (*OpenAIProvider)(nil)
