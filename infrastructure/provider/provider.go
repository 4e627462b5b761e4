// Package provider talks to the LLM used for intent classification,
// translation, image description and assistance replies.
package provider

import (
	"context"
	"errors"
	"net/http"
)

// ErrNotConfigured indicates no LLM endpoint is configured.
var ErrNotConfigured = errors.New("llm endpoint not configured")

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message. Images are URLs or data URLs sent alongside
// the text.
type Message struct {
	role    string
	content string
	images  []string
}

// NewMessage creates a new Message.
func NewMessage(role, content string) Message {
	return Message{role: role, content: content}
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message { return NewMessage(RoleSystem, content) }

// UserMessage creates a user message.
func UserMessage(content string) Message { return NewMessage(RoleUser, content) }

// UserImageMessage creates a user message carrying images.
func UserImageMessage(content string, images ...string) Message {
	m := NewMessage(RoleUser, content)
	m.images = append([]string(nil), images...)
	return m
}

// Role returns the message role.
func (m Message) Role() string { return m.role }

// Content returns the message text.
func (m Message) Content() string { return m.content }

// Images returns the attached images.
func (m Message) Images() []string { return append([]string(nil), m.images...) }

// ChatCompletionRequest is a text generation request.
type ChatCompletionRequest struct {
	messages    []Message
	maxTokens   int
	temperature float64
}

// NewChatCompletionRequest creates a request. Zero max tokens and
// temperature use the provider defaults.
func NewChatCompletionRequest(messages ...Message) ChatCompletionRequest {
	return ChatCompletionRequest{messages: append([]Message(nil), messages...)}
}

// WithMaxTokens returns a copy with max tokens set.
func (r ChatCompletionRequest) WithMaxTokens(n int) ChatCompletionRequest {
	r.maxTokens = n
	return r
}

// WithTemperature returns a copy with the temperature set.
func (r ChatCompletionRequest) WithTemperature(t float64) ChatCompletionRequest {
	r.temperature = t
	return r
}

// Messages returns a copy of the messages.
func (r ChatCompletionRequest) Messages() []Message {
	return append([]Message(nil), r.messages...)
}

// MaxTokens returns the max tokens setting.
func (r ChatCompletionRequest) MaxTokens() int { return r.maxTokens }

// Temperature returns the temperature setting.
func (r ChatCompletionRequest) Temperature() float64 { return r.temperature }

// Multimodal reports whether any message carries images.
func (r ChatCompletionRequest) Multimodal() bool {
	for _, m := range r.messages {
		if len(m.images) > 0 {
			return true
		}
	}
	return false
}

// ChatCompletionResponse is a text generation response.
type ChatCompletionResponse struct {
	content      string
	finishReason string
	model        string
	usage        Usage
}

// NewChatCompletionResponse creates a new ChatCompletionResponse.
func NewChatCompletionResponse(content, finishReason, model string, usage Usage) ChatCompletionResponse {
	return ChatCompletionResponse{
		content:      content,
		finishReason: finishReason,
		model:        model,
		usage:        usage,
	}
}

// Content returns the generated text.
func (r ChatCompletionResponse) Content() string { return r.content }

// FinishReason returns why generation stopped.
func (r ChatCompletionResponse) FinishReason() string { return r.finishReason }

// Model returns the model that answered.
func (r ChatCompletionResponse) Model() string { return r.model }

// Usage returns token usage.
func (r ChatCompletionResponse) Usage() Usage { return r.usage }

// Usage is token usage information.
type Usage struct {
	promptTokens     int
	completionTokens int
	totalTokens      int
}

// NewUsage creates a new Usage.
func NewUsage(prompt, completion, total int) Usage {
	return Usage{
		promptTokens:     prompt,
		completionTokens: completion,
		totalTokens:      total,
	}
}

// PromptTokens returns the number of prompt tokens.
func (u Usage) PromptTokens() int { return u.promptTokens }

// CompletionTokens returns the number of completion tokens.
func (u Usage) CompletionTokens() int { return u.completionTokens }

// TotalTokens returns the total number of tokens.
func (u Usage) TotalTokens() int { return u.totalTokens }

// TextGenerator generates chat completions.
type TextGenerator interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error)
}

// ProviderError is a failed LLM call.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a new ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := e.operation + ": " + e.message
	if e.cause != nil && e.cause.Error() != e.message {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// Operation returns the operation that failed.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the HTTP status, 0 for transport failures.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// Message returns the error message.
func (e *ProviderError) Message() string { return e.message }

// IsRateLimited reports a 429 response.
func (e *ProviderError) IsRateLimited() bool { return e.statusCode == http.StatusTooManyRequests }

// IsTimeout reports a call that ran out of time.
func (e *ProviderError) IsTimeout() bool { return errors.Is(e.cause, context.DeadlineExceeded) }
