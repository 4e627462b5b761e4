package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatBody struct {
	Model    string `json:"model"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func chatServer(t *testing.T, calls *atomic.Int64, statuses []int, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)

		if int(n) <= len(statuses) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failed","type":"server_error"}}`))
			return
		}

		var body chatBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  body.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
}

func testProvider(url string, retries int) *OpenAIProvider {
	return NewOpenAIProvider(OpenAIConfig{
		APIKey:       "test",
		BaseURL:      url,
		Model:        "test-model",
		Timeout:      2 * time.Second,
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
	})
}

func TestChatCompletion_ReturnsContentAndUsage(t *testing.T) {
	var calls atomic.Int64
	srv := chatServer(t, &calls, nil, "recherche_besoin")
	defer srv.Close()

	p := testProvider(srv.URL, 2)
	resp, err := p.ChatCompletion(context.Background(), NewChatCompletionRequest(
		SystemMessage("classify"),
		UserMessage("je cherche un plombier"),
	).WithMaxTokens(8))

	require.NoError(t, err)
	assert.Equal(t, "recherche_besoin", resp.Content())
	assert.Equal(t, "stop", resp.FinishReason())
	assert.Equal(t, "test-model", resp.Model())
	assert.Equal(t, 15, resp.Usage().TotalTokens())
	assert.Equal(t, int64(1), calls.Load())
}

func TestChatCompletion_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := chatServer(t, &calls, []int{http.StatusBadGateway, http.StatusServiceUnavailable}, "ok")
	defer srv.Close()

	resp, err := testProvider(srv.URL, 2).ChatCompletion(context.Background(), NewChatCompletionRequest(UserMessage("hi")))

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content())
	assert.Equal(t, int64(3), calls.Load())
}

func TestChatCompletion_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := chatServer(t, &calls, []int{http.StatusBadRequest}, "never")
	defer srv.Close()

	_, err := testProvider(srv.URL, 3).ChatCompletion(context.Background(), NewChatCompletionRequest(UserMessage("hi")))

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode())
	assert.Equal(t, "chat_completion", perr.Operation())
	assert.Equal(t, int64(1), calls.Load())
}

func TestChatCompletion_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int64
	srv := chatServer(t, &calls, []int{500, 500, 500, 500}, "never")
	defer srv.Close()

	_, err := testProvider(srv.URL, 1).ChatCompletion(context.Background(), NewChatCompletionRequest(UserMessage("hi")))

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusInternalServerError, perr.StatusCode())
	assert.Equal(t, int64(2), calls.Load())
}

func TestToOpenAIMessages_ImagesBecomeParts(t *testing.T) {
	msgs := toOpenAIMessages([]Message{
		SystemMessage("describe"),
		UserImageMessage("what is this?", "data:image/png;base64,AAAA"),
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, "describe", msgs[0].Content)
	assert.Empty(t, msgs[1].Content)
	require.Len(t, msgs[1].MultiContent, 2)
	assert.Equal(t, "what is this?", msgs[1].MultiContent[0].Text)
	assert.Equal(t, "data:image/png;base64,AAAA", msgs[1].MultiContent[1].ImageURL.URL)
}

func TestChatCompletionRequest_Multimodal(t *testing.T) {
	assert.False(t, NewChatCompletionRequest(UserMessage("x")).Multimodal())
	assert.True(t, NewChatCompletionRequest(UserImageMessage("x", "http://img")).Multimodal())
}

func TestProviderError(t *testing.T) {
	err := NewProviderError("chat_completion", 429, "slow down", nil)
	assert.True(t, err.IsRateLimited())
	assert.False(t, err.IsTimeout())
	assert.Equal(t, "chat_completion: slow down", err.Error())

	timeout := NewProviderError("chat_completion", 0, "deadline", context.DeadlineExceeded)
	assert.True(t, timeout.IsTimeout())
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
}
