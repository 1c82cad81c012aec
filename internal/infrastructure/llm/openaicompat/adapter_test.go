package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, content string, status int, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAdapter_Complete(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := newServer(t, "Action: python_code_executor\nAction Input: print(1)\nObservation: 1", http.StatusOK, &seen)

	a := NewAdapter(Config{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: srv.URL, Logger: logger.NewNop()})
	out, err := a.Complete(context.Background(), output.CompletionRequest{
		Prompt:      "Question: q\nThought:",
		Stop:        []string{"\nObservation:"},
		Temperature: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, "Action: python_code_executor\nAction Input: print(1)", out)
	assert.Equal(t, "gpt-4o-mini", seen.Model)
	assert.Equal(t, []string{"\nObservation:"}, seen.Stop)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, seen.Messages[0].Role)
	assert.Equal(t, "Question: q\nThought:", seen.Messages[0].Content)
}

func TestAdapter_ServiceError(t *testing.T) {
	srv := newServer(t, "", http.StatusUnauthorized, nil)

	a := NewAdapter(Config{APIKey: "test-key", Model: "m", BaseURL: srv.URL})
	_, err := a.Complete(context.Background(), output.CompletionRequest{Prompt: "p"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrCompletionService))
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig(ProviderGroq, "k", "llama")
	require.NoError(t, err)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.BaseURL)

	_, err = DefaultConfig("bedrock", "k", "m")
	assert.True(t, errors.Is(err, entity.ErrConfiguration))
}
