package claude

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_Complete(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": " The mean is 4.\nFinal Answer: 4\nObservation: extra"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{APIKey: "test-key", Model: "claude-test", BaseURL: srv.URL, Logger: logger.NewNop()})
	out, err := a.Complete(context.Background(), output.CompletionRequest{
		Prompt: "Question: mean?\nThought:",
		Stop:   []string{"\nObservation:"},
	})
	require.NoError(t, err)

	assert.Equal(t, " The mean is 4.\nFinal Answer: 4", out)
	assert.Equal(t, "claude-test", seen["model"])
	assert.Equal(t, []any{"\nObservation:"}, seen["stop_sequences"])
	assert.EqualValues(t, DefaultMaxTokens, seen["max_tokens"])
}

func TestAdapter_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{APIKey: "bad", BaseURL: srv.URL})
	_, err := a.Complete(context.Background(), output.CompletionRequest{Prompt: "p"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrCompletionService))
}
