package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func fakeOpenAI(t *testing.T, reply string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   DefaultModel,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIGenerator_MissingKey(t *testing.T) {
	_, err := NewOpenAIGenerator("")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var got chatRequest
	srv := fakeOpenAI(t, "nice to meet you", &got)

	gen, err := NewOpenAIGenerator("test-key",
		WithRequestOptions(option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0)))
	require.NoError(t, err)

	msg, err := gen.Generate(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, "nice to meet you", msg)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "one", got.Messages[1].Content)
	assert.Equal(t, "two", got.Messages[2].Content)
}

func TestOpenAIGenerator_Options(t *testing.T) {
	var got chatRequest
	srv := fakeOpenAI(t, "ok", &got)

	gen, err := NewOpenAIGenerator("test-key",
		WithModel("gpt-4o-mini"),
		WithSystemPrompt("be brief"),
		WithRequestOptions(option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0)))
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "be brief", got.Messages[0].Content)
}
