package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeSendsInstructionAndText(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Гострий біль у попереку"},
			}},
		})
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	c := NewOpenAIClientWithConfig(cfg, "test-model")

	out, err := c.Summarize(context.Background(), "instruction", "report")
	require.NoError(t, err)
	assert.Equal(t, "Гострий біль у попереку", out)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "report", got.Messages[1].Content)
}

func TestSummarizeNilClient(t *testing.T) {
	var c *OpenAIClient
	_, err := c.Summarize(context.Background(), "i", "t")
	assert.Error(t, err)
}

func TestEmptyModelUsesDefaultNotEnv(t *testing.T) {
	t.Setenv("OPENAI_MODEL_SUMMARY", "from-env")
	c := NewOpenAIClientWithConfig(openai.DefaultConfig("k"), "")
	assert.Equal(t, DefaultModel, c.summaryModel)
}
