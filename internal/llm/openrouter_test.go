package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRouterComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "test/model",
			"choices": [{"finish_reason": "stop", "message": {"content": "hello back"}}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 3}
		}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "test-key")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		Model:  "test/model",
		System: "be brief",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
		},
		Tools: []ToolDefinition{{Name: "echo", Description: "d", InputSchema: `{"type":"object"}`}},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello back", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 7, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)

	// System prompt travels as the first message, tools in wire format.
	msgs := gotBody["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.NotNil(t, gotBody["tools"])
}

func TestOpenRouterCompleteToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"choices": [{"finish_reason": "tool_calls", "message": {
				"content": "",
				"tool_calls": [{"id": "c1", "function": {"name": "echo", "arguments": "{\"x\":1}"}}]
			}}]
		}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "k")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "call the tool"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "echo", resp.ToolCalls[0].Name)
	assert.Equal(t, `{"x":1}`, resp.ToolCalls[0].Arguments)
}

func TestOpenRouterNon200IsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "slow down"}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "k")
	_, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusTooManyRequests, perr.Code)
	assert.True(t, isRetryable(err))
}

func TestOpenRouterEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "k")
	_, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
}
