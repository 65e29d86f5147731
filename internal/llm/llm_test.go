package llm

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/valet/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

func TestRegistryResolveOrder(t *testing.T) {
	reg := NewRegistry(silentLog())
	primary := &MockClient{ProviderName: "primary"}
	backup := &MockClient{ProviderName: "backup"}
	reg.Register("primary", primary)
	reg.Register("backup", backup)
	reg.Alias("some/model", "backup")
	reg.SetFallback("primary")

	got, err := reg.Resolve("primary")
	require.NoError(t, err)
	assert.Equal(t, "primary", got.Name())

	got, err = reg.Resolve("some/model")
	require.NoError(t, err)
	assert.Equal(t, "backup", got.Name())

	got, err = reg.Resolve("unknown/model")
	require.NoError(t, err)
	assert.Equal(t, "primary", got.Name())
}

func TestRegistryResolveNoMatch(t *testing.T) {
	reg := NewRegistry(silentLog())
	_, err := reg.Resolve("anything")
	assert.Error(t, err)
}

func TestFailoverRetryableErrorWalksFallbacks(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("model-a", &MockClient{
		ProviderName: "a",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, &ProviderError{Provider: "a", Message: "overloaded", Code: 529}
		},
	})
	reg.Register("model-b", &MockClient{
		ProviderName: "b",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{Content: "from b"}, nil
		},
	})

	f := NewFailoverClient(reg, "model-a", []string{"model-b"}, silentLog())
	resp, err := f.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from b", resp.Content)
}

func TestFailoverNonRetryableStops(t *testing.T) {
	calls := 0
	reg := NewRegistry(silentLog())
	reg.Register("model-a", &MockClient{
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, errors.New("bad request payload")
		},
	})
	reg.Register("model-b", &MockClient{
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			calls++
			return &CompletionResponse{Content: "never"}, nil
		},
	})

	f := NewFailoverClient(reg, "model-a", []string{"model-b"}, silentLog())
	_, err := f.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&ProviderError{Code: 429}))
	assert.True(t, isRetryable(&ProviderError{Code: 503}))
	assert.True(t, isRetryable(errors.New("provider rate limit hit")))
	assert.False(t, isRetryable(&ProviderError{Code: 400}))
	assert.False(t, isRetryable(nil))
}

func TestScriptedClientReplaysAndRepeats(t *testing.T) {
	s := &ScriptedClient{Responses: []*CompletionResponse{
		{Content: "one"},
		{Content: "two"},
	}}
	for _, want := range []string{"one", "two", "two"} {
		resp, err := s.Complete(context.Background(), CompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content)
	}
	assert.Equal(t, 3, s.Calls())
}
