package llm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/seligo/internal/common"
)

func testClient(geminiKey, claudeKey string) *Client {
	llmConfig := &common.LLMConfig{
		DefaultProvider: "gemini",
		MaxRetries:      2,
		InitialBackoff:  "1ms",
		MaxBackoff:      "10ms",
	}
	return NewClient(
		llmConfig,
		&common.GeminiConfig{APIKey: geminiKey, Model: "gemini-2.5-flash"},
		&common.ClaudeConfig{APIKey: claudeKey, Model: "claude-sonnet-4-20250514"},
		&common.EmbeddingConfig{Model: "gemini-embedding-001", Dimension: 8},
		nil,
		common.GetLogger(),
	)
}

func TestDetectProvider(t *testing.T) {
	client := testClient("", "")

	cases := map[string]ProviderType{
		"":                         ProviderGemini, // default provider
		"claude/sonnet":            ProviderClaude,
		"anthropic/claude-3-haiku": ProviderClaude,
		"claude-sonnet-4-20250514": ProviderClaude,
		"gemini/flash":             ProviderGemini,
		"google/gemini-2.5-pro":    ProviderGemini,
		"gemini-2.5-flash":         ProviderGemini,
		"unknown-model":            ProviderGemini, // default provider
	}
	for model, want := range cases {
		assert.Equal(t, want, client.DetectProvider(model), "model %q", model)
	}
}

func TestNormalizeModel(t *testing.T) {
	client := testClient("", "")

	assert.Equal(t, "sonnet", client.NormalizeModel("claude/sonnet"))
	assert.Equal(t, "gemini-2.5-flash", client.NormalizeModel("gemini/gemini-2.5-flash"))
	assert.Equal(t, "claude-sonnet-4-20250514", client.NormalizeModel("claude-sonnet-4-20250514"))
}

func TestGetClaudeClientConcurrent(t *testing.T) {
	client := testClient("", "test-key")

	// Worker pools hit the lazy init from several goroutines on first use;
	// every caller must get the same ready client without racing.
	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.getClaudeClient()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.True(t, client.claudeReady)
}

func TestGetClaudeClientMissingKey(t *testing.T) {
	client := testClient("", "")

	_, err := client.getClaudeClient()
	require.Error(t, err)
	assert.Equal(t, KindPermanent, KindOf(err))
	assert.False(t, Retryable(err))
}

func TestGetGeminiClientMissingKey(t *testing.T) {
	client := testClient("", "")

	_, err := client.getGeminiClient(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindPermanent, KindOf(err))
}

func TestCloseResetsProviders(t *testing.T) {
	client := testClient("", "test-key")

	_, err := client.getClaudeClient()
	require.NoError(t, err)
	require.True(t, client.claudeReady)

	require.NoError(t, client.Close())
	assert.False(t, client.claudeReady)
	assert.Nil(t, client.geminiClient)
}
