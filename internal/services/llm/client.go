package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

const (
	defaultChatTimeout  = 60 * time.Second
	defaultEmbedTimeout = 30 * time.Second
)

// Client implements the ModelClient contract over Gemini and Claude. All
// calls share one circuit breaker and one rate limiter, so a failing
// provider trips fast for every caller.
type Client struct {
	llmConfig    *common.LLMConfig
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	embedConfig  *common.EmbeddingConfig

	// initMu guards lazy provider construction; worker pools hit the first
	// call concurrently.
	initMu       sync.Mutex
	geminiClient *genai.Client
	claudeClient anthropic.Client
	claudeReady  bool

	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	retry   *RetryConfig
	audit   *Auditor

	chatTimeout  time.Duration
	embedTimeout time.Duration

	logger arbor.ILogger
}

var _ interfaces.ModelClient = (*Client)(nil)

// NewClient creates a model client. Provider clients are created lazily on
// first use so a missing API key only fails the provider that needs it.
func NewClient(
	llmConfig *common.LLMConfig,
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	embedConfig *common.EmbeddingConfig,
	kvStorage interfaces.KeyValueStorage,
	logger arbor.ILogger,
) *Client {
	retry := NewDefaultRetryConfig()
	if llmConfig.MaxRetries > 0 {
		retry.MaxRetries = llmConfig.MaxRetries
	}
	retry.InitialBackoff = common.MustDuration(llmConfig.InitialBackoff, DefaultInitialBackoff)
	retry.MaxBackoff = common.MustDuration(llmConfig.MaxBackoff, DefaultMaxBackoff)

	threshold := llmConfig.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     common.MustDuration(llmConfig.BreakerCooldown, 30*time.Second),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("LLM circuit breaker state changed")
		},
	})

	rpm := llmConfig.RequestsPerMin
	if rpm <= 0 {
		rpm = 60
	}

	return &Client{
		llmConfig:    llmConfig,
		geminiConfig: geminiConfig,
		claudeConfig: claudeConfig,
		embedConfig:  embedConfig,
		breaker:      breaker,
		limiter:      rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		retry:        retry,
		audit:        NewAuditor(kvStorage, logger),
		chatTimeout:  common.MustDuration(llmConfig.ChatTimeout, defaultChatTimeout),
		embedTimeout: common.MustDuration(llmConfig.EmbedTimeout, defaultEmbedTimeout),
		logger:       logger,
	}
}

// DetectProvider determines the provider type from a model string. Empty
// strings fall back to the configured default provider.
func (c *Client) DetectProvider(model string) ProviderType {
	if model == "" {
		return ProviderType(c.llmConfig.DefaultProvider)
	}

	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return ProviderGemini
	}
	if strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini-") {
		return ProviderGemini
	}

	return ProviderType(c.llmConfig.DefaultProvider)
}

// NormalizeModel removes a provider prefix from a model name if present.
func (c *Client) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

func (c *Client) getGeminiClient(ctx context.Context) (*genai.Client, error) {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.geminiClient != nil {
		return c.geminiClient, nil
	}

	if c.geminiConfig.APIKey == "" {
		return nil, &Error{Kind: KindPermanent, Op: "init", Err: fmt.Errorf("Gemini API key not configured")}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c.geminiClient = client
	return client, nil
}

func (c *Client) getClaudeClient() (anthropic.Client, error) {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.claudeReady {
		return c.claudeClient, nil
	}

	if c.claudeConfig.APIKey == "" {
		return anthropic.Client{}, &Error{Kind: KindPermanent, Op: "init", Err: fmt.Errorf("Anthropic API key not configured")}
	}

	c.claudeClient = anthropic.NewClient(option.WithAPIKey(c.claudeConfig.APIKey))
	c.claudeReady = true
	return c.claudeClient, nil
}

// Complete runs a structured-output completion with retry, rate limiting
// and breaker protection. The returned payload conforms to req.Schema.
func (c *Client) Complete(ctx context.Context, req *interfaces.CompleteRequest) (json.RawMessage, error) {
	provider := c.DetectProvider(req.Model)
	model := c.NormalizeModel(req.Model)

	start := time.Now()
	raw, attempts, err := c.completeWithRetry(ctx, provider, model, req)

	c.audit.Record(ctx, CallRecord{
		Op:         "complete",
		Provider:   string(provider),
		Model:      model,
		SchemaName: req.SchemaName,
		Attempts:   attempts,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    err == nil,
		Error:      errString(err),
	})

	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) completeWithRetry(ctx context.Context, provider ProviderType, model string, req *interfaces.CompleteRequest) (json.RawMessage, int, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, attempt, classify("complete", err)
		}

		raw, err := c.completeOnce(ctx, provider, model, req)
		if err == nil {
			return raw, attempt + 1, nil
		}

		lastErr = classify("complete", err)
		if !Retryable(lastErr) {
			c.logger.Warn().
				Err(lastErr).
				Str("schema", req.SchemaName).
				Str("kind", KindOf(lastErr).String()).
				Msg("Completion failed, not retrying")
			return nil, attempt + 1, lastErr
		}

		if attempt == c.retry.MaxRetries {
			break
		}

		backoff := c.retry.Backoff(attempt, ExtractRetryDelay(err))
		c.logger.Warn().
			Err(err).
			Str("schema", req.SchemaName).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying completion")

		select {
		case <-ctx.Done():
			return nil, attempt + 1, classify("complete", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return nil, c.retry.MaxRetries + 1, fmt.Errorf("completion failed after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}

// completeOnce makes a single provider call inside the breaker and validates
// the response against the request schema.
func (c *Client) completeOnce(ctx context.Context, provider ProviderType, model string, req *interfaces.CompleteRequest) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		switch provider {
		case ProviderClaude:
			return c.completeClaude(callCtx, model, req)
		default:
			return c.completeGemini(callCtx, model, req)
		}
	})
	if err != nil {
		return nil, err
	}

	raw := result.(json.RawMessage)
	if err := ValidateAgainstSchema(req.SchemaName, req.Schema, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) completeGemini(ctx context.Context, model string, req *interfaces.CompleteRequest) (json.RawMessage, error) {
	client, err := c.getGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = c.geminiConfig.Model
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.geminiConfig.Temperature),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	} else if c.geminiConfig.MaxTokens > 0 {
		config.MaxOutputTokens = int32(c.geminiConfig.MaxTokens)
	}

	genaiSchema, err := convertToGenaiSchema(req.Schema)
	if err != nil {
		return nil, &Error{Kind: KindPermanent, Op: "complete", Err: fmt.Errorf("invalid schema %s: %w", req.SchemaName, err)}
	}
	if genaiSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = genaiSchema
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	return json.RawMessage(CleanJSONResponse(text)), nil
}

func (c *Client) completeClaude(ctx context.Context, model string, req *interfaces.CompleteRequest) (json.RawMessage, error) {
	client, err := c.getClaudeClient()
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = c.claudeConfig.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.claudeConfig.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, &Error{Kind: KindPermanent, Op: "complete", Err: fmt.Errorf("invalid schema %s: %w", req.SchemaName, err)}
	}

	system := req.System
	if system != "" {
		system += "\n\n"
	}
	system += fmt.Sprintf(
		"Respond with a single JSON object conforming to this JSON schema, with no surrounding text or markdown:\n%s",
		string(schemaJSON),
	)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		System: []anthropic.TextBlockParam{{Text: system}},
	}
	if c.claudeConfig.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(c.claudeConfig.Temperature))
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	return json.RawMessage(CleanJSONResponse(text.String())), nil
}

// Embed returns one unit-normalized vector per input text, preserving input
// order. Requests larger than the configured batch size are split.
func (c *Client) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if model == "" {
		model = c.embedConfig.Model
	}

	batchSize := c.embedConfig.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.embedBatch(ctx, texts[start:end], model)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classify("embed", err)
		}

		start := time.Now()
		vectors, err := c.embedOnce(ctx, texts, model)

		c.audit.Record(ctx, CallRecord{
			Op:         "embed",
			Provider:   string(ProviderGemini),
			Model:      model,
			BatchSize:  len(texts),
			Attempts:   attempt + 1,
			DurationMS: time.Since(start).Milliseconds(),
			Success:    err == nil,
			Error:      errString(err),
		})

		if err == nil {
			return vectors, nil
		}

		lastErr = classify("embed", err)
		if !Retryable(lastErr) {
			return nil, lastErr
		}

		if attempt == c.retry.MaxRetries {
			break
		}

		backoff := c.retry.Backoff(attempt, ExtractRetryDelay(err))
		c.logger.Warn().
			Err(err).
			Int("batch_size", len(texts)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying embedding batch")

		select {
		case <-ctx.Done():
			return nil, classify("embed", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}

func (c *Client) embedOnce(ctx context.Context, texts []string, model string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		client, err := c.getGeminiClient(callCtx)
		if err != nil {
			return nil, err
		}

		outputDim := int32(c.embedConfig.Dimension)
		embeddingConfig := &genai.EmbedContentConfig{
			OutputDimensionality: &outputDim,
		}

		contents := make([]*genai.Content, 0, len(texts))
		for _, text := range texts {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		resp, err := client.Models.EmbedContent(callCtx, model, contents, embeddingConfig)
		if err != nil {
			return nil, fmt.Errorf("embedding generation failed: %w", err)
		}
		if resp == nil || len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), embeddingCount(resp))
		}

		vectors := make([][]float32, len(texts))
		for i, emb := range resp.Embeddings {
			if len(emb.Values) != c.embedConfig.Dimension {
				return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", c.embedConfig.Dimension, len(emb.Values))
			}
			vectors[i] = unitNormalize(emb.Values)
		}

		return vectors, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([][]float32), nil
}

func embeddingCount(resp *genai.EmbedContentResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Embeddings)
}

// unitNormalize scales a vector to unit length so cosine similarity reduces
// to a dot product. Zero vectors are returned unchanged.
func unitNormalize(values []float32) []float32 {
	var sum float64
	for _, v := range values {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return values
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Close releases provider clients.
func (c *Client) Close() error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	c.geminiClient = nil
	c.claudeClient = anthropic.Client{}
	c.claudeReady = false
	return nil
}
