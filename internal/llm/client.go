package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/style-tagger/internal/types"
)

// Client is an abstraction over classifier-model providers.
type Client interface {
	// GenerateJSON sends a prompt to the tier's model and returns the
	// cleaned JSON response text plus the call's token usage. Retries
	// with backoff happen inside; a returned error means the call is
	// exhausted for this tier.
	GenerateJSON(ctx context.Context, prompt string, tier Tier) (string, types.TokenUsage, error)
	// GetModel returns the model name serving a tier.
	GetModel(tier Tier) string
	// Close releases any resources held by the client
	Close() error
}

// ErrExhausted wraps the last attempt's error once every retry failed.
var ErrExhausted = errors.New("llm retries exhausted")

// NewClient creates a client for the configured provider.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return NewGeminiClient(ctx, config, apiKey)
	}
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
	config *Config
	sleep  func(time.Duration)
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, config: config, sleep: time.Sleep}, nil
}

// GenerateJSON generates a JSON response with retry and rate-limit
// handling. Non-retryable errors surface immediately; transient and
// rate-limit errors back off exponentially, with a doubled delay for
// rate limits, capped by the config.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier Tier) (string, types.TokenUsage, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", types.TokenUsage{}, fmt.Errorf("no model configured for tier %s", tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.Temperature)
	model.ResponseMIMEType = "application/json"

	maxRetries := c.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout(tier))
		resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
		cancel()

		if err == nil {
			text, usage, extractErr := extractResponse(resp)
			if extractErr != nil {
				return "", usage, extractErr
			}
			return CleanJSONBlock(text), usage, nil
		}
		lastErr = err

		rateLimited := IsRateLimit(err)
		if !rateLimited && !IsTransient(err) {
			return "", types.TokenUsage{}, fmt.Errorf("llm call failed: %w", err)
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < maxRetries-1 {
			delay := BackoffDelay(attempt, c.config.RetryBase, c.config.RetryCap, rateLimited)
			fmt.Printf("  Retrying %s call in %s (attempt %d/%d)...\n", tier, delay, attempt+1, maxRetries)
			c.sleep(delay)
		}
	}

	return "", types.TokenUsage{}, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, maxRetries, lastErr)
}

// GetModel returns the model name for a tier.
func (c *GeminiClient) GetModel(tier Tier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractResponse pulls the text and token usage out of a Gemini
// response.
func extractResponse(resp *genai.GenerateContentResponse) (string, types.TokenUsage, error) {
	var usage types.TokenUsage
	if resp.UsageMetadata != nil {
		usage = types.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 {
		return "", usage, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", usage, fmt.Errorf("no content in response")
	}

	text := ""
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", usage, fmt.Errorf("no text parts in response")
	}
	return text, usage, nil
}
