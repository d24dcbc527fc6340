// Package llmgateway dispatches embedding and chat-completion calls across
// whichever provider is configured (OpenAI, Anthropic, or Gemini), with the
// retry, truncation, and JSON-recovery behavior the enrichment engine
// depends on.
package llmgateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	apperrors "github.com/riskline/riskline/internal/errors"
)

// Provider identifies which backend a Client dispatches chat/embedding
// calls to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderNone      Provider = "none"
)

const (
	embedTruncateChars = 8000
	embedDimension     = 1536
)

// Client is the unified LLM gateway. Exactly one provider is active per
// process; which one is chosen by key priority (OpenAI, then Anthropic,
// then Gemini) mirrors the teacher's provider-selection order.
type Client struct {
	provider Provider

	openaiClient    *openai.Client
	anthropicClient *anthropic.Client
	geminiClient    *genai.Client

	chatModel      string
	embeddingModel string
	scoringTemp    float32
	proseTemp      float32
	timeout        time.Duration

	logger *slog.Logger
}

// Config carries the provider keys and model names the gateway needs.
type Config struct {
	OpenAIKey       string
	AnthropicKey    string
	GeminiKey       string
	ChatModel       string
	EmbeddingModel  string
	ScoringTemp     float64
	ProseTemp       float64
	RequestTimeout  time.Duration
}

// NewClient selects a provider from the first configured key, in priority
// order OpenAI > Anthropic > Gemini.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	logger := slog.Default().With("component", "llmgateway")

	c := &Client{
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		scoringTemp:    float32(cfg.ScoringTemp),
		proseTemp:      float32(cfg.ProseTemp),
		timeout:        cfg.RequestTimeout,
		logger:         logger,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}

	switch {
	case cfg.OpenAIKey != "":
		c.provider = ProviderOpenAI
		client := openai.NewClient(cfg.OpenAIKey)
		c.openaiClient = client
		logger.Info("llm gateway using openai", "chat_model", c.chatModel)
	case cfg.AnthropicKey != "":
		c.provider = ProviderAnthropic
		client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicKey))
		c.anthropicClient = &client
		logger.Info("llm gateway using anthropic", "chat_model", c.chatModel)
	case cfg.GeminiKey != "":
		c.provider = ProviderGemini
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, apperrors.ConfigErrorf("create gemini client: %v", err)
		}
		c.geminiClient = client
		logger.Info("llm gateway using gemini", "chat_model", c.chatModel)
	default:
		c.provider = ProviderNone
		logger.Warn("llm gateway has no provider key configured; embed/chat will fail closed")
	}

	return c, nil
}

// Provider reports the active backend.
func (c *Client) Provider() Provider { return c.provider }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Embed returns a fixed-dimension embedding of text, truncated to 8000
// characters before the call. On any failure it returns the zero vector
// rather than propagating the error, per the gateway's fallback contract.
func (c *Client) Embed(ctx context.Context, text string) []float32 {
	text = truncate(text, embedTruncateChars)

	if c.provider != ProviderOpenAI || c.openaiClient == nil {
		// Only OpenAI is wired for embeddings; other providers fall back to
		// the zero vector, matching the "on failure" branch of the contract.
		return make([]float32, embedDimension)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.openaiClient.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.AdaEmbeddingV2,
	})
	if err != nil || len(resp.Data) == 0 {
		c.logger.Warn("embed failed, returning zero vector", "error", err)
		return make([]float32, embedDimension)
	}

	return resp.Data[0].Embedding
}

// Chat runs a single system+user completion and returns the text response.
func (c *Client) Chat(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch c.provider {
	case ProviderOpenAI:
		return c.chatOpenAI(ctx, system, user, maxTokens, float32(temperature))
	case ProviderAnthropic:
		return c.chatAnthropic(ctx, system, user, maxTokens)
	case ProviderGemini:
		return c.chatGemini(ctx, system, user, maxTokens, float32(temperature), false)
	default:
		return "", apperrors.ConfigError("no llm provider configured")
	}
}

// ChatJSON is Chat run in JSON-mode where the backend supports it; the
// caller is still responsible for the fence-stripping/regex-recovery per
// the risk-assessment sub-contract (see ParseRiskAssessment).
func (c *Client) ChatJSON(ctx context.Context, system, user string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch c.provider {
	case ProviderOpenAI:
		return c.chatOpenAIJSON(ctx, system, user, maxTokens)
	case ProviderAnthropic:
		return c.chatAnthropic(ctx, system, user, maxTokens)
	case ProviderGemini:
		return c.chatGemini(ctx, system, user, maxTokens, c.scoringTemp, true)
	default:
		return "", apperrors.ConfigError("no llm provider configured")
	}
}

func (c *Client) chatOpenAI(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", apperrors.TransientRemoteError(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.TransientRemoteError(nil, "openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) chatOpenAIJSON(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := c.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:    c.scoringTemp,
		MaxTokens:      maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", apperrors.TransientRemoteError(err, "openai json chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.TransientRemoteError(nil, "openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) chatAnthropic(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := c.anthropicClient.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.chatModel),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", apperrors.TransientRemoteError(err, "anthropic message completion")
	}
	if len(resp.Content) == 0 {
		return "", apperrors.TransientRemoteError(nil, "anthropic returned no content blocks")
	}
	return resp.Content[0].Text, nil
}

func (c *Client) chatGemini(ctx context.Context, system, user string, maxTokens int, temperature float32, jsonMode bool) (string, error) {
	var systemInstruction *genai.Content
	if system != "" {
		systemInstruction = genai.Text(system)[0]
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       &temperature,
	}
	if maxTokens > 0 {
		tokens := int32(maxTokens)
		genConfig.MaxOutputTokens = tokens
	}
	if jsonMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	resp, err := generateWithRetry(ctx, c.logger, c.geminiClient, c.chatModel, genai.Text(user), genConfig)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.TransientRemoteError(nil, "gemini returned no content")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
