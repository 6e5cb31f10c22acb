package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/drift/internal/common"
	"github.com/ternarybob/drift/internal/models"
)

// ErrEmptyResponse is returned when a provider answers with no text
var ErrEmptyResponse = errors.New("empty response from model")

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// ContentRequest represents a provider-agnostic, single-turn generation request
type ContentRequest struct {
	Provider          ProviderType // Empty uses the configured default
	Model             string       // Empty uses the provider's configured model
	SystemInstruction string
	Prompt            string
	Image             *models.PhotoData      // Optional inline image
	Temperature       float32                // Zero leaves the provider default
	MaxTokens         int                    // Claude only
	OutputSchema      map[string]interface{} // JSON schema for structured output
	GoogleSearch      bool                   // Gemini grounding; disables OutputSchema enforcement
}

// ContentResponse represents a provider-agnostic content generation response
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
	Sources  []string // Grounding source URLs when GoogleSearch was used
}

// Generator produces text from a ContentRequest
type Generator interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)
}

// ProviderFactory creates and manages AI provider clients
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger
	retryConfig  *GeminiRetryConfig

	mu           sync.Mutex
	geminiClient *genai.Client
	claudeClient anthropic.Client
	claudeAPIKey string
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	retry := NewInteractiveRetryConfig()
	if geminiConfig.MaxRateLimitRetries >= 0 {
		retry.MaxRetries = geminiConfig.MaxRateLimitRetries
	}
	return &ProviderFactory{
		geminiConfig: geminiConfig,
		claudeConfig: claudeConfig,
		llmConfig:    llmConfig,
		logger:       logger,
		retryConfig:  retry,
	}
}

// DefaultProvider returns the configured provider for classify calls
func (f *ProviderFactory) DefaultProvider() ProviderType {
	if f.llmConfig == nil || f.llmConfig.DefaultProvider == "" {
		return ProviderGemini
	}
	return ProviderType(f.llmConfig.DefaultProvider)
}

// GetDefaultModel returns the default model for a provider
func (f *ProviderFactory) GetDefaultModel(provider ProviderType) string {
	if provider == ProviderClaude {
		return f.claudeConfig.Model
	}
	return f.geminiConfig.Model
}

// GetGeminiClient returns a Gemini client, creating one if necessary
func (f *ProviderFactory) GetGeminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.geminiClient != nil {
		return f.geminiClient, nil
	}

	apiKey, err := common.ResolveAPIKey("gemini_api_key", f.geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.geminiClient = client
	return client, nil
}

// GetClaudeClient returns a Claude client, creating one if necessary
func (f *ProviderFactory) GetClaudeClient(ctx context.Context) (anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claudeAPIKey != "" {
		return f.claudeClient, nil
	}

	apiKey, err := common.ResolveAPIKey("anthropic_api_key", f.claudeConfig.APIKey)
	if err != nil {
		return anthropic.Client{}, fmt.Errorf("failed to resolve Anthropic API key: %w", err)
	}

	f.claudeClient = anthropic.NewClient(option.WithAPIKey(apiKey))
	f.claudeAPIKey = apiKey
	return f.claudeClient, nil
}

// GenerateContent routes the request to its provider
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	provider := request.Provider
	if provider == "" {
		provider = f.DefaultProvider()
	}
	if request.GoogleSearch {
		provider = ProviderGemini
	}

	model := request.Model
	if model == "" {
		model = f.GetDefaultModel(provider)
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Bool("image", request.Image != nil).
		Bool("google_search", request.GoogleSearch).
		Msg("Generating content with provider")

	switch provider {
	case ProviderClaude:
		return f.generateWithClaude(ctx, request, model)
	default:
		return f.generateWithGemini(ctx, request, model)
	}
}

// generateWithClaude generates content using Claude API. Claude has no schema
// enforcement, so the schema is appended to the system prompt.
func (f *ProviderFactory) generateWithClaude(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.GetClaudeClient(ctx)
	if err != nil {
		return nil, err
	}

	blocks := []anthropic.ContentBlockParamUnion{}
	if request.Image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			request.Image.MimeType,
			base64.StdEncoding.EncodeToString(request.Image.Data),
		))
	}
	blocks = append(blocks, anthropic.NewTextBlock(request.Prompt))

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if request.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(request.Temperature))
	}

	systemText := request.SystemInstruction
	if len(request.OutputSchema) > 0 {
		systemText = strings.TrimSpace(systemText + "\n\n" + schemaInstruction(request.OutputSchema))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	callCtx, cancel := context.WithTimeout(ctx, common.ParseDurationOr(f.claudeConfig.Timeout, 30*time.Second))
	defer cancel()

	var resp *anthropic.Message
	err = f.withRetry(callCtx, "Claude", func() error {
		var apiErr error
		resp, apiErr = client.Messages.New(callCtx, params)
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("claude: %w", ErrEmptyResponse)
	}

	return &ContentResponse{
		Text:     text.String(),
		Provider: ProviderClaude,
		Model:    model,
	}, nil
}

// generateWithGemini generates content using Gemini API
func (f *ProviderFactory) generateWithGemini(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{}
	if request.Temperature > 0 {
		config.Temperature = genai.Ptr(request.Temperature)
	}
	if request.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemInstruction, genai.RoleUser)
	}

	if request.GoogleSearch {
		// Grounding tools cannot be combined with a response schema
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else if len(request.OutputSchema) > 0 {
		genaiSchema, err := convertToGenaiSchema(request.OutputSchema)
		if err != nil {
			f.logger.Error().Err(err).Msg("Failed to convert output schema")
		} else if genaiSchema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = genaiSchema
		}
	}

	parts := []*genai.Part{genai.NewPartFromText(request.Prompt)}
	if request.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(request.Image.Data, request.Image.MimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	callCtx, cancel := context.WithTimeout(ctx, common.ParseDurationOr(f.geminiConfig.Timeout, 30*time.Second))
	defer cancel()

	var resp *genai.GenerateContentResponse
	err = f.withRetry(callCtx, "Gemini", func() error {
		var apiErr error
		resp, apiErr = client.Models.GenerateContent(callCtx, model, contents, config)
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	out := &ContentResponse{
		Text:     responseText,
		Provider: ProviderGemini,
		Model:    model,
	}
	if gm := resp.Candidates[0].GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk != nil && chunk.Web != nil && chunk.Web.URI != "" {
				out.Sources = append(out.Sources, chunk.Web.URI)
			}
		}
	}
	return out, nil
}

// withRetry retries rate-limited calls only. Other errors fail immediately
// because the pipeline has a fixed time budget.
func (f *ProviderFactory) withRetry(ctx context.Context, provider string, call func() error) error {
	var err error
	for attempt := 0; attempt <= f.retryConfig.MaxRetries; attempt++ {
		err = call()
		if err == nil || !IsRateLimitError(err) || attempt == f.retryConfig.MaxRetries {
			return err
		}

		backoff := f.retryConfig.CalculateBackoff(attempt, ExtractRetryDelay(err))
		f.logger.Warn().
			Str("provider", provider).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Rate limited, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

// Close releases provider clients
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geminiClient = nil
	f.claudeClient = anthropic.Client{}
	f.claudeAPIKey = ""
	return nil
}
