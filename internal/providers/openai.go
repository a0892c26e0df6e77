package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/performance"
	"github.com/username/llm-orchestrator/internal/reliability"
)

// OpenAIProvider talks to any OpenAI-chat-completions-compatible endpoint
// via github.com/sashabaranov/go-openai.
type OpenAIProvider struct {
	cfg     domain.ModelConfig
	client  *openai.Client
	breaker *reliability.CircuitBreaker
}

// NewOpenAIProvider is the constructor registered under kind "openai".
func NewOpenAIProvider(cfg domain.ModelConfig) (Provider, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = performance.GetGlobalPool().GetClientWithTimeout(cfg.Timeout)

	return &OpenAIProvider{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(clientCfg),
		breaker: reliability.NewCircuitBreaker("openai:"+cfg.Model, reliability.DefaultCircuitBreakerConfig("openai")),
	}, nil
}

func (p *OpenAIProvider) Name() string        { return "openai" }
func (p *OpenAIProvider) ModelID() string     { return p.cfg.Model }
func (p *OpenAIProvider) DisplayName() string { return p.Name() + "/" + p.cfg.Model }
func (p *OpenAIProvider) IsConfigured() bool  { return p.cfg.APIKey != "" }
func (p *OpenAIProvider) CircuitState() domain.CircuitState { return p.breaker.State() }

// Generate implements Provider.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt, systemPrompt string) (domain.Reply, error) {
	return runGenerate(ctx, p.breaker, p.Name(), p.cfg.Model, p.cfg.Timeout, prompt, func(callCtx context.Context) (generationOutcome, error) {
		messages := make([]openai.ChatCompletionMessage, 0, 2)
		if systemPrompt != "" {
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

		req := openai.ChatCompletionRequest{
			Model:       p.cfg.Model,
			Messages:    messages,
			Temperature: float32(p.cfg.Temperature),
		}
		if p.cfg.MaxTokens > 0 {
			req.MaxTokens = p.cfg.MaxTokens
		}

		resp, err := p.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return generationOutcome{HTTPStatus: statusFromOpenAIError(err)}, classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return generationOutcome{HTTPStatus: http.StatusOK}, errors.New("openai: empty choices in response")
		}
		return generationOutcome{
			Content:          resp.Choices[0].Message.Content,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			HTTPStatus:       http.StatusOK,
		}, nil
	})
}

func statusFromOpenAIError(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	return 0
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   "openai",
			StatusCode: apiErr.HTTPStatusCode,
			Code:       fmt.Sprintf("%v", apiErr.Code),
			Message:    apiErr.Message,
		}
	}
	return err
}
