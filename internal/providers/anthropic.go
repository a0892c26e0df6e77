package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/performance"
	"github.com/username/llm-orchestrator/internal/reliability"
)

// AnthropicProvider talks to the Anthropic Messages API via
// github.com/anthropics/anthropic-sdk-go.
type AnthropicProvider struct {
	cfg     domain.ModelConfig
	client  anthropic.Client
	breaker *reliability.CircuitBreaker
}

// NewAnthropicProvider is the constructor registered under kind "anthropic".
func NewAnthropicProvider(cfg domain.ModelConfig) (Provider, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(performance.GetGlobalPool().GetClientWithTimeout(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		cfg:     cfg,
		client:  anthropic.NewClient(opts...),
		breaker: reliability.NewCircuitBreaker("anthropic:"+cfg.Model, reliability.DefaultCircuitBreakerConfig("anthropic")),
	}, nil
}

func (p *AnthropicProvider) Name() string        { return "anthropic" }
func (p *AnthropicProvider) ModelID() string     { return p.cfg.Model }
func (p *AnthropicProvider) DisplayName() string { return p.Name() + "/" + p.cfg.Model }
func (p *AnthropicProvider) IsConfigured() bool  { return p.cfg.APIKey != "" }
func (p *AnthropicProvider) CircuitState() domain.CircuitState { return p.breaker.State() }

// Generate implements Provider.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt, systemPrompt string) (domain.Reply, error) {
	return runGenerate(ctx, p.breaker, p.Name(), p.cfg.Model, p.cfg.Timeout, prompt, func(callCtx context.Context) (generationOutcome, error) {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(p.cfg.Model),
			MaxTokens: int64(p.cfg.MaxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		}
		if systemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Type: "text", Text: systemPrompt}}
		}

		msg, err := p.client.Messages.New(callCtx, params)
		if err != nil {
			return generationOutcome{HTTPStatus: statusFromAnthropicError(err)}, classifyAnthropicError(err)
		}
		if len(msg.Content) == 0 {
			return generationOutcome{HTTPStatus: http.StatusOK}, errors.New("anthropic: empty content in response")
		}
		return generationOutcome{
			Content:          msg.Content[0].Text,
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			HTTPStatus:       http.StatusOK,
		}, nil
	})
}

func statusFromAnthropicError(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   "anthropic",
			StatusCode: apiErr.StatusCode,
			Code:       "anthropic_error",
			Message:    apiErr.Error(),
		}
	}
	return err
}
