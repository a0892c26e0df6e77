package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/reliability"
)

// GeminiProvider talks to the Gemini API via google.golang.org/genai.
type GeminiProvider struct {
	cfg     domain.ModelConfig
	client  *genai.Client
	breaker *reliability.CircuitBreaker
}

// NewGeminiProvider is the constructor registered under kind "gemini".
func NewGeminiProvider(cfg domain.ModelConfig) (Provider, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiProvider{
		cfg:     cfg,
		client:  client,
		breaker: reliability.NewCircuitBreaker("gemini:"+cfg.Model, reliability.DefaultCircuitBreakerConfig("gemini")),
	}, nil
}

func (p *GeminiProvider) Name() string        { return "gemini" }
func (p *GeminiProvider) ModelID() string     { return p.cfg.Model }
func (p *GeminiProvider) DisplayName() string { return p.Name() + "/" + p.cfg.Model }
func (p *GeminiProvider) IsConfigured() bool  { return p.cfg.APIKey != "" }
func (p *GeminiProvider) CircuitState() domain.CircuitState { return p.breaker.State() }

// Generate implements Provider.
func (p *GeminiProvider) Generate(ctx context.Context, prompt, systemPrompt string) (domain.Reply, error) {
	return runGenerate(ctx, p.breaker, p.Name(), p.cfg.Model, p.cfg.Timeout, prompt, func(callCtx context.Context) (generationOutcome, error) {
		contents := []*genai.Content{
			{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: prompt}},
			},
		}

		config := &genai.GenerateContentConfig{}
		if systemPrompt != "" {
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: systemPrompt}},
			}
		}
		if p.cfg.MaxTokens > 0 {
			config.MaxOutputTokens = int32(p.cfg.MaxTokens)
		}
		if p.cfg.Temperature > 0 {
			temp := float32(p.cfg.Temperature)
			config.Temperature = &temp
		}

		resp, err := p.client.Models.GenerateContent(callCtx, p.cfg.Model, contents, config)
		if err != nil {
			return generationOutcome{HTTPStatus: statusFromGeminiError(err)}, classifyGeminiError(err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return generationOutcome{HTTPStatus: http.StatusOK}, errors.New("gemini: empty candidates in response")
		}

		var text strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}

		outcome := generationOutcome{Content: text.String(), HTTPStatus: http.StatusOK}
		if resp.UsageMetadata != nil {
			outcome.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
			outcome.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		return outcome, nil
	})
}

// statusFromGeminiError and classifyGeminiError fall back to substring
// matching: the genai SDK surfaces transport failures as plain errors rather
// than a typed API error, the same gap haasonsaas-nexus works around.
func statusFromGeminiError(err error) int {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource exhausted"):
		return http.StatusTooManyRequests
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthenticated"):
		return http.StatusUnauthorized
	case strings.Contains(msg, "403") || strings.Contains(msg, "permission denied"):
		return http.StatusForbidden
	case strings.Contains(msg, "404"):
		return http.StatusNotFound
	case strings.Contains(msg, "503") || strings.Contains(msg, "unavailable"):
		return http.StatusServiceUnavailable
	case strings.Contains(msg, "500"):
		return http.StatusInternalServerError
	default:
		return 0
	}
}

func classifyGeminiError(err error) error {
	status := statusFromGeminiError(err)
	if status == 0 {
		return err
	}
	return &ProviderError{
		Provider:   "gemini",
		StatusCode: status,
		Code:       "gemini_error",
		Message:    err.Error(),
	}
}
