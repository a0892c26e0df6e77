package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/reliability"
)

// OllamaProvider talks to a local Ollama daemon's /api/chat endpoint. No Go
// client exists for Ollama in the reference corpus, so this is the one
// adapter built directly on net/http and encoding/json.
type OllamaProvider struct {
	cfg        domain.ModelConfig
	httpClient *http.Client
	breaker    *reliability.CircuitBreaker
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  *ollamaOptions      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string            `json:"model"`
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count,omitempty"`
	EvalCount       int               `json:"eval_count,omitempty"`
}

// NewOllamaProvider is the constructor registered under kind "ollama".
func NewOllamaProvider(cfg domain.ModelConfig) (Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &OllamaProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    reliability.NewCircuitBreaker("ollama:"+cfg.Model, reliability.DefaultCircuitBreakerConfig("ollama")),
	}, nil
}

func (p *OllamaProvider) Name() string        { return "ollama" }
func (p *OllamaProvider) ModelID() string     { return p.cfg.Model }
func (p *OllamaProvider) DisplayName() string { return p.Name() + "/" + p.cfg.Model }

// IsConfigured reports true as long as a model is set. Ollama talks to a
// local daemon and carries no API key to validate.
func (p *OllamaProvider) IsConfigured() bool { return p.cfg.Model != "" }

func (p *OllamaProvider) CircuitState() domain.CircuitState { return p.breaker.State() }

// Generate implements Provider.
func (p *OllamaProvider) Generate(ctx context.Context, prompt, systemPrompt string) (domain.Reply, error) {
	return runGenerate(ctx, p.breaker, p.Name(), p.cfg.Model, p.cfg.Timeout, prompt, func(callCtx context.Context) (generationOutcome, error) {
		messages := make([]ollamaChatMessage, 0, 2)
		if systemPrompt != "" {
			messages = append(messages, ollamaChatMessage{Role: "system", Content: systemPrompt})
		}
		messages = append(messages, ollamaChatMessage{Role: "user", Content: prompt})

		reqBody := ollamaChatRequest{
			Model:    p.cfg.Model,
			Messages: messages,
			Stream:   false,
		}
		if p.cfg.Temperature > 0 || p.cfg.MaxTokens > 0 {
			reqBody.Options = &ollamaOptions{
				Temperature: p.cfg.Temperature,
				NumPredict:  p.cfg.MaxTokens,
			}
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return generationOutcome{}, fmt.Errorf("ollama: failed to marshal request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return generationOutcome{}, fmt.Errorf("ollama: failed to build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return generationOutcome{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return generationOutcome{HTTPStatus: resp.StatusCode, RateLimit: parseRateLimitHeaders(resp.Header)}, handleOllamaError(resp)
		}

		var ollamaResp ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
			return generationOutcome{HTTPStatus: resp.StatusCode}, fmt.Errorf("ollama: failed to decode response: %w", err)
		}

		return generationOutcome{
			Content:          ollamaResp.Message.Content,
			PromptTokens:     ollamaResp.PromptEvalCount,
			CompletionTokens: ollamaResp.EvalCount,
			HTTPStatus:       resp.StatusCode,
		}, nil
	})
}

func handleOllamaError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	log.Error().
		Int("status", resp.StatusCode).
		Str("body", string(body)).
		Msg("ollama API error")

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &ProviderError{
			Provider:   "ollama",
			StatusCode: resp.StatusCode,
			Code:       "ollama_error",
			Message:    errResp.Error,
		}
	}

	return &ProviderError{
		Provider:   "ollama",
		StatusCode: resp.StatusCode,
		Code:       "api_error",
		Message:    fmt.Sprintf("ollama API returned status %d", resp.StatusCode),
	}
}
