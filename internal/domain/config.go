package domain

import (
	"errors"
	"time"
)

// ModelConfig describes how to reach one provider's model.
type ModelConfig struct {
	ProviderName string
	APIKey       string
	Model        string
	BaseURL      string
	MaxTokens    int
	Timeout      time.Duration
	Temperature  float64
}

// Validate enforces the invariants in the spec: temperature is bounded,
// model is required.
func (c ModelConfig) Validate() error {
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	return nil
}
