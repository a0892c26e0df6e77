package providers

import "fmt"

// ProviderError is the single typed error every adapter raises for a
// classified remote fault, mirroring the teacher gateway's own error shape.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (%d): %s - %s", e.Provider, e.StatusCode, e.Code, e.Message)
}
