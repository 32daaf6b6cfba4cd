package model

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrEmptyResponse is returned by adapters when the provider answered with
// no text content.
var ErrEmptyResponse = errors.New("provider returned no text")

// ErrMissingAPIKey is returned by provider constructors given an empty key.
var ErrMissingAPIKey = errors.New("API key is required")

// ProviderError is a provider failure translated into a common shape.
type ProviderError struct {
	Provider  string
	Code      string
	Message   string
	Retryable bool

	// Err is the original SDK error.
	Err error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Code + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classify converts an SDK error into a *ProviderError. status is the HTTP
// status code when the SDK exposed one, zero otherwise; without it the error
// text is inspected.
func Classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: provider, Code: "timeout", Message: "request cancelled or timed out", Err: err}
	}

	pe := &ProviderError{Provider: provider, Code: "api_error", Message: err.Error(), Err: err}
	msg := strings.ToLower(err.Error())
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		strings.Contains(msg, "authentication") || strings.Contains(msg, "api_key"):
		pe.Code, pe.Message = "invalid_api_key", "API key is invalid or expired"
	case status == http.StatusTooManyRequests || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "too many requests"):
		pe.Code, pe.Message, pe.Retryable = "rate_limited", "API rate limit exceeded", true
	case strings.Contains(msg, "quota") || strings.Contains(msg, "billing"):
		pe.Code, pe.Message = "quota_exceeded", "API quota exceeded"
	case status >= 500 || strings.Contains(msg, "overloaded") || strings.Contains(msg, "unavailable"):
		pe.Code, pe.Retryable = "server_error", true
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		pe.Code, pe.Message, pe.Retryable = "timeout", "request timed out", true
	}
	return pe
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
