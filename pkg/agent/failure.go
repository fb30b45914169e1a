package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// FailureKind classifies a failed model call for the rotate-or-propagate decision.
type FailureKind int

const (
	// FailureOther is fatal for the current Chat.
	FailureOther FailureKind = iota
	// FailureAuth means the active key was rejected.
	FailureAuth
	// FailureRateLimit means the active key is throttled.
	FailureRateLimit
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuth:
		return "auth"
	case FailureRateLimit:
		return "rate_limit"
	default:
		return "other"
	}
}

// Rotatable reports whether switching credentials may help.
func (k FailureKind) Rotatable() bool {
	return k == FailureAuth || k == FailureRateLimit
}

// APIError is a provider-neutral HTTP failure. Providers without a typed SDK error, and
// test doubles, return it so Classify can read the status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// ProviderError is what Run returns when a model call fails for good.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	// Exhausted is set when every credential in the pool failed with a rotatable kind.
	Exhausted bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("%s: all credentials exhausted (%s): %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s model call failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classify maps a model-call error to a FailureKind. Typed SDK errors are read by status
// code; anything else falls back to the message text.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureOther
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureOther
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return classifyStatus(anthropicErr.StatusCode)
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return classifyStatus(openaiErr.StatusCode)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if kind := classifyStatus(apiErr.StatusCode); kind != FailureOther {
			return kind
		}
	}

	return classifyMessage(err.Error())
}

func classifyStatus(code int) FailureKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureAuth
	case http.StatusTooManyRequests:
		return FailureRateLimit
	default:
		return FailureOther
	}
}

var (
	rateLimitMarkers = []string{"rate limit", "rate_limit", "too many requests", "quota exceeded"}
	authMarkers      = []string{
		"authentication_error", "authentication failed", "invalid x-api-key", "invalid api key",
		"invalid_api_key", "unauthorized", "permission_error",
	}

	// Bare status codes count only as whole numbers, so "4290 tokens" or "port 4010" do not.
	rateLimitCode = regexp.MustCompile(`\b429\b`)
	authCode      = regexp.MustCompile(`\b40[13]\b`)
)

func classifyMessage(msg string) FailureKind {
	msg = strings.ToLower(msg)
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return FailureRateLimit
		}
	}
	if rateLimitCode.MatchString(msg) {
		return FailureRateLimit
	}
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return FailureAuth
		}
	}
	if authCode.MatchString(msg) {
		return FailureAuth
	}
	return FailureOther
}
