package gemini

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQuotaExceeded signals a rate/quota failure from the model service.
// Callers surface this to the user; generic API errors are only logged.
var ErrQuotaExceeded = errors.New("model quota exceeded")

// APIError is a generic transport or server failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Message)
}

// ParseError indicates the model output contained no JSON-like payload at all.
// Field-level problems never produce a ParseError; they degrade to defaults.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Reason
}

// classifyHTTPError maps a failed HTTP response to the error taxonomy.
// A 429 or a quota/rate signal in the body counts as quota exhaustion.
func classifyHTTPError(statusCode int, body string) error {
	if statusCode == 429 || looksLikeQuota(body) {
		return fmt.Errorf("%w: http %d: %s", ErrQuotaExceeded, statusCode, body)
	}
	return &APIError{StatusCode: statusCode, Message: body}
}

func looksLikeQuota(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range []string{"resource_exhausted", "quota", "rate limit", "too many requests"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
