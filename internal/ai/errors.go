package ai

import "fmt"

// Provider error types. The generation services classify these to decide
// whether and how long to wait before retrying.

// AuthenticationError reports a rejected credential (HTTP 401 or 403).
type AuthenticationError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// RateLimitError reports an HTTP 429 from the provider.
type RateLimitError struct {
	Provider string
	Body     string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded: %s", e.Provider, e.Body)
}

// APIStatusError reports any other non-2xx provider response.
type APIStatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIStatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ConnectionError wraps a transport failure reaching the provider. The
// wrapped error is preserved so context deadline expiry stays detectable
// through errors.Is.
type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection error: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// bodyPreview trims a response body for inclusion in error messages.
func bodyPreview(body string) string {
	const limit = 200
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}
