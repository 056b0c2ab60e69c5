package types

import (
	"os"
	"strings"
)

const (
	ContextUserKey      = "user"
	ContextRequestIDKey = "request_id"

	// UserIDHeader carries the caller identity on authenticated routes.
	UserIDHeader = "X-User-ID"

	// RequestIDHeader is echoed back on every response.
	RequestIDHeader = "X-Request-ID"
)

// Default allowed origins for development
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// AllowedOrigins merges the development defaults with CLIENT_URL and the
// comma-separated ALLOWED_ORIGINS variable. Evaluated on call so origins
// set through a .env file loaded at startup are picked up.
func AllowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		envOrigins := strings.Split(allowedOrigins, ",")
		for _, origin := range envOrigins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
