package llm

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

var ErrNoKeys = errors.New("llm: no api keys configured")

var rotateMarkers = []string{
	"429",
	"RESOURCE_EXHAUSTED",
	"quota",
	"rate limit",
	"401",
	"403",
	"PERMISSION_DENIED",
	"UNAUTHENTICATED",
	"API key not valid",
	"API_KEY_INVALID",
}

// ShouldRotate reports whether err means the current key is exhausted or
// rejected, so the next key should be tried.
func ShouldRotate(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, marker := range rotateMarkers {
		if strings.Contains(msg, marker) || strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
