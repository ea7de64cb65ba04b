package llm

import (
	"errors"
	"strings"
)

var (
	ErrUnauthorized    = errors.New("llm unauthorized")
	ErrRateLimited     = errors.New("llm rate limited")
	ErrSafetyBlocked   = errors.New("llm response blocked by safety policy")
	ErrServerTransient = errors.New("llm server error")
	ErrEmptyResponse   = errors.New("llm returned an empty response")
)

// Kind is the failure class a backend error falls into.
type Kind string

const (
	KindRateLimited     Kind = "rate_limited"
	KindSafetyBlocked   Kind = "safety_blocked"
	KindServerTransient Kind = "server_transient"
	KindEmptyResponse   Kind = "empty_response"
	KindUnauthorized    Kind = "unauthorized"
	KindUnclassified    Kind = "unclassified"
)

// Classify maps a backend error to a Kind. Sentinel errors from the bundled
// clients win; anything else goes through a substring table over the message,
// which is a heuristic and breaks if providers reword their errors.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrSafetyBlocked):
		return KindSafetyBlocked
	case errors.Is(err, ErrServerTransient):
		return KindServerTransient
	case errors.Is(err, ErrEmptyResponse):
		return KindEmptyResponse
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) Kind {
	normalized := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case strings.Contains(normalized, "429"),
		strings.Contains(normalized, "quota"),
		strings.Contains(normalized, "resource_exhausted"),
		strings.Contains(normalized, "resource exhausted"),
		strings.Contains(normalized, "rate limit"):
		return KindRateLimited
	case strings.Contains(normalized, "safety"),
		strings.Contains(normalized, "blocked"),
		strings.Contains(normalized, "content_filter"):
		return KindSafetyBlocked
	case strings.Contains(normalized, "500"),
		strings.Contains(normalized, "503"),
		strings.Contains(normalized, "internal error"),
		strings.Contains(normalized, "internal server error"),
		strings.Contains(normalized, "unavailable"):
		return KindServerTransient
	default:
		return KindUnclassified
	}
}
