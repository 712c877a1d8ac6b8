package provider

import (
	"fmt"
	"strings"
	"time"
)

// AuthError is a 401 from the provider. Never retried: the key will not
// become valid by asking again.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed: check the configured API key"
	}
	return "authentication failed: " + e.Message
}

// RateLimitError is a 429 that survived the retry budget. RetryAfter carries
// the provider's suggested wait so the caller can surface it.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Network failure kinds.
const (
	NetworkTimeout = "timeout"
	NetworkDNS     = "dns"
	NetworkOffline = "offline"
)

// NetworkError is a transport-level failure (timeout, DNS, no connectivity)
// that survived the retry budget. Cause is sanitized before storage.
type NetworkError struct {
	Kind  string
	Cause string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s): %s", e.Kind, e.Cause)
}

// ProviderError is a non-2xx response that is neither auth nor rate limiting.
// Message comes from the provider's error envelope when present.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("provider returned HTTP %d: %s", e.Status, e.Message)
}

// Overloaded reports whether the provider message indicates transient
// capacity trouble, which callers surface with friendlier wording.
func (e *ProviderError) Overloaded() bool {
	m := strings.ToLower(e.Message)
	return strings.Contains(m, "overloaded") || strings.Contains(m, "timeout")
}
