package provider

import (
	"net/http"
	"strconv"
	"time"

	"photo-critic/internal/model"
)

// Anthropic rate-limit response headers.
const (
	headerRequestsRemaining     = "anthropic-ratelimit-requests-remaining"
	headerRequestsReset         = "anthropic-ratelimit-requests-reset"
	headerInputTokensRemaining  = "anthropic-ratelimit-input-tokens-remaining"
	headerOutputTokensRemaining = "anthropic-ratelimit-output-tokens-remaining"
	headerTokensReset           = "anthropic-ratelimit-tokens-reset"
	headerRetryAfter            = "Retry-After"
)

// SnapshotFromHeaders derives a rate-limit snapshot from one response's
// headers. Absent counters are -1, absent instants zero, absent Retry-After 0.
func SnapshotFromHeaders(h http.Header) model.RateLimitSnapshot {
	snap := model.RateLimitSnapshot{
		RequestsRemaining:     headerInt(h, headerRequestsRemaining),
		InputTokensRemaining:  headerInt(h, headerInputTokensRemaining),
		OutputTokensRemaining: headerInt(h, headerOutputTokensRemaining),
		RequestsReset:         headerTime(h, headerRequestsReset),
		TokensReset:           headerTime(h, headerTokensReset),
	}

	if v := h.Get(headerRetryAfter); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs >= 0 {
			snap.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	return snap
}

func headerInt(h http.Header, key string) int64 {
	v := h.Get(key)
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// headerTime parses an ISO-8601 reset instant.
func headerTime(h http.Header, key string) time.Time {
	v := h.Get(key)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
