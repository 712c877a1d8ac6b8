package provider

import (
	"time"

	"photo-critic/internal/model"
)

// Decision is the outcome of the backoff policy for one failed attempt.
type Decision struct {
	Retryable bool
	Wait      time.Duration
}

// Decide maps a failed attempt to a retry decision. Pure function.
//
// status 0 means a transport failure (no HTTP response). 429 honors the
// server's Retry-After when present, otherwise the configured default
// backoff. Everything else retryable waits 2^attempt seconds. 401 is never
// retryable; 2xx bodies that fail to parse never reach this policy because
// a malformed verdict is deterministic for the same content.
func Decide(status int, snap model.RateLimitSnapshot, attempt int, defaultBackoff time.Duration) Decision {
	switch {
	case status == 401:
		return Decision{Retryable: false}
	case status == 429:
		wait := snap.RetryAfter
		if wait <= 0 {
			wait = defaultBackoff
		}
		return Decision{Retryable: true, Wait: wait}
	default:
		return Decision{Retryable: true, Wait: exponential(attempt)}
	}
}

// exponential returns 2^attempt seconds, capped at 2^6 to keep a misconfigured
// retry budget from sleeping for minutes.
func exponential(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}
