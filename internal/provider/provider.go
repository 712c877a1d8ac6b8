// Package provider executes evaluation calls against generative vision APIs.
//
// Each provider implementation owns its wire format, retry loop, and error
// classification. The coordinator depends only on the Provider interface and
// never sees transport detail: every error surfaced here is already typed
// and sanitized.
package provider

import (
	"context"

	"photo-critic/internal/model"
)

// Provider evaluates one photograph per call against a remote vision model.
type Provider interface {
	// Evaluate sends the image and prompt to the model and returns the
	// parsed, validated verdict. Retries transient failures internally,
	// bounded by the configured retry budget.
	Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.Verdict, error)

	// CalculateCost prices a usage record against the model's rates.
	CalculateCost(usage model.TokenUsage) float64

	// Name returns the provider name (e.g., "anthropic", "openai").
	Name() string

	// Model returns the model identifier used for evaluation.
	Model() string
}
