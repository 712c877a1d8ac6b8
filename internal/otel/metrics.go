package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "photo-critic"

// Evaluation outcomes recorded on the evaluations counter.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Retry reasons recorded on the retries counter.
const (
	RetryRateLimited = "rate_limited"
	RetryProvider    = "provider"
	RetryNetwork     = "network"
)

// Metrics holds all OTEL metric instruments for photo-critic.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// LLM token counters (partitioned by provider + model via attributes)
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter

	// Estimated spend in USD (partitioned by provider + model)
	CostUSD metric.Float64Counter

	// Evaluation counters (partitioned by outcome: succeeded, failed, cancelled)
	Evaluations metric.Int64Counter

	// Retry counter (partitioned by reason: rate_limited, provider, network)
	Retries metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	// --- LLM token counters ---

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total LLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total LLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.CostUSD, err = meter.Float64Counter("llm.cost.usd",
		metric.WithDescription("Estimated LLM spend in USD"))
	if err != nil {
		return nil, err
	}

	// --- Evaluation counters ---

	m.Evaluations, err = meter.Int64Counter("evaluations.total",
		metric.WithDescription("Total photo evaluations partitioned by outcome (succeeded, failed, cancelled)"))
	if err != nil {
		return nil, err
	}

	m.Retries, err = meter.Int64Counter("evaluations.retries",
		metric.WithDescription("Provider call retries partitioned by reason (rate_limited, provider, network)"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTokens records LLM token usage and its priced cost on the counters.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64, costUSD float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
	if costUSD > 0 {
		m.CostUSD.Add(ctx, costUSD, attrs)
	}
}

// RecordEvaluation records a finished photo evaluation with its outcome.
func (m *Metrics) RecordEvaluation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("evaluation.outcome", outcome),
	))
}

// RecordRetry records a provider-call retry with its reason.
func (m *Metrics) RecordRetry(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.Retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("retry.reason", reason),
	))
}
