package provider

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"photo-critic/internal/model"
	pcotel "photo-critic/internal/otel"
	"photo-critic/internal/pricing"
	"photo-critic/internal/verdict"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	messagesPath            = "/v1/messages"
)

var tracer = otel.Tracer("photo-critic/provider")

// Anthropic evaluates photographs via the Anthropic Messages API.
//
// The transport is hand-rolled on resty rather than the official SDK: this
// client owns its retry policy, reads rate-limit headers per attempt, and
// classifies failures itself, none of which the SDK's built-in retry loop
// exposes.
type Anthropic struct {
	http           *resty.Client
	model          string
	maxTokens      int64
	maxRetries     int
	defaultBackoff time.Duration
	callTimeout    time.Duration
	redactor       *Redactor
	metrics        *pcotel.Metrics

	// sleep is swapped out in tests to observe waits without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	// BaseURL overrides the API endpoint; empty means the public API.
	BaseURL string
	// APIKey is the secret key sent in the x-api-key header.
	APIKey string
	// Model is the model identifier (e.g., "claude-sonnet-4-5").
	Model string
	// MaxTokens caps the model's output per evaluation.
	MaxTokens int64
	// MaxRetries bounds the retry loop; 3 means up to 4 attempts.
	MaxRetries int
	// RateLimitBackoff is the wait after a 429 without Retry-After.
	RateLimitBackoff time.Duration
	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration
	// CallTimeout bounds one whole Evaluate call including retries and sleeps.
	CallTimeout time.Duration
	// Metrics receives per-retry counters; nil-safe.
	Metrics *pcotel.Metrics
}

// NewAnthropic creates an Anthropic client with the given configuration.
func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}
	backoff := cfg.RateLimitBackoff
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	// No retries at the resty layer; the loop in Evaluate owns the policy.
	// The default transport does no response caching.
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("anthropic-version", anthropicVersion).
		SetHeader("x-api-key", cfg.APIKey)

	return &Anthropic{
		http:           client,
		model:          cfg.Model,
		maxTokens:      maxTokens,
		maxRetries:     cfg.MaxRetries,
		defaultBackoff: backoff,
		callTimeout:    callTimeout,
		redactor:       NewRedactor(cfg.APIKey),
		metrics:        cfg.Metrics,
		sleep:          sleepCtx,
	}
}

// Name returns "anthropic".
func (a *Anthropic) Name() string {
	return "anthropic"
}

// Model returns the model identifier.
func (a *Anthropic) Model() string {
	return a.model
}

// CalculateCost prices a usage record against the model's published rates.
func (a *Anthropic) CalculateCost(usage model.TokenUsage) float64 {
	return pricing.CostOf(a.model, usage)
}

// Anthropic Messages wire types.
type anthropicPayload struct {
	Model     string             `json:"model"`
	MaxTokens int64              `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Source *anthropicSource `json:"source,omitempty"`
	Text   string           `json:"text,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Evaluate posts the image and prompt to the Messages API and returns the
// parsed verdict. Transient failures are retried with backoff; auth and
// parse/validation failures are terminal.
func (a *Anthropic) Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "chat "+a.model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", "anthropic"),
			attribute.String("gen_ai.request.model", a.model),
			attribute.Int64("gen_ai.request.max_tokens", a.maxTokens),
		),
	)
	defer span.End()

	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	payload := anthropicPayload{
		Model:     a.model,
		MaxTokens: req.MaxTokens,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicBlock{
				{Type: "image", Source: &anthropicSource{
					Type:      "base64",
					MediaType: mediaType,
					Data:      req.ImageBase64,
				}},
				{Type: "text", Text: req.Prompt},
			},
		}},
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = a.maxTokens
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int("http.request.resend_count", attempt))

		resp, err := a.http.R().
			SetContext(ctx).
			SetBody(payload).
			Post(messagesPath)

		if err != nil {
			netErr := a.classifyTransport(err)
			lastErr = netErr
			d := Decide(0, model.RateLimitSnapshot{}, attempt, a.defaultBackoff)
			if attempt < a.maxRetries {
				a.metrics.RecordRetry(ctx, pcotel.RetryNetwork)
				if serr := a.sleep(ctx, d.Wait); serr != nil {
					return nil, serr
				}
				continue
			}
			span.SetAttributes(attribute.String("error.type", netErr.Kind))
			return nil, netErr
		}

		status := resp.StatusCode()
		switch {
		case status >= 200 && status < 300:
			v, perr := verdict.Parse(resp.Body())
			if perr != nil {
				// Terminal: the same content would parse the same way.
				span.SetAttributes(attribute.String("error.type", "parse_error"))
				return nil, perr
			}
			span.SetAttributes(
				attribute.Int64("gen_ai.usage.input_tokens", v.Usage.InputTokens),
				attribute.Int64("gen_ai.usage.output_tokens", v.Usage.OutputTokens),
			)
			return v, nil

		case status == 401:
			span.SetAttributes(attribute.String("error.type", "auth"))
			return nil, &AuthError{Message: a.redactor.Sanitize(errorMessage(resp.Body()))}

		case status == 429:
			snap := SnapshotFromHeaders(resp.Header())
			d := Decide(status, snap, attempt, a.defaultBackoff)
			lastErr = &RateLimitError{RetryAfter: d.Wait}
			if attempt < a.maxRetries {
				a.metrics.RecordRetry(ctx, pcotel.RetryRateLimited)
				if serr := a.sleep(ctx, d.Wait); serr != nil {
					return nil, serr
				}
				continue
			}
			span.SetAttributes(attribute.String("error.type", "rate_limited"))
			return nil, lastErr

		default:
			perr := &ProviderError{
				Status:  status,
				Message: a.redactor.Sanitize(errorMessage(resp.Body())),
			}
			lastErr = perr
			d := Decide(status, model.RateLimitSnapshot{}, attempt, a.defaultBackoff)
			if attempt < a.maxRetries {
				a.metrics.RecordRetry(ctx, pcotel.RetryProvider)
				if serr := a.sleep(ctx, d.Wait); serr != nil {
					return nil, serr
				}
				continue
			}
			span.SetAttributes(attribute.String("error.type", "provider"))
			return nil, perr
		}
	}

	return nil, lastErr
}

// errorMessage extracts the provider error envelope message, if any.
func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
		return msg
	}
	return ""
}

// classifyTransport maps a transport failure to a NetworkError kind.
func (a *Anthropic) classifyTransport(err error) *NetworkError {
	cause := a.redactor.Sanitize(err.Error())

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &NetworkError{Kind: NetworkDNS, Cause: cause}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Kind: NetworkTimeout, Cause: cause}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &NetworkError{Kind: NetworkTimeout, Cause: cause}
	}

	return &NetworkError{Kind: NetworkOffline, Cause: cause}
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
