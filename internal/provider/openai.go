package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"photo-critic/internal/model"
	pcotel "photo-critic/internal/otel"
	"photo-critic/internal/pricing"
	"photo-critic/internal/verdict"
)

// OpenAI evaluates photographs via an OpenAI-compatible Chat Completions API.
// The SDK's own retries are disabled so the loop here owns the policy and the
// two providers share identical retry/backoff semantics.
type OpenAI struct {
	client         openai.Client
	model          string
	maxTokens      int64
	maxRetries     int
	defaultBackoff time.Duration
	callTimeout    time.Duration
	redactor       *Redactor
	metrics        *pcotel.Metrics

	sleep func(ctx context.Context, d time.Duration) error
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	BaseURL          string
	APIKey           string
	Model            string
	MaxTokens        int64
	MaxRetries       int
	RateLimitBackoff time.Duration
	RequestTimeout   time.Duration
	CallTimeout      time.Duration
	// Metrics receives per-retry counters; nil-safe.
	Metrics *pcotel.Metrics
}

// NewOpenAI creates an OpenAI-compatible client.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	backoff := cfg.RateLimitBackoff
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}

	return &OpenAI{
		client:         openai.NewClient(opts...),
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

// Name returns "openai".
func (o *OpenAI) Name() string {
	return "openai"
}

// Model returns the model identifier.
func (o *OpenAI) Model() string {
	return o.model
}

// CalculateCost prices a usage record against the model's published rates.
func (o *OpenAI) CalculateCost(usage model.TokenUsage) float64 {
	return pricing.CostOf(o.model, usage)
}

// Evaluate sends the image and prompt to the Chat Completions API and returns
// the parsed verdict.
func (o *OpenAI) Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "chat "+o.model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.provider.name", "openai"),
			attribute.String("gen_ai.request.model", o.model),
			attribute.Int64("gen_ai.request.max_tokens", o.maxTokens),
		),
	)
	defer span.End()

	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, req.ImageBase64)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
				openai.TextContentPart(req.Prompt),
			}),
		},
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			status, snap := o.classify(err)
			switch {
			case status == 401:
				span.SetAttributes(attribute.String("error.type", "auth"))
				return nil, &AuthError{Message: o.redactor.Sanitize(apiMessage(err))}
			case status == 429:
				d := Decide(status, snap, attempt, o.defaultBackoff)
				lastErr = &RateLimitError{RetryAfter: d.Wait}
				if attempt < o.maxRetries {
					o.metrics.RecordRetry(ctx, pcotel.RetryRateLimited)
					if serr := o.sleep(ctx, d.Wait); serr != nil {
						return nil, serr
					}
					continue
				}
				span.SetAttributes(attribute.String("error.type", "rate_limited"))
				return nil, lastErr
			case status > 0:
				perr := &ProviderError{Status: status, Message: o.redactor.Sanitize(apiMessage(err))}
				lastErr = perr
				d := Decide(status, snap, attempt, o.defaultBackoff)
				if attempt < o.maxRetries {
					o.metrics.RecordRetry(ctx, pcotel.RetryProvider)
					if serr := o.sleep(ctx, d.Wait); serr != nil {
						return nil, serr
					}
					continue
				}
				span.SetAttributes(attribute.String("error.type", "provider"))
				return nil, perr
			default:
				netErr := &NetworkError{Kind: networkKind(err), Cause: o.redactor.Sanitize(err.Error())}
				lastErr = netErr
				d := Decide(0, snap, attempt, o.defaultBackoff)
				if attempt < o.maxRetries {
					o.metrics.RecordRetry(ctx, pcotel.RetryNetwork)
					if serr := o.sleep(ctx, d.Wait); serr != nil {
						return nil, serr
					}
					continue
				}
				span.SetAttributes(attribute.String("error.type", netErr.Kind))
				return nil, netErr
			}
		}

		if len(resp.Choices) == 0 {
			span.SetAttributes(attribute.String("error.type", "parse_error"))
			return nil, fmt.Errorf("%w: response contains no choices", verdict.ErrParsingFailed)
		}

		text := resp.Choices[0].Message.Content
		raw, perr := verdict.ExtractJSON(text)
		if perr != nil {
			span.SetAttributes(attribute.String("error.type", "parse_error"))
			return nil, fmt.Errorf("%w: %v", verdict.ErrParsingFailed, perr)
		}
		v, perr := verdict.Decode(raw)
		if perr != nil {
			span.SetAttributes(attribute.String("error.type", "parse_error"))
			return nil, perr
		}
		v.Usage = model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		v.RawText = text

		span.SetAttributes(
			attribute.Int64("gen_ai.usage.input_tokens", v.Usage.InputTokens),
			attribute.Int64("gen_ai.usage.output_tokens", v.Usage.OutputTokens),
		)
		return v, nil
	}

	return nil, lastErr
}

// classify extracts the HTTP status and rate-limit snapshot from an SDK
// error. Status 0 means the failure never produced a response.
func (o *OpenAI) classify(err error) (int, model.RateLimitSnapshot) {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		snap := model.RateLimitSnapshot{
			RequestsRemaining:     -1,
			InputTokensRemaining:  -1,
			OutputTokensRemaining: -1,
		}
		if apierr.Response != nil {
			snap = SnapshotFromHeaders(apierr.Response.Header)
		}
		return apierr.StatusCode, snap
	}
	return 0, model.RateLimitSnapshot{RequestsRemaining: -1, InputTokensRemaining: -1, OutputTokensRemaining: -1}
}

// apiMessage returns the provider's error message without the SDK's dumped
// request/response (which embeds the auth header).
func apiMessage(err error) string {
	var apierr *openai.Error
	if errors.As(err, &apierr) && apierr.Message != "" {
		return apierr.Message
	}
	return err.Error()
}

// networkKind classifies a transport failure the same way the Anthropic
// client does.
func networkKind(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NetworkDNS
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NetworkTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NetworkTimeout
	}
	return NetworkOffline
}
