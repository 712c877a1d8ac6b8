package model

import (
	"time"

	"github.com/google/uuid"
)

// Placement values the model may assign to a photograph. The set is closed;
// anything else in a response is a validation failure.
const (
	PlacementPortfolio = "PORTFOLIO"
	PlacementStore     = "STORE"
	PlacementBoth      = "BOTH"
	PlacementArchive   = "ARCHIVE"
	PlacementPractice  = "PRACTICE"
)

// Placements lists every valid placement, in display order.
var Placements = []string{
	PlacementPortfolio,
	PlacementStore,
	PlacementBoth,
	PlacementArchive,
	PlacementPractice,
}

// ValidPlacement reports whether p is one of the closed placement set.
func ValidPlacement(p string) bool {
	switch p {
	case PlacementPortfolio, PlacementStore, PlacementBoth, PlacementArchive, PlacementPractice:
		return true
	default:
		return false
	}
}

// Verdict is the structured evaluation result for one photograph, parsed
// from the JSON object embedded in the model's free-form reply.
type Verdict struct {
	// Category scores, each in [0,10].
	CompositionScore float64 `json:"composition_score"`
	QualityScore     float64 `json:"quality_score"`
	SellabilityScore float64 `json:"sellability_score"`
	ArtisticScore    float64 `json:"artistic_score"`
	// OverallScore is the weighted combination of the four categories, in [0,10].
	OverallScore float64 `json:"overall_weighted_score"`

	// PrimaryPlacement is one of the Placement* constants.
	PrimaryPlacement string `json:"primary_placement"`

	// Strengths and Improvements are ordered and must be non-empty.
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`

	// MarketComparison positions the photo against comparable stock/portfolio work.
	MarketComparison string `json:"market_comparison"`

	// Optional commercial fields. Absent when the model judges the photo
	// unsellable (ARCHIVE / PRACTICE placements).
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	AltText     string   `json:"alt_text,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	UseCases    []string `json:"use_cases,omitempty"`
	PriceTier   string   `json:"price_tier,omitempty"`
	PrintSize   string   `json:"print_size,omitempty"`

	// Usage and RawText are populated by the interpreter from the provider
	// envelope, not parsed from the verdict JSON.
	Usage   TokenUsage `json:"-"`
	RawText string     `json:"-"`
}

// TokenUsage tracks token consumption for a single evaluation.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// EvaluationRequest is the immutable input to one provider call.
type EvaluationRequest struct {
	// ImageBase64 is the base64-encoded JPEG payload.
	ImageBase64 string
	// MediaType is the image MIME type (always "image/jpeg" today).
	MediaType string
	// Prompt is the full evaluation prompt text.
	Prompt string
	// MaxTokens caps the model's output.
	MaxTokens int64
}

// JobStatus is the lifecycle state of an evaluation job.
// Transitions are Pending → InFlight → {Succeeded, Failed}; terminal states
// are never re-entered. A retry is a new job referencing the same source.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobInFlight  JobStatus = "in_flight"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// EvaluationJob is one photograph's evaluation attempt within a run.
// Mutated only by the coordinator.
type EvaluationJob struct {
	ID     uuid.UUID `json:"id"`
	Source string    `json:"source"`
	Status JobStatus `json:"status"`
	// Err holds the sanitized failure message when Status is JobFailed.
	Err string `json:"error,omitempty"`
}

// RateLimitSnapshot is the provider-reported quota state derived from one
// response's headers. Ephemeral; never persisted.
type RateLimitSnapshot struct {
	// Remaining counters are -1 when the corresponding header was absent.
	RequestsRemaining     int64
	InputTokensRemaining  int64
	OutputTokensRemaining int64

	// Reset instants are zero when the header was absent or unparseable.
	RequestsReset time.Time
	TokensReset   time.Time

	// RetryAfter is the server-suggested wait, 0 when absent.
	RetryAfter time.Duration
}

// Progress is an immutable snapshot of run state handed to observers after
// every state mutation.
type Progress struct {
	Cursor       int    `json:"cursor"`
	Total        int    `json:"total"`
	BatchIndex   int    `json:"batch_index"`
	TotalBatches int    `json:"total_batches"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
	Cancelled    bool   `json:"cancelled"`
	StatusMsg    string `json:"status_message"`
}

// Fraction returns Cursor/Total clamped to [0,1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Cursor) / float64(p.Total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
