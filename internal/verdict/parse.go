// Package verdict interprets provider responses: it digs the verdict JSON out
// of the model's free-form reply, decodes it, and enforces the scoring policy.
//
// The model's output is untrusted input. Everything here is deterministic
// given the same response body, so a failure at this layer is terminal for
// the job: retrying the same content would fail the same way.
package verdict

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"photo-critic/internal/model"
)

// ErrParsingFailed marks responses whose envelope or embedded JSON could not
// be decoded.
var ErrParsingFailed = errors.New("parsing failed")

// ErrValidationFailure marks verdicts that decoded fine but violate the
// scoring policy (score bounds, empty lists, unknown placement).
var ErrValidationFailure = errors.New("validation failure")

// Parse decodes a provider success body into a validated Verdict.
//
// The body is the Anthropic-style message envelope: the assistant's text
// lives in content[].text and token counts in usage. Diagnostics never quote
// the raw reply; it can contain anything the model chose to say.
func Parse(body []byte) (*model.Verdict, error) {
	root := gjson.ParseBytes(body)

	text := ""
	for _, block := range root.Get("content").Array() {
		if block.Get("type").String() == "text" {
			text = block.Get("text").String()
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("%w: response contains no text content block", ErrParsingFailed)
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	v.Usage = model.TokenUsage{
		InputTokens:  root.Get("usage.input_tokens").Int(),
		OutputTokens: root.Get("usage.output_tokens").Int(),
	}
	v.RawText = text

	return v, nil
}

// Decode unmarshals an extracted verdict JSON object and validates it.
// Usage and RawText are left for the caller to fill in.
func Decode(raw string) (*model.Verdict, error) {
	var v model.Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: verdict JSON does not match the expected schema: %v", ErrParsingFailed, err)
	}
	if err := Validate(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate enforces the verdict policy: every score in [0,10], non-empty
// strengths and improvements, placement from the closed set.
func Validate(v *model.Verdict) error {
	scores := []struct {
		name  string
		value float64
	}{
		{"composition_score", v.CompositionScore},
		{"quality_score", v.QualityScore},
		{"sellability_score", v.SellabilityScore},
		{"artistic_score", v.ArtisticScore},
		{"overall_weighted_score", v.OverallScore},
	}
	for _, s := range scores {
		if s.value < 0 || s.value > 10 {
			return fmt.Errorf("%w: %s %v out of range [0,10]", ErrValidationFailure, s.name, s.value)
		}
	}

	if len(v.Strengths) == 0 {
		return fmt.Errorf("%w: strengths must not be empty", ErrValidationFailure)
	}
	if len(v.Improvements) == 0 {
		return fmt.Errorf("%w: improvements must not be empty", ErrValidationFailure)
	}

	if !model.ValidPlacement(v.PrimaryPlacement) {
		return fmt.Errorf("%w: unknown primary_placement %q", ErrValidationFailure, v.PrimaryPlacement)
	}

	return nil
}
