package verdict

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"photo-critic/internal/model"
)

func validVerdict() model.Verdict {
	return model.Verdict{
		CompositionScore: 8.5,
		QualityScore:     7.0,
		SellabilityScore: 6.5,
		ArtisticScore:    9.0,
		OverallScore:     7.8,
		PrimaryPlacement: model.PlacementPortfolio,
		Strengths:        []string{"strong leading lines", "clean exposure"},
		Improvements:     []string{"crop tighter on the subject"},
		MarketComparison: "comparable to mid-tier landscape stock",
		Title:            "Dawn over the ridge",
		Keywords:         []string{"landscape", "sunrise"},
		PriceTier:        "standard",
	}
}

// envelope wraps verdict JSON in an Anthropic-style success body with the
// verdict text embedded in surrounding prose.
func envelope(t *testing.T, verdictJSON string, inputTokens, outputTokens int64) []byte {
	t.Helper()
	text := "Here is my detailed evaluation of the photograph.\n\n" +
		"```json\n" + verdictJSON + "\n```\n\nOverall a solid frame."
	body := map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"usage": map[string]int64{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestParse_RoundTrip(t *testing.T) {
	want := validVerdict()
	raw, err := json.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Parse(envelope(t, string(raw), 1200, 450))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// Field-for-field equality for everything that came from the JSON.
	gotCopy := *got
	gotCopy.Usage = model.TokenUsage{}
	gotCopy.RawText = ""
	if !reflect.DeepEqual(gotCopy, want) {
		t.Errorf("verdict mismatch:\n got:  %+v\n want: %+v", gotCopy, want)
	}

	if got.Usage.InputTokens != 1200 || got.Usage.OutputTokens != 450 {
		t.Errorf("usage: got %+v, want 1200/450", got.Usage)
	}
	if got.RawText == "" {
		t.Error("RawText should carry the assistant text")
	}
}

func TestParse_ScoreOutOfRange(t *testing.T) {
	tests := []struct {
		field string
		value float64
	}{
		{"composition_score", 10.5},
		{"quality_score", -1},
		{"sellability_score", 11},
		{"artistic_score", -0.01},
		{"overall_weighted_score", 10.5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s=%v", tt.field, tt.value), func(t *testing.T) {
			v := validVerdict()
			raw, _ := json.Marshal(v)
			patched := patchField(t, raw, tt.field, tt.value)

			_, err := Parse(envelope(t, patched, 1, 1))
			if !errors.Is(err, ErrValidationFailure) {
				t.Fatalf("expected ErrValidationFailure, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error should name the field %q: %v", tt.field, err)
			}
		})
	}
}

func TestParse_EmptyLists(t *testing.T) {
	for _, field := range []string{"strengths", "improvements"} {
		t.Run(field, func(t *testing.T) {
			v := validVerdict()
			raw, _ := json.Marshal(v)
			patched := patchField(t, raw, field, []string{})

			_, err := Parse(envelope(t, patched, 1, 1))
			if !errors.Is(err, ErrValidationFailure) {
				t.Fatalf("expected ErrValidationFailure, got: %v", err)
			}
		})
	}
}

func TestParse_UnknownPlacement(t *testing.T) {
	v := validVerdict()
	raw, _ := json.Marshal(v)
	patched := patchField(t, raw, "primary_placement", "UNKNOWN")

	_, err := Parse(envelope(t, patched, 1, 1))
	if !errors.Is(err, ErrValidationFailure) {
		t.Fatalf("expected ErrValidationFailure, got: %v", err)
	}
	if !strings.Contains(err.Error(), "UNKNOWN") {
		t.Errorf("error should name the invalid value: %v", err)
	}
}

func TestParse_NoTextBlock(t *testing.T) {
	body := []byte(`{"content":[{"type":"tool_use"}],"usage":{"input_tokens":1,"output_tokens":1}}`)
	_, err := Parse(body)
	if !errors.Is(err, ErrParsingFailed) {
		t.Fatalf("expected ErrParsingFailed, got: %v", err)
	}
}

func TestParse_NoJSONInText(t *testing.T) {
	body := []byte(`{"content":[{"type":"text","text":"I cannot evaluate this image."}],"usage":{}}`)
	_, err := Parse(body)
	if !errors.Is(err, ErrParsingFailed) {
		t.Fatalf("expected ErrParsingFailed, got: %v", err)
	}
}

func TestParse_MalformedVerdictJSON(t *testing.T) {
	// Balanced braces but a schema mismatch: scores as objects.
	body := envelope(t, `{"composition_score": {"nested": true}}`, 1, 1)
	_, err := Parse(body)
	if !errors.Is(err, ErrParsingFailed) {
		t.Fatalf("expected ErrParsingFailed, got: %v", err)
	}
}

// patchField re-marshals the verdict JSON with one field replaced.
func patchField(t *testing.T, raw []byte, field string, value any) string {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	m[field] = value
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}
