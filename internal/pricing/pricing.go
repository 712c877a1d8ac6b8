// Package pricing estimates the dollar cost of an evaluation from token counts.
package pricing

import "photo-critic/internal/model"

// Price is a model's cost per million tokens, in USD.
type Price struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// prices maps model identifiers to their published per-million-token rates.
// Unknown models fall back to defaultPrice so cost tracking degrades to an
// estimate instead of zero.
var prices = map[string]Price{
	"claude-sonnet-4-5": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-haiku-4-5":  {InputPerMTok: 1.00, OutputPerMTok: 5.00},
	"claude-opus-4-1":   {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"gpt-4o":            {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":       {InputPerMTok: 0.15, OutputPerMTok: 0.60},
}

var defaultPrice = Price{InputPerMTok: 3.00, OutputPerMTok: 15.00}

// PriceFor returns the price table entry for a model, or the default rate
// when the model is unknown.
func PriceFor(modelID string) Price {
	if p, ok := prices[modelID]; ok {
		return p
	}
	return defaultPrice
}

// Cost converts token counts to USD at the given per-million-token rates.
// Inputs are not validated; garbage in, garbage out.
func Cost(inputTokens, outputTokens int64, inputPerMTok, outputPerMTok float64) float64 {
	return float64(inputTokens)/1e6*inputPerMTok + float64(outputTokens)/1e6*outputPerMTok
}

// CostOf prices a usage record against a model's published rates.
func CostOf(modelID string, usage model.TokenUsage) float64 {
	p := PriceFor(modelID)
	return Cost(usage.InputTokens, usage.OutputTokens, p.InputPerMTok, p.OutputPerMTok)
}
