// Package prompt provides the evaluation prompt sent with every photograph.
package prompt

import (
	_ "embed"
)

// Version identifies the current prompt revision. Bump when the prompt text
// or the verdict schema it requests changes, so stored results can be traced
// back to the prompt that produced them.
const Version = "v4"

// evaluatePrompt is the evaluation instruction for the vision model.
// Loaded from prompts/evaluate.md at compile time.
//
//go:embed prompts/evaluate.md
var evaluatePrompt string

// Current returns the evaluation prompt text. Embedding makes this a cached,
// allocation-free lookup.
func Current() string {
	return evaluatePrompt
}

// Embedded adapts the package-level prompt to the coordinator's Prompter
// interface.
type Embedded struct{}

func (Embedded) Current() string { return Current() }
func (Embedded) Version() string { return Version }
