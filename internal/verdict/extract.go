package verdict

import "fmt"

// maxScanChars bounds the extraction scan so a pathological reply cannot
// make us walk megabytes of text.
const maxScanChars = 100_000

// ExtractJSON returns the first balanced JSON object embedded in text.
//
// The model wraps its verdict in prose and markdown, so we cannot decode the
// reply directly, and a flat regex breaks on nested objects. Instead we track
// brace depth, skipping braces that appear inside JSON strings (including
// escaped quotes).
func ExtractJSON(text string) (string, error) {
	limit := len(text)
	if limit > maxScanChars {
		limit = maxScanChars
	}

	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < limit; i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response text")
	}
	return "", fmt.Errorf("unbalanced JSON object in response text (scanned %d chars)", limit)
}
