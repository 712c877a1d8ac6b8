package provider

import (
	"regexp"
	"strings"
)

// keyShape matches provider secret keys wherever they appear in error text
// or headers. Anthropic keys are sk-ant-…, OpenAI keys sk-…; both are long
// base62/dash/underscore runs after the prefix.
var keyShape = regexp.MustCompile(`sk-(?:ant-)?[A-Za-z0-9_-]{10,}`)

const redacted = "[REDACTED]"

// Redactor scrubs secrets from strings before they are logged or surfaced.
// Error text routinely embeds request headers (resty includes them in
// transport errors), so every message derived from a response or exception
// goes through here.
type Redactor struct {
	secrets []string
}

// NewRedactor creates a redactor for the given secret values. Empty and
// very short values are ignored so we never redact the whole message.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		if len(s) >= 6 {
			r.secrets = append(r.secrets, s)
		}
	}
	return r
}

// Sanitize replaces every known secret value and every key-shaped substring
// with [REDACTED]. Nil-safe.
func (r *Redactor) Sanitize(s string) string {
	if r != nil {
		for _, secret := range r.secrets {
			s = strings.ReplaceAll(s, secret, redacted)
		}
	}
	return keyShape.ReplaceAllString(s, redacted)
}
