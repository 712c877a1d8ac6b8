package provider

import (
	"strings"
	"testing"
)

func TestRedactor_RedactsConfiguredSecret(t *testing.T) {
	r := NewRedactor("my-secret-token-value")

	got := r.Sanitize("request failed with header Authorization: my-secret-token-value end")
	if strings.Contains(got, "my-secret-token-value") {
		t.Errorf("secret leaked: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Errorf("expected [REDACTED] marker: %q", got)
	}
}

func TestRedactor_RedactsKeyShapedSubstrings(t *testing.T) {
	// Key never registered with the redactor: caught by shape alone.
	r := NewRedactor()

	msg := "POST failed: x-api-key: sk-ant-REDACTED status 400"
	got := r.Sanitize(msg)
	if strings.Contains(got, "sk-ant-") {
		t.Errorf("key-shaped substring leaked: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Errorf("expected [REDACTED] marker: %q", got)
	}
}

func TestRedactor_RedactsOpenAIKeyShape(t *testing.T) {
	r := NewRedactor()
	got := r.Sanitize("auth with sk-proj1234567890abcdef failed")
	if strings.Contains(got, "sk-proj1234567890abcdef") {
		t.Errorf("key leaked: %q", got)
	}
}

func TestRedactor_LeavesNormalTextAlone(t *testing.T) {
	r := NewRedactor("some-secret-value")
	msg := "connection refused: dial tcp 127.0.0.1:443"
	if got := r.Sanitize(msg); got != msg {
		t.Errorf("message mangled: got %q, want %q", got, msg)
	}
}

func TestRedactor_IgnoresShortSecrets(t *testing.T) {
	// A short secret like "key" must not cause "monkey" to be redacted.
	r := NewRedactor("key")
	msg := "monkey business"
	if got := r.Sanitize(msg); got != msg {
		t.Errorf("short secret was applied: got %q", got)
	}
}

func TestRedactor_NilSafe(t *testing.T) {
	var r *Redactor
	if got := r.Sanitize("sk-ant-abcdef12345678"); strings.Contains(got, "sk-ant-") {
		t.Errorf("nil redactor should still redact by shape: %q", got)
	}
}
