package logger

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	t.Setenv("LOG_REDACTION_ENABLED", "true")
	out := sanitizeKVs([]interface{}{
		"openclaw_key", "abc",
		"user_id", "7b0e3c1e-8f57-4a52-9d35-2b1f8a8a1c11",
		"route_id", "r1",
		"meta", map[string]interface{}{"password": "pw", "topic": "go"},
	})
	if len(out) != 8 {
		t.Fatalf("len=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("openclaw_key not redacted: %v", out[1])
	}
	if s, _ := out[3].(string); !strings.HasPrefix(s, "hash:") {
		t.Fatalf("user_id not hashed: %v", out[3])
	}
	if out[5] != "r1" {
		t.Fatalf("route_id changed: %v", out[5])
	}
	meta := out[7].(map[string]interface{})
	if meta["password"] != "[REDACTED]" || meta["topic"] != "go" {
		t.Fatalf("nested map: %v", meta)
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected: %v", out)
	}
}

func TestNewWithFileSink(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	l, err := NewWithOptions(Options{Mode: "production", File: file})
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	l.With("component", "test").Info("hello", "k", "v")
	l.Sync()
}

func TestNewTestModeIsNop(t *testing.T) {
	l, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("discarded")
}
