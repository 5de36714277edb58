package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, buf.String())
	}
	return entry
}

// TestLogger_IncludesOperationFields verifies operation fields are present in log output.
func TestLogger_IncludesOperationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	op := Operation{Kind: KindQuery, Name: "postDetails", Resource: "Post"}
	logger.WithOperation(op).Info(context.Background(), "test message")

	entry := decodeLine(t, &buf)
	if v := entry["op.id"]; v != "query.postDetails" {
		t.Errorf("expected op.id='query.postDetails', got %v", v)
	}
	if v := entry["op.kind"]; v != "query" {
		t.Errorf("expected op.kind='query', got %v", v)
	}
	if v := entry["op.resource"]; v != "Post" {
		t.Errorf("expected op.resource='Post', got %v", v)
	}
	if v := entry["msg"]; v != "test message" {
		t.Errorf("expected msg='test message', got %v", v)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	logger.Info(context.Background(), "dropped")
	logger.Debug(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	logger.Error(context.Background(), "kept")
	entry := decodeLine(t, &buf)
	if entry["level"] != "error" {
		t.Errorf("expected level='error', got %v", entry["level"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "login",
		F("access_token", "eyJhbGciOi"),
		F("authorization", "Bearer abc"),
		F("user_id", "u-1"),
	)

	out := buf.String()
	if strings.Contains(out, "eyJhbGciOi") || strings.Contains(out, "Bearer abc") {
		t.Fatalf("credentials leaked into log output: %s", out)
	}
	entry := decodeLine(t, &buf)
	if entry["access_token"] != "[REDACTED]" {
		t.Errorf("expected access_token redacted, got %v", entry["access_token"])
	}
	if entry["user_id"] != "u-1" {
		t.Errorf("expected user_id='u-1', got %v", entry["user_id"])
	}
}

func TestLogger_ErrorValuesRenderAsStrings(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Warn(context.Background(), "failed", F("error", errors.New("connection reset")))

	entry := decodeLine(t, &buf)
	if entry["error"] != "connection reset" {
		t.Errorf("expected error='connection reset', got %v", entry["error"])
	}
}

func TestLogger_WithIsImmutable(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("info", &buf)
	child := base.With(F("component", "gateway"))

	base.Info(context.Background(), "base")
	entry := decodeLine(t, &buf)
	if _, ok := entry["component"]; ok {
		t.Errorf("parent logger picked up child field: %v", entry)
	}

	buf.Reset()
	child.Info(context.Background(), "child")
	entry = decodeLine(t, &buf)
	if entry["component"] != "gateway" {
		t.Errorf("expected component='gateway', got %v", entry["component"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := NewLoggerWithWriter("info", &bytes.Buffer{})
	if OrNop(l) != l {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
}
