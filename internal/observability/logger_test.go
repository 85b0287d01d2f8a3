package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func newBufferLogger(format string, level slog.Level, redactor *Redactor) (*Logger, *bytes.Buffer, *slog.LevelVar) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	lv.Set(level)
	return NewLogger(LoggerConfig{Level: lv, Output: &buf, Format: format}, redactor), &buf, lv
}

func TestNewLogger_JSONDefault(t *testing.T) {
	logger, buf, _ := newBufferLogger("", slog.LevelInfo, nil)
	logger.Info("memory added", "memory_id", "m1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "memory added" || rec["memory_id"] != "m1" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	logger, buf, _ := newBufferLogger("TEXT", slog.LevelInfo, nil)
	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("output = %q, want text format", buf.String())
	}
}

func TestLogger_LevelVarChangesAtRuntime(t *testing.T) {
	logger, buf, lv := newBufferLogger("json", slog.LevelInfo, nil)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug logged at info level: %s", buf.String())
	}

	lv.Set(slog.LevelDebug)
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug not logged after level change: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLogger_WithRequestID(t *testing.T) {
	logger, buf, _ := newBufferLogger("json", slog.LevelInfo, nil)

	logger.WithRequestID(ContextWithRequestID(context.Background(), "req-42")).Info("x")
	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Errorf("request id missing: %s", buf.String())
	}

	if logger.WithRequestID(context.Background()) != logger {
		t.Error("empty request id should return the same logger")
	}
}

func TestLogger_RedactsArgs(t *testing.T) {
	logger, buf, _ := newBufferLogger("json", slog.LevelDebug, NewRedactor())

	logger.RedactedError("embedding failed for sk-abcdefghijklmnopqrstuvwxyz123456",
		"error", errors.New("401 Bearer abc.def"),
		"text", "mail me at dave@example.com",
		"metadata", map[string]any{"token": "t"},
		"count", 3,
	)
	out := buf.String()
	for _, leaked := range []string{"sk-abcdefghij", "abc.def", "dave@example.com", `"token":"t"`} {
		if strings.Contains(out, leaked) {
			t.Errorf("output leaked %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, `"count":3`) {
		t.Errorf("non-string args should pass through: %s", out)
	}

	buf.Reset()
	logger.RedactedWarn("w", "k", "v")
	logger.RedactedDebug("d")
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("expected two records: %s", buf.String())
	}
}

func TestLogger_NoRedactor(t *testing.T) {
	logger, buf, _ := newBufferLogger("json", slog.LevelInfo, nil)
	logger.RedactedError("plain", "email", "erin@example.com")
	if !strings.Contains(buf.String(), "erin@example.com") {
		t.Errorf("without a redactor output should be unchanged: %s", buf.String())
	}
	if logger.Slog() == nil {
		t.Error("Slog() returned nil")
	}
}

func TestWrapLogger_Redacts(t *testing.T) {
	var buf bytes.Buffer
	logger := WrapLogger(slog.New(slog.NewTextHandler(&buf, nil)), NewRedactor())

	logger.RedactedWarn("provider rejected key", "error", errors.New("bad key sk-abcdefghijklmnopqrstuvwxyz"))
	if strings.Contains(buf.String(), "sk-abcdefghij") {
		t.Fatalf("key leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[REDACTED_OPENAI_KEY]") {
		t.Errorf("output = %q, want redaction marker", buf.String())
	}
}
