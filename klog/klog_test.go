package klog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
	logger.Info("task created", slog.Int("task_id", 3))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log line: %v", err)
	}
	if entry["msg"] != "task created" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: slog.LevelInfo, Format: "text", Output: &buf})
	logger.Info("tick")
	if !strings.Contains(buf.String(), "tick") {
		t.Errorf("expected text output to contain message, got %q", buf.String())
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: "json", Output: &buf})
	ctx := ContextWithLogger(context.Background(), logger)

	got := FromContext(ctx)
	got.Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Error("expected context-scoped logger to be used")
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	got := FromContext(context.Background())
	if got != Default() {
		t.Error("expected default logger when none attached to context")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(Config{Format: "json", Output: &buf})
	logger := WithTask(WithPriority(WithOperation(base, "insert"), 20), 7)
	logger.Info("enqueued")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["task_id"] != float64(7) || entry["priority"] != float64(20) || entry["operation"] != "insert" {
		t.Errorf("unexpected fields: %v", entry)
	}
}
