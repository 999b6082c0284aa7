package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_JSONIncludesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = WithProvider(ctx, "primary")
	l.Info(ctx, "dispatching request")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode log line: %v (line=%s)", err, buf.String())
	}
	if decoded["request_id"] != "req-123" {
		t.Errorf("request_id = %v", decoded["request_id"])
	}
	if decoded["provider"] != "primary" {
		t.Errorf("provider = %v", decoded["provider"])
	}
}

func TestLogger_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug(context.Background(), "should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level for a debug line, got %q", buf.String())
	}
	l.Info(context.Background(), "should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected info line to be written")
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNew_UnknownLevel(t *testing.T) {
	if _, err := New(Config{Level: "trace"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
