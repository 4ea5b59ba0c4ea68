package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestInfoWritesFieldsAsJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Service: "writer-api", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	Info("pipeline.stage", map[string]any{
		"item_id":          "item-1",
		"stage_transition": "requested->structure_pending",
	})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if entry["message"] != "pipeline.stage" {
		t.Fatalf("expected message pipeline.stage, got %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Fatalf("expected level info, got %v", entry["level"])
	}
	if entry["service"] != "writer-api" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
	if entry["item_id"] != "item-1" {
		t.Fatalf("expected item_id field, got %v", entry["item_id"])
	}
}

func TestLevelFiltersLowerEvents(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "error", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	Info("dropped", nil)
	Error("kept", map[string]any{"error": errors.New("boom")})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["error"] != "boom" {
		t.Fatalf("expected error field boom, got %v", entry["error"])
	}
}
