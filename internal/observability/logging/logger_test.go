package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONIncludesServiceAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "api", "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "operation", "qdrant.search")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %s", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["service"] != "api" || record["msg"] != "kept" || record["operation"] != "qdrant.search" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "indexer", "", "TEXT").Info("indexed", "chunks", 3)

	if !strings.Contains(buf.String(), "msg=indexed") || !strings.Contains(buf.String(), "service=indexer") {
		t.Fatalf("unexpected text output: %s", buf.String())
	}
}
