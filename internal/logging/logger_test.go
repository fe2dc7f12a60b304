package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelInfo, &buf)

	logger.Info("Fetched items from source", WithFields(map[string]interface{}{
		"source": "tucker",
		"count":  3,
	}), WithError(errors.New("boom")))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["message"] != "Fetched items from source" {
		t.Errorf("message = %v", line["message"])
	}
	if line["source"] != "tucker" {
		t.Errorf("source = %v, want tucker", line["source"])
	}
	if line["count"] != float64(3) {
		t.Errorf("count = %v, want 3", line["count"])
	}
	if line["error"] != "boom" {
		t.Errorf("error = %v, want boom", line["error"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelWarn, &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}

	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn line missing: %q", buf.String())
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelInfo, &buf).With(map[string]interface{}{"run_id": "abc"})

	logger.Info("refresh")
	if !strings.Contains(buf.String(), `"run_id":"abc"`) {
		t.Errorf("child logger lost fields: %q", buf.String())
	}
}

func TestFormatWriter(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
	}{
		{"json", true},
		{"", true},
		{"console", false},
		{" Console ", false},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		NewWithWriter(LevelInfo, formatWriter(tt.format, &buf)).Info("Refresh complete", WithField("posts", 3))

		line := strings.TrimSpace(buf.String())
		var decoded map[string]interface{}
		isJSON := json.Unmarshal([]byte(line), &decoded) == nil
		if isJSON != tt.wantJSON {
			t.Errorf("formatWriter(%q) wrote %q, want JSON = %v", tt.format, line, tt.wantJSON)
		}
		if !strings.Contains(line, "Refresh complete") {
			t.Errorf("formatWriter(%q) lost the message: %q", tt.format, line)
		}
	}
}
