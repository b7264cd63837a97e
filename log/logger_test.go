package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for name, expected := range map[string]LogLevel{"debug": Debug, "INFO": Info, "warning": Warn, "error": Error} {
		level, err := ParseLevel(name)
		if err != nil || level != expected {
			t.Fatalf("ParseLevel(%q) = %v, %v", name, level, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("ParseLevel accepted an unknown level")
	}
}

func TestLoggerFiltersLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("treefs", Warn, &buf)

	logger.Info("hidden %d", 1)
	logger.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown 2") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "[treefs]") {
		t.Fatalf("missing logger name: %q", out)
	}
}

func TestLoggerNamedJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("treefs", Debug, &buf)
	logger.JSON = true

	logger.Named("copy").Debug("Copy: wrote %s", "/a")

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json line %q: %v", buf.String(), err)
	}
	if entry.Service != "treefs/copy" || entry.Message != "Copy: wrote /a" || entry.Level != "DEBUG" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(Fatal) {
		t.Fatalf("Discard logger must not be enabled")
	}
	logger.Error("dropped")
}
