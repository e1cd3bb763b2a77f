package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info().Msg("hello")
	if buf.Len() == 0 {
		t.Fatal("expected logger from context to write")
	}

	// A context without a logger yields a no-op logger.
	FromContext(context.Background()).Info().Msg("dropped")
}

func TestLogTradeWrite(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogTradeWrite(logger, "December", 1, 11, errors.New("remote unavailable"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["level"] != "warn" {
		t.Errorf("expected warn level for failed write, got %v", entry["level"])
	}
	if entry["row"] != float64(11) {
		t.Errorf("expected row 11, got %v", entry["row"])
	}
	if entry["sheet"] != "December" {
		t.Errorf("expected sheet December, got %v", entry["sheet"])
	}
}

func TestLogToolCall(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogToolCall(logger, "excel.updateRange", "error", 0, "ShapeMismatch")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["level"] != "warn" || entry["error_type"] != "ShapeMismatch" {
		t.Errorf("unexpected entry %v", entry)
	}
}
