package sheetsobs

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"excel-mcp/internal/sheets"
)

func TestWrapRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	backend := Wrap(sheets.NewMemoryBackend(false), provider.Tracer("test"), logger)
	ctx := context.Background()

	ref, err := backend.Locate(ctx, "https://contoso.sharepoint.com/sites/trading", "Tracker.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	store := backend.Workbook(ref)

	if _, err := store.WriteRange(ctx, "Sheet1", "A1:B1", [][]any{{"a", "b"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ReadColumn(ctx, "Missing", "C"); err == nil {
		t.Fatal("expected NotFound for missing sheet")
	}

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	if spans[1].Name() != "sheets.WriteRange" {
		t.Errorf("span name = %s", spans[1].Name())
	}
	failed := spans[2]
	if failed.Status().Code != codes.Error || failed.Status().Description != "NotFound" {
		t.Errorf("failed span status = %+v", failed.Status())
	}

	if !strings.Contains(buf.String(), `"error_type":"NotFound"`) {
		t.Errorf("expected failure to be logged with its kind, got %s", buf.String())
	}
}
