// Package sheetsobs decorates a sheets.Backend with spans and structured logs.
package sheetsobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "excel-mcp/internal/errors"
	"excel-mcp/internal/sheets"
)

type observableBackend struct {
	backend sheets.Backend
	tracer  trace.Tracer
	logger  zerolog.Logger
}

var _ sheets.Backend = (*observableBackend)(nil)

// Wrap wraps a backend so that every store call opens a span and logs its outcome.
func Wrap(backend sheets.Backend, tracer trace.Tracer, logger zerolog.Logger) sheets.Backend {
	return &observableBackend{
		backend: backend,
		tracer:  tracer,
		logger:  logger.With().Str("component", "sheets").Logger(),
	}
}

func (o *observableBackend) Locate(ctx context.Context, siteURL, fileName string) (sheets.WorkbookRef, error) {
	ctx, span := o.tracer.Start(ctx, "sheets.Locate", trace.WithAttributes(
		attribute.String("workbook.file_name", fileName),
	))
	defer span.End()

	start := time.Now()
	ref, err := o.backend.Locate(ctx, siteURL, fileName)
	o.finish(span, "locate", start, err).Str("file_name", fileName).Msg("Workbook located")
	return ref, err
}

func (o *observableBackend) Workbook(ref sheets.WorkbookRef) sheets.Store {
	return &observableStore{
		store:  o.backend.Workbook(ref),
		tracer: o.tracer,
		logger: o.logger.With().Str("workbook", ref.String()).Logger(),
	}
}

func (o *observableBackend) finish(span trace.Span, op string, start time.Time, err error) *zerolog.Event {
	return finish(o.logger, span, op, start, err)
}

type observableStore struct {
	store  sheets.Store
	tracer trace.Tracer
	logger zerolog.Logger
}

var _ sheets.Store = (*observableStore)(nil)

func (o *observableStore) ReadColumn(ctx context.Context, sheet, column string) ([]string, error) {
	ctx, span := o.tracer.Start(ctx, "sheets.ReadColumn", trace.WithAttributes(
		attribute.String("sheet.name", sheet),
		attribute.String("sheet.column", column),
	))
	defer span.End()

	start := time.Now()
	cells, err := o.store.ReadColumn(ctx, sheet, column)
	span.SetAttributes(attribute.Int("sheet.cells", len(cells)))
	finish(o.logger, span, "readColumn", start, err).
		Str("sheet", sheet).Str("column", column).Int("cells", len(cells)).
		Msg("Column read")
	return cells, err
}

func (o *observableStore) ReadRange(ctx context.Context, sheet, address string) ([][]any, error) {
	ctx, span := o.tracer.Start(ctx, "sheets.ReadRange", trace.WithAttributes(
		attribute.String("sheet.name", sheet),
		attribute.String("sheet.address", address),
	))
	defer span.End()

	start := time.Now()
	values, err := o.store.ReadRange(ctx, sheet, address)
	finish(o.logger, span, "readRange", start, err).
		Str("sheet", sheet).Str("address", address).
		Msg("Range read")
	return values, err
}

func (o *observableStore) WriteRange(ctx context.Context, sheet, address string, values [][]any) (sheets.RangeResult, error) {
	ctx, span := o.tracer.Start(ctx, "sheets.WriteRange", trace.WithAttributes(
		attribute.String("sheet.name", sheet),
		attribute.String("sheet.address", address),
		attribute.Int("sheet.rows", len(values)),
	))
	defer span.End()

	start := time.Now()
	res, err := o.store.WriteRange(ctx, sheet, address, values)
	finish(o.logger, span, "writeRange", start, err).
		Str("sheet", sheet).Str("address", address).Int("rows", len(values)).
		Msg("Range written")
	return res, err
}

func (o *observableStore) AppendRows(ctx context.Context, table string, rows [][]any) (sheets.AppendResult, error) {
	ctx, span := o.tracer.Start(ctx, "sheets.AppendRows", trace.WithAttributes(
		attribute.String("sheet.table", table),
		attribute.Int("sheet.rows", len(rows)),
	))
	defer span.End()

	start := time.Now()
	res, err := o.store.AppendRows(ctx, table, rows)
	finish(o.logger, span, "appendRows", start, err).
		Str("table", table).Int("rows", len(rows)).
		Msg("Rows appended")
	return res, err
}

// finish records err on the span and returns a log event at the matching level.
func finish(logger zerolog.Logger, span trace.Span, op string, start time.Time, err error) *zerolog.Event {
	var event *zerolog.Event
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.Kind(err))
		event = logger.Warn().Err(err).Str("error_type", apperrors.Kind(err))
	} else {
		event = logger.Debug()
	}
	return event.Str("op", op).Dur("duration", time.Since(start))
}
