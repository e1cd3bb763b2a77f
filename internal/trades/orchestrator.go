package trades

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	apperrors "excel-mcp/internal/errors"
	"excel-mcp/internal/logging"
	"excel-mcp/internal/resolver"
	"excel-mcp/internal/sheets"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// anchorOffset places the first trade on the row after the reference row.
const anchorOffset = 1

// TradeOutcome is the result for one trade of a batch.
type TradeOutcome struct {
	TradeIndex   int            `json:"trade_index"`
	Row          int            `json:"row"`
	Status       string         `json:"status"`
	Fields       map[string]any `json:"fields,omitempty"`
	UpdatedCells []string       `json:"updated_cells,omitempty"`
	ErrorType    string         `json:"error_type,omitempty"`
	Message      string         `json:"message,omitempty"`
}

// BatchResult aggregates a LogTrades call. Status is success only when every
// trade was written.
type BatchResult struct {
	Status         string         `json:"status"`
	Message        string         `json:"message"`
	SheetName      string         `json:"sheet_name,omitempty"`
	ReferenceDate  string         `json:"reference_date,omitempty"`
	AnchorRow      int            `json:"anchor_row,omitempty"`
	AnchorFallback bool           `json:"anchor_fallback,omitempty"`
	TradesLogged   int            `json:"trades_logged"`
	TradesFailed   int            `json:"trades_failed,omitempty"`
	ErrorType      string         `json:"error_type,omitempty"`
	Results        []TradeOutcome `json:"results,omitempty"`
}

// Failed reports whether any part of the batch failed.
func (r BatchResult) Failed() bool { return r.Status != StatusSuccess }

// Orchestrator writes batches of trades below an anchor row.
type Orchestrator struct {
	mapping      ColumnMapping
	searchColumn string
	logger       zerolog.Logger
}

// NewOrchestrator creates an orchestrator searching searchColumn for the
// reference date.
func NewOrchestrator(mapping ColumnMapping, searchColumn string, logger zerolog.Logger) *Orchestrator {
	if searchColumn == "" {
		searchColumn = mapping.Column(OpenDate)
	}
	return &Orchestrator{
		mapping:      mapping,
		searchColumn: searchColumn,
		logger:       logger.With().Str("component", "trades").Logger(),
	}
}

// LogTrades writes batch into sheet. The anchor is the row after
// referenceDate ("latest" or empty for the last filled row) in the search
// column; a missing reference anchors at the end of data. Trade i goes to
// anchor+i. A failed trade is reported and the rest of the batch continues.
func (o *Orchestrator) LogTrades(ctx context.Context, store sheets.Store, batch []map[string]any, referenceDate, sheet string) BatchResult {
	if len(batch) == 0 {
		return BatchResult{Status: StatusSuccess, Message: "No trades to log", TradesLogged: 0}
	}

	if referenceDate == "" {
		referenceDate = resolver.Latest
	}
	logger := logging.WithSheet(o.logger, sheet)

	res, fallback, err := resolver.ResolveOrEnd(ctx, store, sheet, o.searchColumn, referenceDate, anchorOffset)
	if err != nil {
		logger.Warn().Err(err).Str("reference_date", referenceDate).Msg("Anchor resolution failed")
		return BatchResult{
			Status:        StatusError,
			Message:       fmt.Sprintf("Could not resolve anchor row: %v", err),
			SheetName:     sheet,
			ReferenceDate: referenceDate,
			ErrorType:     apperrors.Kind(err),
			TradesFailed:  len(batch),
		}
	}
	if fallback {
		logger.Info().Str("reference_date", referenceDate).Int("row", res.AnchorRow).
			Msg("Reference not found, appending after last row")
	}

	result := BatchResult{
		SheetName:      sheet,
		ReferenceDate:  referenceDate,
		AnchorRow:      res.AnchorRow,
		AnchorFallback: fallback,
		Results:        make([]TradeOutcome, 0, len(batch)),
	}

	for i, raw := range batch {
		row := res.AnchorRow + i
		outcome := o.writeTrade(ctx, store, sheet, raw, row)
		outcome.TradeIndex = i

		var writeErr error
		if outcome.Status == StatusSuccess {
			result.TradesLogged++
		} else {
			result.TradesFailed++
			writeErr = fmt.Errorf("%s: %s", outcome.ErrorType, outcome.Message)
		}
		logging.LogTradeWrite(logger, sheet, i, row, writeErr)
		result.Results = append(result.Results, outcome)
	}

	if result.TradesFailed == 0 {
		result.Status = StatusSuccess
		result.Message = fmt.Sprintf("Logged %d trades to '%s' starting at row %d", result.TradesLogged, sheet, res.AnchorRow)
	} else {
		result.Status = StatusError
		result.Message = fmt.Sprintf("%d of %d trades logged to '%s'", result.TradesLogged, len(batch), sheet)
	}
	return result
}

func (o *Orchestrator) writeTrade(ctx context.Context, store sheets.Store, sheet string, raw map[string]any, row int) TradeOutcome {
	fail := func(err error) TradeOutcome {
		return TradeOutcome{Row: row, Status: StatusError, ErrorType: apperrors.Kind(err), Message: err.Error()}
	}

	rec, err := ResolveAliases(raw)
	if err != nil {
		return fail(err)
	}
	assignments, err := Normalize(rec, o.mapping)
	if err != nil {
		return fail(err)
	}

	addrs, err := sheets.WriteCells(ctx, store, sheet, Cells(assignments), row)
	if err != nil {
		return fail(err)
	}

	return TradeOutcome{
		Row:          row,
		Status:       StatusSuccess,
		Fields:       FieldValues(assignments),
		UpdatedCells: addrs,
	}
}
