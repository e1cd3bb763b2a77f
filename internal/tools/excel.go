package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai/jsonschema"

	"excel-mcp/internal/config"
	apperrors "excel-mcp/internal/errors"
	"excel-mcp/internal/logging"
	"excel-mcp/internal/resolver"
	"excel-mcp/internal/sheets"
	"excel-mcp/internal/store"
	"excel-mcp/internal/trades"
)

// Tool names.
const (
	UpdateRowByLookup = "excel.updateRowByLookup"
	UpdateRange       = "excel.updateRange"
	LogTrades         = "excel.logTrades"
	AppendRows        = "excel.appendRows"
)

// Deps wires the workbook tools.
type Deps struct {
	Backend      sheets.Backend
	Orchestrator *trades.Orchestrator
	Tracker      config.TrackerConfig
	Journal      store.Journal
	Logger       zerolog.Logger
}

// New builds the registry of workbook tools.
func New(deps Deps) *Registry {
	r := NewRegistry(deps.Journal, deps.Logger)
	e := &excelTools{
		backend:      deps.Backend,
		orchestrator: deps.Orchestrator,
		tracker:      deps.Tracker,
		journal:      deps.Journal,
	}

	r.Register(UpdateRowByLookup,
		"Find a row by looking up a value in a column, then write values into target columns of that row "+
			"(or of the row row_offset below it). reference_value \"latest\" selects the last filled row.",
		workbookSchema(map[string]jsonschema.Definition{
			"sheet_name":      {Type: jsonschema.String, Description: "Worksheet name"},
			"search_column":   {Type: jsonschema.String, Description: "Column letter to search, e.g. \"C\""},
			"reference_value": {Type: jsonschema.String, Description: "Value to find, or \"latest\" for the last filled row"},
			"target_columns":  {Type: jsonschema.String, Description: "JSON array of column letters, e.g. \"[\\\"D\\\",\\\"F\\\"]\""},
			"values":          {Type: jsonschema.String, Description: "JSON array of values, one per target column"},
			"row_offset":      {Type: jsonschema.Integer, Description: "Rows below the found row to write (default 0)"},
		}, "sheet_name", "search_column", "reference_value", "target_columns", "values"),
		e.updateRowByLookup)

	r.Register(UpdateRange,
		"Write a 2D array of values into a worksheet range. The array shape must match the address.",
		workbookSchema(map[string]jsonschema.Definition{
			"sheet_name": {Type: jsonschema.String, Description: "Worksheet name"},
			"address":    {Type: jsonschema.String, Description: "Range in A1 notation, e.g. \"A1:C2\""},
			"values":     {Type: jsonschema.String, Description: "JSON 2D array of values, one inner array per row"},
		}, "sheet_name", "address", "values"),
		e.updateRange)

	r.Register(LogTrades,
		"Log option trades to the trade tracker workbook, one row per trade, starting below the row of "+
			"reference_date. Expired trades close on their open date at 4:00 PM with zero debit.",
		jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"trades":         {Type: jsonschema.String, Description: "JSON array of trade objects (open_date, open_time, close_date, close_time, strategy, credit, debit, contracts, width, open_fees, close_fees, sold_call_strike, sold_put_strike, expired)"},
				"reference_date": {Type: jsonschema.String, Description: "Date in the search column to append below, or \"latest\" (default)"},
				"sheet_name":     {Type: jsonschema.String, Description: "Worksheet name (default: month of reference_date)"},
			},
			Required: []string{"trades"},
		},
		e.logTrades)

	r.Register(AppendRows,
		"Append rows to the end of a named table in a workbook.",
		workbookSchema(map[string]jsonschema.Definition{
			"table_name": {Type: jsonschema.String, Description: "Table name"},
			"rows":       {Type: jsonschema.String, Description: "JSON 2D array of values, one inner array per row"},
		}, "table_name", "rows"),
		e.appendRows)

	return r
}

// workbookSchema adds the workbook location parameters to props.
func workbookSchema(props map[string]jsonschema.Definition, required ...string) jsonschema.Definition {
	props["url"] = jsonschema.Definition{Type: jsonschema.String, Description: "SharePoint site or sharing URL of the workbook"}
	props["file_name"] = jsonschema.Definition{Type: jsonschema.String, Description: "Workbook file name, e.g. \"Trades.xlsx\""}
	props["drive_id"] = jsonschema.Definition{Type: jsonschema.String, Description: "Drive id (alternative to url and file_name)"}
	props["item_id"] = jsonschema.Definition{Type: jsonschema.String, Description: "Drive item id (alternative to url and file_name)"}
	props["site_id"] = jsonschema.Definition{Type: jsonschema.String, Description: "Optional SharePoint site id used with drive_id"}
	return jsonschema.Definition{Type: jsonschema.Object, Properties: props, Required: required}
}

type excelTools struct {
	backend      sheets.Backend
	orchestrator *trades.Orchestrator
	tracker      config.TrackerConfig
	journal      store.Journal
}

// RowUpdateResult is the result of excel.updateRowByLookup.
type RowUpdateResult struct {
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	SheetName    string   `json:"sheet_name"`
	FoundRow     int      `json:"found_row"`
	TargetRow    int      `json:"target_row"`
	RowOffset    int      `json:"row_offset"`
	UpdatedCells []string `json:"updated_cells"`
}

// RangeUpdateResult is the result of excel.updateRange.
type RangeUpdateResult struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	FileName    string `json:"file_name,omitempty"`
	SheetName   string `json:"sheet_name"`
	Address     string `json:"address"`
	RowCount    int    `json:"row_count"`
	ColumnCount int    `json:"column_count"`
}

// AppendRowsResult is the result of excel.appendRows.
type AppendRowsResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	TableName string `json:"table_name"`
	RowsAdded int    `json:"rows_added"`
	RowIndex  int    `json:"row_index"`
}

// workbook opens the workbook named by drive_id + item_id, or by url +
// file_name.
func (e *excelTools) workbook(ctx context.Context, args Args) (sheets.Store, error) {
	driveID, err := args.String("drive_id")
	if err != nil {
		return nil, err
	}
	itemID, err := args.String("item_id")
	if err != nil {
		return nil, err
	}
	if driveID != "" || itemID != "" {
		siteID, err := args.String("site_id")
		if err != nil {
			return nil, err
		}
		ref := sheets.WorkbookRef{SiteID: siteID, DriveID: driveID, ItemID: itemID}
		if err := ref.Validate(); err != nil {
			return nil, err
		}
		return e.backend.Workbook(ref), nil
	}

	url, err := args.String("url")
	if err != nil {
		return nil, err
	}
	fileName, err := args.String("file_name")
	if err != nil {
		return nil, err
	}
	if url == "" || fileName == "" {
		return nil, apperrors.NewValidationError("url", nil, "url and file_name, or drive_id and item_id, are required")
	}
	ref, err := e.backend.Locate(ctx, url, fileName)
	if err != nil {
		return nil, err
	}
	return e.backend.Workbook(ref), nil
}

func (e *excelTools) updateRowByLookup(ctx context.Context, args Args) (any, error) {
	sheet, err := args.Required("sheet_name")
	if err != nil {
		return nil, err
	}
	searchColumn, err := args.Required("search_column")
	if err != nil {
		return nil, err
	}
	reference, err := args.Required("reference_value")
	if err != nil {
		return nil, err
	}
	offset, err := args.Int("row_offset", 0)
	if err != nil {
		return nil, err
	}

	var columns []string
	if err := args.JSON("target_columns", &columns); err != nil {
		return nil, err
	}
	var values []any
	if err := args.JSON("values", &values); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, apperrors.NewValidationError("target_columns", nil, "at least one column is required")
	}
	if len(columns) != len(values) {
		return nil, apperrors.NewValidationError("values", len(values),
			fmt.Sprintf("got %d values for %d target columns", len(values), len(columns)))
	}
	cells := make(map[string]any, len(columns))
	for i, col := range columns {
		col = strings.ToUpper(strings.TrimSpace(col))
		if _, dup := cells[col]; dup {
			return nil, apperrors.NewValidationError("target_columns", col, "column given more than once")
		}
		cells[col] = values[i]
	}

	wb, err := e.workbook(ctx, args)
	if err != nil {
		return nil, err
	}

	res, err := resolver.ResolveAnchorRow(ctx, wb, sheet, searchColumn, reference, offset)
	if err != nil {
		return nil, err
	}
	updated, err := sheets.WriteCells(ctx, wb, sheet, cells, res.AnchorRow)
	if err != nil {
		return nil, err
	}

	return RowUpdateResult{
		Status:       StatusSuccess,
		Message:      fmt.Sprintf("Updated %d cells in row %d of '%s'", len(updated), res.AnchorRow, sheet),
		SheetName:    sheet,
		FoundRow:     res.FoundRow,
		TargetRow:    res.AnchorRow,
		RowOffset:    offset,
		UpdatedCells: updated,
	}, nil
}

func (e *excelTools) updateRange(ctx context.Context, args Args) (any, error) {
	sheet, err := args.Required("sheet_name")
	if err != nil {
		return nil, err
	}
	address, err := args.Required("address")
	if err != nil {
		return nil, err
	}
	var values [][]any
	if err := args.JSON("values", &values); err != nil {
		return nil, err
	}
	// Checked before any remote call.
	if _, err := sheets.CheckShape(address, values); err != nil {
		return nil, err
	}

	wb, err := e.workbook(ctx, args)
	if err != nil {
		return nil, err
	}
	res, err := wb.WriteRange(ctx, sheet, address, values)
	if err != nil {
		return nil, err
	}

	fileName, _ := args.String("file_name")
	return RangeUpdateResult{
		Status:      StatusSuccess,
		Message:     fmt.Sprintf("Updated range %s in sheet '%s'", address, sheet),
		FileName:    fileName,
		SheetName:   sheet,
		Address:     res.Address,
		RowCount:    res.RowCount,
		ColumnCount: res.ColumnCount,
	}, nil
}

func (e *excelTools) logTrades(ctx context.Context, args Args) (any, error) {
	var batch []map[string]any
	if err := args.JSON("trades", &batch); err != nil {
		return nil, err
	}
	referenceDate, err := args.String("reference_date")
	if err != nil {
		return nil, err
	}
	explicitSheet, err := args.String("sheet_name")
	if err != nil {
		return nil, err
	}
	for i, raw := range batch {
		if raw == nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("trades[%d]", i), nil, "must be an object")
		}
	}

	sheet := trades.SheetFor(explicitSheet, referenceDate, batch, e.tracker.DefaultSheet)
	if len(batch) == 0 {
		return e.orchestrator.LogTrades(ctx, nil, batch, referenceDate, sheet), nil
	}

	wb, err := e.trackerWorkbook(ctx)
	if err != nil {
		return nil, err
	}

	result := e.orchestrator.LogTrades(ctx, wb, batch, referenceDate, sheet)
	e.journalTrades(ctx, result)
	return result, nil
}

func (e *excelTools) trackerWorkbook(ctx context.Context) (sheets.Store, error) {
	if e.tracker.DriveID != "" && e.tracker.ItemID != "" {
		return e.backend.Workbook(sheets.WorkbookRef{DriveID: e.tracker.DriveID, ItemID: e.tracker.ItemID}), nil
	}
	if e.tracker.URL == "" || e.tracker.FileName == "" {
		return nil, apperrors.NewValidationError("tracker", nil,
			"trade tracker workbook is not configured (set TRADE_TRACKER_URL and TRADE_TRACKER_FILE)")
	}
	ref, err := e.backend.Locate(ctx, e.tracker.URL, e.tracker.FileName)
	if err != nil {
		return nil, err
	}
	return e.backend.Workbook(ref), nil
}

func (e *excelTools) journalTrades(ctx context.Context, result trades.BatchResult) {
	if e.journal == nil || len(result.Results) == 0 {
		return
	}
	writes := make([]store.TradeWrite, 0, len(result.Results))
	for _, o := range result.Results {
		writes = append(writes, store.TradeWrite{
			BatchID:    CallID(ctx),
			Sheet:      result.SheetName,
			TradeIndex: o.TradeIndex,
			Row:        o.Row,
			Status:     o.Status,
			ErrorType:  o.ErrorType,
			Message:    o.Message,
		})
	}
	if err := e.journal.RecordTradeWrites(context.WithoutCancel(ctx), writes); err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Msg("Failed to journal trade writes")
	}
}

func (e *excelTools) appendRows(ctx context.Context, args Args) (any, error) {
	table, err := args.Required("table_name")
	if err != nil {
		return nil, err
	}
	var rows [][]any
	if err := args.JSON("rows", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewValidationError("rows", nil, "at least one row is required")
	}

	wb, err := e.workbook(ctx, args)
	if err != nil {
		return nil, err
	}
	res, err := wb.AppendRows(ctx, table, rows)
	if err != nil {
		return nil, err
	}

	return AppendRowsResult{
		Status:    StatusSuccess,
		Message:   fmt.Sprintf("Successfully appended %d rows to table '%s'", res.RowsAdded, table),
		TableName: table,
		RowsAdded: res.RowsAdded,
		RowIndex:  res.Index,
	}, nil
}
