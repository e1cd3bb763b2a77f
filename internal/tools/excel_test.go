package tools

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"excel-mcp/internal/config"
	apperrors "excel-mcp/internal/errors"
	"excel-mcp/internal/sheets"
	"excel-mcp/internal/store"
	"excel-mcp/internal/trades"
)

const (
	siteURL  = "https://contoso.sharepoint.com/sites/trading"
	fileName = "Trades.xlsx"
)

// fakeJournal keeps journal entries in memory.
type fakeJournal struct {
	mu     sync.Mutex
	calls  []store.ToolCall
	writes []store.TradeWrite
	fail   error
}

func (j *fakeJournal) RecordCall(ctx context.Context, call *store.ToolCall) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.calls = append(j.calls, *call)
	return nil
}

func (j *fakeJournal) RecentCalls(ctx context.Context, filter store.CallFilter) ([]store.ToolCall, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]store.ToolCall(nil), j.calls...), nil
}

func (j *fakeJournal) RecordTradeWrites(ctx context.Context, writes []store.TradeWrite) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.writes = append(j.writes, writes...)
	return nil
}

func (j *fakeJournal) TradeWrites(ctx context.Context, batchID string) ([]store.TradeWrite, error) {
	return nil, nil
}

func (j *fakeJournal) Close() error { return nil }

type fixture struct {
	backend *sheets.MemoryBackend
	journal *fakeJournal
	reg     *Registry
	book    *sheets.MemoryStore
}

func newFixture(t *testing.T, tracker config.TrackerConfig) *fixture {
	t.Helper()
	backend := sheets.NewMemoryBackend(false)
	journal := &fakeJournal{}
	reg := New(Deps{
		Backend:      backend,
		Orchestrator: trades.NewOrchestrator(trades.DefaultColumnMapping(), "C", zerolog.Nop()),
		Tracker:      tracker,
		Journal:      journal,
		Logger:       zerolog.Nop(),
	})

	ref, err := backend.Locate(context.Background(), siteURL, fileName)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	return &fixture{backend: backend, journal: journal, reg: reg, book: backend.Book(ref)}
}

func (f *fixture) call(t *testing.T, name string, args map[string]any) Result {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.reg.Call(context.Background(), name, raw)
	if err != nil {
		t.Fatalf("Call(%s) error = %v", name, err)
	}
	return res
}

func errorType(t *testing.T, res Result) string {
	t.Helper()
	p, ok := res.Payload.(ErrorPayload)
	if !ok {
		t.Fatalf("expected ErrorPayload, got %T: %s", res.Payload, res.Text())
	}
	return p.ErrorType
}

func TestToolsListedInOrder(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})

	var names []string
	for _, tool := range f.reg.List() {
		names = append(names, tool.Name)
	}
	want := []string{UpdateRowByLookup, UpdateRange, LogTrades, AppendRows}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("List() = %v, want %v", names, want)
	}

	defs := f.reg.Definitions()
	if len(defs) != 4 || defs[1].Function.Name != UpdateRange {
		t.Fatalf("Definitions() = %+v", defs)
	}
	tool, _ := f.reg.Lookup(UpdateRange)
	if !reflect.DeepEqual(tool.Parameters.Required, []string{"sheet_name", "address", "values"}) {
		t.Errorf("required = %v", tool.Parameters.Required)
	}
	if _, ok := tool.Parameters.Properties["drive_id"]; !ok {
		t.Error("workbook location parameters missing from schema")
	}
}

func TestUpdateRangeShapeMismatch(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})

	res := f.call(t, UpdateRange, map[string]any{
		"url":        siteURL,
		"file_name":  fileName,
		"sheet_name": "Sheet1",
		"address":    "A1:C2",
		"values":     "[[1,2,3],[4,5,6],[7,8,9]]",
	})
	if !res.IsError || errorType(t, res) != apperrors.KindShapeMismatch {
		t.Fatalf("expected ShapeMismatch, got %s", res.Text())
	}
	if f.book.Calls() != 0 {
		t.Errorf("shape mismatch reached the store (%d calls)", f.book.Calls())
	}
	if len(f.journal.calls) != 1 || f.journal.calls[0].ErrorType != apperrors.KindShapeMismatch {
		t.Errorf("journal = %+v", f.journal.calls)
	}
}

func TestUpdateRangeRoundTrip(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})

	res := f.call(t, UpdateRange, map[string]any{
		"url":        siteURL,
		"file_name":  fileName,
		"sheet_name": "Sheet1",
		"address":    "B2:C3",
		"values":     `[[1, "a"], [2.5, "b"]]`,
	})
	if res.IsError {
		t.Fatalf("updateRange failed: %s", res.Text())
	}
	out := res.Payload.(RangeUpdateResult)
	if out.RowCount != 2 || out.ColumnCount != 2 || out.Address != "Sheet1!B2:C3" || out.FileName != fileName {
		t.Errorf("unexpected result %+v", out)
	}

	got, err := f.book.ReadRange(context.Background(), "Sheet1", "B2:C3")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]any{{float64(1), "a"}, {2.5, "b"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("read back %v, want %v", got, want)
	}
}

func TestUpdateRangeAcceptsNativeArray(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})

	res := f.call(t, UpdateRange, map[string]any{
		"url":        siteURL,
		"file_name":  fileName,
		"sheet_name": "Sheet1",
		"address":    "A1",
		"values":     [][]any{{"x"}},
	})
	if res.IsError {
		t.Fatalf("updateRange failed: %s", res.Text())
	}
}

func TestUpdateRowByLookup(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})
	if err := f.book.SetColumn("December", "C", []string{"Open Date", "12/20", "12/21"}); err != nil {
		t.Fatal(err)
	}

	res := f.call(t, UpdateRowByLookup, map[string]any{
		"url":             siteURL,
		"file_name":       fileName,
		"sheet_name":      "December",
		"search_column":   "C",
		"reference_value": "12/20",
		"target_columns":  `["F", "d"]`,
		"values":          `["4:00 PM", "12/27"]`,
		"row_offset":      1,
	})
	if res.IsError {
		t.Fatalf("updateRowByLookup failed: %s", res.Text())
	}
	out := res.Payload.(RowUpdateResult)
	if out.FoundRow != 2 || out.TargetRow != 3 || out.RowOffset != 1 {
		t.Errorf("rows: %+v", out)
	}
	if !reflect.DeepEqual(out.UpdatedCells, []string{"D3", "F3"}) {
		t.Errorf("updated cells %v", out.UpdatedCells)
	}

	got, err := f.book.ReadRange(context.Background(), "December", "C3:F3")
	if err != nil {
		t.Fatal(err)
	}
	want := []any{"12/21", "12/27", "", "4:00 PM"}
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("row 3 = %v, want %v", got[0], want)
	}
}

func TestUpdateRowByLookupNullLeavesCell(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})
	ctx := context.Background()
	if err := f.book.SetColumn("Sheet1", "C", []string{"12/20"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.book.WriteRange(ctx, "Sheet1", "D1", [][]any{{"keep"}}); err != nil {
		t.Fatal(err)
	}

	res := f.call(t, UpdateRowByLookup, map[string]any{
		"url":             siteURL,
		"file_name":       fileName,
		"sheet_name":      "Sheet1",
		"search_column":   "C",
		"reference_value": "12/20",
		"target_columns":  `["D", "E"]`,
		"values":          `[null, 5]`,
	})
	if res.IsError {
		t.Fatalf("updateRowByLookup failed: %s", res.Text())
	}
	out := res.Payload.(RowUpdateResult)
	if !reflect.DeepEqual(out.UpdatedCells, []string{"E1"}) {
		t.Errorf("updated cells %v, want [E1]", out.UpdatedCells)
	}
	if out.Message != "Updated 1 cells in row 1 of 'Sheet1'" {
		t.Errorf("message = %q", out.Message)
	}

	got, err := f.book.ReadRange(ctx, "Sheet1", "D1:E1")
	if err != nil {
		t.Fatal(err)
	}
	if got[0][0] != "keep" {
		t.Errorf("D1 = %v, want keep", got[0][0])
	}
}

func TestUpdateRowByLookupLatest(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})
	if err := f.book.SetColumn("Sheet1", "C", []string{"", "", "12/20", "12/21"}); err != nil {
		t.Fatal(err)
	}

	res := f.call(t, UpdateRowByLookup, map[string]any{
		"url":             siteURL,
		"file_name":       fileName,
		"sheet_name":      "Sheet1",
		"search_column":   "C",
		"reference_value": "latest",
		"target_columns":  `["D"]`,
		"values":          `[42]`,
	})
	if res.IsError {
		t.Fatalf("updateRowByLookup failed: %s", res.Text())
	}
	if out := res.Payload.(RowUpdateResult); out.FoundRow != 4 || out.TargetRow != 4 {
		t.Errorf("unexpected result %+v", out)
	}
}

func TestUpdateRowByLookupErrors(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})
	if err := f.book.SetColumn("Sheet1", "C", []string{"12/20"}); err != nil {
		t.Fatal(err)
	}

	base := func() map[string]any {
		return map[string]any{
			"url":             siteURL,
			"file_name":       fileName,
			"sheet_name":      "Sheet1",
			"search_column":   "C",
			"reference_value": "12/20",
			"target_columns":  `["D","E"]`,
			"values":          `[1, 2]`,
		}
	}

	tests := []struct {
		name   string
		modify func(map[string]any)
		want   string
	}{
		{"count mismatch", func(a map[string]any) { a["values"] = `[1]` }, apperrors.KindValidation},
		{"duplicate column", func(a map[string]any) { a["target_columns"] = `["D","d"]` }, apperrors.KindValidation},
		{"bad json", func(a map[string]any) { a["values"] = `[1,` }, apperrors.KindValidation},
		{"missing sheet arg", func(a map[string]any) { delete(a, "sheet_name") }, apperrors.KindValidation},
		{"reference not found", func(a map[string]any) { a["reference_value"] = "1/1" }, apperrors.KindNotFound},
		{"unknown worksheet", func(a map[string]any) { a["sheet_name"] = "March" }, apperrors.KindNotFound},
		{"no workbook location", func(a map[string]any) { delete(a, "url") }, apperrors.KindValidation},
		{"negative anchor", func(a map[string]any) { a["row_offset"] = -5 }, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := base()
			tt.modify(args)
			res := f.call(t, UpdateRowByLookup, args)
			if !res.IsError {
				t.Fatalf("expected error, got %s", res.Text())
			}
			if got := errorType(t, res); got != tt.want {
				t.Errorf("error_type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAppendRowsByDriveItem(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})
	book := f.backend.Book(sheets.WorkbookRef{DriveID: "b!drive", ItemID: "01ITEM"})
	if err := book.AddTable("SalesData", "Sales"); err != nil {
		t.Fatal(err)
	}

	res := f.call(t, AppendRows, map[string]any{
		"drive_id":   "b!drive",
		"item_id":    "01ITEM",
		"table_name": "SalesData",
		"rows":       `[["Product A", 100, 25.99], ["Product B", 50, 15.99]]`,
	})
	if res.IsError {
		t.Fatalf("appendRows failed: %s", res.Text())
	}
	out := res.Payload.(AppendRowsResult)
	if out.RowsAdded != 2 || out.RowIndex != 0 || out.TableName != "SalesData" {
		t.Errorf("unexpected result %+v", out)
	}

	res = f.call(t, AppendRows, map[string]any{"drive_id": "b!drive", "table_name": "SalesData", "rows": `[[1]]`})
	if !res.IsError || errorType(t, res) != apperrors.KindValidation {
		t.Errorf("missing item_id: %s", res.Text())
	}
}

func TestLogTradesEmptyBatchTouchesNothing(t *testing.T) {
	// No tracker configured: any remote access would fail.
	f := newFixture(t, config.TrackerConfig{DefaultSheet: "Sheet1"})

	res := f.call(t, LogTrades, map[string]any{"trades": "[]"})
	if res.IsError {
		t.Fatalf("empty batch failed: %s", res.Text())
	}
	out := res.Payload.(trades.BatchResult)
	if out.Status != trades.StatusSuccess || out.TradesLogged != 0 {
		t.Errorf("unexpected result %+v", out)
	}
	if f.book.Calls() != 0 || len(f.journal.writes) != 0 {
		t.Error("empty batch reached the store or the trade journal")
	}
}

func TestLogTradesToTracker(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{URL: siteURL, FileName: fileName, DefaultSheet: "Sheet1"})
	if err := f.book.SetColumn("December", "C", []string{"Open Date", "12/20"}); err != nil {
		t.Fatal(err)
	}

	res := f.call(t, LogTrades, map[string]any{
		"trades": `[
			{"date": "12/21", "strategy": "iron condor", "credit": "1.10", "contracts": 2},
			{"open_date": "12/22", "expired": true, "close_time": "10:00 AM"}
		]`,
		"reference_date": "12/20",
	})
	if res.IsError {
		t.Fatalf("logTrades failed: %s", res.Text())
	}
	out := res.Payload.(trades.BatchResult)
	if out.SheetName != "December" || out.AnchorRow != 3 || out.TradesLogged != 2 {
		t.Errorf("unexpected result %+v", out)
	}

	got, err := f.book.ReadRange(context.Background(), "December", "C4:F4")
	if err != nil {
		t.Fatal(err)
	}
	if want := []any{"12/22", "12/22", "", trades.ExpiredCloseTime}; !reflect.DeepEqual(got[0], want) {
		t.Errorf("row 4 = %v, want %v", got[0], want)
	}

	if len(f.journal.calls) != 1 || len(f.journal.writes) != 2 {
		t.Fatalf("journal calls %d writes %d", len(f.journal.calls), len(f.journal.writes))
	}
	batchID := f.journal.calls[0].ID
	for i, w := range f.journal.writes {
		if w.BatchID != batchID || w.TradeIndex != i || w.Row != 3+i || w.Sheet != "December" {
			t.Errorf("trade write %d = %+v", i, w)
		}
	}
}

func TestLogTradesTrackerNotConfigured(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{DefaultSheet: "Sheet1"})

	res := f.call(t, LogTrades, map[string]any{"trades": `[{"open_date": "1/2"}]`})
	if !res.IsError || errorType(t, res) != apperrors.KindValidation {
		t.Errorf("expected ValidationError, got %s", res.Text())
	}
}

func TestLogTradesRejectsNonObjects(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{URL: siteURL, FileName: fileName})

	for _, raw := range []string{`{"open_date": "1/2"}`, `[1, 2]`, `[null]`} {
		res := f.call(t, LogTrades, map[string]any{"trades": raw})
		if !res.IsError || errorType(t, res) != apperrors.KindValidation {
			t.Errorf("trades=%s: expected ValidationError, got %s", raw, res.Text())
		}
	}
}

func TestJournalFailureDoesNotFailCall(t *testing.T) {
	f := newFixture(t, config.TrackerConfig{})
	f.journal.fail = errors.New("disk full")

	res := f.call(t, UpdateRange, map[string]any{
		"url": siteURL, "file_name": fileName, "sheet_name": "Sheet1", "address": "A1", "values": `[[1]]`,
	})
	if res.IsError {
		t.Errorf("journal failure leaked into result: %s", res.Text())
	}
}
