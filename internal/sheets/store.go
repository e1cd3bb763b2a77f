// Package sheets provides read/write access to worksheets of a remote workbook.
//
// A Backend locates workbooks and hands out a Store bound to one of them.
// GraphClient talks to the Microsoft Graph workbook API; MemoryBackend keeps
// workbooks in memory for tests and offline runs.
package sheets

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apperrors "excel-mcp/internal/errors"
)

// WorkbookRef identifies a workbook in a drive.
type WorkbookRef struct {
	SiteID  string `json:"site_id,omitempty"`
	DriveID string `json:"drive_id"`
	ItemID  string `json:"item_id"`
}

// Validate checks that the reference names a drive item.
func (r WorkbookRef) Validate() error {
	if strings.TrimSpace(r.DriveID) == "" {
		return apperrors.NewValidationError("drive_id", nil, "required")
	}
	if strings.TrimSpace(r.ItemID) == "" {
		return apperrors.NewValidationError("item_id", nil, "required")
	}
	return nil
}

func (r WorkbookRef) String() string {
	if r.SiteID != "" {
		return r.SiteID + "/" + r.DriveID + "/" + r.ItemID
	}
	return r.DriveID + "/" + r.ItemID
}

// RangeResult describes a written range.
type RangeResult struct {
	Address     string `json:"address"`
	RowCount    int    `json:"row_count"`
	ColumnCount int    `json:"column_count"`
}

// AppendResult describes rows appended to a table.
type AppendResult struct {
	Index     int `json:"row_index"`
	RowsAdded int `json:"rows_added"`
}

// Store is a single workbook.
type Store interface {
	// ReadColumn returns the displayed text of a column top to bottom.
	// Index i holds row i+1.
	ReadColumn(ctx context.Context, sheet, column string) ([]string, error)

	// ReadRange returns the values of a rectangular range.
	ReadRange(ctx context.Context, sheet, address string) ([][]any, error)

	// WriteRange writes values into address. The shape of values must equal
	// the span of address. A nil value leaves its cell unchanged.
	WriteRange(ctx context.Context, sheet, address string, values [][]any) (RangeResult, error)

	// AppendRows appends rows to the end of a named table.
	AppendRows(ctx context.Context, table string, rows [][]any) (AppendResult, error)
}

// Backend locates workbooks and opens them.
type Backend interface {
	// Locate resolves a site or sharing URL plus file name to a workbook.
	Locate(ctx context.Context, siteURL, fileName string) (WorkbookRef, error)

	// Workbook returns a Store bound to ref.
	Workbook(ref WorkbookRef) Store
}

// WriteCells writes column -> value on one row with a single WriteRange
// spanning the leftmost to the rightmost column. Gaps are sent as nil so the
// cells between requested columns keep their content. It returns the
// addresses of the cells that were given a value, in column order; nil
// values leave their cell unchanged and are not reported. When every value
// is nil nothing is written.
func WriteCells(ctx context.Context, store Store, sheet string, cells map[string]any, row int) ([]string, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	if row < 1 {
		return nil, apperrors.NewValidationError("row", row, "must be at least 1")
	}

	type cell struct {
		col   int
		value any
	}
	ordered := make([]cell, 0, len(cells))
	for letter, value := range cells {
		col, err := ColumnNumber(letter)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, cell{col: col, value: value})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].col < ordered[j].col })

	for i := 1; i < len(ordered); i++ {
		if ordered[i].col == ordered[i-1].col {
			name, _ := ColumnName(ordered[i].col)
			return nil, apperrors.NewValidationError("column", name, "column given more than once")
		}
	}

	first, last := ordered[0].col, ordered[len(ordered)-1].col
	values := make([]any, last-first+1)
	addresses := make([]string, 0, len(ordered))
	for _, c := range ordered {
		values[c.col-first] = c.value
		name, err := CellName(c.col, row)
		if err != nil {
			return nil, err
		}
		if c.value != nil {
			addresses = append(addresses, name)
		}
	}
	if len(addresses) == 0 {
		return addresses, nil
	}

	span := CellRange{StartCol: first, StartRow: row, EndCol: last, EndRow: row}
	if _, err := store.WriteRange(ctx, sheet, span.String(), [][]any{values}); err != nil {
		return nil, fmt.Errorf("writing row %d: %w", row, err)
	}
	return addresses, nil
}
