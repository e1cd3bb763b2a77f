// Package resolver finds the anchor row for a write by scanning a column.
package resolver

import (
	"context"
	"strings"

	apperrors "excel-mcp/internal/errors"
	"excel-mcp/internal/sheets"
)

// Latest selects the last non-empty cell of the search column.
const Latest = "latest"

// ColumnReader is the part of sheets.Store the resolver needs.
type ColumnReader interface {
	ReadColumn(ctx context.Context, sheet, column string) ([]string, error)
}

var _ ColumnReader = (sheets.Store)(nil)

// Resolution is the outcome of a lookup. Rows are 1-based.
type Resolution struct {
	FoundRow  int `json:"found_row"`
	AnchorRow int `json:"target_row"`
}

// ResolveAnchorRow locates reference in searchColumn of sheet and returns the
// matching row plus offset. An empty reference means Latest.
//
// Explicit references are compared exactly after trimming both sides and the
// column is scanned bottom to top, so the most recent duplicate wins.
func ResolveAnchorRow(ctx context.Context, store ColumnReader, sheet, searchColumn, reference string, offset int) (Resolution, error) {
	if strings.TrimSpace(sheet) == "" {
		return Resolution{}, apperrors.NewValidationError("sheet_name", nil, "required")
	}
	if _, err := sheets.ColumnNumber(searchColumn); err != nil {
		return Resolution{}, err
	}

	cells, err := store.ReadColumn(ctx, sheet, searchColumn)
	if err != nil {
		return Resolution{}, err
	}
	return resolve(cells, sheet, searchColumn, reference, offset)
}

// ResolveOrEnd behaves like ResolveAnchorRow but when the reference is not
// found it anchors at the end of data instead, reporting fallback=true. The
// column is read once.
func ResolveOrEnd(ctx context.Context, store ColumnReader, sheet, searchColumn, reference string, offset int) (res Resolution, fallback bool, err error) {
	if strings.TrimSpace(sheet) == "" {
		return Resolution{}, false, apperrors.NewValidationError("sheet_name", nil, "required")
	}
	if _, err := sheets.ColumnNumber(searchColumn); err != nil {
		return Resolution{}, false, err
	}

	cells, err := store.ReadColumn(ctx, sheet, searchColumn)
	if err != nil {
		return Resolution{}, false, err
	}

	res, err = resolve(cells, sheet, searchColumn, reference, offset)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return Resolution{AnchorRow: EndOfData(cells)}, true, nil
	}
	return res, false, err
}

func resolve(cells []string, sheet, searchColumn, reference string, offset int) (Resolution, error) {
	row := FindRow(cells, reference)
	if row == 0 {
		ref := strings.TrimSpace(reference)
		if ref == "" || strings.EqualFold(ref, Latest) {
			return Resolution{}, apperrors.NotFoundf("column %s of %q is empty", searchColumn, sheet)
		}
		return Resolution{}, apperrors.NotFoundf("value %q in column %s of %q", ref, searchColumn, sheet)
	}

	anchor := row + offset
	if anchor < 1 {
		return Resolution{}, apperrors.NewValidationError("row_offset", offset, "resolves above row 1")
	}
	return Resolution{FoundRow: row, AnchorRow: anchor}, nil
}

// FindRow returns the 1-based row of reference in cells, or 0 when absent.
func FindRow(cells []string, reference string) int {
	ref := strings.TrimSpace(reference)
	latest := ref == "" || strings.EqualFold(ref, Latest)

	for i := len(cells) - 1; i >= 0; i-- {
		cell := strings.TrimSpace(cells[i])
		if latest {
			if cell != "" {
				return i + 1
			}
			continue
		}
		if cell == ref {
			return i + 1
		}
	}
	return 0
}

// EndOfData returns the row after the last non-empty cell, or 1 for an empty column.
func EndOfData(cells []string) int {
	return FindRow(cells, Latest) + 1
}
