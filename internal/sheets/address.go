package sheets

import (
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "excel-mcp/internal/errors"
)

// CellRange is a rectangular A1 range with 1-based inclusive bounds.
type CellRange struct {
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// Rows returns the number of rows spanned.
func (r CellRange) Rows() int { return r.EndRow - r.StartRow + 1 }

// Columns returns the number of columns spanned.
func (r CellRange) Columns() int { return r.EndCol - r.StartCol + 1 }

// String renders the range in A1 notation. A single cell renders as "B2".
func (r CellRange) String() string {
	start, _ := excelize.CoordinatesToCellName(r.StartCol, r.StartRow)
	if r.StartCol == r.EndCol && r.StartRow == r.EndRow {
		return start
	}
	end, _ := excelize.CoordinatesToCellName(r.EndCol, r.EndRow)
	return start + ":" + end
}

// Cells calls fn for every cell in row-major order with zero-based offsets.
func (r CellRange) Cells(fn func(i, j int, name string) error) error {
	for i := 0; i < r.Rows(); i++ {
		for j := 0; j < r.Columns(); j++ {
			name, err := excelize.CoordinatesToCellName(r.StartCol+j, r.StartRow+i)
			if err != nil {
				return err
			}
			if err := fn(i, j, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseRange parses "A1", "A1:C2" or "Sheet1!A1:C2". Corners may come in any
// order. Whole-column and whole-row references are rejected.
func ParseRange(address string) (CellRange, error) {
	addr := strings.TrimSpace(address)
	if i := strings.LastIndex(addr, "!"); i >= 0 {
		addr = addr[i+1:]
	}
	if addr == "" {
		return CellRange{}, apperrors.NewValidationError("address", address, "required")
	}

	parts := strings.Split(addr, ":")
	if len(parts) > 2 {
		return CellRange{}, apperrors.NewValidationError("address", address, "expected A1 or A1:B2")
	}

	startCol, startRow, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return CellRange{}, apperrors.NewValidationError("address", address, "not a cell range")
	}
	endCol, endRow := startCol, startRow
	if len(parts) == 2 {
		endCol, endRow, err = excelize.CellNameToCoordinates(parts[1])
		if err != nil {
			return CellRange{}, apperrors.NewValidationError("address", address, "not a cell range")
		}
	}

	if endCol < startCol {
		startCol, endCol = endCol, startCol
	}
	if endRow < startRow {
		startRow, endRow = endRow, startRow
	}
	return CellRange{StartCol: startCol, StartRow: startRow, EndCol: endCol, EndRow: endRow}, nil
}

// CheckShape verifies that values exactly fill address.
func CheckShape(address string, values [][]any) (CellRange, error) {
	r, err := ParseRange(address)
	if err != nil {
		return CellRange{}, err
	}

	shapeErr := func(gotCols int) error {
		return &apperrors.ShapeError{
			Address:     address,
			WantRows:    r.Rows(),
			WantColumns: r.Columns(),
			GotRows:     len(values),
			GotColumns:  gotCols,
		}
	}

	if len(values) != r.Rows() {
		cols := 0
		if len(values) > 0 {
			cols = len(values[0])
		}
		return CellRange{}, shapeErr(cols)
	}
	for _, row := range values {
		if len(row) != r.Columns() {
			return CellRange{}, shapeErr(len(row))
		}
	}
	return r, nil
}

// ColumnNumber converts a column letter such as "C" or "AA" to its 1-based index.
func ColumnNumber(letter string) (int, error) {
	l := strings.ToUpper(strings.TrimSpace(letter))
	if l == "" {
		return 0, apperrors.NewValidationError("column", letter, "required")
	}
	for _, c := range l {
		if c < 'A' || c > 'Z' {
			return 0, apperrors.NewValidationError("column", letter, "not a column letter")
		}
	}
	n, err := excelize.ColumnNameToNumber(l)
	if err != nil {
		return 0, apperrors.NewValidationError("column", letter, "not a column letter")
	}
	return n, nil
}

// ColumnName converts a 1-based column index to its letter.
func ColumnName(n int) (string, error) {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "", apperrors.NewValidationError("column", n, "out of range")
	}
	return name, nil
}

// CellName returns the A1 name of a cell.
func CellName(col, row int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", apperrors.NewValidationError("cell", row, "out of range")
	}
	return name, nil
}
