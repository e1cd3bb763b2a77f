package trades

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "excel-mcp/internal/errors"
	"excel-mcp/internal/sheets"
)

// ExpiredCloseTime is the close time recorded for trades that expired.
const ExpiredCloseTime = "4:00 PM"

// Assignment is one cell of a normalized trade.
type Assignment struct {
	Field  Field  `json:"field"`
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// Normalize converts a record into column assignments ordered by column.
// Expired trades close on the open date at ExpiredCloseTime with zero debit,
// whatever the caller supplied. Absent fields produce no assignment. Dates and
// times are written as the caller's literal strings, surrounding spaces included.
func Normalize(rec TradeRecord, mapping ColumnMapping) ([]Assignment, error) {
	if rec.OpenDate == nil || strings.TrimSpace(*rec.OpenDate) == "" {
		return nil, apperrors.NewValidationError(string(OpenDate), nil, "required")
	}

	if rec.Expired {
		closeDate := *rec.OpenDate
		closeTime := ExpiredCloseTime
		zero := decimal.Zero
		rec.CloseDate = &closeDate
		rec.CloseTime = &closeTime
		rec.Debit = &zero
	}

	if rec.Strategy != nil {
		code := MapStrategy(*rec.Strategy)
		rec.Strategy = &code
	}

	var out []Assignment
	addText := func(f Field, v *string) {
		if v != nil {
			out = append(out, Assignment{Field: f, Column: mapping.Column(f), Value: *v})
		}
	}
	addNumber := func(f Field, v *decimal.Decimal) {
		if v != nil {
			out = append(out, Assignment{Field: f, Column: mapping.Column(f), Value: json.Number(v.String())})
		}
	}

	addText(OpenDate, rec.OpenDate)
	addText(CloseDate, rec.CloseDate)
	addText(OpenTime, rec.OpenTime)
	addText(CloseTime, rec.CloseTime)
	addNumber(SoldCallStrike, rec.SoldCallStrike)
	addNumber(SoldPutStrike, rec.SoldPutStrike)
	addText(Strategy, rec.Strategy)
	addNumber(Credit, rec.Credit)
	addNumber(Debit, rec.Debit)
	addNumber(Contracts, rec.Contracts)
	addNumber(Width, rec.Width)
	addNumber(OpenFees, rec.OpenFees)
	addNumber(CloseFees, rec.CloseFees)

	sort.SliceStable(out, func(i, j int) bool {
		ci, _ := sheets.ColumnNumber(out[i].Column)
		cj, _ := sheets.ColumnNumber(out[j].Column)
		return ci < cj
	})
	return out, nil
}

// Cells converts assignments to a column -> value map for sheets.WriteCells.
func Cells(assignments []Assignment) map[string]any {
	cells := make(map[string]any, len(assignments))
	for _, a := range assignments {
		cells[a.Column] = a.Value
	}
	return cells
}

// FieldValues converts assignments to a field -> value map for reporting.
func FieldValues(assignments []Assignment) map[string]any {
	fields := make(map[string]any, len(assignments))
	for _, a := range assignments {
		fields[string(a.Field)] = a.Value
	}
	return fields
}
