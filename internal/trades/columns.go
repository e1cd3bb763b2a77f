package trades

import (
	"fmt"
	"sort"
	"strings"

	apperrors "excel-mcp/internal/errors"
	"excel-mcp/internal/sheets"
)

// Field is a canonical trade field name.
type Field string

const (
	OpenDate       Field = "open_date"
	CloseDate      Field = "close_date"
	OpenTime       Field = "open_time"
	CloseTime      Field = "close_time"
	SoldCallStrike Field = "sold_call_strike"
	SoldPutStrike  Field = "sold_put_strike"
	Strategy       Field = "strategy"
	Credit         Field = "credit"
	Debit          Field = "debit"
	Contracts      Field = "contracts"
	Width          Field = "width"
	OpenFees       Field = "open_fees"
	CloseFees      Field = "close_fees"
)

// Fields lists every canonical field in tracker order.
var Fields = []Field{
	OpenDate, CloseDate, OpenTime, CloseTime,
	SoldCallStrike, SoldPutStrike, Strategy,
	Credit, Debit, Contracts, Width, OpenFees, CloseFees,
}

// aliases maps alternate input names to canonical fields.
var aliases = map[Field]string{
	OpenDate: "date",
	OpenTime: "time",
	OpenFees: "fees",
}

func isField(name string) bool {
	for _, f := range Fields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// ColumnMapping assigns every canonical field a distinct column letter.
type ColumnMapping struct {
	columns map[Field]string
}

// DefaultColumnMapping returns the standard tracker layout (C through O).
func DefaultColumnMapping() ColumnMapping {
	m, err := NewColumnMapping(map[string]string{
		"open_date":        "C",
		"close_date":       "D",
		"open_time":        "E",
		"close_time":       "F",
		"sold_call_strike": "G",
		"sold_put_strike":  "H",
		"strategy":         "I",
		"credit":           "J",
		"debit":            "K",
		"contracts":        "L",
		"width":            "M",
		"open_fees":        "N",
		"close_fees":       "O",
	})
	if err != nil {
		panic(err)
	}
	return m
}

// NewColumnMapping validates a field -> column letter table. The table must
// cover every canonical field, name no unknown field and use each column once.
func NewColumnMapping(table map[string]string) (ColumnMapping, error) {
	columns := make(map[Field]string, len(Fields))
	used := make(map[string]string, len(table))

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if !isField(key) {
			return ColumnMapping{}, apperrors.NewValidationError("columns."+name, table[name], "unknown trade field")
		}
		if _, err := sheets.ColumnNumber(table[name]); err != nil {
			return ColumnMapping{}, apperrors.NewValidationError("columns."+name, table[name], "invalid column letter")
		}
		letter := strings.ToUpper(strings.TrimSpace(table[name]))
		if other, ok := used[letter]; ok {
			return ColumnMapping{}, apperrors.NewValidationError("columns."+name, letter,
				fmt.Sprintf("column already mapped to %s", other))
		}
		used[letter] = key
		columns[Field(key)] = letter
	}

	var missing []string
	for _, f := range Fields {
		if _, ok := columns[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return ColumnMapping{}, apperrors.NewValidationError("columns", strings.Join(missing, ","), "fields not mapped")
	}

	return ColumnMapping{columns: columns}, nil
}

// Column returns the column letter for f.
func (m ColumnMapping) Column(f Field) string {
	return m.columns[f]
}

// Table returns the mapping as field name -> column letter.
func (m ColumnMapping) Table() map[string]string {
	out := make(map[string]string, len(m.columns))
	for f, c := range m.columns {
		out[string(f)] = c
	}
	return out
}
