// Package trades turns semi-structured trade records into tracker rows and
// writes batches of them into a worksheet.
package trades

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "excel-mcp/internal/errors"
)

// TradeRecord is a trade after alias resolution. Nil fields were absent.
type TradeRecord struct {
	OpenDate  *string
	OpenTime  *string
	CloseDate *string
	CloseTime *string
	Strategy  *string

	SoldCallStrike *decimal.Decimal
	SoldPutStrike  *decimal.Decimal
	Credit         *decimal.Decimal
	Debit          *decimal.Decimal
	Contracts      *decimal.Decimal
	Width          *decimal.Decimal
	OpenFees       *decimal.Decimal
	CloseFees      *decimal.Decimal

	Expired bool
}

// lookup returns the value for f, falling back to its alias. The canonical
// name wins when both are present.
func lookup(raw map[string]any, f Field) (any, bool) {
	if v, ok := raw[string(f)]; ok && v != nil {
		return v, true
	}
	if alias, ok := aliases[f]; ok {
		if v, ok := raw[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// ResolveAliases maps a raw record onto TradeRecord. date, time and fees are
// accepted for open_date, open_time and open_fees. Unknown keys are ignored.
func ResolveAliases(raw map[string]any) (TradeRecord, error) {
	var rec TradeRecord

	texts := []struct {
		field Field
		dst   **string
	}{
		{OpenDate, &rec.OpenDate},
		{OpenTime, &rec.OpenTime},
		{CloseDate, &rec.CloseDate},
		{CloseTime, &rec.CloseTime},
		{Strategy, &rec.Strategy},
	}
	for _, t := range texts {
		v, ok := lookup(raw, t.field)
		if !ok {
			continue
		}
		s, err := textValue(t.field, v)
		if err != nil {
			return TradeRecord{}, err
		}
		*t.dst = &s
	}

	numbers := []struct {
		field Field
		dst   **decimal.Decimal
	}{
		{SoldCallStrike, &rec.SoldCallStrike},
		{SoldPutStrike, &rec.SoldPutStrike},
		{Credit, &rec.Credit},
		{Debit, &rec.Debit},
		{Contracts, &rec.Contracts},
		{Width, &rec.Width},
		{OpenFees, &rec.OpenFees},
		{CloseFees, &rec.CloseFees},
	}
	for _, n := range numbers {
		v, ok := lookup(raw, n.field)
		if !ok {
			continue
		}
		d, present, err := ParseNumber(n.field, v)
		if err != nil {
			return TradeRecord{}, err
		}
		if present {
			*n.dst = &d
		}
	}

	if v, ok := raw["expired"]; ok && v != nil {
		expired, err := parseBool(v)
		if err != nil {
			return TradeRecord{}, err
		}
		rec.Expired = expired
	}

	return rec, nil
}

// textValue returns strings exactly as given; dates and times are written
// without reformatting.
func textValue(f Field, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	default:
		return "", apperrors.NewValidationError(string(f), v, "expected text")
	}
}

// ParseNumber reads a JSON number or numeric string. "$" and "," are
// stripped. An empty string reports present=false.
func ParseNumber(f Field, v any) (d decimal.Decimal, present bool, err error) {
	switch t := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case float64:
		return decimal.NewFromFloat(t), true, nil
	case float32:
		return decimal.NewFromFloat32(t), true, nil
	case int:
		return decimal.NewFromInt(int64(t)), true, nil
	case int64:
		return decimal.NewFromInt(t), true, nil
	case string:
		s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(t)
		if s == "" {
			return decimal.Decimal{}, false, nil
		}
		d, err = decimal.NewFromString(s)
	default:
		return decimal.Decimal{}, false, apperrors.NewValidationError(string(f), v, "not a number")
	}
	if err != nil {
		return decimal.Decimal{}, false, apperrors.NewValidationError(string(f), v, "not a number")
	}
	return d, true, nil
}

func parseBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		}
	}
	return false, apperrors.NewValidationError("expired", v, fmt.Sprintf("expected true or false, got %T", v))
}
