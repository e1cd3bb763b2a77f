package trades

import (
	"encoding/json"
	"reflect"
	"testing"

	apperrors "excel-mcp/internal/errors"
)

func str(s string) *string { return &s }

func TestResolveAliasesPrecedence(t *testing.T) {
	rec, err := ResolveAliases(map[string]any{
		"date":      "1/1",
		"open_date": "1/2",
		"time":      "9:45 AM",
		"fees":      "$1.30",
		"ignored":   true,
	})
	if err != nil {
		t.Fatalf("ResolveAliases() error = %v", err)
	}
	if *rec.OpenDate != "1/2" {
		t.Errorf("open_date = %q, want explicit field to win", *rec.OpenDate)
	}
	if *rec.OpenTime != "9:45 AM" {
		t.Errorf("open_time = %q", *rec.OpenTime)
	}
	if rec.OpenFees == nil || rec.OpenFees.String() != "1.3" {
		t.Errorf("open_fees = %v", rec.OpenFees)
	}
}

func TestResolveAliasesNumbers(t *testing.T) {
	rec, err := ResolveAliases(map[string]any{
		"open_date": "12/20",
		"credit":    "$1,234.50",
		"contracts": json.Number("2"),
		"width":     float64(5),
		"debit":     "",
	})
	if err != nil {
		t.Fatalf("ResolveAliases() error = %v", err)
	}
	if rec.Credit.String() != "1234.5" || rec.Contracts.String() != "2" || rec.Width.String() != "5" {
		t.Errorf("credit %v contracts %v width %v", rec.Credit, rec.Contracts, rec.Width)
	}
	if rec.Debit != nil {
		t.Errorf("empty debit should be absent, got %v", rec.Debit)
	}

	_, err = ResolveAliases(map[string]any{"open_date": "12/20", "credit": "1.2.3"})
	if apperrors.Kind(err) != apperrors.KindValidation {
		t.Errorf("expected ValidationError for bad number, got %v", err)
	}
}

func TestResolveAliasesExpired(t *testing.T) {
	tests := []struct {
		in   any
		want bool
		ok   bool
	}{
		{true, true, true},
		{false, false, true},
		{"TRUE", true, true},
		{" false ", false, true},
		{"yes", false, false},
		{1, false, false},
	}
	for _, tt := range tests {
		rec, err := ResolveAliases(map[string]any{"open_date": "1/1", "expired": tt.in})
		if (err == nil) != tt.ok {
			t.Errorf("expired=%v: err = %v", tt.in, err)
			continue
		}
		if tt.ok && rec.Expired != tt.want {
			t.Errorf("expired=%v: got %v", tt.in, rec.Expired)
		}
	}
}

func TestNormalizeExpired(t *testing.T) {
	rec := TradeRecord{
		OpenDate:  str("12/20"),
		CloseDate: str("12/27"),
		CloseTime: str("10:00 AM"),
		Strategy:  str("Iron Condor"),
		Expired:   true,
	}
	debit, _, _ := ParseNumber(Debit, "2.5")
	rec.Debit = &debit

	got, err := Normalize(rec, DefaultColumnMapping())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := []Assignment{
		{OpenDate, "C", "12/20"},
		{CloseDate, "D", "12/20"},
		{CloseTime, "F", "4:00 PM"},
		{Strategy, "I", "IC"},
		{Debit, "K", json.Number("0")},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %+v\nwant %+v", got, want)
	}
}

func TestNormalizeRequiresOpenDate(t *testing.T) {
	_, err := Normalize(TradeRecord{Strategy: str("IC")}, DefaultColumnMapping())
	if apperrors.Kind(err) != apperrors.KindValidation {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestDatesAndTimesKeptLiteral(t *testing.T) {
	rec, err := ResolveAliases(map[string]any{"open_date": " 12/20 ", "open_time": "9:30 AM "})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Normalize(rec, DefaultColumnMapping())
	if err != nil {
		t.Fatal(err)
	}
	values := FieldValues(got)
	if values["open_date"] != " 12/20 " || values["open_time"] != "9:30 AM " {
		t.Errorf("values = %q", values)
	}

	rec, err = ResolveAliases(map[string]any{"open_date": "   "})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Normalize(rec, DefaultColumnMapping()); apperrors.Kind(err) != apperrors.KindValidation {
		t.Errorf("blank open_date: expected ValidationError, got %v", err)
	}
}

func TestNormalizeCustomMapping(t *testing.T) {
	table := DefaultColumnMapping().Table()
	table["open_date"], table["close_fees"] = "O", "C"
	mapping, err := NewColumnMapping(table)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Normalize(TradeRecord{OpenDate: str("1/5"), OpenTime: str("9:31 AM")}, mapping)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Field != OpenTime || got[1].Column != "O" {
		t.Errorf("assignments not ordered by column: %+v", got)
	}
}

func TestNewColumnMapping(t *testing.T) {
	base := DefaultColumnMapping().Table()

	mutate := func(fn func(m map[string]string)) map[string]string {
		m := make(map[string]string, len(base))
		for k, v := range base {
			m[k] = v
		}
		fn(m)
		return m
	}

	tests := []struct {
		name  string
		table map[string]string
	}{
		{"missing field", mutate(func(m map[string]string) { delete(m, "width") })},
		{"unknown field", mutate(func(m map[string]string) { m["ticker"] = "P" })},
		{"invalid letter", mutate(func(m map[string]string) { m["width"] = "M1" })},
		{"duplicate column", mutate(func(m map[string]string) { m["width"] = "C" })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewColumnMapping(tt.table); apperrors.Kind(err) != apperrors.KindValidation {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	lower := mutate(func(m map[string]string) { m["width"] = "m" })
	mapping, err := NewColumnMapping(lower)
	if err != nil || mapping.Column(Width) != "M" {
		t.Errorf("lower-case letter: %v, %v", mapping.Column(Width), err)
	}
}

func TestMapStrategy(t *testing.T) {
	tests := map[string]string{
		"Iron Condor":                "IC",
		"put credit spread":          "VPCS",
		"vpcs":                       "VPCS",
		"jadelizard":                 "JadeLizard",
		"  Short Strangle ":          "Strangle",
		"Big Put Credit Spread Play": "VPCS",
		"call debit spread":          "VCDS",
		"SPX 0DTE Condor variant":    "IC",
		"Calendar":                   "Calendar",
		"":                           "",
	}
	for in, want := range tests {
		if got := MapStrategy(in); got != want {
			t.Errorf("MapStrategy(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSheetFor(t *testing.T) {
	batch := []map[string]any{{"date": "3/14/2026"}}
	tests := []struct {
		explicit, reference string
		batch               []map[string]any
		want                string
	}{
		{"Trades", "12/20", batch, "Trades"},
		{"", "12/20", batch, "December"},
		{"", "latest", batch, "March"},
		{"", "", nil, "Sheet1"},
		{"", "13/01", []map[string]any{{"open_date": "not a date"}}, "Sheet1"},
	}
	for _, tt := range tests {
		if got := SheetFor(tt.explicit, tt.reference, tt.batch, "Sheet1"); got != tt.want {
			t.Errorf("SheetFor(%q, %q) = %q, want %q", tt.explicit, tt.reference, got, tt.want)
		}
	}
}

func TestParseNumberRejectsTypes(t *testing.T) {
	if _, _, err := ParseNumber(Credit, []any{1}); apperrors.Kind(err) != apperrors.KindValidation {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if _, err := ResolveAliases(map[string]any{"open_date": map[string]any{}}); apperrors.Kind(err) != apperrors.KindValidation {
		t.Errorf("expected ValidationError for non-text date, got %v", err)
	}
}
