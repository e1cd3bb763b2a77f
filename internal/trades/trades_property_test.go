package trades

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

// Property: every trade of a batch lands on its own row, rows strictly
// increase from the anchor, and failures do not shift later trades.
func TestLogTradesRowUniqueness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("rows are anchor+i and unique", prop.ForAll(
		func(size int, blanks int, failEvery int) bool {
			column := make([]string, blanks)
			column = append(column, "12/20")

			store := newRecordingStore(column)
			batch := make([]map[string]any, size)
			for i := range batch {
				batch[i] = map[string]any{"open_date": "12/21", "credit": i}
				if failEvery > 0 && i%failEvery == 0 {
					delete(batch[i], "open_date")
				}
			}

			res := NewOrchestrator(DefaultColumnMapping(), "C", zerolog.Nop()).
				LogTrades(context.Background(), store, batch, "12/20", "December")

			anchor := len(column) + 1
			seen := make(map[int]bool)
			for i, r := range res.Results {
				if r.TradeIndex != i || r.Row != anchor+i || seen[r.Row] {
					return false
				}
				seen[r.Row] = true
			}
			return len(res.Results) == size && res.TradesLogged+res.TradesFailed == size
		},
		gen.IntRange(1, 25),
		gen.IntRange(0, 40),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}

// Property: an expired trade always closes on its open date at 4:00 PM with
// zero debit, whatever close values the caller sent.
func TestExpiredInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("expired overrides close fields", prop.ForAll(
		func(openDate, closeDate, closeTime string, debit float64, asString bool) bool {
			raw := map[string]any{
				"open_date":  openDate,
				"close_date": closeDate,
				"close_time": closeTime,
				"debit":      debit,
				"expired":    true,
			}
			if asString {
				raw["expired"] = "True"
			}

			rec, err := ResolveAliases(raw)
			if err != nil {
				return false
			}
			assignments, err := Normalize(rec, DefaultColumnMapping())
			if err != nil {
				return false
			}
			fields := FieldValues(assignments)
			return fields["close_date"] == fields["open_date"] &&
				fields["close_time"] == ExpiredCloseTime &&
				fields["debit"] == json.Number("0")
		},
		gen.OneConstOf("1/1", "12/20", "3/14/2026"),
		gen.AlphaString(),
		gen.OneConstOf("9:30 AM", "", "3:59 PM"),
		gen.Float64Range(-100, 100),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: a canonical field always beats its alias.
func TestAliasPrecedence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("open_date beats date and open_fees beats fees", prop.ForAll(
		func(explicit, alias string, fee, aliasFee int) bool {
			rec, err := ResolveAliases(map[string]any{
				"open_date": explicit,
				"date":      alias,
				"open_fees": fee,
				"fees":      aliasFee,
			})
			if err != nil {
				return false
			}
			return *rec.OpenDate == explicit && rec.OpenFees.IntPart() == int64(fee)
		},
		gen.RegexMatch(`[1-9]/[1-9]`),
		gen.RegexMatch(`1[0-2]/2[0-9]`),
		gen.IntRange(0, 50),
		gen.IntRange(51, 100),
	))

	properties.TestingRun(t)
}
