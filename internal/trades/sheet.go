package trades

import (
	"strconv"
	"strings"
	"time"
)

// SheetFor picks the worksheet for a batch: the explicit name, else the month
// of referenceDate, else the month of the first trade's open date, else
// fallback. Dates are read as M/D or M/D/Y.
func SheetFor(explicit, referenceDate string, batch []map[string]any, fallback string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	if month, ok := MonthOf(referenceDate); ok {
		return month
	}
	if len(batch) > 0 {
		if v, ok := lookup(batch[0], OpenDate); ok {
			if s, ok := v.(string); ok {
				if month, ok := MonthOf(s); ok {
					return month
				}
			}
		}
	}
	return fallback
}

// MonthOf returns the English month name of an M/D or M/D/Y date.
func MonthOf(date string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(date), "/")
	if len(parts) < 2 || len(parts) > 3 {
		return "", false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	d, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || d < 1 || d > 31 {
		return "", false
	}
	return time.Month(m).String(), true
}
