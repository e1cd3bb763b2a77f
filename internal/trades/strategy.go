package trades

import "strings"

// strategyCodes maps lower-cased strategy names to tracker short codes.
var strategyCodes = map[string]string{
	"covered call": "CC",
	"cc":           "CC",

	"naked put": "NP",
	"np":        "NP",

	"cash-secured put": "CSP",
	"cash secured put": "CSP",
	"csp":              "CSP",

	"iron condor": "IC",
	"ic":          "IC",
	"condor":      "IC",

	"iron butterfly": "IB",
	"ib":             "IB",
	"butterfly":      "IB",

	"vertical put credit spread": "VPCS",
	"put credit spread":          "VPCS",
	"vertical put credit":        "VPCS",
	"vertical put spread":        "VPCS",
	"put vertical credit":        "VPCS",
	"put vertical":               "VPCS",
	"vertical put":               "VPCS",
	"pcs":                        "VPCS",
	"vpcs":                       "VPCS",

	"vertical put debit spread": "VPDS",
	"put debit spread":          "VPDS",
	"vertical put debit":        "VPDS",
	"pds":                       "VPDS",
	"vpds":                      "VPDS",

	"vertical call credit spread": "VCCS",
	"call credit spread":          "VCCS",
	"vertical call credit":        "VCCS",
	"vertical call spread":        "VCCS",
	"call vertical credit":        "VCCS",
	"call vertical":               "VCCS",
	"vertical call":               "VCCS",
	"ccs":                         "VCCS",
	"vccs":                        "VCCS",

	"short straddle": "Straddle",
	"straddle":       "Straddle",

	"short strangle": "Strangle",
	"strangle":       "Strangle",

	"jade lizard": "JadeLizard",
	"jadelizard":  "JadeLizard",
	"jade":        "JadeLizard",

	"reverse jade lizard": "RJade",
	"reverse jade":        "RJade",
	"rjade":               "RJade",

	"zero extrinsic back ratio": "Zebra",
	"zebra":                     "Zebra",

	"lt1-1-1": "1-1-1",
	"1-1-1":   "1-1-1",
	"111":     "1-1-1",

	"lt1-1-2": "1-1-2",
	"1-1-2":   "1-1-2",
	"112":     "1-1-2",

	"rolling diagonal puts": "RDP",
	"rolling diagonal":      "RDP",
	"diagonal puts":         "RDP",
	"rdp":                   "RDP",

	"short leaps": "LEAPPut",
	"leap put":    "LEAPPut",
	"leaps put":   "LEAPPut",
	"leapput":     "LEAPPut",

	"leaps call spread": "LeapCS",
	"leap call spread":  "LeapCS",
	"leapcs":            "LeapCS",

	"put butterfly": "PButterfly",
	"pbutterfly":    "PButterfly",

	"call butterfly": "CButterfly",
	"cbutterfly":     "CButterfly",

	"vix uptrend": "VIX",
	"vix":         "VIX",
}

// strategyKeywords is tried in order; more specific patterns come first.
var strategyKeywords = []struct {
	words []string
	code  string
}{
	{[]string{"put", "credit", "spread"}, "VPCS"},
	{[]string{"put", "debit", "spread"}, "VPDS"},
	{[]string{"call", "credit", "spread"}, "VCCS"},
	{[]string{"call", "debit", "spread"}, "VCDS"},
	{[]string{"iron", "condor"}, "IC"},
	{[]string{"iron", "butterfly"}, "IB"},
	{[]string{"put", "butterfly"}, "PButterfly"},
	{[]string{"call", "butterfly"}, "CButterfly"},
	{[]string{"jade", "lizard"}, "JadeLizard"},
	{[]string{"reverse", "jade"}, "RJade"},
	{[]string{"rolling", "diagonal"}, "RDP"},
	{[]string{"diagonal", "put"}, "RDP"},
	{[]string{"cash", "secured"}, "CSP"},
	{[]string{"covered", "call"}, "CC"},
	{[]string{"naked", "put"}, "NP"},
	{[]string{"leap", "call"}, "LeapCS"},
	{[]string{"leap", "put"}, "LEAPPut"},
	{[]string{"put", "vertical"}, "VPCS"},
	{[]string{"vertical", "put"}, "VPCS"},
	{[]string{"call", "vertical"}, "VCCS"},
	{[]string{"vertical", "call"}, "VCCS"},
	{[]string{"straddle"}, "Straddle"},
	{[]string{"strangle"}, "Strangle"},
	{[]string{"condor"}, "IC"},
	{[]string{"zebra"}, "Zebra"},
}

var shortCodes = func() map[string]string {
	out := make(map[string]string)
	for _, code := range strategyCodes {
		out[strings.ToLower(code)] = code
	}
	return out
}()

// MapStrategy converts a strategy name to the tracker short code. Known codes
// come back properly cased; unknown names are returned unchanged.
func MapStrategy(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return name
	}
	if code, ok := shortCodes[key]; ok {
		return code
	}
	if code, ok := strategyCodes[key]; ok {
		return code
	}
	for _, kw := range strategyKeywords {
		if containsAll(key, kw.words) {
			return kw.code
		}
	}
	return name
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}
