package transform

import (
	"strings"

	"github.com/JonMunkholm/complaints-etl/internal/frame"
)

// StateCodes maps lower-cased US state and territory names to their postal
// abbreviations.
var StateCodes = map[string]string{
	"alabama":              "AL",
	"alaska":               "AK",
	"arizona":              "AZ",
	"arkansas":             "AR",
	"california":           "CA",
	"colorado":             "CO",
	"connecticut":          "CT",
	"delaware":             "DE",
	"district of columbia": "DC",
	"florida":              "FL",
	"georgia":              "GA",
	"hawaii":               "HI",
	"idaho":                "ID",
	"illinois":             "IL",
	"indiana":              "IN",
	"iowa":                 "IA",
	"kansas":               "KS",
	"kentucky":             "KY",
	"louisiana":            "LA",
	"maine":                "ME",
	"maryland":             "MD",
	"massachusetts":        "MA",
	"michigan":             "MI",
	"minnesota":            "MN",
	"mississippi":          "MS",
	"missouri":             "MO",
	"montana":              "MT",
	"nebraska":             "NE",
	"nevada":               "NV",
	"new hampshire":        "NH",
	"new jersey":           "NJ",
	"new mexico":           "NM",
	"new york":             "NY",
	"north carolina":       "NC",
	"north dakota":         "ND",
	"ohio":                 "OH",
	"oklahoma":             "OK",
	"oregon":               "OR",
	"pennsylvania":         "PA",
	"puerto rico":          "PR",
	"rhode island":         "RI",
	"south carolina":       "SC",
	"south dakota":         "SD",
	"tennessee":            "TN",
	"texas":                "TX",
	"utah":                 "UT",
	"vermont":              "VT",
	"virginia":             "VA",
	"washington":           "WA",
	"west virginia":        "WV",
	"wisconsin":            "WI",
	"wyoming":              "WY",
}

var knownCodes = func() map[string]bool {
	m := make(map[string]bool, len(StateCodes))
	for _, code := range StateCodes {
		m[code] = true
	}
	return m
}()

// NormalizeState converts a state name to its 2-letter code. Codes are
// upper-cased; anything unrecognised is returned trimmed but otherwise as-is.
func NormalizeState(s string) string {
	s = strings.TrimSpace(s)
	if code, ok := StateCodes[strings.ToLower(s)]; ok {
		return code
	}
	if up := strings.ToUpper(s); knownCodes[up] {
		return up
	}
	return s
}

// NormalizeStates rewrites the text column col of f with NormalizeState and
// returns the number of cells changed. A missing column is an error.
func NormalizeStates(f *frame.Frame, col string) (int, error) {
	c, err := f.MustColumn(col)
	if err != nil {
		return 0, err
	}
	changed := 0
	for i, v := range c.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if norm := NormalizeState(s); norm != s {
			c.Values[i] = norm
			changed++
		}
	}
	return changed, nil
}
