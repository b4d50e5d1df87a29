package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxManufacturerLen bounds the stored manufacturer text, in runes.
const MaxManufacturerLen = 200

var (
	reCurrency  = regexp.MustCompile(`(?i)₹|\bRs\.?|\bINR\b`)
	reNotAmount = regexp.MustCompile(`[^\d.]`)
)

// NormalizeMRP renders the numeric part of s as "₹<value>" with two decimals.
// Text that does not reparse as a number is returned trimmed but otherwise
// unchanged.
func NormalizeMRP(s string) string {
	s = strings.TrimSpace(s)
	// Currency markers go first so the dot of "Rs." is not read as a decimal point.
	num := reNotAmount.ReplaceAllString(reCurrency.ReplaceAllString(s, ""), "")
	v, err := strconv.ParseFloat(num, 64)
	if num == "" || err != nil {
		return s
	}
	return fmt.Sprintf("₹%.2f", v)
}

var (
	reAnySpace = regexp.MustCompile(`\s+`)
	reUnitWord = regexp.MustCompile(`kilograms?|milligrams?|milliliters?|millilitres?|liters?|litres?|ltrs?|grams?|gms?|pieces?`)
)

var unitShort = map[string]string{
	"kilogram": "kg", "kilograms": "kg",
	"milligram": "mg", "milligrams": "mg",
	"milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"liter": "l", "liters": "l", "litre": "l", "litres": "l", "ltr": "l", "ltrs": "l",
	"gram": "g", "grams": "g", "gm": "g", "gms": "g",
	"piece": "pcs", "pieces": "pcs",
}

// NormalizeQuantity lower-cases s, removes whitespace and rewrites long unit
// spellings to their short form ("250 Grams" -> "250g").
func NormalizeQuantity(s string) string {
	s = reAnySpace.ReplaceAllString(strings.ToLower(s), "")
	return reUnitWord.ReplaceAllStringFunc(s, func(w string) string {
		if short, ok := unitShort[w]; ok {
			return short
		}
		return w
	})
}

const isoDate = "2006-01-02"

var (
	reNumericDate = regexp.MustCompile(`^\d{1,2}[-/.]\d{1,2}[-/.](\d{2}|\d{4})$`)
	reMonthYear   = regexp.MustCompile(`^\d{1,2}[-/.]\d{4}$`)
	reDateSep     = regexp.MustCompile(`[-.]`)
)

// ParseDate reads a label date with day-first preference. Numeric
// day/month/year shapes are parsed strictly; anything else goes through
// dateparse.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(isoDate, s); err == nil {
		return t, true
	}
	switch {
	case reNumericDate.MatchString(s):
		v := reDateSep.ReplaceAllString(s, "/")
		layout := "2/1/2006"
		if m := reNumericDate.FindStringSubmatch(s); len(m[1]) == 2 {
			layout = "2/1/06"
		}
		t, err := time.Parse(layout, v)
		return t, err == nil
	case reMonthYear.MatchString(s):
		t, err := time.Parse("1/2006", reDateSep.ReplaceAllString(s, "/"))
		return t, err == nil
	}
	t, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeDate renders s as an ISO date, or returns it trimmed when it does
// not parse.
func NormalizeDate(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format(isoDate)
	}
	return strings.TrimSpace(s)
}

// NormalizeCountry trims s, collapses inner spaces and title-cases it.
func NormalizeCountry(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return cases.Title(language.Und).String(s)
}

// NormalizeManufacturer trims s and truncates it to MaxManufacturerLen runes.
func NormalizeManufacturer(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxManufacturerLen {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:MaxManufacturerLen]))
}
