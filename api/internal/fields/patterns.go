package fields

import "regexp"

const (
	currency = `(?:₹|Rs\.?|INR)?\s?`
	amount   = `([\d,]+(?:\.\d{1,2})?)`
	date     = `(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`
	qtyUnit  = `(?:kilograms?|milligrams?|grams?|gms?|milliliters?|millilitres?|liters?|litres?|ltrs?|pieces|kg|mg|ml|g|l|nos|pcs)`
)

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// DefaultPatterns returns the standard pattern table, most specific pattern
// first in every category.
func DefaultPatterns() []Category {
	return []Category{
		{Name: MRP, Patterns: compile(
			`(?i)\bM\.?\s?R\.?\s?P\b\.?(?:\s*\([^)\n]*\))?[:\s-]*`+currency+amount,
			`(?i)Maximum Retail Price(?:\s*\([^)\n]*\))?[:\s-]*`+currency+amount,
			`(?i)(?:₹|\bRs\.?|\bINR)\s?`+amount,
		)},
		{Name: NetQuantity, Patterns: compile(
			`(?i)Net\s*(?:Wt\.?|Weight|Quantity|Qty\.?|Content|Contents|Vol\.?|Volume)[:\s-]*(\d+(?:\.\d+)?\s*`+qtyUnit+`)\b`,
			`(?i)\bNet[:\s-]*(\d+(?:\.\d+)?\s*(?:kg|mg|ml|g|l|nos|pcs))\b`,
			`(?i)\b(\d+(?:\.\d+)?\s*(?:kilograms?|milligrams?|milliliters?|millilitres?|liters?|litres?|grams?))\b`,
		)},
		{Name: Manufacturer, Patterns: compile(
			`(?i)Manufactured\s+by[:\s-]*([^\n]+)`,
			`(?i)Mf[gd]\.?\s+by[:\s-]*([^\n]+)`,
			`(?i)Manufacturer[:\s-]*([^\n]+)`,
			`(?i)Packed\s+by[:\s-]*([^\n]+)`,
		)},
		{Name: MfgDate, Patterns: compile(
			`(?i)Mfg\.?\s*Date[:\s-]*`+date,
			`(?i)Manufacturing\s+Date[:\s-]*`+date,
			`(?i)Date\s+of\s+(?:Mfg|Manufacture)\.?[:\s-]*`+date,
			`(?i)\bDOM[:\s-]*`+date,
			`(?i)Packed\s+on[:\s-]*`+date,
		)},
		{Name: ExpDate, Patterns: compile(
			`(?i)Exp\.?\s*Date[:\s-]*`+date,
			`(?i)Expiry\s+Date[:\s-]*`+date,
			`(?i)Best\s+Before[:\s-]*`+date,
			`(?i)Use\s+By[:\s-]*`+date,
		)},
		{Name: Country, Patterns: compile(
			`(?i)Country\s+of\s+Origin[:\s-]*([A-Za-z][A-Za-z ]*)`,
			`(?i)Made\s+in[:\s-]*([A-Za-z][A-Za-z ]*)`,
			`(?i)Product\s+of[:\s-]*([A-Za-z][A-Za-z ]*)`,
			`(?i)Imported\s+from[:\s-]*([A-Za-z][A-Za-z ]*)`,
		)},
		{Name: ConsumerCare, Patterns: compile(
			`(?i)Consumer\s+Care[:\s-]*([^\n]+)`,
			`(?i)Customer\s+Care[:\s-]*([^\n]+)`,
			`(?i)For\s+Complaints?\s+Contact[:\s-]*([^\n]+)`,
		)},
		{Name: FSSAI, Patterns: compile(
			`(?i)FSSAI\s*Lic(?:ense|\.)?\s*No\.?[:\s-]*(\d+)`,
			`(?i)FSSAI[:\s-]*(\d+)`,
			`(?i)Lic\.?\s*No\.?[:\s-]*(\d{14})`,
		)},
	}
}
