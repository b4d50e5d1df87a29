package fields

import (
	"regexp"
	"strings"
	"unicode"
)

// Name is one of the label fields recovered from recognized text.
type Name string

const (
	MRP          Name = "mrp"
	NetQuantity  Name = "net_quantity"
	Manufacturer Name = "manufacturer"
	MfgDate      Name = "mfg_date"
	ExpDate      Name = "exp_date"
	Country      Name = "country"
	ConsumerCare Name = "consumer_care"
	FSSAI        Name = "fssai"
)

// Names lists every field in extraction order.
var Names = []Name{MRP, NetQuantity, Manufacturer, MfgDate, ExpDate, Country, ConsumerCare, FSSAI}

// Mapping holds normalized field values. A field is present only when one of
// its patterns matched; an empty value is never stored.
type Mapping map[Name]string

// Get reports the value of n and whether it is present and non-empty.
func (m Mapping) Get(n Name) (string, bool) {
	v, ok := m[n]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Has reports whether n is present.
func (m Mapping) Has(n Name) bool {
	_, ok := m.Get(n)
	return ok
}

// Strings converts the mapping to plain string keys for JSON and storage.
func (m Mapping) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

// FromStrings builds a Mapping from string keys, skipping unknown names and
// empty values.
func FromStrings(in map[string]string) Mapping {
	known := make(map[Name]bool, len(Names))
	for _, n := range Names {
		known[n] = true
	}
	out := Mapping{}
	for k, v := range in {
		n := Name(k)
		if !known[n] || strings.TrimSpace(v) == "" {
			continue
		}
		out[n] = v
	}
	return out
}

// Category is the ordered pattern list of one field. Each pattern must have
// exactly one capturing group holding the value.
type Category struct {
	Name     Name
	Patterns []*regexp.Regexp
}

// Extractor recovers a Mapping from noisy OCR text.
type Extractor struct {
	table []Category
}

// New returns an Extractor over DefaultPatterns.
func New() *Extractor {
	return NewWithPatterns(DefaultPatterns())
}

// NewWithPatterns returns an Extractor over the given table. Categories are
// evaluated in table order.
func NewWithPatterns(table []Category) *Extractor {
	return &Extractor{table: table}
}

// Extract cleans raw and runs every category. Within a category the first
// matching pattern wins; later patterns are not evaluated.
func (e *Extractor) Extract(raw string) Mapping {
	text := Clean(raw)
	out := Mapping{}
	if text == "" {
		return out
	}
	for _, c := range e.table {
		for _, re := range c.Patterns {
			m := re.FindStringSubmatch(text)
			if len(m) < 2 {
				continue
			}
			if v := strings.TrimSpace(m[1]); v != "" {
				out[c.Name] = v
			}
			break
		}
	}
	return Normalize(out)
}

// Normalize applies the per-field normalizers in place and returns m.
func Normalize(m Mapping) Mapping {
	for n, v := range m {
		var nv string
		switch n {
		case MRP:
			nv = NormalizeMRP(v)
		case NetQuantity:
			nv = NormalizeQuantity(v)
		case MfgDate, ExpDate:
			nv = NormalizeDate(v)
		case Country:
			nv = NormalizeCountry(v)
		case Manufacturer:
			nv = NormalizeManufacturer(v)
		default:
			nv = strings.TrimSpace(v)
		}
		if nv == "" {
			delete(m, n)
			continue
		}
		m[n] = nv
	}
	return m
}

var (
	reHSpace    = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
	reBlankLine = regexp.MustCompile(`\n{2,}`)
)

// Clean strips control characters, collapses horizontal whitespace and blank
// lines. Line breaks are kept so line-bounded patterns stop at the end of a
// label line.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == unicode.ReplacementChar:
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	s = reHSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = reBlankLine.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
