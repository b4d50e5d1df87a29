package fields

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLabel = `Acme Chips
MRP: Rs. 120 (incl. of all taxes)
Net Wt: 250 Grams
Manufactured by: Acme Foods Pvt Ltd, Plot 4, Mumbai
Mfg Date: 05/03/2024
Best Before: 05/09/2024
Country of Origin: india
Customer Care: 1800-123-4567
FSSAI Lic. No. 12345678901234`

func TestExtract_FullLabel(t *testing.T) {
	m := New().Extract(sampleLabel)

	want := Mapping{
		MRP:          "₹120.00",
		NetQuantity:  "250g",
		Manufacturer: "Acme Foods Pvt Ltd, Plot 4, Mumbai",
		MfgDate:      "2024-03-05",
		ExpDate:      "2024-09-05",
		Country:      "India",
		ConsumerCare: "1800-123-4567",
		FSSAI:        "12345678901234",
	}
	assert.Equal(t, want, m)
}

func TestExtract_FirstPatternWins(t *testing.T) {
	m := New().Extract("Offer ₹99 only\nMRP: ₹120")
	v, ok := m.Get(MRP)
	require.True(t, ok)
	assert.Equal(t, "₹120.00", v)
}

func TestExtract_FallbackPattern(t *testing.T) {
	m := New().Extract("Special price ₹ 45.50 today")
	v, ok := m.Get(MRP)
	require.True(t, ok)
	assert.Equal(t, "₹45.50", v)
}

func TestExtract_AbsentFieldsOmitted(t *testing.T) {
	m := New().Extract("Net Weight 500 ml")
	assert.Equal(t, Mapping{NetQuantity: "500ml"}, m)
	_, ok := m[MRP]
	assert.False(t, ok)
}

func TestExtract_EmptyAndNoise(t *testing.T) {
	e := New()
	assert.Empty(t, e.Extract(""))
	assert.Empty(t, e.Extract("\x00\x01\x02 \t\r\n"))
	assert.Empty(t, e.Extract("lorem ipsum dolor sit amet"))
}

func TestExtract_ManufacturerStopsAtLineEnd(t *testing.T) {
	m := New().Extract("Mfd. by: Beta Industries Ltd\nNet Qty: 1 Kg")
	assert.Equal(t, "Beta Industries Ltd", m[Manufacturer])
	assert.Equal(t, "1kg", m[NetQuantity])
}

func TestExtract_ManufacturerTruncated(t *testing.T) {
	m := New().Extract("Manufactured by: " + strings.Repeat("A", 300))
	assert.Equal(t, MaxManufacturerLen, utf8.RuneCountInString(m[Manufacturer]))
}

func TestClean(t *testing.T) {
	got := Clean("MRP:\x00 ₹120\r\n\r\n\r\n  Net   Wt\t ")
	assert.Equal(t, "MRP: ₹120\nNet Wt", got)
}

func TestNormalizeMRP(t *testing.T) {
	cases := map[string]string{
		"120":        "₹120.00",
		"Rs. 1,250":  "₹1250.00",
		"Rs.45":      "₹45.00",
		"rs 1,250.5": "₹1250.50",
		"INR1,250":   "₹1250.00",
		"₹120.00":    "₹120.00",
		"INR 99.5":   "₹99.50",
		"price n/a":  "price n/a",
		" 1.2.3 Rs ": "1.2.3 Rs",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeMRP(in), in)
	}
}

func TestNormalizeQuantity(t *testing.T) {
	cases := map[string]string{
		"250 Grams":   "250g",
		"250gm":       "250g",
		"1 Kilogram":  "1kg",
		"500 ML":      "500ml",
		"2 Litres":    "2l",
		"750 mL":      "750ml",
		"10 Pieces":   "10pcs",
		"100 mg":      "100mg",
		"1.5 liters":  "1.5l",
		"250g":        "250g",
		"5 Milligram": "5mg",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeQuantity(in), in)
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"05/03/2024": "2024-03-05",
		"5-3-24":     "2024-03-05",
		"05.03.2024": "2024-03-05",
		"31/12/2023": "2023-12-31",
		"03/2024":    "2024-03-01",
		"2024-03-05": "2024-03-05",
		"32/13/2024": "32/13/2024",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDate(in), in)
	}
}

func TestNormalizeCountry(t *testing.T) {
	assert.Equal(t, "United States", NormalizeCountry("  united   states "))
	assert.Equal(t, "India", NormalizeCountry("INDIA"))
}

func TestNormalizersIdempotent(t *testing.T) {
	inputs := []string{"Rs. 1,250", "250 Grams", "05/03/2024", "  sri lanka", "Acme Foods Pvt Ltd", "", "garbage"}
	fns := map[string]func(string) string{
		"mrp":          NormalizeMRP,
		"quantity":     NormalizeQuantity,
		"date":         NormalizeDate,
		"country":      NormalizeCountry,
		"manufacturer": NormalizeManufacturer,
	}
	for name, f := range fns {
		for _, in := range inputs {
			once := f(in)
			assert.Equal(t, once, f(once), "%s(%q)", name, in)
		}
	}
}

func TestMappingGetTreatsEmptyAsAbsent(t *testing.T) {
	m := Mapping{MRP: "  "}
	_, ok := m.Get(MRP)
	assert.False(t, ok)
	assert.False(t, m.Has(NetQuantity))
}

func TestFromStrings(t *testing.T) {
	m := FromStrings(map[string]string{
		"mrp":          "₹120.00",
		"net_quantity": "",
		"colour":       "red",
	})
	assert.Equal(t, Mapping{MRP: "₹120.00"}, m)
	assert.Equal(t, map[string]string{"mrp": "₹120.00"}, m.Strings())
}
