package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"labelcheck/api/internal/fields"
)

// DefaultRules returns the standard ten-rule table. now feeds the date
// sanity window.
func DefaultRules(now func() time.Time) []Rule {
	if now == nil {
		now = time.Now
	}
	return []Rule{
		{ID: "R001", Name: "MRP Presence", Description: "MRP must be present on packaging",
			Category: "mrp", Severity: Critical, Check: mrpPresence},
		{ID: "R002", Name: "MRP Format", Description: "MRP must include currency symbol and be valid",
			Category: "mrp", Severity: High, Check: mrpFormat},
		{ID: "R003", Name: "Net Quantity Presence", Description: "Net quantity must be declared",
			Category: "quantity", Severity: Critical, Check: quantityPresence},
		{ID: "R004", Name: "Net Quantity Unit", Description: "Net quantity must use standard units",
			Category: "quantity", Severity: High, Check: quantityUnit},
		{ID: "R005", Name: "Manufacturer Name", Description: "Manufacturer name and address must be present",
			Category: "manufacturer", Severity: Critical, Check: manufacturer},
		{ID: "R006", Name: "Country of Origin", Description: "Country of origin must be declared for imported goods",
			Category: "country", Severity: High, Check: country},
		{ID: "R007", Name: "Manufacturing Date", Description: "Manufacturing or packing date should be present",
			Category: "date", Severity: Medium, Check: datePresence},
		{ID: "R008", Name: "Date Format", Description: "Dates must be in valid format",
			Category: "date", Severity: Medium, Check: dateFormat(now)},
		{ID: "R009", Name: "Consumer Care", Description: "Consumer care details should be present",
			Category: "consumer_care", Severity: Low, Check: consumerCare},
		{ID: "R010", Name: "FSSAI License", Description: "FSSAI license number required for food products",
			Category: "fssai", Severity: Critical, FoodOnly: true, Check: fssai},
	}
}

func mrpPresence(m fields.Mapping) (bool, string) {
	if m.Has(fields.MRP) {
		return true, "MRP found"
	}
	return false, "MRP not found on packaging"
}

var reSignedAmount = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

func hasCurrency(s string) bool {
	u := strings.ToUpper(s)
	return strings.Contains(s, "₹") || strings.Contains(u, "INR") || strings.Contains(u, "RS")
}

func mrpFormat(m fields.Mapping) (bool, string) {
	v, ok := m.Get(fields.MRP)
	if !ok {
		return false, "MRP not found"
	}
	num := strings.ReplaceAll(reSignedAmount.FindString(v), ",", "")
	f, err := strconv.ParseFloat(num, 64)
	if hasCurrency(v) && err == nil && f > 0 {
		return true, "Valid MRP format"
	}
	return false, "MRP format invalid or missing currency"
}

func quantityPresence(m fields.Mapping) (bool, string) {
	if m.Has(fields.NetQuantity) {
		return true, "Net quantity declared"
	}
	return false, "Net quantity not found"
}

var reQuantity = regexp.MustCompile(`(?i)^\d+(?:\.\d+)?\s*(?:g|kg|mg|ml|l|nos|pcs)$`)

func quantityUnit(m fields.Mapping) (bool, string) {
	v, ok := m.Get(fields.NetQuantity)
	if !ok {
		return false, "Net quantity not found"
	}
	if reQuantity.MatchString(strings.TrimSpace(v)) {
		return true, "Standard unit used"
	}
	return false, "Non-standard unit or format: " + strings.ToLower(v)
}

func manufacturer(m fields.Mapping) (bool, string) {
	v, ok := m.Get(fields.Manufacturer)
	if !ok {
		return false, "Manufacturer information not found"
	}
	if utf8.RuneCountInString(strings.TrimSpace(v)) > 10 {
		return true, "Manufacturer info present"
	}
	return false, "Manufacturer info incomplete"
}

func country(m fields.Mapping) (bool, string) {
	v, ok := m.Get(fields.Country)
	if !ok {
		return true, "Country of origin not specified (may be required for imported goods)"
	}
	v = strings.TrimSpace(v)
	letters := strings.ReplaceAll(v, " ", "")
	valid := utf8.RuneCountInString(v) >= 3 && letters != ""
	for _, r := range letters {
		if !unicode.IsLetter(r) {
			valid = false
			break
		}
	}
	if valid {
		return true, "Country: " + v
	}
	return false, "Invalid country format"
}

func datePresence(m fields.Mapping) (bool, string) {
	if m.Has(fields.MfgDate) || m.Has(fields.ExpDate) {
		return true, "Date information present"
	}
	return false, "No manufacturing or expiry date found"
}

func dateFormat(now func() time.Time) Check {
	return func(m fields.Mapping) (bool, string) {
		checks := []struct {
			label string
			name  fields.Name
		}{
			{"Manufacturing", fields.MfgDate},
			{"Expiry", fields.ExpDate},
		}
		maxYear := now().Year() + 10
		var invalid []string
		seen := 0
		for _, c := range checks {
			v, ok := m.Get(c.name)
			if !ok {
				continue
			}
			seen++
			t, ok := fields.ParseDate(v)
			if !ok || t.Year() < 2000 || t.Year() > maxYear {
				invalid = append(invalid, fmt.Sprintf("%s: %s", c.label, v))
			}
		}
		if seen == 0 {
			return true, "No dates to validate"
		}
		if len(invalid) > 0 {
			return false, "Invalid dates: " + strings.Join(invalid, ", ")
		}
		return true, "Valid date formats"
	}
}

var reContact = regexp.MustCompile(`\d{10}|\d{3}-\d{3}-\d{4}|\b1800[\s-]?\d|@`)

func consumerCare(m fields.Mapping) (bool, string) {
	v, ok := m.Get(fields.ConsumerCare)
	if !ok {
		return false, "Consumer care details not found"
	}
	if reContact.MatchString(v) {
		return true, "Consumer care details present"
	}
	return false, "Consumer care incomplete"
}

var reFSSAI = regexp.MustCompile(`^\d{14}$`)

// fssai tolerates OCR spacing inside the number but nothing else.
func fssai(m fields.Mapping) (bool, string) {
	v, ok := m.Get(fields.FSSAI)
	if !ok {
		return false, "FSSAI license not found"
	}
	num := strings.Join(strings.Fields(v), "")
	if reFSSAI.MatchString(num) {
		return true, "FSSAI: " + num
	}
	return false, "Invalid FSSAI format: " + v
}
