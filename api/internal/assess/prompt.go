package assess

import (
	"fmt"
	"strings"

	"labelcheck/api/internal/util"
)

const (
	maxDescription = 500
	maxCorpus      = 2000
)

// ProductInfo is the listing metadata sent alongside the recognized text.
type ProductInfo struct {
	Title         string   `json:"title"`
	Price         *float64 `json:"listed_price,omitempty"`
	Category      string   `json:"category"`
	Seller        string   `json:"seller"`
	Marketplace   string   `json:"marketplace"`
	Description   string   `json:"description"`
	Country       string   `json:"country_of_origin"`
	Manufacturer  string   `json:"manufacturer"`
	Packer        string   `json:"packer"`
	Importer      string   `json:"importer"`
	ImporterEmail string   `json:"importer_email"`
	ImporterPhone string   `json:"importer_phone"`
	GenericName   string   `json:"generic_name"`
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "N/A"
	}
	return s
}

const guidelines = `COMPLIANCE GUIDELINES (be practical and category-aware):

For BOOKS:
- MRP should be printed on the back cover.
- Required: ISBN, Publisher, Author, Title.
- Country of Origin is recommended but not always mandatory.
- Importer with contact details is required if imported.

For ELECTRONICS/AUDIO:
- MRP is mandatory on packaging.
- Required: Manufacturer/Importer with address, Country of Origin, Net Quantity.
- Generic Name is required (e.g. "Bluetooth Earphones").

For FOOD:
- MRP is mandatory.
- Required: FSSAI license, Manufacturer/Packer, Net Quantity, Best Before, Ingredients.

For FASHION:
- MRP is mandatory.
- Required: Manufacturer, Country of Origin, Size/Dimensions.

IMPORTANT:
- Be lenient if information is present EITHER in the listing OR on the packaging.
- Consider whether missing information is actually required for this category.
- Only flag severe violations (e.g. listed price above MRP).`

const answerShape = `Return ONLY valid JSON:
{
  "compliance_score": <0-100>,
  "status": "COMPLIANT" | "PARTIAL" | "NON_COMPLIANT",
  "violations": [{"rule": "rule name", "severity": "high" | "medium" | "low", "description": "what is wrong", "recommendation": "how to fix", "category_specific": true | false}],
  "passed_checks": [{"rule": "rule name", "detail": "what is correct"}],
  "extracted_from_ocr": {"mrp": "value or null", "net_quantity": "value or null", "manufacturer": "value or null", "country_of_origin": "value or null", "fssai": "value or null"},
  "overall_assessment": "1-2 sentence summary",
  "final_grade": "A+" | "A" | "A-" | "B+" | "B" | "B-" | "C+" | "C" | "D" | "F",
  "grade_explanation": "brief explanation of the grade"
}`

// BuildPrompt renders the legal-metrology assessment prompt. The description
// is cut to 500 runes and the corpus to 2000.
func BuildPrompt(p ProductInfo, corpus string) string {
	price := "N/A"
	if p.Price != nil {
		price = fmt.Sprintf("%.2f", *p.Price)
	}
	text := strings.TrimSpace(corpus)
	if text == "" {
		text = "No text extracted"
	}

	var b strings.Builder
	b.WriteString("You are a Legal Metrology (Packaged Commodities) Rules compliance expert for Indian e-commerce listings.\n")
	b.WriteString("Assess the product below using its listing data and the text recognized from its images.\n\n")
	b.WriteString("PRODUCT LISTING:\n")
	fmt.Fprintf(&b, "- Title: %s\n", orNA(p.Title))
	fmt.Fprintf(&b, "- Listed Price: ₹%s\n", price)
	fmt.Fprintf(&b, "- Category: %s\n", orNA(p.Category))
	fmt.Fprintf(&b, "- Seller: %s\n", orNA(p.Seller))
	fmt.Fprintf(&b, "- Marketplace: %s\n", orNA(p.Marketplace))
	fmt.Fprintf(&b, "- Description: %s\n", orNA(util.Truncate(p.Description, maxDescription)))
	fmt.Fprintf(&b, "- Country of Origin: %s\n", orNA(p.Country))
	fmt.Fprintf(&b, "- Manufacturer: %s\n", orNA(p.Manufacturer))
	fmt.Fprintf(&b, "- Packer: %s\n", orNA(p.Packer))
	fmt.Fprintf(&b, "- Importer: %s\n", orNA(p.Importer))
	fmt.Fprintf(&b, "- Importer Email: %s\n", orNA(p.ImporterEmail))
	fmt.Fprintf(&b, "- Importer Phone: %s\n", orNA(p.ImporterPhone))
	fmt.Fprintf(&b, "- Generic Name: %s\n\n", orNA(p.GenericName))
	b.WriteString("OCR TEXT FROM PRODUCT IMAGES:\n")
	b.WriteString(util.Truncate(text, maxCorpus))
	b.WriteString("\n\n")
	b.WriteString(guidelines)
	b.WriteString("\n\n")
	b.WriteString(answerShape)
	b.WriteString("\n")
	return b.String()
}
