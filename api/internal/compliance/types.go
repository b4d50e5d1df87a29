package compliance

import (
	"context"
	"errors"
	"time"

	"labelcheck/api/internal/assess"
	"labelcheck/api/internal/fields"
	"labelcheck/api/internal/ocr"
	"labelcheck/api/internal/rules"
)

// ErrNotFound is returned when a product or its images are absent.
var ErrNotFound = errors.New("compliance: not found")

const (
	StatusCompliant    = "COMPLIANT"
	StatusNonCompliant = "NON_COMPLIANT"
)

// Product is the stored listing a validation runs against.
type Product struct {
	ID            string     `json:"product_id"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Price         *float64   `json:"listed_price,omitempty"`
	Currency      string     `json:"currency"`
	Seller        string     `json:"seller"`
	Category      string     `json:"category"`
	Marketplace   string     `json:"marketplace"`
	Description   string     `json:"description,omitempty"`
	Manufacturer  string     `json:"manufacturer,omitempty"`
	Packer        string     `json:"packer,omitempty"`
	Importer      string     `json:"importer,omitempty"`
	ImporterEmail string     `json:"importer_email,omitempty"`
	ImporterPhone string     `json:"importer_phone,omitempty"`
	Country       string     `json:"country_of_origin,omitempty"`
	GenericName   string     `json:"generic_name,omitempty"`
	Score         *float64   `json:"compliance_score,omitempty"`
	Grade         string     `json:"compliance_grade,omitempty"`
	ValidatedAt   *time.Time `json:"last_validated_at,omitempty"`
	CrawledAt     time.Time  `json:"crawled_at"`
}

// Info is the metadata handed to the assessor.
func (p Product) Info() assess.ProductInfo {
	return assess.ProductInfo{
		Title:         p.Title,
		Price:         p.Price,
		Category:      p.Category,
		Seller:        p.Seller,
		Marketplace:   p.Marketplace,
		Description:   p.Description,
		Country:       p.Country,
		Manufacturer:  p.Manufacturer,
		Packer:        p.Packer,
		Importer:      p.Importer,
		ImporterEmail: p.ImporterEmail,
		ImporterPhone: p.ImporterPhone,
		GenericName:   p.GenericName,
	}
}

// ImageText is the recognized evidence of one image. One is persisted per
// processed image.
type ImageText struct {
	ImageID    int64            `json:"image_id"`
	ImageURL   string           `json:"image_url,omitempty"`
	Text       string           `json:"text"`
	Confidence float64          `json:"confidence"`
	Labels     []ocr.Annotation `json:"labels"`
	Objects    []ocr.Annotation `json:"objects"`
}

// ImageLabels is the short vision summary of one image.
type ImageLabels struct {
	ImageID  int64            `json:"image_id"`
	ImageURL string           `json:"image_url,omitempty"`
	Labels   []ocr.Annotation `json:"labels"`
	Objects  []ocr.Annotation `json:"objects"`
}

// Run is everything one validation writes, committed together.
type Run struct {
	ID          string
	ProductID   string
	OCR         []ImageText
	Verdicts    []rules.Verdict
	Score       float64
	Grade       string
	ValidatedAt time.Time
}

// Result is returned by ValidateProduct.
type Result struct {
	ProductID        string            `json:"product_id"`
	RunID            string            `json:"run_id"`
	Score            float64           `json:"compliance_score"`
	Status           string            `json:"status"`
	Grade            string            `json:"final_grade"`
	GradeExplanation string            `json:"grade_explanation"`
	AIStatus         string            `json:"ai_status"`
	AIAssessment     assess.Assessment `json:"ai_analysis"`
	Verdicts         []rules.Verdict   `json:"validations"`
	Total            int               `json:"total_checks"`
	Passed           int               `json:"passed_checks"`
	Failed           int               `json:"failed_checks"`
	ComplianceRate   float64           `json:"compliance_rate"`
	Fields           fields.Mapping    `json:"extracted_fields"`
	OCR              []ImageText       `json:"ocr_results"`
	Vision           []ImageLabels     `json:"vision_analysis"`
	ValidatedAt      time.Time         `json:"validated_at"`
}

// Storage is what the orchestrator needs from persistence. GetProduct and
// ListImages report absence with an error matching ErrNotFound.
type Storage interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
	ListImages(ctx context.Context, productID string) ([]ocr.Image, error)
	SaveValidation(ctx context.Context, run Run) error
}

// Notifier is told about runs that end NON_COMPLIANT.
type Notifier interface {
	NonCompliant(ctx context.Context, p Product, res *Result) error
}
