package compliance

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"labelcheck/api/internal/assess"
	"labelcheck/api/internal/ocr"
)

// Listing is a listing that has not been stored yet.
type Listing = assess.ProductInfo

const (
	minImages      = 3
	minAIScore     = 70
	minReadiness   = 60
	readinessExtra = 3 // image count, label visibility, AI score
)

// preLabelTerms is narrower than labelTerms: a pre-upload listing must
// show the label itself.
var preLabelTerms = []string{"label", "text", "package"}

type Issue struct {
	Field          string `json:"field"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

type Warning struct {
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

type Suggestion struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Issue    string `json:"issue"`
	Fix      string `json:"fix"`
}

type PreResult struct {
	CanUpload       bool              `json:"can_upload"`
	ReadinessScore  float64           `json:"readiness_score"`
	EstimatedGrade  string            `json:"estimated_grade"`
	ComplianceScore *float64          `json:"compliance_score"`
	Status          string            `json:"status"`
	Issues          []Issue           `json:"issues"`
	Warnings        []Warning         `json:"warnings"`
	Suggestions     []Suggestion      `json:"suggestions"`
	AIAssessment    assess.Assessment `json:"ai_analysis"`
	Vision          []ImageLabels     `json:"vision_analysis"`
	TextExtracted   int               `json:"total_text_extracted"`
	ImagesProcessed int               `json:"images_processed"`
}

// PreValidate checks whether a listing is ready to be published. Nothing is
// stored.
func (s *Service) PreValidate(ctx context.Context, l Listing, images []ocr.Image) (PreResult, error) {
	log := s.log.With(zap.String("listing", l.Title))

	texts, err := s.recognizeAll(ctx, log, images)
	if err != nil {
		return PreResult{}, err
	}
	corpus := joinCorpus(texts, s.opts.OCRConfidenceThreshold)
	ai := s.assess(ctx, log, l, corpus).Resolve()
	if err := ctx.Err(); err != nil {
		return PreResult{}, err
	}

	res := PreResult{
		Issues:          []Issue{},
		Warnings:        []Warning{},
		Suggestions:     []Suggestion{},
		EstimatedGrade:  ai.Grade,
		ComplianceScore: ai.Score,
		Status:          ai.Status,
		AIAssessment:    ai,
		Vision:          make([]ImageLabels, 0, len(texts)),
		TextExtracted:   len(corpus),
		ImagesProcessed: len(texts),
	}
	if res.EstimatedGrade == "" {
		res.EstimatedGrade = "N/A"
	}

	critical := []struct {
		field, label string
		present      bool
	}{
		{"title", "title", strings.TrimSpace(l.Title) != ""},
		{"listed_price", "listed price", l.Price != nil && *l.Price > 0},
		{"manufacturer", "manufacturer", strings.TrimSpace(l.Manufacturer) != ""},
		{"country_of_origin", "country of origin", strings.TrimSpace(l.Country) != ""},
	}
	passed := 0
	for _, c := range critical {
		if c.present {
			passed++
			continue
		}
		res.Issues = append(res.Issues, Issue{
			Field:          c.field,
			Severity:       "high",
			Message:        strings.ToUpper(c.label[:1]) + c.label[1:] + " is required",
			Recommendation: "Please provide " + c.label,
		})
	}

	if len(texts) >= minImages {
		passed++
	} else {
		res.Warnings = append(res.Warnings, Warning{
			Type:           "image_count",
			Severity:       "medium",
			Message:        "Consider uploading at least 3 images",
			Recommendation: "Add more product images showing different angles",
		})
	}

	labels := false
	for _, t := range texts {
		res.Vision = append(res.Vision, t.summary())
		labels = labels || t.res.Mentions(preLabelTerms...)
	}
	if labels {
		passed++
	} else {
		res.Warnings = append(res.Warnings, Warning{
			Type:           "label_visibility",
			Severity:       "high",
			Message:        "Product labels not clearly visible in images",
			Recommendation: "Include clear photos of product labels showing MRP, manufacturer details",
		})
	}

	score := 0.0
	if ai.Score != nil {
		score = *ai.Score
	}
	if score >= minAIScore {
		passed++
	}

	for _, v := range ai.Violations {
		res.Suggestions = append(res.Suggestions, Suggestion{
			Rule:     v.Rule,
			Severity: v.Severity,
			Issue:    v.Description,
			Fix:      v.Recommendation,
		})
	}

	total := len(critical) + readinessExtra
	res.ReadinessScore = math.Round(float64(passed)/float64(total)*100*100) / 100
	res.CanUpload = res.ReadinessScore >= minReadiness && len(res.Issues) == 0 && score >= s.opts.Threshold

	log.Info("listing pre-validated",
		zap.Float64("readiness", res.ReadinessScore),
		zap.Bool("can_upload", res.CanUpload),
		zap.Int("images", len(texts)),
	)
	return res, nil
}
