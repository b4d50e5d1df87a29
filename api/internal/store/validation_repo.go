package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"labelcheck/api/internal/compliance"
	"labelcheck/api/internal/ocr"
	"labelcheck/api/internal/rules"
)

type ValidationRepo struct{ DB *sql.DB }

func NewValidationRepo(db *sql.DB) *ValidationRepo { return &ValidationRepo{DB: db} }

// ValidationRow is one persisted verdict.
type ValidationRow struct {
	ID        int64          `json:"id"`
	RunID     string         `json:"run_id"`
	ProductID string         `json:"product_id"`
	OCRID     *int64         `json:"ocr_id,omitempty"`
	RuleID    string         `json:"rule_id"`
	RuleDesc  string         `json:"rule_desc"`
	Category  string         `json:"category"`
	Source    string         `json:"source"`
	Passed    bool           `json:"passed"`
	Severity  rules.Severity `json:"severity"`
	Details   string         `json:"details"`
	CheckedAt time.Time      `json:"checked_at"`
}

type extractedPayload struct {
	Labels  []ocr.Annotation `json:"labels"`
	Objects []ocr.Annotation `json:"objects"`
}

// Save writes a whole run in one transaction: OCR rows, verdict rows linked
// to the first OCR row, and the product's current score and grade.
func (r *ValidationRepo) Save(ctx context.Context, run compliance.Run) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const insOCR = `
insert into ocr_results (image_id, run_id, crop_type, ocr_text, extracted, confidence, extracted_at)
values ($1,$2,'full_image',$3,$4,$5,$6)
returning id`
	var firstOCR sql.NullInt64
	for i, o := range run.OCR {
		js, err := json.Marshal(extractedPayload{Labels: o.Labels, Objects: o.Objects})
		if err != nil {
			return err
		}
		var id int64
		if err := tx.QueryRowContext(ctx, insOCR, o.ImageID, run.ID, o.Text, string(js), o.Confidence, run.ValidatedAt).Scan(&id); err != nil {
			return fmt.Errorf("insert ocr result for image %d: %w", o.ImageID, err)
		}
		if i == 0 {
			firstOCR = sql.NullInt64{Int64: id, Valid: true}
		}
	}

	const insVerdict = `
insert into validations (run_id, product_id, ocr_id, rule_id, rule_desc, category, source, passed, severity, details, checked_at)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	for _, v := range run.Verdicts {
		if _, err := tx.ExecContext(ctx, insVerdict,
			run.ID, run.ProductID, firstOCR, v.RuleID, v.RuleName, v.Category, v.Source,
			v.Passed, string(v.Severity), v.Details, run.ValidatedAt,
		); err != nil {
			return fmt.Errorf("insert verdict %s: %w", v.RuleID, err)
		}
	}

	const upd = `
update products
set compliance_grade = $1, compliance_score = $2, last_validated_at = $3
where product_id = $4`
	res, err := tx.ExecContext(ctx, upd, run.Grade, run.Score, run.ValidatedAt, run.ProductID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

const validationCols = `id, run_id, product_id, ocr_id, rule_id, rule_desc, category, source, passed, severity, details, checked_at`

func scanValidation(s scanner) (ValidationRow, error) {
	var (
		v     ValidationRow
		ocrID sql.NullInt64
		sev   string
	)
	if err := s.Scan(&v.ID, &v.RunID, &v.ProductID, &ocrID, &v.RuleID, &v.RuleDesc, &v.Category, &v.Source,
		&v.Passed, &sev, &v.Details, &v.CheckedAt); err != nil {
		return ValidationRow{}, err
	}
	if ocrID.Valid {
		id := ocrID.Int64
		v.OCRID = &id
	}
	v.Severity = rules.Severity(sev)
	return v, nil
}

func (r *ValidationRepo) queryValidations(ctx context.Context, q string, args ...any) ([]ValidationRow, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ValidationRow{}
	for rows.Next() {
		v, err := scanValidation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListByProduct returns every verdict ever recorded for a product, newest
// first.
func (r *ValidationRepo) ListByProduct(ctx context.Context, productID string) ([]ValidationRow, error) {
	q := `select ` + validationCols + ` from validations where product_id = $1 order by checked_at desc, id`
	return r.queryValidations(ctx, q, productID)
}

// Violations returns failed verdicts, newest first.
func (r *ValidationRepo) Violations(ctx context.Context, limit int) ([]ValidationRow, error) {
	q := `select ` + validationCols + ` from validations where passed = false order by checked_at desc, id desc limit $1`
	return r.queryValidations(ctx, q, limit)
}

type RuleCount struct {
	RuleID   string `json:"rule_id"`
	RuleDesc string `json:"rule_desc"`
	Count    int    `json:"count"`
}

type SeverityCount struct {
	Severity rules.Severity `json:"severity"`
	Count    int            `json:"count"`
}

type Stats struct {
	TotalProducts    int             `json:"total_products"`
	TotalValidations int             `json:"total_validations"`
	TotalViolations  int             `json:"total_violations"`
	PassRate         float64         `json:"pass_rate"`
	ByRule           []RuleCount     `json:"violations_by_category"`
	BySeverity       []SeverityCount `json:"violations_by_severity"`
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

func (r *ValidationRepo) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	const counts = `
select (select count(*) from products),
       (select count(*) from validations),
       (select count(*) from validations where passed = false)`
	if err := r.DB.QueryRowContext(ctx, counts).Scan(&s.TotalProducts, &s.TotalValidations, &s.TotalViolations); err != nil {
		return nil, err
	}
	if s.TotalValidations > 0 {
		s.PassRate = round2((1 - float64(s.TotalViolations)/float64(s.TotalValidations)) * 100)
	}

	rows, err := r.DB.QueryContext(ctx, `
select rule_id, rule_desc, count(*)
from validations
where passed = false
group by rule_id, rule_desc
order by count(*) desc, rule_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	s.ByRule = []RuleCount{}
	for rows.Next() {
		var c RuleCount
		if err := rows.Scan(&c.RuleID, &c.RuleDesc, &c.Count); err != nil {
			return nil, err
		}
		s.ByRule = append(s.ByRule, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srows, err := r.DB.QueryContext(ctx, `
select severity, count(*)
from validations
where passed = false
group by severity
order by count(*) desc, severity`)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	s.BySeverity = []SeverityCount{}
	for srows.Next() {
		var (
			c   SeverityCount
			sev string
		)
		if err := srows.Scan(&sev, &c.Count); err != nil {
			return nil, err
		}
		c.Severity = rules.Severity(sev)
		s.BySeverity = append(s.BySeverity, c)
	}
	return &s, srows.Err()
}

type ReportSummary struct {
	TotalChecks            int     `json:"total_checks"`
	Passed                 int     `json:"passed"`
	Failed                 int     `json:"failed"`
	ComplianceRate         float64 `json:"compliance_rate"`
	HighSeverityViolations int     `json:"high_severity_violations"`
	Status                 string  `json:"status"`
}

type OCRRow struct {
	ID         int64           `json:"id"`
	ImageID    int64           `json:"image_id"`
	ImageURL   string          `json:"image_url"`
	RunID      string          `json:"run_id,omitempty"`
	Text       string          `json:"ocr_text"`
	Extracted  json.RawMessage `json:"extracted,omitempty"`
	Confidence float64         `json:"confidence"`
	CreatedAt  time.Time       `json:"extracted_at"`
}

type Report struct {
	Product     *compliance.Product `json:"product"`
	Summary     ReportSummary       `json:"summary"`
	Validations []ValidationRow     `json:"validations"`
	OCR         []OCRRow            `json:"ocr_results"`
}

// Summarize rolls verdict rows up. Status compares the pass rate with
// threshold.
func Summarize(vs []ValidationRow, threshold float64) ReportSummary {
	s := ReportSummary{TotalChecks: len(vs)}
	for _, v := range vs {
		if v.Passed {
			s.Passed++
			continue
		}
		if v.Severity == rules.High || v.Severity == rules.Critical {
			s.HighSeverityViolations++
		}
	}
	s.Failed = s.TotalChecks - s.Passed
	s.ComplianceRate = round2(rules.Rate(s.Passed, s.TotalChecks))
	s.Status = compliance.StatusNonCompliant
	if s.ComplianceRate >= threshold {
		s.Status = compliance.StatusCompliant
	}
	return s
}

// Report summarizes every verdict row of a product together with its OCR
// evidence.
func (r *ValidationRepo) Report(ctx context.Context, products *ProductRepo, productID string, threshold float64) (*Report, error) {
	p, err := products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	vs, err := r.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, `
select o.id, o.image_id, i.image_url, coalesce(o.run_id::text,''), o.ocr_text, o.extracted, o.confidence, o.extracted_at
from ocr_results o
join images i on o.image_id = i.id
where i.product_id = $1
order by o.id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ocrRows := []OCRRow{}
	for rows.Next() {
		var (
			o  OCRRow
			js []byte
		)
		if err := rows.Scan(&o.ID, &o.ImageID, &o.ImageURL, &o.RunID, &o.Text, &js, &o.Confidence, &o.CreatedAt); err != nil {
			return nil, err
		}
		if len(js) > 0 {
			o.Extracted = json.RawMessage(js)
		}
		ocrRows = append(ocrRows, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Report{
		Product:     p,
		Summary:     Summarize(vs, threshold),
		Validations: vs,
		OCR:         ocrRows,
	}, nil
}

type Dashboard struct {
	TotalProducts    int             `json:"total_products_scanned"`
	Compliant        int             `json:"compliant_products"`
	NonCompliant     int             `json:"non_compliant_products"`
	ComplianceRate   float64         `json:"compliance_rate"`
	RecentViolations []ValidationRow `json:"recent_violations"`
}

const recentViolations = 10

// Dashboard counts a product as non-compliant once any of its verdicts failed.
func (r *ValidationRepo) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	const q = `
select (select count(*) from products),
       (select count(distinct product_id) from validations where passed = false)`
	if err := r.DB.QueryRowContext(ctx, q).Scan(&d.TotalProducts, &d.NonCompliant); err != nil {
		return nil, err
	}
	d.Compliant = d.TotalProducts - d.NonCompliant
	if d.TotalProducts > 0 {
		d.ComplianceRate = round2((1 - float64(d.NonCompliant)/float64(d.TotalProducts)) * 100)
	}
	recent, err := r.Violations(ctx, recentViolations)
	if err != nil {
		return nil, err
	}
	d.RecentViolations = recent
	return &d, nil
}

// ExportRow is one line of the violations export.
type ExportRow struct {
	ProductID   string
	Title       string
	Seller      string
	Marketplace string
	RuleID      string
	RuleDesc    string
	Severity    string
	Details     string
	CheckedAt   time.Time
}

// ExportHeader names the columns of ExportRow.Record.
var ExportHeader = []string{"product_id", "title", "seller", "marketplace", "rule_id", "rule_desc", "severity", "details", "checked_at"}

func (e ExportRow) Record() []string {
	return []string{e.ProductID, e.Title, e.Seller, e.Marketplace, e.RuleID, e.RuleDesc, e.Severity, e.Details, e.CheckedAt.UTC().Format(time.RFC3339)}
}

// EachViolation streams every failed verdict joined with its product.
func (r *ValidationRepo) EachViolation(ctx context.Context, fn func(ExportRow) error) error {
	rows, err := r.DB.QueryContext(ctx, `
select p.product_id, p.title, p.seller, p.marketplace,
       v.rule_id, v.rule_desc, v.severity, v.details, v.checked_at
from validations v
join products p on v.product_id = p.product_id
where v.passed = false
order by v.checked_at desc, v.id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e ExportRow
		if err := rows.Scan(&e.ProductID, &e.Title, &e.Seller, &e.Marketplace,
			&e.RuleID, &e.RuleDesc, &e.Severity, &e.Details, &e.CheckedAt); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}
