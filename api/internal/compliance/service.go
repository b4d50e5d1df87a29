// Package compliance drives one product validation end to end: recognize
// every image, ask the assessor, run the rule table, merge the verdicts and
// persist the run.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"labelcheck/api/internal/assess"
	"labelcheck/api/internal/fields"
	"labelcheck/api/internal/metrics"
	"labelcheck/api/internal/ocr"
	"labelcheck/api/internal/rules"
)

// Options tunes a Service. A zero or negative field takes its DefaultOptions
// value, so a zero Threshold means 80, not "everything passes".
type Options struct {
	Threshold              float64
	OCRConfidenceThreshold float64
	MaxImages              int
	Workers                int
	OCRTimeout             time.Duration
	AITimeout              time.Duration
}

func DefaultOptions() Options {
	return Options{
		Threshold:              80,
		OCRConfidenceThreshold: 0.6,
		MaxImages:              5,
		Workers:                4,
		OCRTimeout:             30 * time.Second,
		AITimeout:              60 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Threshold <= 0 {
		o.Threshold = d.Threshold
	}
	if o.OCRConfidenceThreshold <= 0 {
		o.OCRConfidenceThreshold = d.OCRConfidenceThreshold
	}
	if o.MaxImages <= 0 {
		o.MaxImages = d.MaxImages
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.OCRTimeout <= 0 {
		o.OCRTimeout = d.OCRTimeout
	}
	if o.AITimeout <= 0 {
		o.AITimeout = d.AITimeout
	}
	return o
}

type Service struct {
	store     Storage
	ocr       ocr.Recognizer
	ai        assess.Assessor
	rules     *rules.Engine
	extractor *fields.Extractor
	opts      Options
	log       *zap.Logger

	notifier Notifier
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock is for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Storage, rec ocr.Recognizer, ai assess.Assessor, re *rules.Engine, ex *fields.Extractor, opts Options, log *zap.Logger, extra ...Option) *Service {
	if re == nil {
		re = rules.NewDefault()
	}
	if ex == nil {
		ex = fields.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:     store,
		ocr:       rec,
		ai:        ai,
		rules:     re,
		extractor: ex,
		opts:      opts.withDefaults(),
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range extra {
		o(s)
	}
	return s
}

func (s *Service) Options() Options { return s.opts }

// ValidateProduct runs one validation and persists it. Collaborator failures
// degrade the result; storage failures and cancellation abort the run before
// anything is written.
func (s *Service) ValidateProduct(ctx context.Context, productID string) (*Result, error) {
	log := s.log.With(zap.String("product_id", productID))

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}
	images, err := s.store.ListImages(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load images of %s: %w", productID, err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images for product %s: %w", productID, ErrNotFound)
	}

	texts, err := s.recognizeAll(ctx, log, images)
	if err != nil {
		return nil, err
	}

	corpus := joinCorpus(texts, s.opts.OCRConfidenceThreshold)
	outcome := s.assess(ctx, log, p.Info(), corpus)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ai := outcome.Resolve()

	extracted := s.extractor.Extract(corpus)
	verdicts := s.rules.ValidateAll(extracted, p.Category)
	verdicts = append(verdicts, aiVerdicts(ai)...)
	verdicts = append(verdicts, visionVerdict(texts))

	sum := rules.Summarize(verdicts)
	score := sum.Rate
	if ai.Score != nil {
		score = *ai.Score
	}
	grade := strings.TrimSpace(ai.Grade)
	if grade == "" {
		grade = GradeFor(score)
	}
	status := StatusNonCompliant
	if score >= s.opts.Threshold {
		status = StatusCompliant
	}

	now := s.now()
	rows := make([]ImageText, 0, len(texts))
	vision := make([]ImageLabels, 0, len(texts))
	for _, t := range texts {
		rows = append(rows, t.row())
		vision = append(vision, t.summary())
	}

	run := Run{
		ID:          s.newID(),
		ProductID:   p.ID,
		OCR:         rows,
		Verdicts:    verdicts,
		Score:       score,
		Grade:       grade,
		ValidatedAt: now,
	}
	if err := s.store.SaveValidation(ctx, run); err != nil {
		return nil, fmt.Errorf("save validation of %s: %w", productID, err)
	}

	res := &Result{
		ProductID:        p.ID,
		RunID:            run.ID,
		Score:            score,
		Status:           status,
		Grade:            grade,
		GradeExplanation: ai.GradeExplanation,
		AIStatus:         ai.Status,
		AIAssessment:     ai,
		Verdicts:         verdicts,
		Total:            sum.Total,
		Passed:           sum.Passed,
		Failed:           sum.Failed,
		ComplianceRate:   sum.Rate,
		Fields:           extracted,
		OCR:              rows,
		Vision:           vision,
		ValidatedAt:      now,
	}
	metrics.Validations.WithLabelValues(status).Inc()
	log.Info("product validated",
		zap.String("run_id", run.ID),
		zap.Float64("score", score),
		zap.String("grade", grade),
		zap.String("status", status),
		zap.Int("checks", sum.Total),
		zap.Int("passed", sum.Passed),
		zap.Int("images", len(rows)),
	)

	if status == StatusNonCompliant && s.notifier != nil {
		if err := s.notifier.NonCompliant(ctx, *p, res); err != nil {
			log.Warn("non-compliance notification failed", zap.Error(err))
		}
	}
	return res, nil
}

type recognized struct {
	image ocr.Image
	res   ocr.Result
}

func (r recognized) row() ImageText {
	return ImageText{
		ImageID:    r.image.ID,
		ImageURL:   r.image.URL,
		Text:       r.res.Text,
		Confidence: r.res.Confidence,
		Labels:     r.res.Labels,
		Objects:    r.res.Objects,
	}
}

const visionSummarySize = 5

func (r recognized) summary() ImageLabels {
	return ImageLabels{
		ImageID:  r.image.ID,
		ImageURL: r.image.URL,
		Labels:   head(r.res.Labels, visionSummarySize),
		Objects:  head(r.res.Objects, visionSummarySize),
	}
}

func head(a []ocr.Annotation, n int) []ocr.Annotation {
	if len(a) > n {
		return a[:n]
	}
	return a
}

// recognizeAll runs the recognizer over every stored image, at most Workers
// at a time. Results keep image order. A failed image degrades to an empty
// result; only cancellation of ctx fails the batch.
func (s *Service) recognizeAll(ctx context.Context, log *zap.Logger, images []ocr.Image) ([]recognized, error) {
	todo := make([]ocr.Image, 0, len(images))
	for _, im := range images {
		if strings.TrimSpace(im.Path) == "" && len(im.Data) == 0 {
			log.Debug("image has no storage path, skipped", zap.Int64("image_id", im.ID))
			continue
		}
		if len(todo) == s.opts.MaxImages {
			break
		}
		todo = append(todo, im)
	}

	out := make([]recognized, len(todo))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, im := range todo {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cctx, cancel := context.WithTimeout(gctx, s.opts.OCRTimeout)
			defer cancel()

			start := time.Now()
			res, err := s.ocr.Recognize(cctx, im)
			metrics.ObserveCall("ocr_"+s.ocr.Name(), start)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				metrics.CollaboratorFailures.WithLabelValues("ocr_"+s.ocr.Name(), "error").Inc()
				log.Warn("ocr failed, continuing without this image",
					zap.Int64("image_id", im.ID), zap.String("engine", s.ocr.Name()), zap.Error(err))
				res = ocr.Empty()
			}
			out[i] = recognized{image: im, res: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func joinCorpus(texts []recognized, threshold float64) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if txt := t.res.UsableText(threshold); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s *Service) assess(ctx context.Context, log *zap.Logger, info assess.ProductInfo, corpus string) assess.Outcome {
	actx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()

	start := time.Now()
	out := s.ai.Assess(actx, info, corpus)
	metrics.ObserveCall("ai_"+s.ai.Name(), start)
	if out.Kind != assess.Success {
		metrics.CollaboratorFailures.WithLabelValues("ai_"+s.ai.Name(), out.Kind.String()).Inc()
		log.Warn("assessment degraded",
			zap.String("engine", s.ai.Name()),
			zap.String("kind", out.Kind.String()),
			zap.Error(out.Err),
			zap.Bool("timeout", errors.Is(out.Err, context.DeadlineExceeded)),
		)
	}
	return out
}
