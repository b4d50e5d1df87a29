package compliance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"labelcheck/api/internal/assess"
	"labelcheck/api/internal/ocr"
	"labelcheck/api/internal/rules"
)

const (
	frontLabel = `Acme Chips
MRP: Rs. 120 (incl. of all taxes)
Net Wt: 250 Grams
Manufactured by: Acme Foods Pvt Ltd, Plot 4, Mumbai
Mfg Date: 05/03/2024
Best Before: 05/09/2024`
	backLabel = `Country of Origin: india
Customer Care: 1800-123-4567
FSSAI Lic. No. 12345678901234`
)

type fakeStore struct {
	mu       sync.Mutex
	products map[string]*Product
	images   map[string][]ocr.Image
	saveErr  error
	saved    []Run
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (*Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListImages(_ context.Context, id string) ([]ocr.Image, error) {
	return f.images[id], nil
}

func (f *fakeStore) SaveValidation(_ context.Context, run Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, run)
	return nil
}

type scripted struct {
	res   ocr.Result
	err   error
	delay time.Duration
}

type fakeRecognizer struct {
	byImage map[int64]scripted
	calls   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
	hook    func(ctx context.Context, im ocr.Image) error
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(ctx context.Context, im ocr.Image) (ocr.Result, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.hook != nil {
		if err := f.hook(ctx, im); err != nil {
			return ocr.Empty(), err
		}
	}
	s := f.byImage[im.ID]
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ocr.Empty(), ctx.Err()
		}
	}
	if s.err != nil {
		return ocr.Empty(), s.err
	}
	return s.res, nil
}

type fakeAssessor struct {
	out    assess.Outcome
	corpus string
	calls  int
}

func (f *fakeAssessor) Name() string { return "fake" }

func (f *fakeAssessor) Assess(_ context.Context, _ assess.ProductInfo, corpus string) assess.Outcome {
	f.calls++
	f.corpus = corpus
	return f.out
}

type fakeNotifier struct {
	got []*Result
	err error
}

func (f *fakeNotifier) NonCompliant(_ context.Context, _ Product, res *Result) error {
	f.got = append(f.got, res)
	return f.err
}

func labelled(text string, labels ...string) ocr.Result {
	r := ocr.Empty()
	r.Text = text
	r.Confidence = 0.9
	for _, l := range labels {
		r.Labels = append(r.Labels, ocr.Annotation{Name: l, Score: 0.9})
	}
	return r
}

func score(f float64) *float64 { return &f }

var clock = func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) }

func newFixture(t *testing.T, out assess.Outcome) (*Service, *fakeStore, *fakeRecognizer, *fakeAssessor) {
	t.Helper()
	st := &fakeStore{
		products: map[string]*Product{"P1": {ID: "P1", Title: "Acme Chips", Category: "Food"}},
		images: map[string][]ocr.Image{"P1": {
			{ID: 1, Path: "/img/1.jpg", URL: "https://cdn/1.jpg"},
			{ID: 2, URL: "https://cdn/2.jpg"},
			{ID: 3, Path: "/img/3.jpg", URL: "https://cdn/3.jpg"},
		}},
	}
	rec := &fakeRecognizer{byImage: map[int64]scripted{
		1: {res: labelled(frontLabel, "Snack", "Label")},
		3: {res: labelled(backLabel, "Font")},
	}}
	ai := &fakeAssessor{out: out}
	svc := New(st, rec, ai, rules.NewDefault(), nil, DefaultOptions(), zaptest.NewLogger(t), WithClock(clock))
	return svc, st, rec, ai
}

func ruleIDs(vs []rules.Verdict) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.RuleID)
	}
	return out
}

func TestValidateProduct_MergesAllSources(t *testing.T) {
	svc, st, rec, ai := newFixture(t, assess.Succeeded(assess.Assessment{
		Score:            score(85),
		Status:           "COMPLIANT",
		Violations:       []assess.Violation{{Rule: "Generic name", Severity: "High", Description: "missing", Recommendation: "add it"}},
		PassedChecks:     []assess.PassedCheck{{Rule: "MRP Present", Detail: "₹120"}},
		Grade:            "A-",
		GradeExplanation: "One gap.",
	}))

	res, err := svc.ValidateProduct(context.Background(), "P1")
	require.NoError(t, err)

	assert.EqualValues(t, 2, rec.calls.Load())
	assert.Equal(t, frontLabel+"\n\n"+backLabel, ai.corpus)

	assert.Equal(t, 85.0, res.Score)
	assert.Equal(t, StatusCompliant, res.Status)
	assert.Equal(t, "A-", res.Grade)
	assert.Equal(t, "One gap.", res.GradeExplanation)
	assert.Equal(t, clock(), res.ValidatedAt)

	assert.Equal(t, []string{
		"R001", "R002", "R003", "R004", "R005", "R006", "R007", "R008", "R009", "R010",
		"AI_GENERIC_NAME", "AI_MRP_PRESENT", VisionLabelPresent,
	}, ruleIDs(res.Verdicts))
	for _, v := range res.Verdicts[:10] {
		assert.True(t, v.Passed, v.RuleID)
	}
	aiFail := res.Verdicts[10]
	assert.False(t, aiFail.Passed)
	assert.Equal(t, rules.High, aiFail.Severity)
	assert.Equal(t, "missing | Recommendation: add it", aiFail.Details)
	assert.Equal(t, rules.Low, res.Verdicts[11].Severity)
	assert.True(t, res.Verdicts[11].Passed)

	assert.Equal(t, 13, res.Total)
	assert.Equal(t, 12, res.Passed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "12345678901234", res.Fields["fssai"])

	require.Len(t, st.saved, 1)
	run := st.saved[0]
	assert.Equal(t, res.RunID, run.ID)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "P1", run.ProductID)
	assert.Equal(t, 85.0, run.Score)
	assert.Equal(t, "A-", run.Grade)
	assert.Equal(t, res.Verdicts, run.Verdicts)
	require.Len(t, run.OCR, 2)
	assert.EqualValues(t, 1, run.OCR[0].ImageID)
	assert.EqualValues(t, 3, run.OCR[1].ImageID)
	assert.Equal(t, "https://cdn/1.jpg", run.OCR[0].ImageURL)
}

func TestValidateProduct_ScoreFallsBackToPassRate(t *testing.T) {
	svc, _, _, _ := newFixture(t, assess.Succeeded(assess.Assessment{}))

	res, err := svc.ValidateProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 11, res.Total)
	assert.InDelta(t, 100.0, res.Score, 1e-9)
	assert.Equal(t, "A+", res.Grade)
	assert.Equal(t, StatusCompliant, res.Status)
}

func TestValidateProduct_AIServiceErrorDegrades(t *testing.T) {
	svc, st, _, _ := newFixture(t, assess.Failed(errors.New("quota exceeded")))
	n := &fakeNotifier{err: errors.New("telegram down")}
	svc = New(svc.store, svc.ocr, svc.ai, nil, nil, DefaultOptions(), zaptest.NewLogger(t), WithNotifier(n))

	res, err := svc.ValidateProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, "F", res.Grade)
	assert.Equal(t, assess.StatusError, res.AIStatus)
	assert.Equal(t, StatusNonCompliant, res.Status)

	ids := ruleIDs(res.Verdicts)
	assert.Contains(t, ids, "AI_API_ERROR")
	assert.Contains(t, ids, VisionLabelPresent)
	assert.Contains(t, ids, "R001")

	require.Len(t, st.saved, 1)
	assert.Equal(t, res.Verdicts, st.saved[0].Verdicts)
	assert.Len(t, n.got, 1)
}

func TestValidateProduct_AIParseFailure(t *testing.T) {
	svc, _, _, _ := newFixture(t, assess.ParseFailed(errors.New("unexpected end of JSON input")))

	res, err := svc.ValidateProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 70.0, res.Score)
	assert.Equal(t, "C", res.Grade)
	assert.Equal(t, assess.StatusPartial, res.AIStatus)
	assert.Equal(t, StatusNonCompliant, res.Status)
	assert.Contains(t, ruleIDs(res.Verdicts), "AI_JSON_PARSE_ERROR")
}

func TestValidateProduct_NotFound(t *testing.T) {
	svc, st, rec, ai := newFixture(t, assess.Succeeded(assess.Assessment{}))
	st.products["P2"] = &Product{ID: "P2"}

	_, err := svc.ValidateProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ValidateProduct(context.Background(), "P2")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, st.saved)
	assert.Zero(t, rec.calls.Load())
	assert.Zero(t, ai.calls)
}

func TestValidateProduct_OCRFailureDegrades(t *testing.T) {
	svc, st, rec, ai := newFixture(t, assess.Succeeded(assess.Assessment{Score: score(60)}))
	rec.byImage[1] = scripted{err: errors.New("vision 503")}

	res, err := svc.ValidateProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, backLabel, ai.corpus)
	require.Len(t, st.saved[0].OCR, 2)
	assert.Empty(t, st.saved[0].OCR[0].Text)
	assert.Equal(t, "C", res.Grade)
	assert.Equal(t, VisionLabelPresent, res.Verdicts[len(res.Verdicts)-1].RuleID)
}

func TestValidateProduct_NoLabelsFailsVisionCheck(t *testing.T) {
	svc, _, rec, _ := newFixture(t, assess.Succeeded(assess.Assessment{Score: score(90)}))
	rec.byImage[1] = scripted{res: labelled(frontLabel, "Snack")}
	rec.byImage[3] = scripted{res: labelled(backLabel)}

	res, err := svc.ValidateProduct(context.Background(), "P1")
	require.NoError(t, err)
	last := res.Verdicts[len(res.Verdicts)-1]
	assert.Equal(t, VisionLabelMissing, last.RuleID)
	assert.Equal(t, rules.Medium, last.Severity)
	assert.False(t, last.Passed)
}

func manyImages(n int) []ocr.Image {
	out := make([]ocr.Image, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, ocr.Image{ID: int64(i), Path: "/img.jpg"})
	}
	return out
}

func TestValidateProduct_KeepsImageOrderAndBoundsWorkers(t *testing.T) {
	svc, st, rec, _ := newFixture(t, assess.Succeeded(assess.Assessment{Score: score(90)}))
	st.images["P1"] = manyImages(8)
	rec.byImage = map[int64]scripted{}
	for i := int64(1); i <= 8; i++ {
		rec.byImage[i] = scripted{res: labelled(string(rune('a'+i-1))), delay: time.Duration(9-i) * 5 * time.Millisecond}
	}
	opts := DefaultOptions()
	opts.Workers = 2
	opts.MaxImages = 6
	svc = New(st, rec, svc.ai, nil, nil, opts, zaptest.NewLogger(t))

	_, err := svc.ValidateProduct(context.Background(), "P1")
	require.NoError(t, err)

	require.Len(t, st.saved, 1)
	var got []int64
	for _, row := range st.saved[0].OCR {
		got = append(got, row.ImageID)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, got)
	assert.EqualValues(t, 6, rec.calls.Load())
	assert.LessOrEqual(t, rec.peak.Load(), int32(2))
}

func TestValidateProduct_CancellationWritesNothing(t *testing.T) {
	svc, st, rec, ai := newFixture(t, assess.Succeeded(assess.Assessment{Score: score(90)}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.hook = func(context.Context, ocr.Image) error {
		cancel()
		return errors.New("interrupted")
	}

	_, err := svc.ValidateProduct(ctx, "P1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.saved)
	assert.Zero(t, ai.calls)
}

func TestValidateProduct_SaveErrorPropagates(t *testing.T) {
	svc, st, _, _ := newFixture(t, assess.Succeeded(assess.Assessment{Score: score(90)}))
	st.saveErr = errors.New("connection reset")

	_, err := svc.ValidateProduct(context.Background(), "P1")
	assert.ErrorContains(t, err, "connection reset")
}

func TestAIRuleID(t *testing.T) {
	cases := map[string]string{
		"Missing FSSAI":       "AI_MISSING_FSSAI",
		"mrp -- format (ok)":  "AI_MRP_FORMAT_OK",
		"  Net Qty.  ":        "AI_NET_QTY",
		"":                    "AI_CHECK",
		"!!!":                 "AI_CHECK",
		"Country-of-Origin 2": "AI_COUNTRY_OF_ORIGIN_2",
	}
	for in, want := range cases {
		assert.Equal(t, want, AIRuleID(in), in)
	}
}

func TestGradeFor(t *testing.T) {
	cases := map[float64]string{
		100: "A+", 95: "A+", 94.9: "A", 90: "A", 85: "A-", 80: "B+", 75: "B",
		70: "B-", 65: "C+", 60: "C", 59.99: "D", 50: "D", 49: "F", 0: "F",
	}
	for s, want := range cases {
		assert.Equal(t, want, GradeFor(s), s)
	}
}

func TestOptions_ZeroFieldsTakeDefaults(t *testing.T) {
	assert.Equal(t, DefaultOptions(), Options{}.withDefaults())

	o := Options{Threshold: 65, Workers: 2}.withDefaults()
	assert.Equal(t, 65.0, o.Threshold)
	assert.Equal(t, 2, o.Workers)
	assert.Equal(t, DefaultOptions().MaxImages, o.MaxImages)
}
