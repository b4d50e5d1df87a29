package assess

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDecode_FlexibleScore(t *testing.T) {
	cases := map[string]*float64{
		`{"compliance_score": 85}`:      ptr(85),
		`{"compliance_score": "72.5"}`:  ptr(72.5),
		`{"compliance_score": " 90% "}`: ptr(90),
		`{"compliance_score": 140}`:     ptr(100),
		`{"compliance_score": -3}`:      ptr(0),
		`{"compliance_score": null}`:    nil,
		`{"compliance_score": "high"}`:  nil,
		`{"compliance_score": [1]}`:     nil,
		`{}`:                            nil,
	}
	for in, want := range cases {
		o := Decode(in)
		require.Equal(t, Success, o.Kind, in)
		if want == nil {
			assert.Nil(t, o.Assessment.Score, in)
			continue
		}
		require.NotNil(t, o.Assessment.Score, in)
		assert.InDelta(t, *want, *o.Assessment.Score, 1e-9, in)
	}
}

func TestDecode_FullAnswer(t *testing.T) {
	text := "Sure!\n```json\n" + `{
  "compliance_score": 82,
  "status": "COMPLIANT",
  "violations": [{"rule": "Missing FSSAI", "severity": "high", "description": "no licence", "recommendation": "print it"}],
  "passed_checks": [{"rule": "MRP Present", "detail": "₹120"}],
  "extracted_from_ocr": {"mrp": "₹120", "fssai": null, "net_quantity": 250, "country_of_origin": "null"},
  "overall_assessment": "Mostly fine.",
  "final_grade": "B+",
  "grade_explanation": "One gap."
}` + "\n```"
	o := Decode(text)
	require.Equal(t, Success, o.Kind)
	a := o.Assessment
	assert.Equal(t, "COMPLIANT", a.Status)
	assert.Equal(t, []Violation{{Rule: "Missing FSSAI", Severity: "high", Description: "no licence", Recommendation: "print it"}}, a.Violations)
	assert.Equal(t, []PassedCheck{{Rule: "MRP Present", Detail: "₹120"}}, a.PassedChecks)
	assert.Equal(t, "B+", a.Grade)

	require.NotNil(t, a.Extracted["mrp"])
	assert.Equal(t, "₹120", *a.Extracted["mrp"])
	assert.Nil(t, a.Extracted["fssai"])
	assert.Nil(t, a.Extracted["country_of_origin"])
	require.NotNil(t, a.Extracted["net_quantity"])
	assert.Equal(t, "250", *a.Extracted["net_quantity"])
}

func TestDecode_Failures(t *testing.T) {
	for _, in := range []string{"", "   ", "no json here", `{"compliance_score": 80,`, `{"violations": "none"}`} {
		o := Decode(in)
		assert.Equal(t, ParseFailure, o.Kind, in)
		assert.Error(t, o.Err, in)
	}
}

func TestDecode_EchoNotAnObject(t *testing.T) {
	o := Decode(`{"extracted_from_ocr": ["mrp"]}`)
	require.Equal(t, Success, o.Kind)
	assert.Empty(t, o.Assessment.Extracted)
}

func TestResolve(t *testing.T) {
	a := Assessment{Score: ptr(91), Grade: "A"}
	assert.Equal(t, a, Succeeded(a).Resolve())

	pf := ParseFailed(errors.New("unexpected end")).Resolve()
	require.NotNil(t, pf.Score)
	assert.Equal(t, 70.0, *pf.Score)
	assert.Equal(t, StatusPartial, pf.Status)
	assert.Equal(t, "C", pf.Grade)
	require.Len(t, pf.Violations, 1)
	assert.Equal(t, "medium", pf.Violations[0].Severity)
	assert.Equal(t, "Manual review required", pf.Violations[0].Recommendation)

	se := Failed(errors.New("timeout")).Resolve()
	require.NotNil(t, se.Score)
	assert.Equal(t, 0.0, *se.Score)
	assert.Equal(t, StatusError, se.Status)
	assert.Equal(t, "F", se.Grade)
	require.Len(t, se.Violations, 1)
	assert.Equal(t, "high", se.Violations[0].Severity)
	assert.Equal(t, "timeout", se.Violations[0].Description)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "parse_failure", ParseFailure.String())
	assert.Equal(t, "service_error", ServiceError.String())
}

func TestBuildPrompt(t *testing.T) {
	price := 120.0
	p := ProductInfo{
		Title:       "Acme Chips",
		Price:       &price,
		Category:    "Food",
		Description: strings.Repeat("d", 600),
	}
	out := BuildPrompt(p, strings.Repeat("x", 2500))

	assert.Contains(t, out, "- Title: Acme Chips")
	assert.Contains(t, out, "- Listed Price: ₹120.00")
	assert.Contains(t, out, "- Seller: N/A")
	assert.Contains(t, out, "For FOOD:")
	assert.Contains(t, out, strings.Repeat("d", 500)+"\n")
	assert.NotContains(t, out, strings.Repeat("d", 501))
	assert.Contains(t, out, strings.Repeat("x", 2000)+"\n")
	assert.NotContains(t, out, strings.Repeat("x", 2001))

	assert.Contains(t, BuildPrompt(ProductInfo{}, " "), "No text extracted")
}

type fakeAssessor struct {
	calls int
	out   Outcome
}

func (f *fakeAssessor) Name() string { return "fake" }
func (f *fakeAssessor) Assess(context.Context, ProductInfo, string) Outcome {
	f.calls++
	return f.out
}

func TestEnginesGet(t *testing.T) {
	g := &fakeAssessor{}
	e := &Engines{Gemini: g}

	a, err := e.Get("")
	require.NoError(t, err)
	assert.Same(t, g, a)

	_, err = e.Get("openai")
	assert.Error(t, err)
	_, err = e.Get("claude")
	assert.Error(t, err)
}

func TestWithBreaker_OpensAfterServiceErrors(t *testing.T) {
	f := &fakeAssessor{out: Failed(errors.New("boom"))}
	a := WithBreaker(f, BreakerSettings{MaxFailures: 2, Cooldown: time.Hour}, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		o := a.Assess(context.Background(), ProductInfo{}, "")
		assert.Equal(t, ServiceError, o.Kind)
		assert.ErrorContains(t, o.Err, "boom")
	}
	assert.Equal(t, 2, f.calls)

	o := a.Assess(context.Background(), ProductInfo{}, "")
	assert.Equal(t, ServiceError, o.Kind)
	assert.ErrorContains(t, o.Err, "open")
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, "fake", a.Name())
}

func TestWithBreaker_ParseFailuresDoNotTrip(t *testing.T) {
	f := &fakeAssessor{out: ParseFailed(errors.New("junk"))}
	a := WithBreaker(f, BreakerSettings{MaxFailures: 1}, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, ParseFailure, a.Assess(context.Background(), ProductInfo{}, "").Kind)
	}
	assert.Equal(t, 3, f.calls)
}
