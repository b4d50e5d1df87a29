// Package assess defines the AI assessment contract and its degraded
// outcomes.
package assess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"labelcheck/api/internal/util"
)

// Violation is one problem the model reported.
type Violation struct {
	Rule             string `json:"rule"`
	Severity         string `json:"severity"`
	Description      string `json:"description"`
	Recommendation   string `json:"recommendation"`
	CategorySpecific bool   `json:"category_specific,omitempty"`
}

// PassedCheck is one check the model found satisfied.
type PassedCheck struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// Assessment is the model's structured answer. Every member is optional.
type Assessment struct {
	Score            *float64      `json:"compliance_score"`
	Status           string        `json:"status,omitempty"`
	Violations       []Violation   `json:"violations"`
	PassedChecks     []PassedCheck `json:"passed_checks"`
	Extracted        Echo          `json:"extracted_from_ocr"`
	Overall          string        `json:"overall_assessment,omitempty"`
	Grade            string        `json:"final_grade,omitempty"`
	GradeExplanation string        `json:"grade_explanation,omitempty"`
}

// UnmarshalJSON accepts the score as a number or a numeric string ("85",
// "85%") and clamps it to [0, 100]. Anything else leaves Score nil.
func (a *Assessment) UnmarshalJSON(b []byte) error {
	type alias Assessment
	aux := struct {
		*alias
		Score json.RawMessage `json:"compliance_score"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.Score = parseScore(aux.Score)
	return nil
}

func parseScore(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = v
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	f = math.Max(0, math.Min(100, f))
	return &f
}

// Echo is the model's copy of the fields it read. Non-string scalars are
// kept in their JSON text form; null stays nil.
type Echo map[string]*string

func (e *Echo) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		// a list or scalar in place of the object is ignored
		*e = Echo{}
		return nil
	}
	out := make(Echo, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		if len(v) == 0 || string(v) == "null" {
			out[k] = nil
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			s = string(v)
		}
		if strings.EqualFold(strings.TrimSpace(s), "null") {
			out[k] = nil
			continue
		}
		out[k] = &s
	}
	*e = out
	return nil
}

// Kind discriminates Outcome.
type Kind int

const (
	Success Kind = iota
	ParseFailure
	ServiceError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case ParseFailure:
		return "parse_failure"
	case ServiceError:
		return "service_error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the result of one assessment call. Failures are values.
type Outcome struct {
	Kind       Kind
	Assessment Assessment
	Err        error
}

func Succeeded(a Assessment) Outcome { return Outcome{Kind: Success, Assessment: a} }

func ParseFailed(err error) Outcome { return Outcome{Kind: ParseFailure, Err: err} }

func Failed(err error) Outcome { return Outcome{Kind: ServiceError, Err: err} }

// Status values the degraded outcomes resolve to.
const (
	StatusPartial = "PARTIAL"
	StatusError   = "ERROR"
)

func ptr(f float64) *float64 { return &f }

// Resolve returns the assessment to use: the model's answer on success,
// otherwise the fixed degraded assessment for the failure kind.
func (o Outcome) Resolve() Assessment {
	msg := "unknown error"
	if o.Err != nil {
		msg = o.Err.Error()
	}
	switch o.Kind {
	case ParseFailure:
		return Assessment{
			Score:  ptr(70),
			Status: StatusPartial,
			Violations: []Violation{{
				Rule:           "JSON Parse Error",
				Severity:       "medium",
				Description:    "AI response could not be parsed as JSON: " + msg,
				Recommendation: "Manual review required",
			}},
			PassedChecks:     []PassedCheck{},
			Extracted:        Echo{},
			Overall:          "Unable to parse AI response",
			Grade:            "C",
			GradeExplanation: "Analysis completed with errors",
		}
	case ServiceError:
		return Assessment{
			Score:  ptr(0),
			Status: StatusError,
			Violations: []Violation{{
				Rule:           "API Error",
				Severity:       "high",
				Description:    msg,
				Recommendation: "Check API",
			}},
			PassedChecks:     []PassedCheck{},
			Extracted:        Echo{},
			Overall:          "Error: " + msg,
			Grade:            "F",
			GradeExplanation: "System error during analysis",
		}
	}
	return o.Assessment
}

// Decode turns raw model text into an Outcome. Code fences and prose around
// the outermost JSON object are tolerated.
func Decode(text string) Outcome {
	body := util.ExtractJSONObject(util.StripCodeFences(text))
	if body == "" {
		return ParseFailed(fmt.Errorf("empty response"))
	}
	var a Assessment
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return ParseFailed(err)
	}
	return Succeeded(a)
}

// Assessor asks a model for a holistic compliance assessment. It never
// returns a Go error; failures are encoded in the Outcome.
type Assessor interface {
	Name() string
	Assess(ctx context.Context, p ProductInfo, corpus string) Outcome
}
