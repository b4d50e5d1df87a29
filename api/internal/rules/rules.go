// Package rules evaluates the legal-metrology label rules against extracted
// fields.
package rules

import (
	"strings"
	"time"

	"labelcheck/api/internal/fields"
)

// Severity is a static property of a rule.
type Severity string

const (
	Critical Severity = "critical"
	High     Severity = "high"
	Medium   Severity = "medium"
	Low      Severity = "low"
)

// Severities in descending order.
var Severities = []Severity{Critical, High, Medium, Low}

// Verdict sources.
const (
	SourceRules  = "rules"
	SourceAI     = "ai"
	SourceVision = "vision"
)

// Check is a pure predicate over a field mapping.
type Check func(fields.Mapping) (passed bool, details string)

// Rule is one entry of the ordered rule table.
type Rule struct {
	ID          string
	Name        string
	Description string
	Category    string
	Severity    Severity
	// FoodOnly rules are dropped before dispatch for non-food categories.
	FoodOnly bool
	Check    Check
}

// Verdict is the outcome of one rule or reported check for one run.
type Verdict struct {
	RuleID      string   `json:"rule_id"`
	RuleName    string   `json:"rule_name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Passed      bool     `json:"passed"`
	Details     string   `json:"details"`
	Source      string   `json:"source"`
}

type Engine struct {
	rules       []Rule
	foodKeyword string
}

type Option func(*Engine)

// WithFoodKeyword changes the category marker that enables FoodOnly rules.
func WithFoodKeyword(kw string) Option {
	return func(e *Engine) {
		if kw = strings.TrimSpace(kw); kw != "" {
			e.foodKeyword = strings.ToLower(kw)
		}
	}
}

// NewEngine returns an engine over rules, evaluated in the given order.
func NewEngine(rules []Rule, opts ...Option) *Engine {
	e := &Engine{
		rules:       append([]Rule(nil), rules...),
		foodKeyword: "food",
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewDefault returns an engine over DefaultRules with the wall clock.
func NewDefault() *Engine {
	return NewEngine(DefaultRules(time.Now))
}

// Rules returns a copy of the rule table.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// applies reports whether r takes part in a run for category. An empty
// category keeps every rule.
func (e *Engine) applies(r Rule, category string) bool {
	if !r.FoodOnly || strings.TrimSpace(category) == "" {
		return true
	}
	return strings.Contains(strings.ToLower(category), e.foodKeyword)
}

// ValidateAll runs every applicable rule in declaration order.
func (e *Engine) ValidateAll(m fields.Mapping, category string) []Verdict {
	if m == nil {
		m = fields.Mapping{}
	}
	out := make([]Verdict, 0, len(e.rules))
	for _, r := range e.rules {
		if !e.applies(r, category) {
			continue
		}
		passed, details := r.Check(m)
		out = append(out, Verdict{
			RuleID:      r.ID,
			RuleName:    r.Name,
			Description: r.Description,
			Category:    r.Category,
			Severity:    r.Severity,
			Passed:      passed,
			Details:     details,
			Source:      SourceRules,
		})
	}
	return out
}

// Summary counts a verdict list.
type Summary struct {
	Total  int     `json:"total"`
	Passed int     `json:"passed"`
	Failed int     `json:"failed"`
	Rate   float64 `json:"compliance_rate"`
	// BySeverity counts failed verdicts per severity.
	BySeverity map[Severity]int `json:"failed_by_severity"`
}

func Summarize(vs []Verdict) Summary {
	s := Summary{Total: len(vs), BySeverity: map[Severity]int{}}
	for _, v := range vs {
		if v.Passed {
			s.Passed++
			continue
		}
		s.Failed++
		s.BySeverity[v.Severity]++
	}
	s.Rate = Rate(s.Passed, s.Total)
	return s
}

// Rate is passed/total as a percentage, 0 for an empty list.
func Rate(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}
