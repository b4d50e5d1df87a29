package compliance

import (
	"strings"
	"unicode"

	"labelcheck/api/internal/assess"
	"labelcheck/api/internal/rules"
)

const (
	VisionLabelPresent = "VISION_LABEL_PRESENT"
	VisionLabelMissing = "VISION_LABEL_MISSING"
)

// labelTerms are the detected labels that count as visible product labeling.
var labelTerms = []string{"product", "package", "label", "text", "font"}

// aiVerdicts turns reported violations into failed verdicts and passed checks
// into low-severity passes, in report order.
func aiVerdicts(a assess.Assessment) []rules.Verdict {
	out := make([]rules.Verdict, 0, len(a.Violations)+len(a.PassedChecks))
	for _, v := range a.Violations {
		out = append(out, rules.Verdict{
			RuleID:      AIRuleID(v.Rule),
			RuleName:    v.Rule,
			Description: v.Description,
			Category:    "ai",
			Severity:    severityOf(v.Severity),
			Passed:      false,
			Details:     withRecommendation(v.Description, v.Recommendation),
			Source:      rules.SourceAI,
		})
	}
	for _, c := range a.PassedChecks {
		out = append(out, rules.Verdict{
			RuleID:   AIRuleID(c.Rule),
			RuleName: c.Rule,
			Category: "ai",
			Severity: rules.Low,
			Passed:   true,
			Details:  withRecommendation(c.Detail, "Compliant"),
			Source:   rules.SourceAI,
		})
	}
	return out
}

func visionVerdict(texts []recognized) rules.Verdict {
	for _, t := range texts {
		if t.res.Mentions(labelTerms...) {
			return rules.Verdict{
				RuleID:   VisionLabelPresent,
				RuleName: "Product label detected in images",
				Category: "vision",
				Severity: rules.Low,
				Passed:   true,
				Details:  "Vision detected product labeling in images",
				Source:   rules.SourceVision,
			}
		}
	}
	return rules.Verdict{
		RuleID:   VisionLabelMissing,
		RuleName: "Product label not clearly visible",
		Category: "vision",
		Severity: rules.Medium,
		Passed:   false,
		Details:  withRecommendation("Could not detect clear product labels in images", "Ensure product labels are clearly visible in images"),
		Source:   rules.SourceVision,
	}
}

func withRecommendation(details, rec string) string {
	details, rec = strings.TrimSpace(details), strings.TrimSpace(rec)
	switch {
	case rec == "":
		return details
	case details == "":
		return "Recommendation: " + rec
	}
	return details + " | Recommendation: " + rec
}

// AIRuleID derives a stable rule ID from a reported rule name:
// "Missing FSSAI no." becomes "AI_MISSING_FSSAI_NO".
func AIRuleID(name string) string {
	var b strings.Builder
	b.WriteString("AI_")
	gap := false
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if gap && b.Len() > len("AI_") {
				b.WriteByte('_')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	if b.Len() == len("AI_") {
		b.WriteString("CHECK")
	}
	return b.String()
}

func severityOf(s string) rules.Severity {
	switch rules.Severity(strings.ToLower(strings.TrimSpace(s))) {
	case rules.Critical:
		return rules.Critical
	case rules.High:
		return rules.High
	case rules.Low:
		return rules.Low
	}
	return rules.Medium
}

var gradeTable = []struct {
	min   float64
	grade string
}{
	{95, "A+"}, {90, "A"}, {85, "A-"}, {80, "B+"}, {75, "B"},
	{70, "B-"}, {65, "C+"}, {60, "C"}, {50, "D"},
}

// GradeFor is the letter grade for a score when the assessor gave none.
func GradeFor(score float64) string {
	for _, g := range gradeTable {
		if score >= g.min {
			return g.grade
		}
	}
	return "F"
}
