// Package entity rolls per-product compliance up to the manufacturers,
// importers and packers declared on the listings.
package entity

import (
	"context"
	"regexp"
	"strings"
)

type Type string

const (
	Manufacturer Type = "manufacturer"
	Importer     Type = "importer"
	Packer       Type = "packer"
)

// Types in refresh order.
var Types = []Type{Manufacturer, Importer, Packer}

// Party is one product's declaration of an entity.
type Party struct {
	ProductID string
	Name      string
	Email     string
	Phone     string
	Score     *float64
	Grade     string
}

type Entity struct {
	ID           int64    `json:"id,omitempty"`
	Type         Type     `json:"entity_type"`
	Name         string   `json:"name"`
	Address      string   `json:"address,omitempty"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	AvgScore     *float64 `json:"avg_compliance_score"`
	ModalGrade   string   `json:"avg_compliance_grade,omitempty"`
	Total        int      `json:"total_products"`
	Compliant    int      `json:"compliant_products"`
	NonCompliant int      `json:"non_compliant_products"`
}

// Store is the persistence the aggregator needs. ReplaceEntities swaps the
// whole table in one transaction and reports the rows written.
type Store interface {
	ListParties(ctx context.Context, t Type) ([]Party, error)
	ReplaceEntities(ctx context.Context, es []Entity) (int, error)
}

const (
	maxName    = 500
	maxAddress = 1000
)

var (
	reSpace  = regexp.MustCompile(`\s+`)
	reSuffix = regexp.MustCompile(`(?i)(^|[\s,])(?:pvt|private|ltd|limited|inc|corp)\.?($|[\s,])`)
	reCommas = regexp.MustCompile(`\s*,[\s,]*`)
)

// NormalizeName is the grouping key for a declared name: whitespace is
// collapsed and corporate suffix words are dropped wherever they appear, so
// "Acme Pvt Ltd" and "Acme Ltd." both become "Acme".
func NormalizeName(name string) string {
	s := reSpace.ReplaceAllString(strings.TrimSpace(name), " ")
	for {
		next := reSuffix.ReplaceAllString(s, "$1$2")
		if next == s {
			break
		}
		s = next
	}
	s = reCommas.ReplaceAllString(s, ", ")
	s = reSpace.ReplaceAllString(s, " ")
	return strings.Trim(s, " ,")
}

var compliantGrades = map[string]bool{"A+": true, "A": true, "A-": true, "B+": true, "B": true}

// IsCompliantGrade reports whether grade counts toward the compliant total.
func IsCompliantGrade(grade string) bool { return compliantGrades[strings.TrimSpace(grade)] }

// addressHint returns name when it looks like it carries an address.
func addressHint(name string) string {
	if strings.Count(name, ",") >= 2 {
		return truncate(name, maxAddress)
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type group struct {
	e      Entity
	scores []float64
	grades []string
}

// Aggregate groups parties by normalized name in encounter order. The key is
// the stored (truncated) name, so names sharing a long prefix collapse into
// one entity instead of colliding on insert.
func Aggregate(t Type, parties []Party) []Entity {
	var order []string
	groups := map[string]*group{}
	for _, p := range parties {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		full := NormalizeName(p.Name)
		if full == "" {
			continue
		}
		name := truncate(full, maxName)
		g, ok := groups[name]
		if !ok {
			g = &group{e: Entity{Type: t, Name: name, Address: addressHint(full)}}
			if t == Importer {
				g.e.Email = strings.TrimSpace(p.Email)
				g.e.Phone = strings.TrimSpace(p.Phone)
			}
			groups[name] = g
			order = append(order, name)
		}
		g.e.Total++
		if p.Score != nil {
			g.scores = append(g.scores, *p.Score)
		}
		if grade := strings.TrimSpace(p.Grade); grade != "" {
			g.grades = append(g.grades, grade)
			if IsCompliantGrade(grade) {
				g.e.Compliant++
			} else {
				g.e.NonCompliant++
			}
		}
	}

	out := make([]Entity, 0, len(order))
	for _, name := range order {
		g := groups[name]
		g.e.AvgScore = mean(g.scores)
		g.e.ModalGrade = mode(g.grades)
		out = append(out, g.e)
	}
	return out
}

func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	return &m
}

// mode is the most frequent value; the earliest seen wins a tie.
func mode(xs []string) string {
	counts := map[string]int{}
	best, bestN := "", 0
	for _, x := range xs {
		counts[x]++
	}
	for _, x := range xs {
		if counts[x] > bestN {
			best, bestN = x, counts[x]
		}
	}
	return best
}
