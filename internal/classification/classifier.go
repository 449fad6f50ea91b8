// Package classification derives the unit, default reference range and
// critical flag of a clinical measurement from its test type.
package classification

import "strings"

const (
	DefaultUnit  = "unit"
	DefaultRange = "N/A"
)

// Rule maps a family of test-type fragments to its unit, default range and
// the threshold above which a value is critical.
type Rule struct {
	Name      string   `json:"name"`
	Fragments []string `json:"fragments"`
	Unit      string   `json:"unit"`
	Range     string   `json:"reference_range"`
	Threshold float64  `json:"critical_above"`
}

// Result is the outcome of classifying one measurement.
type Result struct {
	Unit           string
	ReferenceRange string
	Critical       bool
}

// Order matters: the first rule with a matching fragment wins.
var rules = []Rule{
	{
		Name:      "glucose",
		Fragments: []string{"glucose", "glycemia", "glycémie", "glycemie"},
		Unit:      "g/L",
		Range:     "0.70-1.10 g/L",
		Threshold: 1.26,
	},
	{
		Name:      "cholesterol",
		Fragments: []string{"cholesterol", "cholestérol"},
		Unit:      "g/L",
		Range:     "< 2.0 g/L",
		Threshold: 2.0,
	},
	{
		Name:      "blood_pressure",
		Fragments: []string{"pressure", "tension"},
		Unit:      "mmHg",
		Range:     "120/80 mmHg",
		Threshold: 140,
	},
	{
		Name:      "temperature",
		Fragments: []string{"temperature", "température"},
		Unit:      "°C",
		Range:     "36.5-37.5 °C",
		Threshold: 38.5,
	},
	{
		Name:      "creatinine",
		Fragments: []string{"creatinine", "créatinine"},
		Unit:      "mg/dL",
		Range:     "6-13 mg/dL",
		Threshold: 13.0,
	},
}

// Classify returns the unit, default reference range and critical flag for a
// measurement. Unknown or empty test types get the safe defaults.
func Classify(testType string, value float64) Result {
	rule, ok := Match(testType)
	if !ok {
		return Result{Unit: DefaultUnit, ReferenceRange: DefaultRange}
	}
	return Result{
		Unit:           rule.Unit,
		ReferenceRange: rule.Range,
		Critical:       value > rule.Threshold,
	}
}

// Match finds the first rule whose fragment occurs in testType.
func Match(testType string) (Rule, bool) {
	normalized := strings.ToLower(strings.TrimSpace(testType))
	if normalized == "" {
		return Rule{}, false
	}
	for _, r := range rules {
		for _, fragment := range r.Fragments {
			if strings.Contains(normalized, fragment) {
				return r, true
			}
		}
	}
	return Rule{}, false
}

// DefaultReferenceRange returns the range a record falls back to when none
// was supplied.
func DefaultReferenceRange(testType string) string {
	if rule, ok := Match(testType); ok {
		return rule.Range
	}
	return DefaultRange
}

// UnitFor returns the unit associated with testType.
func UnitFor(testType string) string {
	if rule, ok := Match(testType); ok {
		return rule.Unit
	}
	return DefaultUnit
}

// Rules returns a copy of the rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		r.Fragments = append([]string(nil), r.Fragments...)
		out[i] = r
	}
	return out
}
