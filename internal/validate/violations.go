// Package validate offers a tiny violations accumulator, adapted from
// the teacher's validation.Violations map so that startup configuration
// checks can report every problem at once instead of failing on the
// first missing setting.
package validate

import "strings"

// Violations maps a field name to a short machine-readable reason.
type Violations map[string]string

// Empty reports whether no violations were recorded.
func (v Violations) Empty() bool { return len(v) == 0 }

// Error renders the violations as a single aggregate error message.
func (v Violations) Error() string {
	parts := make([]string, 0, len(v))
	for field, reason := range v {
		parts = append(parts, field+": "+reason)
	}
	return strings.Join(parts, "; ")
}

// Required records a violation if value is blank.
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Positive records a violation if val is not strictly positive.
func Positive(field string, val float64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

// PositiveInt records a violation if val is not strictly positive.
func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}
