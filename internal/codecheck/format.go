package codecheck

import (
	"fmt"
	"strings"
)

// FormatMessage renders a result as the numbered message shown to users and
// fed back to the model on correction.
func FormatMessage(r Result) string {
	if r.Clean() {
		return "✅ Code validated correctly."
	}

	var b strings.Builder
	if len(r.Errors) > 0 {
		b.WriteString("🔴 ERRORS DETECTED:\n")
		for i, e := range r.Errors {
			fmt.Fprintf(&b, "%d. %s\n", i+1, e)
		}
	}
	if len(r.Warnings) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("⚠️  WARNINGS:\n")
		for i, w := range r.Warnings {
			fmt.Fprintf(&b, "%d. %s\n", i+1, w)
		}
	}
	return b.String()
}

// Summary counts the findings of a report.
type Summary struct {
	TotalErrors          int      `json:"total_errors"`
	TotalWarnings        int      `json:"total_warnings"`
	AntipatternsDetected []string `json:"antipatterns_detected"`
}

// Report is the validate-only answer.
type Report struct {
	IsValid     bool     `json:"is_valid"`
	HasWarnings bool     `json:"has_warnings"`
	Strategy    Strategy `json:"strategy"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Message     string   `json:"message"`
	Summary     Summary  `json:"summary"`
}

// BuildReport turns a result into a report. Antipatterns detected lists the
// error messages of catalogue rules 1 to 6.
func BuildReport(r Result) Report {
	antipatterns := []string{}
	for _, f := range r.Findings {
		if f.Severity == SeverityError && f.Rule >= 1 && f.Rule <= 6 {
			antipatterns = append(antipatterns, f.Message)
		}
	}
	return Report{
		IsValid:     r.IsValid(),
		HasWarnings: r.HasWarnings(),
		Strategy:    r.Strategy,
		Errors:      r.Errors,
		Warnings:    r.Warnings,
		Message:     FormatMessage(r),
		Summary: Summary{
			TotalErrors:          len(r.Errors),
			TotalWarnings:        len(r.Warnings),
			AntipatternsDetected: antipatterns,
		},
	}
}
