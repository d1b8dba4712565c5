package analyzer

import (
	"github.com/alexohotnikov/envs-checker-vscode/internal/config"
)

// Kind tells whether a key is missing from or extra in the working file
type Kind string

const (
	Missing Kind = "missing" // In the template, not in the working file
	Extra   Kind = "extra"   // In the working file, not in the template
)

// Finding is a single discrepancy between the working file and its template
type Finding struct {
	Kind       Kind   `json:"kind"`
	Key        string `json:"key"`
	Line       int    `json:"line"`                 // Zero-based line in the working file
	Unresolved bool   `json:"unresolved,omitempty"` // True if the key's line could not be found and Line is a fallback
}

// Message returns the diagnostic message for the finding
func (f Finding) Message() string {
	switch f.Kind {
	case Missing:
		return "Missing variable: " + f.Key
	case Extra:
		return "Extra variable: " + f.Key
	default:
		return string(f.Kind) + " variable: " + f.Key
	}
}

// Diagnostic is a finding as rendered by a host
type Diagnostic struct {
	Line     int             `json:"line"`
	Message  string          `json:"message"`
	Severity config.Severity `json:"severity"`
}

// Result contains the complete check results for one file pair
type Result struct {
	Findings       []Finding       // Missing findings in template order, then extra findings in working-file order
	Severity       config.Severity // Severity applied to every finding
	IgnoredMissing int             // Count of missing variables ignored via config
	IgnoredExtra   int             // Count of extra variables ignored via config
}

// Diagnostics renders the findings as (line, message, severity) triples
func (r Result) Diagnostics() []Diagnostic {
	diags := make([]Diagnostic, 0, len(r.Findings))
	for _, f := range r.Findings {
		diags = append(diags, Diagnostic{
			Line:     f.Line,
			Message:  f.Message(),
			Severity: r.Severity,
		})
	}
	return diags
}

// HasIssues returns true if any finding was reported
func (r Result) HasIssues() bool {
	return len(r.Findings) > 0
}

// Count returns the number of findings of the given kind
func (r Result) Count(kind Kind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}
