package analyzer

import (
	"github.com/alexohotnikov/envs-checker-vscode/internal/config"
	"github.com/alexohotnikov/envs-checker-vscode/internal/envfile"
)

// Analyze compares the working variables with the template variables.
// Only key presence is compared, values are never looked at.
// Missing findings come first in template order, then extra findings in
// working-file order. Line is left at zero; see Locate.
func Analyze(working, template *envfile.Map) []Finding {
	var findings []Finding

	for _, key := range template.Keys() {
		if !working.Has(key) {
			findings = append(findings, Finding{Kind: Missing, Key: key})
		}
	}

	for _, key := range working.Keys() {
		if !template.Has(key) {
			findings = append(findings, Finding{Kind: Extra, Key: key})
		}
	}

	return findings
}

// Locate resolves the line of every finding in the working text.
// Missing keys go to the first or the last line depending on policy. Extra
// keys go to the line that declares them; if that line cannot be found the
// finding is kept at line 0 and marked Unresolved.
func Locate(findings []Finding, workingText string, policy config.MissingLine) []Finding {
	missingLine := 0
	if policy == config.MissingAtEnd {
		if n := len(envfile.SplitLines(workingText)); n > 0 {
			missingLine = n - 1
		}
	}

	located := make([]Finding, len(findings))
	for i, f := range findings {
		switch f.Kind {
		case Missing:
			f.Line = missingLine
		case Extra:
			line := envfile.FindLine(workingText, f.Key)
			if line == envfile.NotFound {
				f.Line = 0
				f.Unresolved = true
			} else {
				f.Line = line
			}
		}
		located[i] = f
	}
	return located
}

// Check parses both texts, compares them and locates the findings.
// cfg may be nil, in which case defaults are used.
func Check(workingText, templateText string, cfg *config.Config) Result {
	if cfg == nil {
		cfg = config.Default()
	}

	working := envfile.Parse(workingText)
	template := envfile.Parse(templateText)

	result := Result{
		Findings: []Finding{},
		Severity: cfg.Severity,
	}
	if result.Severity == "" {
		result.Severity = config.SeverityError
	}

	var kept []Finding
	for _, f := range Analyze(working, template) {
		// Check if this variable should be ignored via config
		switch {
		case f.Kind == Missing && cfg.ShouldIgnoreMissing(f.Key):
			result.IgnoredMissing++
		case f.Kind == Extra && cfg.ShouldIgnoreExtra(f.Key):
			result.IgnoredExtra++
		default:
			kept = append(kept, f)
		}
	}

	if len(kept) > 0 {
		result.Findings = Locate(kept, workingText, cfg.MissingLine)
	}
	return result
}
