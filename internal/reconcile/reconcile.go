package reconcile

import (
	"strings"

	"github.com/alexohotnikov/envs-checker-vscode/internal/analyzer"
	"github.com/alexohotnikov/envs-checker-vscode/internal/config"
	"github.com/alexohotnikov/envs-checker-vscode/internal/envfile"
)

// Deletion is a working-file line removed because it declares an extra key
type Deletion struct {
	Line int    // Zero-based line index
	Key  string // Key declared on that line
}

// Plan is the set of edits that reconciles a working file with its template
type Plan struct {
	Insertions []envfile.Entry // Appended in order, one line each
	Deletions  []Deletion      // Ascending by line
}

// NewPlan builds the edits for the given findings.
// Missing keys are appended with the template's value. Every line that
// declares an extra key is deleted, duplicates included.
func NewPlan(workingText string, template *envfile.Map, findings []analyzer.Finding) Plan {
	var plan Plan
	extra := make(map[string]bool)

	for _, f := range findings {
		switch f.Kind {
		case analyzer.Missing:
			entry, ok := template.Get(f.Key)
			if !ok {
				entry = envfile.Entry{Key: f.Key}
			}
			plan.Insertions = append(plan.Insertions, entry)
		case analyzer.Extra:
			extra[f.Key] = true
		}
	}

	if len(extra) == 0 {
		return plan
	}

	for i, line := range envfile.SplitLines(workingText) {
		if key := envfile.LineOfKey(line); key != "" && extra[key] {
			plan.Deletions = append(plan.Deletions, Deletion{Line: i, Key: key})
		}
	}
	return plan
}

// Empty reports whether the plan changes nothing
func (p Plan) Empty() bool {
	return len(p.Insertions) == 0 && len(p.Deletions) == 0
}

// Only narrows the plan to the edits for a single finding
func (p Plan) Only(kind analyzer.Kind, key string) Plan {
	var narrowed Plan
	switch kind {
	case analyzer.Missing:
		for _, e := range p.Insertions {
			if e.Key == key {
				narrowed.Insertions = append(narrowed.Insertions, e)
			}
		}
	case analyzer.Extra:
		for _, d := range p.Deletions {
			if d.Key == key {
				narrowed.Deletions = append(narrowed.Deletions, d)
			}
		}
	}
	return narrowed
}

// Apply returns the patched document: the original lines minus the deleted
// ones, followed by one line per insertion. A deletion is skipped if its line
// no longer declares the planned key.
func (p Plan) Apply(text string) string {
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}

	drop := make(map[int]string, len(p.Deletions))
	for _, d := range p.Deletions {
		drop[d.Line] = d.Key
	}

	lines := envfile.SplitLines(text)
	out := make([]string, 0, len(lines)+len(p.Insertions))
	for i, line := range lines {
		if key, ok := drop[i]; ok && envfile.LineOfKey(line) == key {
			continue
		}
		out = append(out, strings.TrimSuffix(line, "\r"))
	}
	for _, e := range p.Insertions {
		out = append(out, e.String())
	}

	if len(out) == 0 {
		return ""
	}

	patched := strings.Join(out, eol)
	if strings.HasSuffix(text, "\n") || len(p.Insertions) > 0 {
		patched += eol
	}
	return patched
}

// Fix checks the working text against the template and returns the patched
// text together with the plan that produced it. Keys ignored via config are
// left untouched.
func Fix(workingText, templateText string, cfg *config.Config) (string, Plan) {
	result := analyzer.Check(workingText, templateText, cfg)
	plan := NewPlan(workingText, envfile.Parse(templateText), result.Findings)
	if plan.Empty() {
		return workingText, plan
	}
	return plan.Apply(workingText), plan
}
