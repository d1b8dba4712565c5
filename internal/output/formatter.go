package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/alexohotnikov/envs-checker-vscode/internal/analyzer"
	"github.com/alexohotnikov/envs-checker-vscode/internal/config"
	"github.com/alexohotnikov/envs-checker-vscode/internal/session"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Options selects the output format
type Options struct {
	JSON   bool
	Silent bool   // Print nothing, exit code only
	Root   string // Paths are printed relative to this directory
}

// printer writes colored text when the destination is a terminal
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, color: supportsColor(w)}
}

// supportsColor reports whether w is a terminal that accepts ANSI sequences
func supportsColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	return enableANSI(f.Fd())
}

// c returns the color code if colors are enabled, empty string otherwise
func (p *printer) c(code string) string {
	if p.color {
		return code
	}
	return ""
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// JSONOutput represents the JSON output format of a check
type JSONOutput struct {
	Files          []FileOutput `json:"files"`
	Missing        int          `json:"missing"`
	Extra          int          `json:"extra"`
	IgnoredMissing int          `json:"ignored_missing"`
	IgnoredExtra   int          `json:"ignored_extra"`
}

// FileOutput is the check result of one working file
type FileOutput struct {
	Path     string          `json:"path"`
	Template string          `json:"template"`
	Error    string          `json:"error,omitempty"`
	Findings []FindingOutput `json:"findings"`
}

// FindingOutput is a finding with its rendered diagnostic
type FindingOutput struct {
	Kind       analyzer.Kind   `json:"kind"`
	Key        string          `json:"key"`
	Line       int             `json:"line"` // Zero-based
	Message    string          `json:"message"`
	Severity   config.Severity `json:"severity"`
	Unresolved bool            `json:"unresolved,omitempty"`
}

// Format writes the check reports in the selected format
func Format(w io.Writer, reports []session.Report, opts Options) error {
	if opts.Silent {
		// In silent mode, only return exit code (handled by caller)
		return nil
	}

	if opts.JSON {
		return formatJSON(w, reports, opts)
	}

	return formatHumanReadable(w, reports, opts)
}

// formatJSON outputs results in JSON format
func formatJSON(w io.Writer, reports []session.Report, opts Options) error {
	out := JSONOutput{Files: make([]FileOutput, 0, len(reports))}

	for _, r := range reports {
		file := FileOutput{
			Path:     relPath(opts.Root, r.Path),
			Template: relPath(opts.Root, r.TemplatePath),
			Findings: []FindingOutput{},
		}
		if r.Err != nil {
			file.Error = errorMessage(opts.Root, r.TemplatePath, r.Err)
		}

		for _, f := range r.Result.Findings {
			file.Findings = append(file.Findings, FindingOutput{
				Kind:       f.Kind,
				Key:        f.Key,
				Line:       f.Line,
				Message:    f.Message(),
				Severity:   r.Result.Severity,
				Unresolved: f.Unresolved,
			})
		}

		out.Missing += r.Result.Count(analyzer.Missing)
		out.Extra += r.Result.Count(analyzer.Extra)
		out.IgnoredMissing += r.Result.IgnoredMissing
		out.IgnoredExtra += r.Result.IgnoredExtra
		out.Files = append(out.Files, file)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// formatHumanReadable outputs results in human-readable format
func formatHumanReadable(w io.Writer, reports []session.Report, opts Options) error {
	p := newPrinter(w)
	var missing, extra, ignored, failed, dirty int

	for _, r := range reports {
		if r.Err != nil {
			failed++
			p.printf("%s%s%s\n", p.c(colorBold), relPath(opts.Root, r.Path), p.c(colorReset))
			p.printf("  %s%s%s\n\n", p.c(colorRed), errorMessage(opts.Root, r.TemplatePath, r.Err), p.c(colorReset))
			continue
		}

		ignored += r.Result.IgnoredMissing + r.Result.IgnoredExtra
		if !r.Result.HasIssues() {
			continue
		}

		dirty++
		missing += r.Result.Count(analyzer.Missing)
		extra += r.Result.Count(analyzer.Extra)

		p.printf("%s%s%s\n", p.c(colorBold), relPath(opts.Root, r.Path), p.c(colorReset))
		sevColor := colorRed
		if r.Result.Severity == config.SeverityWarning {
			sevColor = colorYellow
		}
		for _, f := range r.Result.Findings {
			p.printf("  %s%d%s: %s%s%s: %s", p.c(colorCyan), f.Line+1, p.c(colorReset), p.c(sevColor), r.Result.Severity, p.c(colorReset), f.Message())
			if f.Unresolved {
				p.printf(" %s(line not found)%s", p.c(colorGray), p.c(colorReset))
			}
			p.printf("\n")
		}
		p.printf("\n")
	}

	// Show ignored variables count
	if ignored > 0 {
		p.printf("%s%sNote:%s %d variable(s) were ignored (configured in %s)\n\n", p.c(colorGray), p.c(colorBold), p.c(colorReset), ignored, config.FileName)
	}

	switch {
	case dirty == 0 && failed == 0:
		p.printf("%s%s✓ No issues found. %d file(s) match their templates.%s\n", p.c(colorGreen), p.c(colorBold), len(reports), p.c(colorReset))
	case dirty > 0:
		p.printf("%s%d missing and %d extra variable(s) in %d file(s).%s\n", p.c(colorBold), missing, extra, dirty, p.c(colorReset))
	}

	return nil
}

// FixResult is the outcome of fixing one working file
type FixResult struct {
	Path         string
	TemplatePath string
	Report       session.FixReport
	Err          error
}

// FixOutput represents the JSON output format of a fix
type FixOutput struct {
	Path      string   `json:"path"`
	Error     string   `json:"error,omitempty"`
	Written   bool     `json:"written"`
	Inserted  []string `json:"inserted"`
	Deleted   []int    `json:"deleted"` // Zero-based lines of the original file
	Remaining int      `json:"remaining"`
}

// FormatFixes writes the outcome of fixes. In preview mode the patched text
// is written as-is, under a header when there is more than one file.
func FormatFixes(w io.Writer, results []FixResult, preview bool, opts Options) error {
	if opts.Silent {
		return nil
	}

	if opts.JSON {
		out := make([]FixOutput, 0, len(results))
		for _, r := range results {
			out = append(out, fixOutput(r, opts))
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	p := newPrinter(w)
	for i, r := range results {
		name := relPath(opts.Root, r.Path)

		if r.Err != nil {
			p.printf("%s%s:%s %s%s%s\n", p.c(colorBold), name, p.c(colorReset), p.c(colorRed), errorMessage(opts.Root, r.TemplatePath, r.Err), p.c(colorReset))
			continue
		}

		if preview {
			if len(results) > 1 {
				if i > 0 {
					p.printf("\n")
				}
				p.printf("%s==> %s <==%s\n", p.c(colorGray), name, p.c(colorReset))
			}
			p.printf("%s", r.Report.Patched)
			continue
		}

		plan := r.Report.Plan
		if plan.Empty() {
			p.printf("%s%s✓ Nothing to fix in %s.%s\n", p.c(colorGreen), p.c(colorBold), name, p.c(colorReset))
			continue
		}

		p.printf("%sFixed %s:%s added %d, removed %d line(s)\n", p.c(colorBold), name, p.c(colorReset), len(plan.Insertions), len(plan.Deletions))
		for _, e := range plan.Insertions {
			p.printf("  %s+ %s%s\n", p.c(colorGreen), e.String(), p.c(colorReset))
		}
		for _, d := range plan.Deletions {
			p.printf("  %s- %s%s %s(line %d)%s\n", p.c(colorRed), d.Key, p.c(colorReset), p.c(colorGray), d.Line+1, p.c(colorReset))
		}
	}
	return nil
}

func fixOutput(r FixResult, opts Options) FixOutput {
	out := FixOutput{
		Path:     relPath(opts.Root, r.Path),
		Inserted: []string{},
		Deleted:  []int{},
	}
	if r.Err != nil {
		out.Error = errorMessage(opts.Root, r.TemplatePath, r.Err)
		return out
	}

	out.Written = r.Report.Written
	out.Remaining = len(r.Report.After.Findings)
	for _, e := range r.Report.Plan.Insertions {
		out.Inserted = append(out.Inserted, e.String())
	}
	for _, d := range r.Report.Plan.Deletions {
		out.Deleted = append(out.Deleted, d.Line)
	}
	return out
}

// FixesHaveIssues returns true if any fix failed or left findings behind
func FixesHaveIssues(results []FixResult) bool {
	for _, r := range results {
		if r.Err != nil || r.Report.After.HasIssues() {
			return true
		}
	}
	return false
}

// FixesFailed returns true if any fix could not be computed or written
func FixesFailed(results []FixResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// HasIssues returns true if any report has findings or failed
func HasIssues(reports []session.Report) bool {
	for _, r := range reports {
		if r.Err != nil || r.Result.HasIssues() {
			return true
		}
	}
	return false
}

func errorMessage(root, templatePath string, err error) string {
	if errors.Is(err, session.ErrTemplateNotFound) {
		return fmt.Sprintf("template %s not found", relPath(root, templatePath))
	}
	return err.Error()
}

// relPath makes a path relative to root for display, falling back to the file name
func relPath(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.Base(path)
}
