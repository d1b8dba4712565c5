// Package session connects the checker to a host: it resolves templates,
// keeps the latest diagnostics per document and applies fixes.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexohotnikov/envs-checker-vscode/internal/analyzer"
	"github.com/alexohotnikov/envs-checker-vscode/internal/config"
	"github.com/alexohotnikov/envs-checker-vscode/internal/envfile"
	"github.com/alexohotnikov/envs-checker-vscode/internal/reconcile"
	"github.com/alexohotnikov/envs-checker-vscode/internal/scanner"
)

var (
	// ErrTemplateNotFound is returned when no template sits next to the working file
	ErrTemplateNotFound = errors.New("template file not found")
	// ErrNotWorkingFile is returned for documents that are not working files
	ErrNotWorkingFile = errors.New("not a working env file")
	// ErrNoSuchFinding is returned by FixOne when the finding is not reported
	ErrNoSuchFinding = errors.New("no such finding")
)

// Document is the text of a working file as seen by the host
type Document struct {
	Path string
	Text string
}

// LoadDocument reads a document from disk
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Document{Path: path, Text: string(data)}, nil
}

// Notifier shows single user-visible messages
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Info(string)  {}
func (nopNotifier) Error(string) {}

// WriteFunc replaces the whole content of a document
type WriteFunc func(path, text string) error

func writeAtomic(path, text string) error {
	return atomic.WriteFile(path, strings.NewReader(text))
}

// Session checks and fixes working files and caches their latest results
type Session struct {
	cfg      *config.Config
	scanner  *scanner.Scanner
	logger   *zap.Logger
	notifier Notifier
	write    WriteFunc

	mu          sync.Mutex
	diagnostics map[string]analyzer.Result
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithNotifier sets where user-visible messages go
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithWriter replaces the atomic file writer used by fixes
func WithWriter(w WriteFunc) Option {
	return func(s *Session) { s.write = w }
}

// New creates a session. cfg may be nil.
func New(cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.Default()
	}

	sc := scanner.NewScanner()
	sc.SetFileNames(cfg.WorkingSuffix, cfg.TemplateName)

	s := &Session{
		cfg:         cfg,
		scanner:     sc,
		logger:      zap.NewNop(),
		notifier:    nopNotifier{},
		write:       writeAtomic,
		diagnostics: make(map[string]analyzer.Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the session configuration
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Scanner returns the scanner configured with the session's file names
func (s *Session) Scanner() *scanner.Scanner {
	return s.scanner
}

// loadTemplate validates the document and reads its template
func (s *Session) loadTemplate(doc Document) (string, error) {
	if !s.scanner.IsWorkingFile(doc.Path) {
		s.notifier.Error(fmt.Sprintf("This command can only be run on %s files.", s.cfg.WorkingSuffix))
		return "", fmt.Errorf("%s: %w", doc.Path, ErrNotWorkingFile)
	}

	templatePath := s.scanner.TemplateFor(doc.Path)
	data, err := os.ReadFile(templatePath)
	if errors.Is(err, os.ErrNotExist) {
		s.notifier.Error(fmt.Sprintf("File %s not found.", s.cfg.TemplateName))
		return "", fmt.Errorf("%s: %w", templatePath, ErrTemplateNotFound)
	}
	if err != nil {
		s.notifier.Error(fmt.Sprintf("Failed to read %s: %v", s.cfg.TemplateName, err))
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return string(data), nil
}

// Check compares a document with its template and caches the result.
// On failure nothing is computed and the cache is left as it was.
func (s *Session) Check(doc Document) (analyzer.Result, error) {
	templateText, err := s.loadTemplate(doc)
	if err != nil {
		s.logger.Debug("Check aborted", zap.String("path", doc.Path), zap.Error(err))
		return analyzer.Result{}, err
	}

	result := analyzer.Check(doc.Text, templateText, s.cfg)
	s.store(doc.Path, result)

	s.logger.Debug("Checked document",
		zap.String("path", doc.Path),
		zap.Int("missing", result.Count(analyzer.Missing)),
		zap.Int("extra", result.Count(analyzer.Extra)))

	if !result.HasIssues() {
		s.notifier.Info(fmt.Sprintf("File %s has no issues! ✅", filepath.Base(doc.Path)))
	}
	return result, nil
}

// FixReport describes an applied or previewed fix
type FixReport struct {
	Plan    reconcile.Plan
	Patched string          // Full replacement text
	Written bool            // False for previews and empty plans
	After   analyzer.Result // Result of the re-check on the patched text
}

// Fix reconciles a document with its template, writes the patched text as a
// single whole-file replacement and re-checks it.
func (s *Session) Fix(doc Document) (FixReport, error) {
	return s.fix(doc, nil, true)
}

// Preview computes the fix without writing anything
func (s *Session) Preview(doc Document) (FixReport, error) {
	return s.fix(doc, nil, false)
}

// FixOne applies the fix for a single finding
func (s *Session) FixOne(doc Document, kind analyzer.Kind, key string) (FixReport, error) {
	return s.fix(doc, &analyzer.Finding{Kind: kind, Key: key}, true)
}

// PreviewOne computes the fix for a single finding without writing anything
func (s *Session) PreviewOne(doc Document, kind analyzer.Kind, key string) (FixReport, error) {
	return s.fix(doc, &analyzer.Finding{Kind: kind, Key: key}, false)
}

func (s *Session) fix(doc Document, only *analyzer.Finding, write bool) (FixReport, error) {
	templateText, err := s.loadTemplate(doc)
	if err != nil {
		return FixReport{}, err
	}

	var report FixReport
	if only == nil {
		report.Patched, report.Plan = reconcile.Fix(doc.Text, templateText, s.cfg)
	} else {
		result := analyzer.Check(doc.Text, templateText, s.cfg)
		plan := reconcile.NewPlan(doc.Text, envfile.Parse(templateText), result.Findings).Only(only.Kind, only.Key)
		if plan.Empty() {
			return FixReport{}, fmt.Errorf("%s %q in %s: %w", only.Kind, only.Key, doc.Path, ErrNoSuchFinding)
		}
		report.Plan = plan
		report.Patched = plan.Apply(doc.Text)
	}

	if write && !report.Plan.Empty() {
		if err := s.write(doc.Path, report.Patched); err != nil {
			s.notifier.Error(fmt.Sprintf("Failed to write %s: %v", filepath.Base(doc.Path), err))
			return FixReport{}, fmt.Errorf("failed to write %s: %w", doc.Path, err)
		}
		report.Written = true
		s.logger.Info("Fixed document",
			zap.String("path", doc.Path),
			zap.Int("inserted", len(report.Plan.Insertions)),
			zap.Int("deleted", len(report.Plan.Deletions)))
	}

	// Re-check the patched text so the cache reflects the new content
	after := analyzer.Check(report.Patched, templateText, s.cfg)
	if write {
		s.store(doc.Path, after)
		if !after.HasIssues() {
			s.notifier.Info(fmt.Sprintf("File %s has no issues! ✅", filepath.Base(doc.Path)))
		}
	}
	report.After = after
	return report, nil
}

// Diagnostics returns the latest cached result for a document
func (s *Session) Diagnostics(path string) (analyzer.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.diagnostics[key(path)]
	return result, ok
}

// Forget drops the cached result for a document
func (s *Session) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.diagnostics, key(path))
}

func (s *Session) store(path string, result analyzer.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics[key(path)] = result
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Report is the outcome of checking one discovered working file
type Report struct {
	Path         string
	TemplatePath string
	Result       analyzer.Result
	Err          error
}

// CheckAll checks every file in parallel. Per-file failures are recorded in
// the report and do not stop the others. Reports keep the order of files.
func (s *Session) CheckAll(ctx context.Context, files []scanner.FileInfo) ([]Report, error) {
	reports := make([]Report, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(10)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			reports[i] = Report{Path: file.Path, TemplatePath: file.TemplatePath}

			doc, err := LoadDocument(file.Path)
			if err != nil {
				reports[i].Err = err
				return nil
			}

			result, err := s.Check(doc)
			if err != nil {
				reports[i].Err = err
				return nil
			}
			reports[i].Result = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
