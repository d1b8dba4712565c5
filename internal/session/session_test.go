package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alexohotnikov/envs-checker-vscode/internal/analyzer"
	"github.com/alexohotnikov/envs-checker-vscode/internal/config"
	"github.com/alexohotnikov/envs-checker-vscode/internal/scanner"
)

type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

type fakeHost struct {
	saved    []Handler
	opened   []Handler
	commands map[string]Handler
	quickFix []QuickFixHandler
}

func (h *fakeHost) OnDocumentSaved(fn Handler)  { h.saved = append(h.saved, fn) }
func (h *fakeHost) OnDocumentOpened(fn Handler) { h.opened = append(h.opened, fn) }
func (h *fakeHost) OnQuickFix(fn QuickFixHandler) { h.quickFix = append(h.quickFix, fn) }
func (h *fakeHost) OnCommand(name string, fn Handler) {
	if h.commands == nil {
		h.commands = make(map[string]Handler)
	}
	h.commands[name] = fn
}

func setupPair(t *testing.T, working, template string) string {
	t.Helper()
	dir := t.TempDir()
	workingPath := filepath.Join(dir, ".env.development")
	require.NoError(t, os.WriteFile(workingPath, []byte(working), 0644))
	if template != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.development.example"), []byte(template), 0644))
	}
	return workingPath
}

func newSession(t *testing.T, n Notifier) *Session {
	return New(config.Default(), WithLogger(zaptest.NewLogger(t)), WithNotifier(n))
}

func TestSession_Check(t *testing.T) {
	path := setupPair(t, "HOST=localhost\nDEBUG=1\n", "HOST=localhost\nPORT=3000\n")
	n := &recordingNotifier{}
	s := newSession(t, n)

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	result, err := s.Check(doc)
	require.NoError(t, err)

	assert.Equal(t, []analyzer.Finding{
		{Kind: analyzer.Missing, Key: "PORT", Line: 0},
		{Kind: analyzer.Extra, Key: "DEBUG", Line: 1},
	}, result.Findings)
	assert.Empty(t, n.infos)

	cached, ok := s.Diagnostics(path)
	require.True(t, ok)
	assert.Equal(t, result, cached)

	s.Forget(path)
	_, ok = s.Diagnostics(path)
	assert.False(t, ok)
}

func TestSession_CheckClean(t *testing.T) {
	path := setupPair(t, "A=1\n", "A=2\n")
	n := &recordingNotifier{}
	s := newSession(t, n)

	result, err := s.Check(Document{Path: path, Text: "A=1\n"})
	require.NoError(t, err)
	assert.False(t, result.HasIssues())
	assert.Equal(t, []string{"File .env.development has no issues! ✅"}, n.infos)
}

func TestSession_TemplateNotFound(t *testing.T) {
	path := setupPair(t, "A=1\n", "")
	n := &recordingNotifier{}
	s := newSession(t, n)

	_, err := s.Check(Document{Path: path, Text: "A=1\n"})
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
	assert.Equal(t, []string{"File .env.development.example not found."}, n.errors)

	_, ok := s.Diagnostics(path)
	assert.False(t, ok, "nothing must be cached when the template is missing")

	_, err = s.Fix(Document{Path: path, Text: "A=1\n"})
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A=1\n", string(data), "working file must be untouched")
}

func TestSession_NotWorkingFile(t *testing.T) {
	n := &recordingNotifier{}
	s := newSession(t, n)

	_, err := s.Check(Document{Path: filepath.Join(t.TempDir(), ".env"), Text: "A=1"})
	assert.True(t, errors.Is(err, ErrNotWorkingFile))
	assert.Len(t, n.errors, 1)
}

func TestSession_Fix(t *testing.T) {
	path := setupPair(t, "C=3", "A=1\nB=2")
	n := &recordingNotifier{}
	s := newSession(t, n)

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	report, err := s.Fix(doc)
	require.NoError(t, err)

	assert.True(t, report.Written)
	assert.Equal(t, "A=1\nB=2\n", report.Patched)
	assert.Empty(t, report.After.Findings)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A=1\nB=2\n", string(data))

	cached, ok := s.Diagnostics(path)
	require.True(t, ok)
	assert.Empty(t, cached.Findings)

	assert.Equal(t, []string{"File .env.development has no issues! ✅"}, n.infos)
	assert.Empty(t, n.errors)
}

func TestSession_FixPartialDoesNotConfirm(t *testing.T) {
	path := setupPair(t, "A=1\nX=1\n", "A=1\nB=2\n")
	n := &recordingNotifier{}
	s := newSession(t, n)

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	_, err = s.FixOne(doc, analyzer.Extra, "X")
	require.NoError(t, err)
	assert.Empty(t, n.infos)
}

func TestSession_Preview(t *testing.T) {
	path := setupPair(t, "C=3", "A=1\nB=2")
	s := newSession(t, &recordingNotifier{})

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	report, err := s.Preview(doc)
	require.NoError(t, err)
	assert.False(t, report.Written)
	assert.Equal(t, "A=1\nB=2\n", report.Patched)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "C=3", string(data))
}

func TestSession_FixOne(t *testing.T) {
	path := setupPair(t, "A=1\nX=1\n", "A=1\nB=2\nC=3")
	s := newSession(t, &recordingNotifier{})

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	report, err := s.FixOne(doc, analyzer.Missing, "C")
	require.NoError(t, err)
	assert.Equal(t, "A=1\nX=1\nC=3\n", report.Patched)
	assert.Equal(t, 2, len(report.After.Findings))

	_, err = s.FixOne(doc, analyzer.Extra, "A")
	assert.True(t, errors.Is(err, ErrNoSuchFinding))
}

func TestSession_PreviewOne(t *testing.T) {
	path := setupPair(t, "A=1\nOLD=2\n", "A=1\n")
	n := &recordingNotifier{}
	s := newSession(t, n)

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	report, err := s.PreviewOne(doc, analyzer.Extra, "OLD")
	require.NoError(t, err)
	assert.False(t, report.Written)
	assert.Equal(t, "A=1\n", report.Patched)
	assert.Empty(t, report.After.Findings)
	assert.Empty(t, n.infos)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A=1\nOLD=2\n", string(data))

	_, ok := s.Diagnostics(path)
	assert.False(t, ok, "previews are not cached")
}

func TestSession_FixWriteError(t *testing.T) {
	path := setupPair(t, "C=3", "A=1")
	n := &recordingNotifier{}
	s := New(config.Default(), WithNotifier(n), WithWriter(func(string, string) error {
		return errors.New("disk full")
	}))

	_, err := s.Fix(Document{Path: path, Text: "C=3"})
	assert.Error(t, err)
	assert.Len(t, n.errors, 1)
}

func TestSession_Register(t *testing.T) {
	path := setupPair(t, "A=1\nX=1\n", "A=1\nB=2\n")
	var written string
	s := New(config.Default(), WithWriter(func(_, text string) error {
		written = text
		return nil
	}))

	host := &fakeHost{}
	s.Register(host)

	require.Len(t, host.saved, 1)
	require.Len(t, host.opened, 1)
	require.Contains(t, host.commands, CommandCheck)
	require.Contains(t, host.commands, CommandFixAll)
	require.Len(t, host.quickFix, 1)

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	// Non-working files are ignored by events
	require.NoError(t, host.saved[0](Document{Path: filepath.Join(filepath.Dir(path), ".env"), Text: "Z=1"}))
	_, ok := s.Diagnostics(path)
	assert.False(t, ok)

	require.NoError(t, host.opened[0](doc))
	result, ok := s.Diagnostics(path)
	require.True(t, ok)
	assert.Len(t, result.Findings, 2)

	// ...but rejected by commands
	err = host.commands[CommandCheck](Document{Path: "/tmp/.env", Text: ""})
	assert.True(t, errors.Is(err, ErrNotWorkingFile))

	require.NoError(t, host.quickFix[0](doc, analyzer.Finding{Kind: analyzer.Extra, Key: "X"}))
	assert.Equal(t, "A=1\n", written)
	err = host.quickFix[0](doc, analyzer.Finding{Kind: analyzer.Extra, Key: "A"})
	assert.True(t, errors.Is(err, ErrNoSuchFinding))

	require.NoError(t, host.commands[CommandFixAll](doc))
	assert.Equal(t, "A=1\nB=2\n", written)
	result, _ = s.Diagnostics(path)
	assert.Empty(t, result.Findings)
}

func TestSession_CheckAll(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"a", "b", "c"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, dir, ".env.development"), []byte("A=1\n"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", ".env.development.example"), []byte("A=1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b", ".env.development.example"), []byte("A=1\nB=2\n"), 0644))

	s := New(config.Default())
	files, err := s.Scanner().Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 3)

	reports, err := s.CheckAll(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.NoError(t, reports[0].Err)
	assert.Empty(t, reports[0].Result.Findings)

	assert.NoError(t, reports[1].Err)
	assert.Equal(t, 1, reports[1].Result.Count(analyzer.Missing))

	assert.True(t, errors.Is(reports[2].Err, ErrTemplateNotFound))
}

func TestSession_CheckAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(config.Default())
	_, err := s.CheckAll(ctx, []scanner.FileInfo{{Path: "/nonexistent/.env.development"}})
	assert.ErrorIs(t, err, context.Canceled)
}
