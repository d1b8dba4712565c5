package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alexohotnikov/envs-checker-vscode/internal/analyzer"
	"github.com/alexohotnikov/envs-checker-vscode/internal/config"
	"github.com/alexohotnikov/envs-checker-vscode/internal/output"
	"github.com/alexohotnikov/envs-checker-vscode/internal/scanner"
	"github.com/alexohotnikov/envs-checker-vscode/internal/session"
	"github.com/alexohotnikov/envs-checker-vscode/internal/watch"
)

// Version is set at build time via -ldflags
var Version = "dev"

// errIssuesFound makes the process exit with status 1 without printing an error
var errIssuesFound = errors.New("issues found")

var (
	rootCmd = &cobra.Command{
		Use:   "envs-checker",
		Short: "Keep .env.development files in sync with their templates",
		Long: `Compares every .env.development file with the .env.development.example
template next to it, reports missing and extra variables and fixes them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initLogger,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	checkCmd = &cobra.Command{
		Use:   "check [path]",
		Short: "Report missing and extra variables",
		Long:  "Check a working file, or every working file below a directory, against its template.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCheck,
	}

	fixCmd = &cobra.Command{
		Use:   "fix [path]",
		Short: "Append missing variables and remove extra ones",
		Long: `Rewrite working files so they declare exactly the template's keys.
Missing keys are appended with the template's value, lines declaring extra keys
are removed, everything else is kept as it is.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFix,
	}

	watchCmd = &cobra.Command{
		Use:   "watch [path]",
		Short: "Re-check working files whenever they or their templates change",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}

	initConfigCmd = &cobra.Command{
		Use:   "init-config",
		Short: "Create a " + config.FileName + " file in the current directory",
		RunE:  runInitConfig,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}

	logger *zap.Logger

	// Flags
	scanPath     string
	jsonOutput   bool
	silent       bool
	debug        bool
	includeGlobs []string
	excludeGlobs []string
	dryRun       bool
	fixKey       string
	fixOnSave    bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{checkCmd, fixCmd, watchCmd} {
		cmd.Flags().StringVarP(&scanPath, "path", "p", ".", "Working file or directory (default: current directory)")
		cmd.Flags().StringSliceVar(&includeGlobs, "include", []string{}, "Glob patterns to include")
		cmd.Flags().StringSliceVar(&excludeGlobs, "exclude", []string{}, "Glob patterns to exclude")
	}
	for _, cmd := range []*cobra.Command{checkCmd, fixCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results in JSON format")
		cmd.Flags().BoolVar(&silent, "silent", false, "Silent mode (exit code only)")
	}

	fixCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the patched files instead of writing them")
	fixCmd.Flags().StringVar(&fixKey, "key", "", "Only fix the finding for this variable")
	watchCmd.Flags().BoolVar(&fixOnSave, "fix", false, "Fix working files on every change instead of only reporting")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogger(cmd *cobra.Command, args []string) error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	var err error
	logger, err = cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// stderrNotifier prints user-visible messages to the command's stderr
type stderrNotifier struct {
	w io.Writer
}

func (n stderrNotifier) Info(msg string)  { fmt.Fprintln(n.w, msg) }
func (n stderrNotifier) Error(msg string) { fmt.Fprintf(n.w, "Error: %s\n", msg) }

// target resolves the path argument into an absolute path and the directory
// paths are reported relative to
func target(args []string) (string, string, error) {
	path := scanPath
	if len(args) > 0 {
		path = args[0]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return "", "", fmt.Errorf("path does not exist: %s", absPath)
	}
	if err != nil {
		return "", "", err
	}

	if info.IsDir() {
		return absPath, absPath, nil
	}
	return absPath, filepath.Dir(absPath), nil
}

// newSession loads the config from root and discovers the working files
func newSession(cmd *cobra.Command, root, absPath string, opts ...session.Option) (*session.Session, []scanner.FileInfo, error) {
	cfg, err := config.LoadConfig(root)
	if err != nil {
		if !silent {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to load %s: %v\n", config.FileName, err)
		}
		// Continue with default config
		cfg = config.Default()
	}

	opts = append([]session.Option{session.WithLogger(logger)}, opts...)
	s := session.New(cfg, opts...)

	sc := s.Scanner()
	if len(includeGlobs) > 0 {
		sc.SetIncludeGlobs(includeGlobs)
	}
	if len(excludeGlobs) > 0 {
		sc.SetExcludeGlobs(excludeGlobs)
	}
	if len(cfg.Ignores.Folders) > 0 {
		sc.AddExcludeDirs(cfg.Ignores.Folders)
	}

	files, err := sc.Scan(absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	logger.Debug("Discovered working files", zap.String("path", absPath), zap.Int("files", len(files)))
	return s, files, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	absPath, root, err := target(args)
	if err != nil {
		return err
	}

	s, files, err := newSession(cmd, root, absPath)
	if err != nil {
		return err
	}

	reports, err := s.CheckAll(cmd.Context(), files)
	if err != nil {
		return err
	}

	opts := output.Options{JSON: jsonOutput, Silent: silent, Root: root}
	if err := output.Format(cmd.OutOrStdout(), reports, opts); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if output.HasIssues(reports) {
		return errIssuesFound
	}
	return nil
}

func runFix(cmd *cobra.Command, args []string) error {
	absPath, root, err := target(args)
	if err != nil {
		return err
	}

	s, files, err := newSession(cmd, root, absPath)
	if err != nil {
		return err
	}

	var results []output.FixResult
	matched := 0
	for _, file := range files {
		result := output.FixResult{Path: file.Path, TemplatePath: file.TemplatePath}

		doc, err := session.LoadDocument(file.Path)
		if err != nil {
			result.Err = err
			results = append(results, result)
			continue
		}

		switch {
		case fixKey != "":
			kind, ok, err := findingKind(s, doc, fixKey)
			if err != nil {
				result.Err = err
				break
			}
			if !ok {
				continue
			}
			matched++
			if dryRun {
				result.Report, result.Err = s.PreviewOne(doc, kind, fixKey)
			} else {
				result.Report, result.Err = s.FixOne(doc, kind, fixKey)
			}
		case dryRun:
			result.Report, result.Err = s.Preview(doc)
		default:
			result.Report, result.Err = s.Fix(doc)
		}
		results = append(results, result)
	}

	opts := output.Options{JSON: jsonOutput, Silent: silent, Root: root}
	if err := output.FormatFixes(cmd.OutOrStdout(), results, dryRun, opts); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if fixKey != "" {
		// Only the targeted finding is fixed, other findings may remain
		if output.FixesFailed(results) {
			return errIssuesFound
		}
		if matched == 0 {
			return fmt.Errorf("no missing or extra variable %q found", fixKey)
		}
		return nil
	}

	if output.FixesHaveIssues(results) {
		return errIssuesFound
	}
	return nil
}

// findingKind checks doc and reports whether key is missing or extra in it
func findingKind(s *session.Session, doc session.Document, key string) (analyzer.Kind, bool, error) {
	result, err := s.Check(doc)
	if err != nil {
		return "", false, err
	}
	for _, f := range result.Findings {
		if f.Key == key {
			return f.Kind, true, nil
		}
	}
	return "", false, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	absPath, root, err := target(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s, files, err := newSession(cmd, root, absPath, session.WithNotifier(stderrNotifier{w: cmd.ErrOrStderr()}))
	if err != nil {
		return err
	}

	w, err := watch.New(s.Scanner(), watch.WithLogger(logger))
	if err != nil {
		return err
	}
	defer w.Stop()

	dirs := map[string]bool{root: true}
	for _, file := range files {
		dirs[filepath.Dir(file.Path)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	s.Register(w)

	// Print the diagnostics the session just computed for the document
	report := func(doc session.Document) error {
		if fixOnSave {
			if err := w.Run(session.CommandFixAll, doc.Path); err != nil {
				return err
			}
		}
		result, ok := s.Diagnostics(doc.Path)
		if !ok || !result.HasIssues() {
			return nil
		}
		return output.Format(out, []session.Report{{
			Path:         doc.Path,
			TemplatePath: s.Scanner().TemplateFor(doc.Path),
			Result:       result,
		}}, output.Options{Root: root})
	}
	w.OnDocumentOpened(report)
	w.OnDocumentSaved(report)

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d director(ies) under %s...\n", len(dirs), root)
	if err := w.Start(cmd.Context()); err != nil {
		return err
	}

	<-w.Done()
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	configPath := config.FileName

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists in the current directory", config.FileName)
	}

	if err := os.WriteFile(configPath, []byte(config.Template), 0644); err != nil {
		return fmt.Errorf("failed to create %s: %w", config.FileName, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s in the current directory\n", config.FileName)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errIssuesFound) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
