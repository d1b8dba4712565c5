package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alexohotnikov/envs-checker-vscode/internal/config"
)

// FileInfo describes a working file and the template expected next to it
type FileInfo struct {
	Path         string
	TemplatePath string
	HasTemplate  bool
}

// Scanner handles working file discovery and filtering
type Scanner struct {
	workingSuffix string
	templateName  string
	excludeDirs   map[string]bool // Directory names to exclude (e.g., "node_modules")
	excludePaths  []string        // Path patterns to exclude (e.g., "src/config", "k8s/*")
	excludeGlobs  []string
	includeGlobs  []string
	scanRoot      string
}

// NewScanner creates a new scanner with default exclusions
func NewScanner() *Scanner {
	return &Scanner{
		workingSuffix: config.DefaultWorkingSuffix,
		templateName:  config.DefaultTemplateName,
		excludeDirs: map[string]bool{
			"node_modules": true,
			"vendor":       true,
			".git":         true,
			"build":        true,
			"dist":         true,
			"bin":          true,
			"out":          true,
			".next":        true,
			".cache":       true,
		},
	}
}

// SetFileNames sets the working file suffix and template file name
func (s *Scanner) SetFileNames(workingSuffix, templateName string) {
	if workingSuffix != "" {
		s.workingSuffix = workingSuffix
	}
	if templateName != "" {
		s.templateName = templateName
	}
}

// SetExcludeGlobs sets glob patterns to exclude
func (s *Scanner) SetExcludeGlobs(globs []string) {
	s.excludeGlobs = globs
}

// SetIncludeGlobs sets glob patterns to include (overrides excludes)
func (s *Scanner) SetIncludeGlobs(globs []string) {
	s.includeGlobs = globs
}

// AddExcludeDirs adds additional directories to exclude from scanning
// Can be directory names (e.g., "config") or paths (e.g., "src/config")
func (s *Scanner) AddExcludeDirs(dirs []string) {
	for _, dir := range dirs {
		if strings.Contains(dir, "/") || strings.Contains(dir, "\\") {
			s.excludePaths = append(s.excludePaths, dir)
		} else {
			s.excludeDirs[dir] = true
		}
	}
}

// IsWorkingFile reports whether path names a working file. The template
// itself never counts, even if it happens to end with the working suffix.
func (s *Scanner) IsWorkingFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, s.workingSuffix) && name != s.templateName
}

// IsTemplateFile reports whether path names a template file
func (s *Scanner) IsTemplateFile(path string) bool {
	return filepath.Base(path) == s.templateName
}

// TemplateFor returns the template path co-located with a working file
func (s *Scanner) TemplateFor(workingPath string) string {
	return filepath.Join(filepath.Dir(workingPath), s.templateName)
}

// Pair builds the FileInfo for a single working file
func (s *Scanner) Pair(workingPath string) FileInfo {
	templatePath := s.TemplateFor(workingPath)
	_, err := os.Stat(templatePath)
	return FileInfo{
		Path:         workingPath,
		TemplatePath: templatePath,
		HasTemplate:  err == nil,
	}
}

// matchesGlob checks if a path matches any of the glob patterns
func matchesGlob(path string, globs []string) bool {
	for _, glob := range globs {
		matched, _ := filepath.Match(glob, filepath.Base(path))
		if matched {
			return true
		}
		// Also try matching against full path
		matched, _ = filepath.Match(glob, path)
		if matched {
			return true
		}
	}
	return false
}

// shouldInclude checks if a file should be included based on include/exclude globs
func (s *Scanner) shouldInclude(path string) bool {
	if len(s.includeGlobs) > 0 {
		return matchesGlob(path, s.includeGlobs)
	}
	if len(s.excludeGlobs) > 0 {
		return !matchesGlob(path, s.excludeGlobs)
	}
	return true
}

// isInIgnoredPath checks if a directory is within an ignored path
func (s *Scanner) isInIgnoredPath(dirPath string) bool {
	if s.scanRoot == "" || len(s.excludePaths) == 0 {
		return false
	}

	relPath, err := filepath.Rel(s.scanRoot, dirPath)
	if err != nil {
		return false
	}
	relPathNormalized := filepath.ToSlash(relPath)

	for _, excludePath := range s.excludePaths {
		excludePathNormalized := strings.TrimSuffix(filepath.ToSlash(excludePath), "/*")

		if relPathNormalized == excludePathNormalized {
			return true
		}
		if strings.HasPrefix(relPathNormalized, excludePathNormalized+"/") {
			return true
		}
	}

	return false
}

// Scan returns every working file under rootPath. If rootPath is itself a
// file it is returned as the only pair, whatever its name.
func (s *Scanner) Scan(rootPath string) ([]FileInfo, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []FileInfo{s.Pair(rootPath)}, nil
	}

	var files []FileInfo
	s.scanRoot = rootPath

	err = filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != rootPath && (s.excludeDirs[d.Name()] || s.isInIgnoredPath(path)) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.IsWorkingFile(path) || !s.shouldInclude(path) {
			return nil
		}

		files = append(files, s.Pair(path))
		return nil
	})

	return files, err
}
