package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up in the scanned root
const FileName = ".envs-checker.config"

const (
	DefaultWorkingSuffix = ".env.development"
	DefaultTemplateName  = ".env.development.example"
)

// Severity of reported findings
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// MissingLine selects where missing variables are reported
type MissingLine string

const (
	MissingAtStart MissingLine = "start" // Line 0
	MissingAtEnd   MissingLine = "end"   // Last line of the document
)

// Config represents the envs-checker configuration file
type Config struct {
	WorkingSuffix string        `yaml:"working_suffix"`
	TemplateName  string        `yaml:"template_name"`
	Severity      Severity      `yaml:"severity"`
	MissingLine   MissingLine   `yaml:"missing_line"`
	Ignores       IgnoresConfig `yaml:"ignores"`
}

// IgnoresConfig contains ignore rules for environment variables
type IgnoresConfig struct {
	Missing []string `yaml:"missing"` // Variables never reported as missing
	Extra   []string `yaml:"extra"`   // Variables never reported as extra
	Folders []string `yaml:"folders"` // Folders to skip when scanning for working files
}

// Default returns the configuration used when no config file exists
func Default() *Config {
	return &Config{
		WorkingSuffix: DefaultWorkingSuffix,
		TemplateName:  DefaultTemplateName,
		Severity:      SeverityError,
		MissingLine:   MissingAtStart,
		Ignores: IgnoresConfig{
			Missing: []string{},
			Extra:   []string{},
			Folders: []string{},
		},
	}
}

// LoadConfig loads the config file from the specified directory
func LoadConfig(rootPath string) (*Config, error) {
	configPath := filepath.Join(rootPath, FileName)

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		// No config file, return default config
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return config, nil
}

// Validate checks enumerated fields and fills empty names with defaults
func (c *Config) Validate() error {
	if c.WorkingSuffix == "" {
		c.WorkingSuffix = DefaultWorkingSuffix
	}
	if c.TemplateName == "" {
		c.TemplateName = DefaultTemplateName
	}

	switch c.Severity {
	case "":
		c.Severity = SeverityError
	case SeverityError, SeverityWarning:
	default:
		return fmt.Errorf("unknown severity %q (want %q or %q)", c.Severity, SeverityError, SeverityWarning)
	}

	switch c.MissingLine {
	case "":
		c.MissingLine = MissingAtStart
	case MissingAtStart, MissingAtEnd:
	default:
		return fmt.Errorf("unknown missing_line %q (want %q or %q)", c.MissingLine, MissingAtStart, MissingAtEnd)
	}

	return nil
}

// ShouldIgnoreMissing checks if a variable should be ignored when reporting as missing
func (c *Config) ShouldIgnoreMissing(varName string) bool {
	return slices.Contains(c.Ignores.Missing, varName)
}

// ShouldIgnoreExtra checks if a variable should be ignored when reporting as extra
func (c *Config) ShouldIgnoreExtra(varName string) bool {
	return slices.Contains(c.Ignores.Extra, varName)
}

// Template is the default content written by init-config
const Template = `# .envs-checker.config
# Configuration file for envs-checker

# Files ending with this suffix are checked
working_suffix: .env.development

# Template file expected next to every working file
template_name: .env.development.example

# Severity of reported findings: error or warning
severity: error

# Line where missing variables are reported: start or end
missing_line: start

ignores:
  # Variables that are provided some other way and should not be reported as missing
  missing:
    # - CUSTOM_API_KEY

  # Local-only variables that may stay in the working file
  extra:
    # - DEBUG_LOCAL

  # Folders to skip when looking for working files
  folders:
    # - fixtures
`
