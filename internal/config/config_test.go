package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	content := `severity: warning
missing_line: end
ignores:
  missing:
    - CUSTOM_VAR
  extra:
    - LOCAL_ONLY
  folders:
    - fixtures
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, SeverityWarning, cfg.Severity)
	assert.Equal(t, MissingAtEnd, cfg.MissingLine)
	assert.Equal(t, DefaultWorkingSuffix, cfg.WorkingSuffix)
	assert.Equal(t, DefaultTemplateName, cfg.TemplateName)
	assert.True(t, cfg.ShouldIgnoreMissing("CUSTOM_VAR"))
	assert.False(t, cfg.ShouldIgnoreMissing("LOCAL_ONLY"))
	assert.True(t, cfg.ShouldIgnoreExtra("LOCAL_ONLY"))
	assert.Equal(t, []string{"fixtures"}, cfg.Ignores.Folders)
}

func TestLoadConfig_Template(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(Template), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, SeverityError, cfg.Severity)
	assert.Equal(t, MissingAtStart, cfg.MissingLine)
	assert.Empty(t, cfg.Ignores.Missing)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "ignores: [unterminated"},
		{"bad severity", "severity: fatal\n"},
		{"bad missing_line", "missing_line: middle\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tt.content), 0644))

			_, err := LoadConfig(dir)
			assert.Error(t, err)
		})
	}
}
