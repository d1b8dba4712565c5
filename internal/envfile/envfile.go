package envfile

import (
	"fmt"
	"os"
	"strings"
)

// NotFound is returned by FindLine when no line declares the key
const NotFound = -1

// Entry is a single declared variable
type Entry struct {
	Key      string
	Value    string
	HasValue bool // False for a bare "KEY" line with no '='
}

// String renders the entry as a KEY=value line. An absent value renders as KEY=
func (e Entry) String() string {
	return e.Key + "=" + e.Value
}

// Map is an ordered set of entries. Keys keep the position of their first
// declaration; a later declaration of the same key replaces the value.
type Map struct {
	keys    []string
	entries map[string]Entry
}

// NewMap creates an empty map
func NewMap() *Map {
	return &Map{entries: make(map[string]Entry)}
}

// Set stores an entry, overwriting any previous value for the key
func (m *Map) Set(e Entry) {
	if _, ok := m.entries[e.Key]; !ok {
		m.keys = append(m.keys, e.Key)
	}
	m.entries[e.Key] = e
}

// Get returns the entry for key
func (m *Map) Get(key string) (Entry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// Has reports whether key is declared
func (m *Map) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// Keys returns the keys in declaration order
func (m *Map) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Len returns the number of distinct keys
func (m *Map) Len() int {
	return len(m.keys)
}

// SplitLines splits text into lines on '\n'. A trailing newline does not
// produce an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// ParseLine extracts the entry declared on a single line.
// ok is false for blank lines, comments and lines with an empty key.
func ParseLine(line string) (entry Entry, ok bool) {
	line = strings.TrimSpace(line)

	// Skip empty lines
	if line == "" {
		return Entry{}, false
	}

	// Skip comments
	if strings.HasPrefix(line, "#") {
		return Entry{}, false
	}

	// Only the first '=' separates key from value
	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return Entry{}, false
	}

	if !found {
		return Entry{Key: key}, true
	}
	return Entry{Key: key, Value: strings.TrimSpace(value), HasValue: true}, true
}

// LineOfKey returns the key declared on line, or "" if the line declares none
func LineOfKey(line string) string {
	e, ok := ParseLine(line)
	if !ok {
		return ""
	}
	return e.Key
}

// Parse parses env file content into an ordered map
func Parse(text string) *Map {
	vars := NewMap()
	for _, line := range SplitLines(text) {
		if e, ok := ParseLine(line); ok {
			vars.Set(e)
		}
	}
	return vars
}

// ParseFile reads and parses an env file. A missing file is reported as an
// error wrapping os.ErrNotExist.
func ParseFile(path string) (*Map, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("error reading %s: %w", path, err)
	}
	text := string(data)
	return Parse(text), text, nil
}

// FindLine returns the zero-based index of the first line declaring key, or
// NotFound. Matching is exact on the parsed key, so "API" never matches
// "API_KEY=...".
func FindLine(text, key string) int {
	if key == "" {
		return NotFound
	}
	for i, line := range SplitLines(text) {
		if LineOfKey(line) == key {
			return i
		}
	}
	return NotFound
}
