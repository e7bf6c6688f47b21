package utils

import (
	"fmt"
	"os"
	"path"
	"strings"
	"testing"
)

// CreateTestFile writes contents to a file in a temporary directory and
// returns its path. The directory is removed when the test ends.
func CreateTestFile(t *testing.T, contents string) string {
	t.Helper()

	filepath := path.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(filepath, []byte(contents), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return filepath
}

// CreateLinesFile writes lines joined by newlines to a temporary file. If
// trailingNewline is set, the last line is terminated too.
func CreateLinesFile(t *testing.T, lines []string, trailingNewline bool) string {
	t.Helper()

	contents := strings.Join(lines, "\n")
	if trailingNewline && len(lines) > 0 {
		contents += "\n"
	}
	return CreateTestFile(t, contents)
}

// NumberedLines returns n lines named prefix-1 through prefix-n.
func NumberedLines(prefix string, n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return lines
}
