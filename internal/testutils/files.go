package testutils

import (
	"os"
	"path/filepath"
	"testing"
)

// TempFile creates a temporary file with content for testing
func TempFile(t *testing.T, dir, pattern, content string) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}

	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if content != "" {
		if _, err := file.WriteString(content); err != nil {
			file.Close()
			t.Fatalf("Failed to write to temp file: %v", err)
		}
	}

	filename := file.Name()
	file.Close()
	return filename
}

// CreateTestEventsCSV creates a CSV file of events in the agent replay format
func CreateTestEventsCSV(t *testing.T, dir string) string {
	t.Helper()
	csvContent := `key,count,sum,dur,segmentation
app_open,1,,,
purchase,1,9.99,,"{""sku"":""pro-monthly""}"
video_watched,1,,42.5,"{""length"":""short""}"`

	return TempFile(t, dir, "events-*.csv", csvContent)
}

// StorePath returns a path for a file store document inside a fresh temp dir
func StorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "telemetry", "store.json")
}

// ReadTestFile reads the content of a file
func ReadTestFile(t *testing.T, filePath string) string {
	t.Helper()
	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", filePath, err)
	}
	return string(content)
}

// FileExists checks if a file exists
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}
